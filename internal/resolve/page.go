package resolve

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lunapapa-finland/auto-video-pipeline/internal/infra/mediatype"
)

// Page 把引用当作网页：抓取 HTML，从中提取候选图片 URL，再按 Direct 的
// 规则下载该候选。
//
// 候选提取顺序（严格）：
// 1) <meta property="og:image">
// 2) <meta name="twitter:image">
// 3) <img class~="tv-snapshot-image">（快照站点的固定类名）
// 4) 页面中第一个 <img>
// 候选相对地址以页面 URL 为基准解析。
type Page struct {
	Client *http.Client
	// Enabled 对应配置开关；关闭时该策略直接放弃。
	Enabled bool
}

func (Page) Name() string { return "page" }

func (p Page) Attempt(ctx context.Context, ref, destBase string) (Resource, bool, error) {
	if !p.Enabled {
		return Resource{}, false, nil
	}

	b, ct, err := fetchBytes(ctx, p.Client, ref)
	if err != nil {
		return Resource{}, false, err
	}
	// 类型不像页面且没有内容：无从解析。
	if !mediatype.IsHTMLLike(ct) && len(bytes.TrimSpace(b)) == 0 {
		return Resource{}, false, nil
	}

	candidate, ok := ExtractImageURL(b, ref)
	if !ok {
		return Resource{}, false, nil
	}

	ib, ict, err := fetchBytes(ctx, p.Client, candidate)
	if err != nil {
		return Resource{}, false, err
	}
	if !mediatype.IsImage(ict) {
		return Resource{}, false, nil
	}
	path, err := saveImage(destBase, ib, ict)
	if err != nil {
		return Resource{}, false, err
	}
	return Resource{Path: path, Strategy: "page"}, true, nil
}

// ExtractImageURL 从页面 HTML 中提取候选图片 URL（纯函数：相同输入 => 相同输出）。
func ExtractImageURL(html []byte, pageURL string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", false
	}

	if v, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
		return resolveURL(pageURL, v), true
	}
	if v, ok := doc.Find(`meta[name="twitter:image"]`).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
		return resolveURL(pageURL, v), true
	}
	if v, ok := doc.Find(`img[class*="tv-snapshot-image"]`).First().Attr("src"); ok && strings.TrimSpace(v) != "" {
		return resolveURL(pageURL, v), true
	}
	if v, ok := doc.Find("img").First().Attr("src"); ok && strings.TrimSpace(v) != "" {
		return resolveURL(pageURL, v), true
	}
	return "", false
}

func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
