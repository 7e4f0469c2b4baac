package resolve

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/lunapapa-finland/auto-video-pipeline/internal/infra/fsx"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/infra/mediatype"
)

// Direct 把引用当作图片 URL 直接下载。
//
// 成功条件：响应 2xx 且 Content-Type 声明为图片。响应是页面或其他类型时
// 主动放弃（ok=false, err=nil），让链走向页面抓取。
type Direct struct {
	Client *http.Client
}

func (Direct) Name() string { return "direct" }

func (d Direct) Attempt(ctx context.Context, ref, destBase string) (Resource, bool, error) {
	b, ct, err := fetchBytes(ctx, d.Client, ref)
	if err != nil {
		return Resource{}, false, err
	}
	if !mediatype.IsImage(ct) {
		return Resource{}, false, nil
	}
	path, err := saveImage(destBase, b, ct)
	if err != nil {
		return Resource{}, false, err
	}
	return Resource{Path: path, Strategy: "direct"}, true, nil
}

// saveImage 依据内容类型决定扩展名并原子落盘。
func saveImage(destBase string, b []byte, ct string) (string, error) {
	path := destBase + mediatype.ExtFor(ct)
	dir, name := filepath.Split(path)
	if err := fsx.WriteFileAtomic(filepath.Clean(dir), name, b); err != nil {
		return "", err
	}
	return path, nil
}
