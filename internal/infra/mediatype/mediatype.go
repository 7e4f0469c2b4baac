// Package mediatype 提供 Content-Type 的最小判定与“类型 → 扩展名”映射。
package mediatype

import "strings"

// 固定映射表；未知图片类型落到 .bin（保留字节，不猜格式）。
var extByType = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/jpg":     ".jpg",
	"image/webp":    ".webp",
	"image/gif":     ".gif",
	"image/svg+xml": ".svg",
}

// IsImage 判断 Content-Type 是否声明为图片。
func IsImage(ct string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "image/")
}

// IsHTMLLike 判断 Content-Type 是否像可解析的页面文本。
func IsHTMLLike(ct string) bool {
	ct = normalize(ct)
	return strings.Contains(ct, "text/html") ||
		strings.Contains(ct, "application/xhtml") ||
		strings.Contains(ct, "text/plain")
}

// ExtFor 把 Content-Type 映射为输出扩展名；未知类型返回 .bin。
func ExtFor(ct string) string {
	if ext, ok := extByType[normalize(ct)]; ok {
		return ext
	}
	return ".bin"
}

// normalize 去掉参数部分（例如 "; charset=utf-8"）并统一小写。
func normalize(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}
