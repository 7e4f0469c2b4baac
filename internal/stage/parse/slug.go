package parse

import (
	"regexp"
	"strings"
)

var (
	slugStripRE    = regexp.MustCompile(`[^\w\- ]+`)
	slugSpaceRE    = regexp.MustCompile(`\s+`)
	slugCollapseRE = regexp.MustCompile(`-{2,}`)
)

// Slugify 把标题变为文件名安全的 slug；空输入得到 "untitled"。
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugStripRE.ReplaceAllString(s, "")
	s = slugSpaceRE.ReplaceAllString(s, "-")
	s = slugCollapseRE.ReplaceAllString(s, "-")
	if s == "" {
		return "untitled"
	}
	return s
}
