package domain

import "fmt"

// Scope 选择一次运行覆盖的遍历变体。
type Scope string

const (
	// ScopeWeekly 只处理 <lang>/<week> 分层内容（排除顶层 addon）。
	ScopeWeekly Scope = "weekly"
	// ScopeAddon 只处理 addon/<lang> 扁平内容。
	ScopeAddon Scope = "addon"
	// ScopeAll 先 weekly 后 addon。
	ScopeAll Scope = "all"
)

// ParseScope 校验命令行传入的 scope 值。
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeWeekly, ScopeAddon, ScopeAll:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("scope 只能是 weekly、addon 或 all，实际是 %q", s)
	}
}
