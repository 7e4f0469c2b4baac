package domain

import (
	"path"
	"strings"
)

// Group 是批处理引擎的可恢复单位：对应输入树中的一个目录分支
// （例如某个 <lang>/<week>，或 addon/<lang>，或单个周报 JSON）。
//
// 约束：
// - Key 一经计算不再变化；ledger 的读写都以 Key 为准
// - Files 在发现阶段就完成去重与排序，之后不再变更
type Group struct {
	// Key 是写入 ledger 的稳定键：正斜杠分隔、相对输出根。
	// 同一逻辑组在任何操作系统上必须得到逐字节相同的 Key。
	Key string

	// Dims 按维度顺序记录该组的取值（例如 ["en", "2025w38"]）。
	Dims []string

	// InDir 是该组输入文件所在目录（绝对路径）。
	InDir string

	// OutDir 是该组产物目录（绝对路径）。处理前由各阶段确保存在。
	OutDir string

	// Files 是组内待处理的输入文件（绝对路径，已去重、按名排序）。
	// 空组不会被提交到 ledger（下次运行可重试）。
	Files []string
}

// Key 把若干段拼成规范化的 ledger 键。
//
// 规则（硬约束）：
// - 分隔符统一为正斜杠（Windows 反斜杠在此被替换）
// - 经 path.Clean 消除冗余段，保证跨运行、跨阶段逐字节一致
//
// 所有阶段共用这一个函数：weekly 与 addon 变体绝不允许各算各的键。
func Key(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
		if p == "" {
			continue
		}
		cleaned = append(cleaned, p)
	}
	return path.Clean(path.Join(cleaned...))
}
