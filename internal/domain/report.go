package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	// GroupProcessed 表示组内至少一个 item 成功，键已提交 ledger。
	GroupProcessed = "processed"
	// GroupSkipped 表示键已在 ledger 中，本次直接跳过。
	GroupSkipped = "skipped"
	// GroupEmpty 表示组内没有可处理的 item；不提交（下次运行重试）。
	GroupEmpty = "empty"
	// GroupFailed 表示组内 item 全部失败；不提交。
	GroupFailed = "failed"
)

const (
	ErrCodeConfigInvalid = "config_invalid"
	ErrCodeNoInput       = "no_input"
	ErrCodeToolMissing   = "tool_missing"
	ErrCodeModelMissing  = "model_missing"
	ErrCodeLedgerBusy    = "ledger_busy"
	ErrCodeIOFailed      = "io_failed"
	ErrCodeInvokeFailed  = "invoke_failed"
	ErrCodeResolveFailed = "resolve_failed"
)

// StageReport 是一次阶段运行的对外稳定输出（stdout 非 TTY 时输出该 JSON）。
type StageReport struct {
	Stage string `json:"stage"`
	RunID string `json:"run_id"`
	Root  string `json:"root"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Groups  []GroupResult `json:"groups"`
}

type ReportSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Empty     int `json:"empty"`
	Failed    int `json:"failed"`

	// Items* 跨组累加：单个 item 失败不改变进程退出码，只在这里可见。
	ItemsSucceeded int `json:"items_succeeded"`
	ItemsFailed    int `json:"items_failed"`
}

// GroupResult 是单个组的处理结果。
type GroupResult struct {
	Key    string `json:"key"`
	Status string `json:"status"`

	ItemsSucceeded int `json:"items_succeeded"`
	ItemsFailed    int `json:"items_failed"`

	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（保证 JSON 为 RFC3339 且后缀 Z）
// 2) groups 稳定排序：按 key 字典序
// 3) summary 由 groups 计算得出
func (r *StageReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Groups, func(i, j int) bool { return r.Groups[i].Key < r.Groups[j].Key })

	var s ReportSummary
	for _, g := range r.Groups {
		switch g.Status {
		case GroupProcessed:
			s.Processed++
		case GroupSkipped:
			s.Skipped++
		case GroupEmpty:
			s.Empty++
		case GroupFailed:
			s.Failed++
		}
		s.ItemsSucceeded += g.ItemsSucceeded
		s.ItemsFailed += g.ItemsFailed
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r StageReport) MarshalJSON() ([]byte, error) {
	type Alias StageReport
	return json.Marshal(Alias(r))
}
