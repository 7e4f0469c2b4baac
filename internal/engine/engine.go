// Package engine 是三个阶段共用的批处理 orchestrator：
// 逐组处理，先查 ledger 决定跳过，组内逐条处理并隔离失败，
// 只要有任一条成功就提交组键。
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/lunapapa-finland/auto-video-pipeline/internal/domain"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/ledger"
)

// ProcessFunc 处理一个组内的全部条目，返回成功/失败条数。
//
// 约定：
// - 单条失败不得中断组内其余条目（由实现负责 continue）
// - err 非 nil 表示组级基础设施故障（例如输入不可读），整组记为 failed
type ProcessFunc func(ctx context.Context, g domain.Group) (succeeded, failed int, err error)

// Observer 把进度从执行流程中解耦出来（由 CLI 决定是否启用/如何呈现）。
type Observer interface {
	OnGroupDone(idx, total int, res domain.GroupResult, dur time.Duration)
}

// Orchestrator 串行驱动所有组。
//
// 并发契约（当前实现单线程，天然满足；未来并发化必须保留）：
// - 每组每次运行至多提交一次
// - ledger 启动时加载一次，运行中不再重读
// - 一个组的条目失败与其他组完全隔离
type Orchestrator struct {
	Ledger *ledger.Ledger
	Log    *slog.Logger
	Obs    Observer // 可为 nil
}

// Run 依次处理 groups，返回与组一一对应的结果。
//
// ctx 取消时立即停止于组边界：已提交的键保持有效，进行中的组整组留给
// 下次运行重做（不做条目级续传）。
func (o *Orchestrator) Run(ctx context.Context, groups []domain.Group, fn ProcessFunc) []domain.GroupResult {
	results := make([]domain.GroupResult, 0, len(groups))

	for i, g := range groups {
		if ctx.Err() != nil {
			o.Log.Warn("运行被取消，剩余组留待下次", "done", i, "total", len(groups))
			break
		}

		started := time.Now()
		res := o.runGroup(ctx, g, fn)
		results = append(results, res)

		if o.Obs != nil {
			o.Obs.OnGroupDone(i+1, len(groups), res, time.Since(started))
		}
	}
	return results
}

func (o *Orchestrator) runGroup(ctx context.Context, g domain.Group, fn ProcessFunc) domain.GroupResult {
	res := domain.GroupResult{Key: g.Key}

	if o.Ledger.Contains(g.Key) {
		o.Log.Info("组已在 ledger，跳过", "key", g.Key)
		res.Status = domain.GroupSkipped
		return res
	}

	if len(g.Files) == 0 {
		// 空组不提交：条目日后出现时该组仍可被处理（non-poisoning）。
		o.Log.Info("组内没有条目，跳过且不提交", "key", g.Key)
		res.Status = domain.GroupEmpty
		return res
	}

	ok, failed, err := fn(ctx, g)
	res.ItemsSucceeded = ok
	res.ItemsFailed = failed

	if err != nil {
		o.Log.Error("组处理失败", "key", g.Key, "err", err)
		res.Status = domain.GroupFailed
		res.ErrorCode = domain.ErrCodeIOFailed
		res.ErrorMsg = err.Error()
		return res
	}

	if ok == 0 {
		if failed == 0 {
			o.Log.Info("组内没有可处理条目，不提交", "key", g.Key)
			res.Status = domain.GroupEmpty
		} else {
			o.Log.Warn("组内条目全部失败，不提交", "key", g.Key, "failed", failed)
			res.Status = domain.GroupFailed
		}
		return res
	}

	// ≥1 条成功：提交组键。部分失败的条目被丢弃（不重试、不单独记录）。
	if err := o.Ledger.Commit(g.Key); err != nil {
		o.Log.Error("ledger 提交失败", "key", g.Key, "err", err)
		res.Status = domain.GroupFailed
		res.ErrorCode = domain.ErrCodeIOFailed
		res.ErrorMsg = err.Error()
		return res
	}

	o.Log.Info("组完成并已提交", "key", g.Key, "succeeded", ok, "failed", failed)
	res.Status = domain.GroupProcessed
	return res
}
