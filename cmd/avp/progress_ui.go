package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/lunapapa-finland/auto-video-pipeline/internal/domain"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/engine"
)

var _ engine.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的逐组进度输出。
//
// 约束：
// - 只写 progress writer（stderr 或退化到 stdout），不碰 stdout 的 JSON 契约
// - 事件驱动：engine 只发组完成事件，展示细节全在这里
// - keepalive：单个组（外部工具）跑很久时定期报一行，降低等待焦虑
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total int
	done  int
	ok    int
	fail  int
	skip  int
	empty int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh chan struct{}
}

func newProgressUI(w io.Writer, stage string, total int) *progressUI {
	p := &progressUI{
		w:                  w,
		startedAt:          time.Now(),
		lastPrinted:        time.Now(),
		total:              total,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
	fmt.Fprintf(w, "[%s] avp %s：共 %d 组\n", p.startedAt.Format("15:04:05"), stage, total)
	if total > 0 {
		p.startTicker()
	}
	return p
}

func (p *progressUI) OnGroupDone(idx, total int, res domain.GroupResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total

	status := strings.ToUpper(res.Status)
	switch res.Status {
	case domain.GroupProcessed:
		p.ok++
		status = "OK"
	case domain.GroupSkipped:
		p.skip++
		status = "SKIP"
	case domain.GroupEmpty:
		p.empty++
		status = "EMPTY"
	case domain.GroupFailed:
		p.fail++
		status = "FAIL"
	}

	switch res.Status {
	case domain.GroupFailed:
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s: %s (%s)\n",
			idx, total, res.Key, status, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur))
	case domain.GroupProcessed:
		fmt.Fprintf(p.w, "[%d/%d] %s %s ok=%d fail=%d (%s)\n",
			idx, total, res.Key, status, res.ItemsSucceeded, res.ItemsFailed, formatShortDuration(dur))
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %s (%s)\n",
			idx, total, res.Key, status, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()

	// 最后一组完成：停掉 ticker，避免结束后又冒出 keepalive。
	if p.stopCh != nil && p.done >= p.total {
		close(p.stopCh)
		p.stopCh = nil
	}
}

func (p *progressUI) startTicker() {
	p.stopCh = make(chan struct{})
	stop := p.stopCh

	go func() {
		t := time.NewTicker(p.tickerInterval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if time.Since(p.lastPrinted) > p.keepaliveThreshold {
					fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d skip=%d elapsed=%s\n",
						p.done, p.total, p.ok, p.fail, p.skip, formatElapsed(time.Since(p.startedAt)))
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}
