// Package httpx 把“UA + Referer + 有界重试 + 总超时”固化为统一网络策略。
// resolve 层只负责“取内容 + 判定类型”，不关心网络细节。
package httpx

import (
	"errors"
	"net/http"
	"time"
)

// DefaultBackoff 是重试的基础等待：第 n 次重试前等待 n×DefaultBackoff。
const DefaultBackoff = 500 * time.Millisecond

// Transport 在 Base 之上做有界重试。
//
// 约束：
// - 只对可重放的请求重试（GET/HEAD 且无 body）
// - 只在传输层错误时重试；HTTP 状态码不触发重试（由上层策略决定去留）
// - ctx 已取消则立即停止
type Transport struct {
	Base http.RoundTripper

	// RetryMax 表示最大重试次数（不含首次尝试）。例如 2 表示最多 3 次尝试。
	RetryMax int

	UserAgent string
	// Referer 非空时附加到每个请求（某些快照站点要求来源页）。
	Referer string

	// sleep 可替换，测试时避免真实等待。
	sleep func(time.Duration)
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}

	doSleep := t.sleep
	if doSleep == nil {
		doSleep = time.Sleep
	}

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		if attempt > 0 {
			// 退避：0.5s × 重试序号（与原流水线一致）。
			doSleep(time.Duration(attempt) * DefaultBackoff)
		}

		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" && t.UserAgent != "" {
			r.Header.Set("User-Agent", t.UserAgent)
		}
		if r.Header.Get("Referer") == "" && t.Referer != "" {
			r.Header.Set("Referer", t.Referer)
		}
		r.Header.Set("Accept", "*/*")

		resp, err := t.Base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			// ctx 已取消：不再重试，直接返回最后错误（更可解释）。
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// New 构造带统一策略的 HTTP client。
//
// - timeout 是单请求总超时（连接 + 响应头 + body）
// - retryMax 只作用于传输层失败；策略内重试，不跨策略
func New(timeout time.Duration, retryMax int, userAgent, referer string) *http.Client {
	base := &http.Transport{
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
	return &http.Client{
		Transport: &Transport{
			Base:      base,
			RetryMax:  retryMax,
			UserAgent: userAgent,
			Referer:   referer,
		},
		Timeout: timeout,
	}
}
