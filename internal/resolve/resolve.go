// Package resolve 实现图片获取的有序回退链：
// 直接下载 → 页面抓取再下载 → .link 占位标记。
//
// 链的每个策略只回答“我能不能产出一个落盘结果”；顺序与取舍由 Chain 统一
// 控制，便于增删/重排策略而不动 orchestrator。
package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// LinkExt 是占位标记文件的扩展名：下游据此识别“未解析成功”的条目。
const LinkExt = ".link"

// Resource 是链对单个条目的最终产出：要么是已保存的产物，要么是占位标记，
// 绝不会两者皆有。
type Resource struct {
	// Path 是落盘文件的绝对路径（产物或 .link 标记）。
	Path string
	// Placeholder 为 true 表示写入的是 .link 标记而非真实图片。
	Placeholder bool
	// Strategy 是产出该结果的策略名。
	Strategy string
}

// Attempt 记录一次策略尝试（用于解释回退原因）。
type Attempt struct {
	Strategy string
	Err      error // nil 表示该策略成功
}

// Resolver 是单个回退策略。
//
// 返回约定：
// - ok=true：已落盘，res 有效，链停止
// - ok=false 且 err=nil：策略主动放弃（例如响应不是图片），换下一个
// - ok=false 且 err!=nil：策略失败，记录后换下一个
type Resolver interface {
	Name() string
	Attempt(ctx context.Context, ref string, destBase string) (res Resource, ok bool, err error)
}

// Chain 按声明顺序尝试各策略，首个成功者胜出。
type Chain struct {
	Resolvers []Resolver
}

// Resolve 对单个条目执行整条链。destBase 是不含扩展名的目标路径
// （例如 <images>/01_intro）；扩展名由策略根据内容类型决定。
//
// 末位策略（占位标记）总会成功，所以正常配置下不会返回错误。
func (c Chain) Resolve(ctx context.Context, ref, destBase string) (Resource, []Attempt, error) {
	if strings.TrimSpace(ref) == "" {
		return Resource{}, nil, errors.New("resolve: 引用不能为空")
	}

	attempts := make([]Attempt, 0, len(c.Resolvers))
	var lastErr error
	for _, r := range c.Resolvers {
		res, ok, err := r.Attempt(ctx, ref, destBase)
		if ok {
			attempts = append(attempts, Attempt{Strategy: r.Name()})
			return res, attempts, nil
		}
		attempts = append(attempts, Attempt{Strategy: r.Name(), Err: err})
		if err != nil {
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = errors.New("resolve: 所有策略均放弃")
	}
	return Resource{}, attempts, lastErr
}

// HTTPStatusError 表示目标返回了非 2xx 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d：%s", e.StatusCode, e.URL)
}

// fetchBytes 取回 url 的全部内容与 Content-Type。
// 传输层重试在 httpx.Transport 内完成（策略内重试，不跨策略）。
func fetchBytes(ctx context.Context, c *http.Client, url string) ([]byte, string, error) {
	if c == nil {
		return nil, "", errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return b, resp.Header.Get("Content-Type"), nil
}
