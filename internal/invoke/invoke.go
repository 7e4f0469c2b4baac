// Package invoke 封装外部工具的单次调用：固定命令模板 + 条目参数 + 可选
// 标准输入，同步等待退出。
//
// 约束：
// - 不重试（网络层的重试策略与这里无关）
// - 非零退出码是值不是异常：单条失败不阻断组内其他条目
// - 不校验产物内容；成功与否只看退出码
package invoke

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

// Tool 是经 shell 词法拆分后的外部命令模板（例如 "python3 -m piper"）。
type Tool struct {
	Argv []string
}

// NewTool 拆分命令模板。空模板是配置错误。
func NewTool(template string) (Tool, error) {
	argv, err := shlex.Split(template)
	if err != nil {
		return Tool{}, fmt.Errorf("命令模板无法拆分：%q：%w", template, err)
	}
	if len(argv) == 0 {
		return Tool{}, errors.New("命令模板不能为空")
	}
	return Tool{Argv: argv}, nil
}

// SplitArgs 按 shell 词法拆分附加参数串（空串得到空列表）。
func SplitArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return shlex.Split(s)
}

// Preflight 确认可执行文件可被找到。缺失属于致命配置错误：
// 在处理任何组之前就应当中止整个运行。
func (t Tool) Preflight() error {
	if _, err := exec.LookPath(t.Argv[0]); err != nil {
		return fmt.Errorf("外部工具不可用：%q：%w", t.Argv[0], err)
	}
	return nil
}

// String 返回模板的可读形式（日志用）。
func (t Tool) String() string { return strings.Join(t.Argv, " ") }

// Result 是一次调用的结果。
type Result struct {
	// ExitCode 是子进程退出码；启动失败时为 -1。
	ExitCode int
	// Stderr 是捕获的标准错误（用于失败日志，不回显成功输出）。
	Stderr string
	// Err 仅在进程无法启动等非退出类失败时非 nil。
	Err error
}

// OK 表示进程正常启动且退出码为零。
func (r Result) OK() bool { return r.Err == nil && r.ExitCode == 0 }

// Run 执行一次调用：模板参数在前，条目参数在后；stdin 非 nil 时喂给子进程。
// 子进程运行时长不设上限（转换类工具可能跑很久）；取消只能来自 ctx。
func (t Tool) Run(ctx context.Context, args []string, stdin []byte) Result {
	full := make([]string, 0, len(t.Argv)-1+len(args))
	full = append(full, t.Argv[1:]...)
	full = append(full, args...)

	cmd := exec.CommandContext(ctx, t.Argv[0], full...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return Result{ExitCode: 0, Stderr: stderr.String()}
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return Result{ExitCode: ee.ExitCode(), Stderr: stderr.String()}
	}
	return Result{ExitCode: -1, Stderr: stderr.String(), Err: err}
}
