package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/lunapapa-finland/auto-video-pipeline/internal/config"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/domain"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/engine"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/infra/httpx"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/invoke"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/ledger"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/resolve"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/stage/parse"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/stage/rvc"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/stage/tts"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	var code int
	switch args[0] {
	case "parse":
		code = parseCmd(args[1:])
	case "tts":
		code = ttsCmd(args[1:])
	case "rvc":
		code = rvcCmd(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		code = 2
	}
	if code != 0 {
		os.Exit(code)
	}
}

func parseCmd(args []string) int {
	ca, done, code := prepArgs(args, "parse", true)
	if done {
		return code
	}
	log := newLogger()

	cfg, err := config.LoadParse(ca.Conf)
	if err != nil {
		return fatal("parse", ca.Root, domain.ErrCodeConfigInvalid, err)
	}

	client := httpx.New(time.Duration(cfg.TimeoutSec)*time.Second, cfg.Retries, cfg.UserAgent, cfg.Referer)
	st := &parse.Stage{
		Root: ca.Root,
		Cfg:  cfg,
		Chain: resolve.Chain{Resolvers: []resolve.Resolver{
			resolve.Direct{Client: client},
			resolve.Page{Client: client, Enabled: cfg.EnableHTMLScrape},
			resolve.Placeholder{},
		}},
		Log: log,
	}

	groups, err := st.Groups(ca.Rest)
	if err != nil {
		return fatal("parse", ca.Root, domain.ErrCodeNoInput, err)
	}
	return execute("parse", ca.Root, config.Abs(ca.Root, cfg.LedgerFile), groups, st.Process, log)
}

func ttsCmd(args []string) int {
	ca, done, code := prepArgs(args, "tts", false)
	if done {
		return code
	}
	log := newLogger()

	cfg, err := config.LoadTTS(ca.Conf)
	if err != nil {
		return fatal("tts", ca.Root, domain.ErrCodeConfigInvalid, err)
	}

	tool, err := invoke.NewTool(cfg.PiperCmd)
	if err != nil {
		return fatal("tts", ca.Root, domain.ErrCodeConfigInvalid, err)
	}
	extra, err := invoke.SplitArgs(cfg.PiperExtraArgs)
	if err != nil {
		return fatal("tts", ca.Root, domain.ErrCodeConfigInvalid, err)
	}
	if err := tool.Preflight(); err != nil {
		return fatal("tts", ca.Root, domain.ErrCodeToolMissing, err)
	}

	st := &tts.Stage{Root: ca.Root, Cfg: cfg, Tool: tool, ExtraArgs: extra, Log: log}
	groups, err := st.Groups(ca.Scope)
	if err != nil {
		return fatal("tts", ca.Root, domain.ErrCodeNoInput, err)
	}
	return execute("tts", ca.Root, config.Abs(ca.Root, cfg.LedgerFile), groups, st.Process, log)
}

func rvcCmd(args []string) int {
	ca, done, code := prepArgs(args, "rvc", false)
	if done {
		return code
	}
	log := newLogger()

	cfg, err := config.LoadRVC(ca.Conf)
	if err != nil {
		return fatal("rvc", ca.Root, domain.ErrCodeConfigInvalid, err)
	}

	tool, err := invoke.NewTool(cfg.PythonCmd)
	if err != nil {
		return fatal("rvc", ca.Root, domain.ErrCodeConfigInvalid, err)
	}
	if err := tool.Preflight(); err != nil {
		return fatal("rvc", ca.Root, domain.ErrCodeToolMissing, err)
	}

	st := &rvc.Stage{Root: ca.Root, Cfg: cfg, Tool: tool, Log: log}
	if err := st.Prepare(); err != nil {
		code := domain.ErrCodeModelMissing
		if errors.Is(err, rvc.ErrInferCLIMissing) {
			code = domain.ErrCodeToolMissing
		}
		return fatal("rvc", ca.Root, code, err)
	}

	groups, err := st.Groups(ca.Scope)
	if err != nil {
		return fatal("rvc", ca.Root, domain.ErrCodeNoInput, err)
	}
	return execute("rvc", ca.Root, config.Abs(ca.Root, cfg.LedgerFile), groups, st.Process, log)
}

// execute 是三个子命令共用的收尾：开 ledger、跑 orchestrator、产出报告。
//
// 退出码契约：运行完成即 0（组/条目失败只体现在报告里）；
// 致命前置失败（配置、工具、ledger 被占用）为 1；参数错误为 2。
func execute(stage, root, ledgerPath string, groups []domain.Group, fn engine.ProcessFunc, log *slog.Logger) int {
	led, err := ledger.Open(ledgerPath)
	if err != nil {
		code := domain.ErrCodeIOFailed
		if errors.Is(err, ledger.ErrBusy) {
			code = domain.ErrCodeLedgerBusy
		}
		return fatal(stage, root, code, err)
	}
	defer led.Close()

	// 中断只停在组边界：已提交的键保持有效，进行中的组下次重做。
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var obs engine.Observer
	progressW, interactive := pickProgressWriter()
	if interactive {
		obs = newProgressUI(progressW, stage, len(groups))
	}

	orch := &engine.Orchestrator{Ledger: led, Log: log, Obs: obs}
	started := time.Now()
	results := orch.Run(ctx, groups, fn)

	rep := domain.StageReport{
		Stage:      stage,
		RunID:      uuid.NewString(),
		Root:       root,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Groups:     results,
	}
	rep.Finalize()
	emitReport(rep)
	return 0
}

type cmdArgs struct {
	Root  string
	Conf  string
	Scope domain.Scope
	Rest  []string
}

// prepArgs 解析公共参数并落实默认值。done=true 表示 help 或参数错误已处理。
func prepArgs(args []string, cmd string, allowPositional bool) (cmdArgs, bool, int) {
	for _, a := range args {
		if isHelp(a) {
			printCmdUsage(cmd)
			return cmdArgs{}, true, 0
		}
	}

	ca, err := parseCmdArgs(args, allowPositional)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printCmdUsage(cmd)
		return cmdArgs{}, true, 2
	}

	if ca.Root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
			return cmdArgs{}, true, 1
		}
		ca.Root = cwd
	}
	abs, err := filepath.Abs(ca.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "根目录无法解析：%v\n", err)
		return cmdArgs{}, true, 1
	}
	ca.Root = abs
	if ca.Conf == "" {
		ca.Conf = filepath.Join(ca.Root, "config")
	} else {
		ca.Conf = config.Abs(ca.Root, ca.Conf)
	}
	return ca, false, 0
}

func parseCmdArgs(args []string, allowPositional bool) (cmdArgs, error) {
	ca := cmdArgs{Scope: domain.ScopeAll}

	take := func(i *int, name string) (string, error) {
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s 需要一个值", name)
		}
		*i++
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--root":
			v, err := take(&i, "--root")
			if err != nil {
				return cmdArgs{}, err
			}
			ca.Root = v
		case strings.HasPrefix(a, "--root="):
			ca.Root = strings.TrimPrefix(a, "--root=")
		case a == "--config":
			v, err := take(&i, "--config")
			if err != nil {
				return cmdArgs{}, err
			}
			ca.Conf = v
		case strings.HasPrefix(a, "--config="):
			ca.Conf = strings.TrimPrefix(a, "--config=")
		case a == "--scope":
			v, err := take(&i, "--scope")
			if err != nil {
				return cmdArgs{}, err
			}
			sc, err := domain.ParseScope(v)
			if err != nil {
				return cmdArgs{}, err
			}
			ca.Scope = sc
		case strings.HasPrefix(a, "--scope="):
			sc, err := domain.ParseScope(strings.TrimPrefix(a, "--scope="))
			if err != nil {
				return cmdArgs{}, err
			}
			ca.Scope = sc
		case strings.HasPrefix(a, "-"):
			return cmdArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if !allowPositional {
				return cmdArgs{}, fmt.Errorf("多余的参数 %q", a)
			}
			ca.Rest = append(ca.Rest, a)
		}
	}
	return ca, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// fatal 在任何组被处理之前中止运行：报告里只有一条合成的失败记录。
func fatal(stage, root, code string, err error) int {
	now := time.Now().UTC()
	rep := domain.StageReport{
		Stage:      stage,
		RunID:      uuid.NewString(),
		Root:       root,
		StartedAt:  now,
		FinishedAt: now,
		Groups: []domain.GroupResult{{
			Status:    domain.GroupFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		}},
	}
	rep.Finalize()
	emitReport(rep)
	fmt.Fprintf(os.Stderr, "致命错误：%v\n", err)
	return 1
}

func emitReport(rep domain.StageReport) {
	summary := fmt.Sprintf("完成：processed=%d skipped=%d empty=%d failed=%d items_ok=%d items_failed=%d",
		rep.Summary.Processed, rep.Summary.Skipped, rep.Summary.Empty, rep.Summary.Failed,
		rep.Summary.ItemsSucceeded, rep.Summary.ItemsFailed,
	)

	if isTTY(os.Stdout) {
		fmt.Fprintln(os.Stdout, summary)
		if rep.Summary.Failed > 0 {
			for _, g := range rep.Groups {
				if g.Status != domain.GroupFailed {
					continue
				}
				key := g.Key
				if key == "" {
					key = "<run>"
				}
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, g.ErrorCode, g.ErrorMsg)
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 StageReport JSON（其余走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rep)
	fmt.Fprintln(os.Stderr, summary)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  avp parse [json 文件名 ...] [--root 目录] [--config 目录]
  avp tts   [--scope weekly|addon|all] [--root 目录] [--config 目录]
  avp rvc   [--scope weekly|addon|all] [--root 目录] [--config 目录]

命令：
  parse  周报 JSON → 分节脚本 + 图片
  tts    脚本 × 语音模型 → piper 合成 wav
  rvc    wav → RVC 音色转换

使用 "avp <命令> --help" 查看详细说明。
`)
}

func printCmdUsage(cmd string) {
	switch cmd {
	case "parse":
		fmt.Fprint(os.Stdout, `用法：
  avp parse [json 文件名 ...] [--root 目录] [--config 目录]

参数：
  [json 文件名]  只处理这些文件（按文件名在输入目录查找）；缺省处理全部
  --root         项目根目录（默认当前目录）
  --config       配置目录（默认 <root>/config）
  -h, --help     显示帮助
`)
	case "tts", "rvc":
		fmt.Fprintf(os.Stdout, `用法：
  avp %s [--scope weekly|addon|all] [--root 目录] [--config 目录]

参数：
  --scope     处理范围：weekly（分周目录）、addon（附加内容）或 all（默认）
  --root      项目根目录（默认当前目录）
  --config    配置目录（默认 <root>/config）
  -h, --help  显示帮助
`, cmd)
	}
}
