// Package rvc 实现 stage 3：对 stage 2 的 wav 逐个调用 RVC infer CLI 做音色转换。
//
// 组 = (lang, week) 或 (addon, lang) 目录；条目 = 组内的 wav 文件。
// checkpoint 在整次运行开始前选定一次，组间不再变化。
package rvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lunapapa-finland/auto-video-pipeline/internal/checkpoint"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/config"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/discover"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/domain"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/infra/fsx"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/invoke"
)

// Prepare 的两类致命失败，调用方据此区分 error_code。
var (
	ErrInferCLIMissing   = errors.New("infer CLI 不可用")
	ErrCheckpointMissing = errors.New("checkpoint 不可用")
)

// Stage 持有 stage 3 的全部协作方。Checkpoint 与 InferCLI 由 Prepare 填好。
type Stage struct {
	Root string
	Cfg  config.RVCConfig
	Tool invoke.Tool
	Log  *slog.Logger

	// Checkpoint 是选定的模型文件名（不含目录）。
	Checkpoint string
	// InferCLI 是 infer 脚本的绝对路径。
	InferCLI string
}

// Prepare 做运行级准备：定位 infer 脚本、选定 checkpoint。
// 两者任一缺失都是致命错误，不处理任何组。
func (s *Stage) Prepare() error {
	cli := config.Abs(s.Root, s.Cfg.InferCLI)
	if _, err := os.Stat(cli); err != nil {
		return fmt.Errorf("%w：%q：%v", ErrInferCLIMissing, cli, err)
	}
	s.InferCLI = cli

	if ckpt := strings.TrimSpace(s.Cfg.Checkpoint); ckpt != "" {
		// 显式指定的 checkpoint 必须真实存在，拼写错误要立刻暴露。
		dir := config.Abs(s.Root, s.Cfg.CheckpointDir)
		if _, err := os.Stat(filepath.Join(dir, ckpt)); err != nil {
			return fmt.Errorf("%w：显式指定的 %q 不存在", ErrCheckpointMissing, ckpt)
		}
		s.Checkpoint = ckpt
		return nil
	}

	ckpt, err := checkpoint.PickLatest(config.Abs(s.Root, s.Cfg.CheckpointDir), s.Cfg.CheckpointPrefix)
	if err != nil {
		return fmt.Errorf("%w：%v", ErrCheckpointMissing, err)
	}
	s.Checkpoint = ckpt
	s.Log.Info("已选定 checkpoint", "name", ckpt)
	return nil
}

// Groups 按 scope 枚举待处理组；weekly 在前，addon 在后。
func (s *Stage) Groups(scope domain.Scope) ([]domain.Group, error) {
	inRoot := config.Abs(s.Root, s.Cfg.InputRoot)
	outRoot := config.Abs(s.Root, s.Cfg.OutputRoot)

	var schemas []discover.Schema
	if scope == domain.ScopeWeekly || scope == domain.ScopeAll {
		schemas = append(schemas, discover.Schema{
			Levels: []discover.Level{
				{Name: "lang", Allow: s.Cfg.WeeklyLangs, Exclude: []string{"addon"}},
				{Name: "week", Glob: s.Cfg.WeekGlob, Regex: s.Cfg.WeekRegex},
			},
			FileGlobs: s.Cfg.WavGlobs,
		})
	}
	if scope == domain.ScopeAddon || scope == domain.ScopeAll {
		schemas = append(schemas, discover.Schema{
			Levels: []discover.Level{
				{Name: "addon", Fixed: "addon"},
				{Name: "lang", Allow: s.Cfg.AddonLangs},
			},
			FileGlobs: s.Cfg.WavGlobs,
		})
	}

	var groups []domain.Group
	for _, schema := range schemas {
		found, err := discover.Discover(inRoot, schema)
		if err != nil {
			return nil, err
		}
		for _, g := range found {
			g.Key = domain.Key(append([]string{s.Cfg.OutputRoot}, g.Dims...)...)
			g.OutDir = filepath.Join(outRoot, filepath.Join(g.Dims...))
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// Process 转换一个组：每个 wav 调用一次 infer CLI。
// 产物命名 <stem>_<checkpoint 去扩展名>_converted.wav，已存在则跳过（断点续跑）。
func (s *Stage) Process(ctx context.Context, g domain.Group) (int, int, error) {
	if err := fsx.EnsureDir(g.OutDir); err != nil {
		return 0, 0, err
	}

	ckptBase := strings.TrimSuffix(s.Checkpoint, filepath.Ext(s.Checkpoint))
	ok, failed := 0, 0
	for _, wav := range g.Files {
		stem := strings.TrimSuffix(filepath.Base(wav), filepath.Ext(wav))
		outPath := filepath.Join(g.OutDir, fmt.Sprintf("%s_%s_converted.wav", stem, ckptBase))

		if _, err := os.Stat(outPath); err == nil {
			s.Log.Info("产物已存在，跳过", "key", g.Key, "file", filepath.Base(outPath))
			ok++
			continue
		}

		args := []string{
			s.InferCLI,
			"--model_name", s.Checkpoint,
			"--input_path", wav,
			"--opt_path", outPath,
			"--f0method", s.Cfg.F0Method,
			"--rms_mix_rate", s.Cfg.RMSMixRate,
			"--protect", s.Cfg.Protect,
			"--filter_radius", s.Cfg.FilterRadius,
		}

		res := s.Tool.Run(ctx, args, nil)
		if res.OK() {
			s.Log.Info("转换完成", "key", g.Key, "file", filepath.Base(outPath))
			ok++
			continue
		}
		if res.Err != nil {
			s.Log.Error("infer CLI 无法启动", "key", g.Key, "file", filepath.Base(wav), "err", res.Err)
		} else {
			s.Log.Error("infer CLI 退出非零", "key", g.Key, "file", filepath.Base(wav),
				"exit", res.ExitCode, "stderr", tail(res.Stderr, 400))
		}
		failed++
	}
	return ok, failed, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
