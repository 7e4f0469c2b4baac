// Package tts 实现 stage 2：对每个脚本 × 每个语音模型调用 piper 合成 wav。
//
// 组 = (lang, week) 或 (addon, lang) 目录；条目 = 脚本 × 语音 的笛卡尔积。
package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lunapapa-finland/auto-video-pipeline/internal/config"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/discover"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/domain"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/infra/fsx"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/invoke"
)

// 周报脚本位于 <lang>/<week>/sections/ 下；addon 脚本直接在 addon/<lang>/ 下。
const sectionsSubdir = "sections"

// Stage 持有 stage 2 的全部协作方。
type Stage struct {
	Root      string
	Cfg       config.TTSConfig
	Tool      invoke.Tool
	ExtraArgs []string
	Log       *slog.Logger

	voiceCache map[string][]Voice
}

// Groups 按 scope 枚举待处理组；weekly 在前，addon 在后。
func (s *Stage) Groups(scope domain.Scope) ([]domain.Group, error) {
	scriptsDir := config.Abs(s.Root, s.Cfg.ScriptsDir)
	outRoot := config.Abs(s.Root, s.Cfg.OutputDir)

	globs := make([]string, 0, len(s.Cfg.TextExts))
	for _, ext := range s.Cfg.TextExts {
		globs = append(globs, "*"+ext)
	}

	var schemas []discover.Schema
	if scope == domain.ScopeWeekly || scope == domain.ScopeAll {
		schemas = append(schemas, discover.Schema{
			Levels: []discover.Level{
				{Name: "lang", Allow: s.Cfg.Langs, Exclude: []string{"addon"}},
				{Name: "week", Glob: s.Cfg.WeekGlob, Regex: s.Cfg.WeekRegex},
			},
			LeafSubdir: sectionsSubdir,
			FileGlobs:  globs,
		})
	}
	if scope == domain.ScopeAddon || scope == domain.ScopeAll {
		schemas = append(schemas, discover.Schema{
			Levels: []discover.Level{
				{Name: "addon", Fixed: "addon"},
				{Name: "lang", Allow: s.Cfg.Langs},
			},
			FileGlobs: globs,
		})
	}

	var groups []domain.Group
	for _, schema := range schemas {
		found, err := discover.Discover(scriptsDir, schema)
		if err != nil {
			return nil, err
		}
		for _, g := range found {
			g.Key = domain.Key(append([]string{s.Cfg.OutputDir}, g.Dims...)...)
			g.OutDir = filepath.Join(outRoot, filepath.Join(g.Dims...))
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// langOf 从组维度取语言：weekly 是首维，addon 是次维。
func langOf(g domain.Group) string {
	if len(g.Dims) >= 2 && g.Dims[0] == "addon" {
		return g.Dims[1]
	}
	return g.Dims[0]
}

// Process 合成一个组：每个脚本 × 每个语音各调用一次 piper，文本走标准输入。
// 该语言没有可用语音时整组按空处理（不提交，模型就位后可重跑）。
func (s *Stage) Process(ctx context.Context, g domain.Group) (int, int, error) {
	lang := langOf(g)
	voices, err := s.voicesFor(lang)
	if err != nil {
		return 0, 0, err
	}
	if len(voices) == 0 {
		s.Log.Warn("该语言没有可用语音模型，整组跳过", "key", g.Key, "lang", lang)
		return 0, 0, nil
	}

	if err := fsx.EnsureDir(g.OutDir); err != nil {
		return 0, 0, err
	}

	ok, failed := 0, 0
	for _, f := range g.Files {
		raw, err := os.ReadFile(f)
		if err != nil {
			s.Log.Error("脚本不可读", "key", g.Key, "file", filepath.Base(f), "err", err)
			failed += len(voices)
			continue
		}
		text := strings.TrimSpace(string(raw))
		if text == "" {
			s.Log.Warn("脚本为空，跳过", "key", g.Key, "file", filepath.Base(f))
			continue
		}

		stem := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		for _, v := range voices {
			outPath := filepath.Join(g.OutDir, fmt.Sprintf("out_%s_%s.wav", stem, v.Name))

			args := []string{
				"-m", v.ModelPath,
				"-c", v.ConfigPath,
				"--length-scale", s.Cfg.LengthScale,
				"--sentence-silence", s.Cfg.SentenceSilence,
				"-f", outPath,
			}
			args = append(args, s.ExtraArgs...)

			res := s.Tool.Run(ctx, args, []byte(text))
			if res.OK() {
				s.Log.Info("合成完成", "key", g.Key, "file", filepath.Base(outPath))
				ok++
				continue
			}
			if res.Err != nil {
				s.Log.Error("piper 无法启动", "key", g.Key, "file", filepath.Base(f), "err", res.Err)
			} else {
				s.Log.Error("piper 退出非零", "key", g.Key, "file", filepath.Base(f),
					"voice", v.Name, "exit", res.ExitCode, "stderr", tail(res.Stderr, 400))
			}
			failed++
		}
	}
	return ok, failed, nil
}

// tail 返回 s 的末尾至多 n 字节（失败日志只需要结尾的报错）。
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
