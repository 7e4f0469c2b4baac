// Package parse 实现 stage 1：把周报 JSON 拆成分节脚本，并为每节解析图片。
//
// 组 = 单个 JSON 文件（以 basename 为 ledger 键）；条目 = 文件内的 section。
package parse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lunapapa-finland/auto-video-pipeline/internal/config"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/domain"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/infra/fsx"
	"github.com/lunapapa-finland/auto-video-pipeline/internal/resolve"
)

// Stage 持有 stage 1 的全部协作方。
type Stage struct {
	Root  string
	Cfg   config.ParseConfig
	Chain resolve.Chain
	Log   *slog.Logger
}

// Section 对应周报 JSON 里的一节。
type Section struct {
	Title    string `json:"title"`
	Slug     string `json:"slug"`
	Script   string `json:"script"`
	ImageURL string `json:"image_url"`
}

type weekDoc struct {
	Sections []json.RawMessage `json:"sections"`
}

// Groups 枚举待处理的 JSON 文件。
//
// - args 非空：按 basename 在主输入目录解析，找不到再试备用目录；
//   仍不存在的条目记警告并丢弃
// - args 为空：两个输入目录下的全部 *.json（各自排序）
// - 按 basename 去重；键 = basename（与历史 ledger 兼容）
func (s *Stage) Groups(args []string) ([]domain.Group, error) {
	inDir := config.Abs(s.Root, s.Cfg.JSONInputDir)
	altDir := ""
	if strings.TrimSpace(s.Cfg.JSONInputDirAlt) != "" {
		altDir = config.Abs(s.Root, s.Cfg.JSONInputDirAlt)
	}

	var paths []string
	if len(args) > 0 {
		for _, a := range args {
			base := filepath.Base(a)
			cand := filepath.Join(inDir, base)
			if _, err := os.Stat(cand); err != nil && altDir != "" {
				alt := filepath.Join(altDir, base)
				if _, err2 := os.Stat(alt); err2 == nil {
					cand = alt
				}
			}
			if _, err := os.Stat(cand); err != nil {
				s.Log.Warn("指定的 JSON 不存在，忽略", "name", base)
				continue
			}
			paths = append(paths, cand)
		}
	} else {
		for _, dir := range []string{inDir, altDir} {
			if dir == "" {
				continue
			}
			matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
			if err != nil {
				return nil, err
			}
			sort.Strings(matches)
			paths = append(paths, matches...)
		}
	}

	outBase := config.Abs(s.Root, s.Cfg.OutputBase)
	seen := make(map[string]struct{}, len(paths))
	groups := make([]domain.Group, 0, len(paths))
	for _, p := range paths {
		base := filepath.Base(p)
		if _, dup := seen[base]; dup {
			continue
		}
		seen[base] = struct{}{}

		stem := strings.TrimSuffix(base, filepath.Ext(base))
		groups = append(groups, domain.Group{
			Key:    domain.Key(base),
			Dims:   []string{base},
			InDir:  filepath.Dir(p),
			OutDir: filepath.Join(outBase, stem),
			Files:  []string{p},
		})
	}
	return groups, nil
}

// Process 处理一个 JSON：逐节写脚本（成功条目），并为带 image_url 的节
// 跑一遍解析链（链底是 .link 标记，图片失败不计入条目失败）。
func (s *Stage) Process(ctx context.Context, g domain.Group) (int, int, error) {
	raw, err := os.ReadFile(g.Files[0])
	if err != nil {
		return 0, 0, err
	}

	var doc weekDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return 0, 0, fmt.Errorf("JSON 无法解析：%w", err)
	}
	if doc.Sections == nil {
		return 0, 0, fmt.Errorf("JSON 形状不符：需要带 sections 数组的对象")
	}

	sectionsDir := filepath.Join(g.OutDir, s.Cfg.SectionsSubdir)
	imagesDir := filepath.Join(g.OutDir, s.Cfg.ImagesSubdir)
	if err := fsx.EnsureDir(sectionsDir); err != nil {
		return 0, 0, err
	}
	if err := fsx.EnsureDir(imagesDir); err != nil {
		return 0, 0, err
	}

	ok, failed := 0, 0
	for i, rawSec := range doc.Sections {
		idx := i + 1

		var sec Section
		if err := json.Unmarshal(rawSec, &sec); err != nil {
			s.Log.Warn("跳过非对象 section", "key", g.Key, "index", idx)
			continue
		}

		slug := strings.TrimSpace(sec.Slug)
		if slug == "" {
			title := strings.TrimSpace(sec.Title)
			if title == "" {
				title = fmt.Sprintf("section-%d", idx)
			}
			slug = Slugify(title)
		}

		name := fmt.Sprintf("%02d_%s", idx, slug)
		if err := fsx.WriteFileAtomic(sectionsDir, name+".txt", []byte(sec.Script)); err != nil {
			s.Log.Error("脚本写入失败", "key", g.Key, "section", name, "err", err)
			failed++
			continue
		}
		ok++

		ref := strings.TrimSpace(sec.ImageURL)
		if ref == "" {
			continue
		}
		destBase := filepath.Join(imagesDir, name)
		res, attempts, err := s.Chain.Resolve(ctx, ref, destBase)
		if err != nil {
			// 链底是占位标记，走到这里只剩磁盘类故障。
			s.Log.Error("图片解析失败", "key", g.Key, "section", name, "err", err)
			continue
		}
		if res.Placeholder {
			s.Log.Warn("图片未解析，写入 .link 标记",
				"key", g.Key, "section", name, "ref", ref, "attempts", len(attempts))
		} else {
			s.Log.Info("图片已保存", "key", g.Key, "section", name, "strategy", res.Strategy)
		}
	}
	return ok, failed, nil
}
