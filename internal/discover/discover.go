// Package discover 从目录树枚举待处理组：零到多层命名维度（语言、周目录、
// 内容类别）的笛卡尔积，外加叶子级的条目文件列表。
//
// 六个近似重复的遍历变体（weekly/addon × 分层/扁平）在这里收敛为一个
// Schema 参数，而不是六份代码。
package discover

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/lunapapa-finland/auto-video-pipeline/internal/domain"
)

// Level 描述一层目录维度。
type Level struct {
	// Name 是维度名（日志与错误信息用）。
	Name string

	// Fixed 非空时该层固定为单个目录名（例如 "addon"），不做枚举。
	Fixed string

	// Allow 非空时只保留列表内的目录（allow-list）。
	Allow []string
	// Exclude 内的目录名被静默排除（例如 weekly 遍历排除顶层 addon）。
	Exclude []string

	// Glob 非空时目录名必须匹配该 glob；一个都不匹配且 Regex 非空时，
	// 回退用正则筛选。两者都不命中的目录被静默排除。
	Glob  string
	Regex string
}

// Schema 描述一个阶段变体的完整遍历形状。
type Schema struct {
	// Levels 自外向内排列；可以为空（根目录本身即是唯一组）。
	Levels []Level

	// LeafSubdir 非空时条目在 <组目录>/<LeafSubdir>/ 下（例如 "sections"）。
	LeafSubdir string

	// FileGlobs 是条目文件名模式（例如 *.txt 或 *.wav,*.WAV）。
	FileGlobs []string
}

// Discover 在 root 下按 schema 枚举组，顺序为路径字典序（确定性）。
//
// - root 不存在：返回错误（是否致命由调用方按阶段契约决定）
// - 条目子目录缺失或没有匹配文件：组照常返回但 Files 为空；
//   orchestrator 对空组跳过且不提交（non-poisoning）
//
// 返回的 Group 只填充 Dims/InDir/Files；Key 与 OutDir 由阶段补齐。
func Discover(root string, s Schema) ([]domain.Group, error) {
	root = filepath.Clean(root)
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("输入根目录不可用：%q：%w", root, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("输入根目录不是目录：%q", root)
	}

	// 预编译各层正则，配置错误要在遍历前暴露。
	regexps := make([]*regexp.Regexp, len(s.Levels))
	for i, lv := range s.Levels {
		if lv.Regex == "" {
			continue
		}
		re, err := regexp.Compile(lv.Regex)
		if err != nil {
			return nil, fmt.Errorf("维度 %q 的正则无效：%q：%w", lv.Name, lv.Regex, err)
		}
		regexps[i] = re
	}

	var groups []domain.Group
	var walk func(dir string, depth int, dims []string) error
	walk = func(dir string, depth int, dims []string) error {
		if depth == len(s.Levels) {
			itemsDir := dir
			if s.LeafSubdir != "" {
				itemsDir = filepath.Join(dir, s.LeafSubdir)
			}
			files, err := listFiles(itemsDir, s.FileGlobs)
			if err != nil {
				return err
			}
			groups = append(groups, domain.Group{
				Dims:  append([]string(nil), dims...),
				InDir: itemsDir,
				Files: files,
			})
			return nil
		}

		names, err := matchDirs(dir, s.Levels[depth], regexps[depth])
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := walk(filepath.Join(dir, name), depth+1, append(dims, name)); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root, 0, nil); err != nil {
		return nil, err
	}
	return groups, nil
}

// matchDirs 枚举 dir 下通过该层筛选的子目录名（已排序）。
func matchDirs(dir string, lv Level, re *regexp.Regexp) ([]string, error) {
	if lv.Fixed != "" {
		fi, err := os.Stat(filepath.Join(dir, lv.Fixed))
		if err != nil || !fi.IsDir() {
			// 固定层缺失 => 该分支下没有组（不是错误）。
			return nil, nil
		}
		return []string{lv.Fixed}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if contains(lv.Exclude, name) {
			continue
		}
		if len(lv.Allow) > 0 && !contains(lv.Allow, name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if lv.Glob == "" {
		return names, nil
	}

	matched := names[:0:0]
	for _, name := range names {
		ok, err := path.Match(lv.Glob, name)
		if err != nil {
			return nil, fmt.Errorf("维度 %q 的 glob 无效：%q：%w", lv.Name, lv.Glob, err)
		}
		if ok {
			matched = append(matched, name)
		}
	}
	// glob 一个都没中时才回退正则（与原流程保持一致的两段式发现）。
	if len(matched) == 0 && re != nil {
		for _, name := range names {
			if re.MatchString(name) {
				matched = append(matched, name)
			}
		}
	}
	return matched, nil
}

// listFiles 列出 dir 下匹配任一 glob 的文件（绝对路径，去重、排序）。
// dir 缺失视为空列表。
func listFiles(dir string, globs []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[string]struct{}, len(entries))
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !matchAny(globs, name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func matchAny(globs []string, name string) bool {
	if len(globs) == 0 {
		return true
	}
	for _, g := range globs {
		if ok, err := path.Match(g, name); err == nil && ok {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
