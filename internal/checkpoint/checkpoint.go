// Package checkpoint 从候选目录中确定性地选出音色转换模型。
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// epochRE 从文件名中提取 epoch 分数（例如 EXP_e130_s200.pth → 130）。
var epochRE = regexp.MustCompile(`_e(\d+)`)

// PickLatest 在 dir 下的 *.pth 中选 epoch 最高者，返回文件名（不含目录）。
//
// 规则：
// - prefix 非空时只考虑该前缀的候选；前缀无一命中即失败（不回落到全量）
// - 文件名中无 _e<N> 的候选记 -1 分（仅在没有更好候选时可能被选中）
// - 候选按名排序后再比较，分数并列时取排序靠前者（跨运行确定）
func PickLatest(dir, prefix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("checkpoint 目录不存在：%q", dir)
		}
		return "", err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.EqualFold(filepath.Ext(name), ".pth") {
			continue
		}
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		if prefix != "" {
			return "", fmt.Errorf("未找到 checkpoint：%q 下没有前缀为 %q 的 *.pth", dir, prefix)
		}
		return "", fmt.Errorf("未找到 checkpoint：%q 下没有 *.pth", dir)
	}

	best := ""
	bestScore := -2
	for _, name := range names {
		score := epochScore(name)
		if score > bestScore {
			best = name
			bestScore = score
		}
	}
	return best, nil
}

func epochScore(name string) int {
	m := epochRE.FindStringSubmatch(name)
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return n
}
