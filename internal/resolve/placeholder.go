package resolve

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/lunapapa-finland/auto-video-pipeline/internal/infra/fsx"
)

// Placeholder 是链的终点：把原始引用写成 <destBase>.link 旁置标记，
// 让下游能识别“未解析成功”而整条流水线不被卡住。
//
// 该策略永远成功（除非磁盘写入本身失败）。
type Placeholder struct{}

func (Placeholder) Name() string { return "placeholder" }

func (Placeholder) Attempt(ctx context.Context, ref, destBase string) (Resource, bool, error) {
	path := destBase + LinkExt
	dir, name := filepath.Split(path)
	if err := fsx.WriteFileAtomic(filepath.Clean(dir), name, []byte(strings.TrimSpace(ref)+"\n")); err != nil {
		return Resource{}, false, err
	}
	return Resource{Path: path, Placeholder: true, Strategy: "placeholder"}, true, nil
}
