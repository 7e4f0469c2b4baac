package discover

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

// weeklySchema 对应 <lang>/<week>/sections/*.txt 的遍历形状。
func weeklySchema() Schema {
	return Schema{
		Levels: []Level{
			{Name: "lang", Exclude: []string{"addon"}},
			{Name: "week", Glob: "*[0-9][0-9][0-9][0-9]w[0-9][0-9]", Regex: `^\d{4}w\d{2}$`},
		},
		LeafSubdir: "sections",
		FileGlobs:  []string{"*.txt"},
	}
}

func TestDiscover_WeeklyShape(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "en", "2025w38", "sections", "01_a.txt"))
	touch(t, filepath.Join(root, "en", "2025w38", "sections", "02_b.txt"))
	touch(t, filepath.Join(root, "en", "2025w38", "sections", "notes.md"))
	touch(t, filepath.Join(root, "fi", "2025w38", "sections", "01_a.txt"))
	// addon 顶层目录必须被 weekly 遍历排除。
	touch(t, filepath.Join(root, "addon", "en", "x.txt"))
	// 不合法的周目录名被静默排除。
	touch(t, filepath.Join(root, "en", "drafts", "sections", "z.txt"))

	groups, err := Discover(root, weeklySchema())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("期望 2 个组，实际 %d：%+v", len(groups), groups)
	}

	if !reflect.DeepEqual(groups[0].Dims, []string{"en", "2025w38"}) {
		t.Fatalf("首组维度不符：%v", groups[0].Dims)
	}
	if len(groups[0].Files) != 2 {
		t.Fatalf("期望 2 个 txt 条目，实际 %d", len(groups[0].Files))
	}
	if filepath.Base(groups[0].Files[0]) != "01_a.txt" {
		t.Fatalf("条目应按名排序：%v", groups[0].Files)
	}
	if !reflect.DeepEqual(groups[1].Dims, []string{"fi", "2025w38"}) {
		t.Fatalf("次组维度不符：%v", groups[1].Dims)
	}
}

func TestDiscover_RegexFallbackWhenGlobMisses(t *testing.T) {
	root := t.TempDir()
	// glob 形如 "w??-????" 时不命中，回退正则命中。
	touch(t, filepath.Join(root, "en", "2025w38", "sections", "a.txt"))

	s := Schema{
		Levels: []Level{
			{Name: "lang"},
			{Name: "week", Glob: "nothing-*", Regex: `^\d{4}w\d{2}$`},
		},
		LeafSubdir: "sections",
		FileGlobs:  []string{"*.txt"},
	}
	groups, err := Discover(root, s)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("期望正则回退命中 1 个组，实际 %d", len(groups))
	}
}

func TestDiscover_AllowList(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "en", "2025w38", "sections", "a.txt"))
	touch(t, filepath.Join(root, "fi", "2025w38", "sections", "a.txt"))
	touch(t, filepath.Join(root, "sv", "2025w38", "sections", "a.txt"))

	s := weeklySchema()
	s.Levels[0].Allow = []string{"fi"}
	groups, err := Discover(root, s)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(groups) != 1 || groups[0].Dims[0] != "fi" {
		t.Fatalf("allow-list 未生效：%+v", groups)
	}
}

func TestDiscover_FixedLevelAddonShape(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "addon", "en", "promo.txt"))
	touch(t, filepath.Join(root, "addon", "fi", "promo.txt"))
	touch(t, filepath.Join(root, "en", "2025w38", "sections", "a.txt"))

	s := Schema{
		Levels: []Level{
			{Name: "addon", Fixed: "addon"},
			{Name: "lang"},
		},
		FileGlobs: []string{"*.txt"},
	}
	groups, err := Discover(root, s)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("期望 2 个 addon 组，实际 %d", len(groups))
	}
	if !reflect.DeepEqual(groups[0].Dims, []string{"addon", "en"}) {
		t.Fatalf("维度不符：%v", groups[0].Dims)
	}
}

func TestDiscover_FixedLevelMissingYieldsNoGroups(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "en", "x.txt"))

	s := Schema{
		Levels:    []Level{{Name: "addon", Fixed: "addon"}, {Name: "lang"}},
		FileGlobs: []string{"*.txt"},
	}
	groups, err := Discover(root, s)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("固定层缺失时不应有组：%+v", groups)
	}
}

func TestDiscover_EmptyLeafStillListed(t *testing.T) {
	root := t.TempDir()
	// sections/ 缺失：组返回但 Files 为空（由 orchestrator 跳过且不提交）。
	if err := os.MkdirAll(filepath.Join(root, "en", "2025w38"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	groups, err := Discover(root, weeklySchema())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("期望 1 个组，实际 %d", len(groups))
	}
	if len(groups[0].Files) != 0 {
		t.Fatalf("期望空条目列表：%v", groups[0].Files)
	}
}

func TestDiscover_MissingRootIsError(t *testing.T) {
	if _, err := Discover(filepath.Join(t.TempDir(), "absent"), weeklySchema()); err == nil {
		t.Fatalf("期望错误")
	}
}

func TestDiscover_MultipleGlobsDeduplicated(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.wav"))
	touch(t, filepath.Join(root, "B.WAV"))
	touch(t, filepath.Join(root, "c.txt"))

	groups, err := Discover(root, Schema{FileGlobs: []string{"*.wav", "*.WAV", "*.wav"}})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("无维度时应得到唯一组，实际 %d", len(groups))
	}
	if len(groups[0].Files) != 2 {
		t.Fatalf("期望 2 个 wav（去重后），实际 %v", groups[0].Files)
	}
}
