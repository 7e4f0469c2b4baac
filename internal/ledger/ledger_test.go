package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_MissingFileIsEmptySet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "done.log")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer l.Close()

	if l.Len() != 0 {
		t.Fatalf("期望空集合，实际 %d", l.Len())
	}
	if l.Contains("a/b") {
		t.Fatalf("空集合不应包含任何键")
	}
}

func TestOpen_SkipsCommentsAndBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.log")
	content := "# 由工具生成，请勿手工编辑\n\ndata/step2/en/2025w38\n  data/step2/fi/2025w38  \n#data/step2/sv/2025w38\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	l, err := Open(path)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer l.Close()

	if l.Len() != 2 {
		t.Fatalf("期望 2 个键，实际 %d", l.Len())
	}
	if !l.Contains("data/step2/en/2025w38") || !l.Contains("data/step2/fi/2025w38") {
		t.Fatalf("期望包含两条已提交键")
	}
	if l.Contains("#data/step2/sv/2025w38") {
		t.Fatalf("注释行不应成为键")
	}
}

func TestCommit_AppendsAndSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.log")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := l.Commit("data/step3/addon/fi"); err != nil {
		t.Fatalf("提交失败：%v", err)
	}
	// 重复提交是 no-op，不追加新行。
	if err := l.Commit("data/step3/addon/fi"); err != nil {
		t.Fatalf("重复提交失败：%v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("关闭失败：%v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取失败：%v", err)
	}
	if string(b) != "data/step3/addon/fi\n" {
		t.Fatalf("ledger 内容不符：%q", string(b))
	}

	l2, err := Open(path)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer l2.Close()
	if !l2.Contains("data/step3/addon/fi") {
		t.Fatalf("重新加载后应包含已提交键")
	}
}

func TestCommit_RejectsEmptyKey(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "done.log"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer l.Close()

	if err := l.Commit("  "); err == nil {
		t.Fatalf("期望空键被拒绝")
	}
}

func TestOpen_SecondOpenerGetsErrBusy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.log")

	l1, err := Open(path)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer l1.Close()

	if _, err := Open(path); !errors.Is(err, ErrBusy) {
		t.Fatalf("期望 ErrBusy，实际：%v", err)
	}
}
