package invoke

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewTool_SplitsTemplate(t *testing.T) {
	tool, err := NewTool(`python3 -m piper --flag "a b"`)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := []string{"python3", "-m", "piper", "--flag", "a b"}
	if len(tool.Argv) != len(want) {
		t.Fatalf("拆分结果不符：%v", tool.Argv)
	}
	for i := range want {
		if tool.Argv[i] != want[i] {
			t.Fatalf("第 %d 段不符：%q", i, tool.Argv[i])
		}
	}
}

func TestNewTool_EmptyRejected(t *testing.T) {
	if _, err := NewTool("   "); err == nil {
		t.Fatalf("期望空模板被拒绝")
	}
}

func TestSplitArgs_Empty(t *testing.T) {
	args, err := SplitArgs("  ")
	if err != nil || len(args) != 0 {
		t.Fatalf("空串应得到空列表：%v %v", args, err)
	}
}

func TestRun_ZeroExit(t *testing.T) {
	tool, _ := NewTool("sh -c 'exit 0'")
	res := tool.Run(context.Background(), nil, nil)
	if !res.OK() {
		t.Fatalf("期望成功：%+v", res)
	}
}

func TestRun_NonZeroExitIsValueNotError(t *testing.T) {
	tool, _ := NewTool("sh -c 'echo boom >&2; exit 3'")
	res := tool.Run(context.Background(), nil, nil)
	if res.OK() {
		t.Fatalf("期望失败")
	}
	if res.Err != nil {
		t.Fatalf("非零退出不应是 Err：%v", res.Err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("期望退出码 3，实际 %d", res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "boom") {
		t.Fatalf("stderr 未捕获：%q", res.Stderr)
	}
}

func TestRun_StdinIsFed(t *testing.T) {
	out := filepath.Join(t.TempDir(), "echo.txt")
	tool, _ := NewTool("sh -c 'cat > \"$1\"' sh")
	res := tool.Run(context.Background(), []string{out}, []byte("hello stdin"))
	if !res.OK() {
		t.Fatalf("期望成功：%+v", res)
	}
	b, err := os.ReadFile(out)
	if err != nil || string(b) != "hello stdin" {
		t.Fatalf("stdin 未传入：%q err=%v", string(b), err)
	}
}

func TestRun_ItemArgsAppended(t *testing.T) {
	out := filepath.Join(t.TempDir(), "args.txt")
	tool, _ := NewTool(`sh -c 'printf "%s\n" "$@" > "$1"' sh`)
	res := tool.Run(context.Background(), []string{out, "-m", "model.onnx"}, nil)
	if !res.OK() {
		t.Fatalf("期望成功：%+v", res)
	}
	b, _ := os.ReadFile(out)
	if !strings.Contains(string(b), "model.onnx") {
		t.Fatalf("条目参数未追加：%q", string(b))
	}
}

func TestPreflight_MissingBinary(t *testing.T) {
	tool, _ := NewTool("definitely-not-a-real-binary-xyz")
	if err := tool.Preflight(); err == nil {
		t.Fatalf("期望缺失二进制被报告")
	}
}

func TestPreflight_ExistingBinary(t *testing.T) {
	tool, _ := NewTool("sh -c 'true'")
	if err := tool.Preflight(); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
}
