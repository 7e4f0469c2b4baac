package domain

import "testing"

func TestKey_Normalize(t *testing.T) {
	cases := []struct {
		name  string
		parts []string
		want  string
	}{
		{"常规拼接", []string{"data/step2_wav-tts", "en", "2025w38"}, "data/step2_wav-tts/en/2025w38"},
		{"反斜杠统一为正斜杠", []string{"data\\step2_wav-tts", "en", "2025w38"}, "data/step2_wav-tts/en/2025w38"},
		{"空段与空白段被忽略", []string{"", "  ", "addon", "fi"}, "addon/fi"},
		{"冗余段被 Clean", []string{"data//step3", "./addon", "fi"}, "data/step3/addon/fi"},
	}
	for _, c := range cases {
		if got := Key(c.parts...); got != c.want {
			t.Fatalf("%s：期望 %q，实际 %q", c.name, c.want, got)
		}
	}
}

func TestKey_ByteIdenticalAcrossSeparators(t *testing.T) {
	// 不同平台的路径分隔符必须归一到同一个键（ledger 跨平台可复用）。
	a := Key("data/step2_wav-tts/en/2025w38")
	b := Key("data\\step2_wav-tts\\en\\2025w38")
	if a != b {
		t.Fatalf("键不一致：%q vs %q", a, b)
	}
}

func TestStageReport_Finalize(t *testing.T) {
	r := StageReport{
		Groups: []GroupResult{
			{Key: "b", Status: GroupProcessed, ItemsSucceeded: 3, ItemsFailed: 1},
			{Key: "a", Status: GroupSkipped},
			{Key: "c", Status: GroupEmpty},
			{Key: "d", Status: GroupFailed, ItemsFailed: 2},
		},
	}
	r.Finalize()

	if r.Groups[0].Key != "a" {
		t.Fatalf("期望按 key 排序，实际首个为 %q", r.Groups[0].Key)
	}
	s := r.Summary
	if s.Processed != 1 || s.Skipped != 1 || s.Empty != 1 || s.Failed != 1 {
		t.Fatalf("summary 统计不符：%+v", s)
	}
	if s.ItemsSucceeded != 3 || s.ItemsFailed != 3 {
		t.Fatalf("item 统计不符：%+v", s)
	}
}
