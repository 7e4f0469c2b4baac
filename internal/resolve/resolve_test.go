package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newChain 组装与生产一致的三段链。
func newChain(c *http.Client, scrape bool) Chain {
	return Chain{Resolvers: []Resolver{
		Direct{Client: c},
		Page{Client: c, Enabled: scrape},
		Placeholder{},
	}}
}

// countOutcomes 统计 destBase 对应的落盘结果数（产物 + 标记）。
func countOutcomes(t *testing.T, destBase string) int {
	t.Helper()
	dir := filepath.Dir(destBase)
	base := filepath.Base(destBase)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	n := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), base+".") {
			n++
		}
	}
	return n
}

func TestChain_DirectWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNGDATA"))
	}))
	defer srv.Close()

	destBase := filepath.Join(t.TempDir(), "01_intro")
	res, attempts, err := newChain(srv.Client(), true).Resolve(context.Background(), srv.URL+"/img", destBase)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if res.Strategy != "direct" || res.Placeholder {
		t.Fatalf("期望 direct 胜出：%+v", res)
	}
	if res.Path != destBase+".png" {
		t.Fatalf("扩展名不符：%q", res.Path)
	}
	if len(attempts) != 1 {
		t.Fatalf("期望只尝试一次，实际 %d", len(attempts))
	}
	if got := countOutcomes(t, destBase); got != 1 {
		t.Fatalf("期望恰好 1 个落盘结果，实际 %d", got)
	}
}

func TestChain_PageScrapeFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<head><meta property="og:image" content="/real.jpg"></head>`))
	})
	mux.HandleFunc("/real.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("JPEGDATA"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	destBase := filepath.Join(t.TempDir(), "02_chart")
	res, attempts, err := newChain(srv.Client(), true).Resolve(context.Background(), srv.URL+"/page", destBase)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if res.Strategy != "page" {
		t.Fatalf("期望 page 策略胜出：%+v", res)
	}
	if res.Path != destBase+".jpg" {
		t.Fatalf("扩展名不符：%q", res.Path)
	}
	// direct 放弃（页面不是图片），page 成功。
	if len(attempts) != 2 || attempts[0].Strategy != "direct" || attempts[1].Strategy != "page" {
		t.Fatalf("尝试链不符：%+v", attempts)
	}
	b, err := os.ReadFile(res.Path)
	if err != nil || string(b) != "JPEGDATA" {
		t.Fatalf("产物内容不符：%q err=%v", string(b), err)
	}
	if got := countOutcomes(t, destBase); got != 1 {
		t.Fatalf("期望恰好 1 个落盘结果，实际 %d", got)
	}
}

func TestChain_PlaceholderWhenAllFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	destBase := filepath.Join(t.TempDir(), "03_broken")
	ref := srv.URL + "/missing"
	res, attempts, err := newChain(srv.Client(), true).Resolve(context.Background(), ref, destBase)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !res.Placeholder {
		t.Fatalf("期望占位标记：%+v", res)
	}
	if res.Path != destBase+LinkExt {
		t.Fatalf("标记路径不符：%q", res.Path)
	}
	if len(attempts) != 3 {
		t.Fatalf("期望三次尝试，实际 %d", len(attempts))
	}

	b, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("读取标记失败：%v", err)
	}
	if string(b) != ref+"\n" {
		t.Fatalf("标记内容应为原始引用：%q", string(b))
	}
	if got := countOutcomes(t, destBase); got != 1 {
		t.Fatalf("期望恰好 1 个落盘结果（仅标记），实际 %d", got)
	}
}

func TestChain_ScrapeDisabledSkipsPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<head><meta property="og:image" content="/real.jpg"></head>`))
	})
	mux.HandleFunc("/real.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("JPEGDATA"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	destBase := filepath.Join(t.TempDir(), "04_noscrape")
	res, _, err := newChain(srv.Client(), false).Resolve(context.Background(), srv.URL+"/page", destBase)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !res.Placeholder {
		t.Fatalf("关闭抓取后应落到占位标记：%+v", res)
	}
}

func TestChain_EmptyRefRejected(t *testing.T) {
	if _, _, err := newChain(http.DefaultClient, true).Resolve(context.Background(), "  ", "/tmp/x"); err == nil {
		t.Fatalf("期望空引用被拒绝")
	}
}
