// Package ledger 实现“已完成组”的追加式记录。
//
// 格式：一行一个规范化组键；'#' 开头的行与空行在读取时忽略；
// 只追加、不重写、不压缩。写读双方必须使用同一键函数（domain.Key），
// 否则跨变体共享一份 ledger 时会出现“各算各的键”的隐性 bug。
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/lunapapa-finland/auto-video-pipeline/internal/infra/fsx"
)

// ErrBusy 表示另一个进程正持有同一份 ledger 的运行锁。
// 同一键绝不允许被两个运行同时处理，宁可直接拒绝启动。
var ErrBusy = errors.New("ledger: 另一个运行正在使用该 ledger")

// Ledger 是加载进内存的完成集合。
//
// 约束：
// - 启动时整体加载一次，运行中不再重读（避免漏看并发提交的假设成立：锁保证了单运行）
// - Commit 只追加一行并同步写入集合；失败的组不会留下任何记录
type Ledger struct {
	path string
	keys map[string]struct{}
	lock *flock.Flock
}

// Open 加载 path 指向的 ledger（不存在视为空集），并获取旁侧 .lock 文件上的
// 建议锁。锁被占用时返回 ErrBusy；锁在 Close 时释放。
func Open(path string) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger 路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	// 锁放在旁侧文件上，避免与 ledger 本体的 append 纠缠。
	lk := flock.New(path + ".lock")
	ok, err := lk.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBusy
	}

	keys, err := loadKeys(path)
	if err != nil {
		_ = lk.Unlock()
		return nil, err
	}

	return &Ledger{path: path, keys: keys, lock: lk}, nil
}

// Contains 做纯字符串集合查询（键必须已经规范化）。
func (l *Ledger) Contains(key string) bool {
	_, ok := l.keys[key]
	return ok
}

// Commit 把 key 追加为一行并纳入内存集合。重复提交同一键是调用方错误，
// 这里容忍为 no-op（保持 ledger 不膨胀）。
func (l *Ledger) Commit(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("ledger: 空键不可提交")
	}
	if _, ok := l.keys[key]; ok {
		return nil
	}
	if err := fsx.AppendLine(l.path, key); err != nil {
		return err
	}
	l.keys[key] = struct{}{}
	return nil
}

// Len 返回当前集合大小（测试与进度输出用）。
func (l *Ledger) Len() int { return len(l.keys) }

// Path 返回 ledger 文件路径（日志用）。
func (l *Ledger) Path() string { return l.path }

// Close 释放运行锁。ledger 文件本身无需关闭（append 即开即写）。
func (l *Ledger) Close() error {
	if l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}

func loadKeys(path string) (map[string]struct{}, error) {
	keys := make(map[string]struct{}, 64)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return keys, nil
		}
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		keys[s] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
