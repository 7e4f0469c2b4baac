package fsx

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// EnsureDir 确保 dir 存在（等价 mkdir -p）。
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// WriteFileAtomic 在 dir 下原子写入 name（临时文件 + rename，覆盖同名文件）。
//
// - 临时文件必须与目标文件在同目录，以保证 rename 的原子性
// - 临时文件做 Sync；目录 Sync 采用 best-effort（避免平台差异导致误报失败）
//
// 产物（脚本文本、图片、.link 标记）统一走这里：引擎接受的唯一 ledger
// 风险是“提交后、产物落盘前崩溃”，原子写把这个窗口压到 rename 一步。
func WriteFileAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)

	// 同目录临时文件（前缀带 '.'，避免污染产物目录视图）。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, dst); err != nil {
		return err
	}

	_ = syncDirBestEffort(dir)
	return nil
}

// AppendLine 向 path 追加一行（必要时创建父目录与文件本身）。
//
// ledger 的提交走这里：只追加、不重写、不压缩。单进程单趟的模型下
// append 不会与读取交错；落盘后做 Sync，让提交尽量持久。
func AppendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := writeAll(f, []byte(line+"\n")); err != nil {
		return err
	}
	return f.Sync()
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
