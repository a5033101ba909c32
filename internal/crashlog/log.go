package crashlog

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/taoyao-code/atfuzz/internal/escape"
	"github.com/taoyao-code/atfuzz/internal/lineio"
)

var (
	// ErrPersistence 崩溃日志无法写入
	ErrPersistence = errors.New("crash log persistence failed")
	// ErrNoLogFound 重放时崩溃日志不存在
	ErrNoLogFound = errors.New("no crash log found")
)

// maxLineSize 可解码行的最大长度，更长的行不会由本工具写出
const maxLineSize = 1 << 20

// Log 追加写入的崩溃日志。
// 文件在第一次 Record 时才创建并在进程生命周期内持有；只有一个写入者。
type Log struct {
	path    string
	f       *os.File
	records atomic.Int64
}

// Entry 日志中的一行；超过 maxLineSize 的行 Oversized 为 true 且 Text 为空
type Entry struct {
	LineNo    int
	Text      string
	Oversized bool
}

// New 创建崩溃日志，不触碰文件系统
func New(path string) *Log {
	return &Log{path: path}
}

// Path 返回日志文件路径
func (l *Log) Path() string { return l.path }

// Records 返回本进程写入的记录数
func (l *Log) Records() int { return int(l.records.Load()) }

// Record 转义命令并追加一行，写入后立即 fsync；返回写入的转义文本
func (l *Log) Record(cmd []byte) (string, error) {
	if l.f == nil {
		f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return "", fmt.Errorf("%w: open %s: %v", ErrPersistence, l.path, err)
		}
		l.f = f
	}

	line := escape.Escape(cmd)
	if _, err := l.f.WriteString(line + "\n"); err != nil {
		return "", fmt.Errorf("%w: write %s: %v", ErrPersistence, l.path, err)
	}
	if err := l.f.Sync(); err != nil {
		return "", fmt.Errorf("%w: sync %s: %v", ErrPersistence, l.path, err)
	}
	l.records.Add(1)
	return line, nil
}

// Exists 判断日志文件是否存在
func (l *Log) Exists() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

// Writable 检查日志所在目录可写（不创建日志文件本身）
func (l *Log) Writable() error {
	dir := filepath.Dir(l.path)
	f, err := os.CreateTemp(dir, ".atfuzz-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// Walk 按文件顺序逐行回调，fn 返回 true 时立即停止，之后的行不会被读取
func (l *Log) Walk(fn func(Entry) (stop bool)) error {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNoLogFound, l.path)
		}
		return fmt.Errorf("open crash log: %w", err)
	}
	defer f.Close()

	lr := lineio.NewReader(f, maxLineSize)
	n := 0
	for {
		line, truncated, err := lr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read crash log line %d: %w", n+1, err)
		}
		n++
		e := Entry{LineNo: n, Oversized: truncated}
		if !truncated {
			e.Text = string(line)
		}
		if fn(e) {
			return nil
		}
	}
}

// Close 关闭已打开的写句柄
func (l *Log) Close() error {
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
