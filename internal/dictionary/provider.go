package dictionary

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/taoyao-code/atfuzz/internal/lineio"
)

var (
	// ErrResourceUnavailable 词表无法打开或读取
	ErrResourceUnavailable = errors.New("dictionary resource unavailable")
	// ErrEmptyResource 词表不包含任何行
	ErrEmptyResource = errors.New("dictionary resource is empty")
)

// maxLineSize 单词保留的最大长度，更长的行截断（载荷本身远短于此）
const maxLineSize = 1 << 20

// Provider 从换行分隔的词表中随机挑选一个单词。
// 每次挑选都重新流式读取文件，内存占用与词表大小无关。
type Provider struct {
	path string
	rng  *rand.Rand
}

// Open 创建词表提供者，并预先检查词表可读且非空
func Open(path string, rng *rand.Rand) (*Provider, error) {
	p := &Provider{path: path, rng: rng}
	if _, err := p.PickRandom(); err != nil {
		return nil, err
	}
	return p, nil
}

// Path 返回词表路径
func (p *Provider) Path() string { return p.path }

// PickRandom 等概率选择一行并转为大写 ASCII
func (p *Provider) PickRandom() ([]byte, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}
	defer f.Close()

	line, err := pick(f, p.rng)
	if err != nil {
		return nil, err
	}
	return upperASCII(line), nil
}

// upperASCII 仅转换 a-z，其余字节（包括非 ASCII）保持不变
func upperASCII(b []byte) []byte {
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return b
}

// pick 蓄水池抽样（k=1）：第 i 行以 1/i 的概率替换当前候选
func pick(r io.Reader, rng *rand.Rand) ([]byte, error) {
	lr := lineio.NewReader(r, maxLineSize)

	var chosen []byte
	n := 0
	for {
		line, _, err := lr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
		}
		n++
		if rng.IntN(n) == 0 {
			chosen = append(chosen[:0], line...)
		}
	}
	if n == 0 {
		return nil, ErrEmptyResource
	}
	return chosen, nil
}
