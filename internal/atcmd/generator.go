// Package atcmd 生成 AT 命令模糊测试载荷。
package atcmd

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/taoyao-code/atfuzz/internal/escape"
)

const (
	// Prefix 所有命令的固定前缀
	Prefix = "AT"
	// DefaultLength 默认载荷长度（字节）
	DefaultLength = 1000
	// DefaultWordProbability 默认插入字典词的概率
	DefaultWordProbability = 0.5
	// Terminator 命令结束符，载荷中永不出现
	Terminator byte = '\r'
)

// Splitters 前缀之后可插入的分隔符（含空分隔符），等概率选择
var Splitters = [][]byte{
	[]byte(""),
	[]byte("+"),
	[]byte("%"),
	[]byte("!"),
	[]byte("$"),
	[]byte("#"),
	[]byte("^"),
	[]byte("*"),
}

// Command 一条完整的模糊测试载荷（不含结束符）
type Command []byte

// Escaped 返回日志与崩溃记录使用的转义文本
func (c Command) Escaped() string { return escape.Escape(c) }

// WordSource 提供随机字典词
type WordSource interface {
	PickRandom() ([]byte, error)
}

// Options 生成器参数
type Options struct {
	Length          int
	WordProbability float64
}

// Generator 命令生成器，非并发安全
type Generator struct {
	rng   *rand.Rand
	words WordSource
	opts  Options
}

// NewGenerator 创建生成器；words 为 nil 时从不插入字典词
func NewGenerator(rng *rand.Rand, words WordSource, opts Options) (*Generator, error) {
	if rng == nil {
		return nil, errors.New("atcmd: nil random source")
	}
	if opts.Length == 0 {
		opts.Length = DefaultLength
	}
	if opts.Length < len(Prefix) {
		return nil, fmt.Errorf("atcmd: length %d shorter than prefix", opts.Length)
	}
	if opts.WordProbability < 0 || opts.WordProbability > 1 {
		return nil, fmt.Errorf("atcmd: word probability %v out of range", opts.WordProbability)
	}
	return &Generator{rng: rng, words: words, opts: opts}, nil
}

// Generate 构造一条命令：AT + 分隔符 + 可选大写字典词，截断或用随机字节（拒绝 \r）补齐到固定长度
func (g *Generator) Generate() (Command, error) {
	n := g.opts.Length
	cmd := make([]byte, 0, n)
	cmd = append(cmd, Prefix...)
	cmd = append(cmd, Splitters[g.rng.IntN(len(Splitters))]...)

	if g.words != nil && g.rng.Float64() < g.opts.WordProbability {
		word, err := g.words.PickRandom()
		if err != nil {
			return nil, fmt.Errorf("pick dictionary word: %w", err)
		}
		for _, b := range word {
			if b != Terminator {
				cmd = append(cmd, b)
			}
		}
	}

	if len(cmd) > n {
		cmd = cmd[:n]
	}
	for len(cmd) < n {
		b := byte(g.rng.UintN(256))
		if b == Terminator {
			continue
		}
		cmd = append(cmd, b)
	}
	return Command(cmd), nil
}
