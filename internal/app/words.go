package app

import (
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/taoyao-code/atfuzz/internal/atcmd"
)

// NewRand 创建 PCG 伪随机源；seed 为 0 时由当前时间派生。
// 返回实际使用的种子，便于复现生成序列。
func NewRand(seed uint64) (*rand.Rand, uint64) {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), seed
}

// countingWords 统计生成器实际取用的字典词
type countingWords struct {
	src     atcmd.WordSource
	counter prometheus.Counter
}

// CountWords 包装词源，每次成功取词计数一次
func CountWords(src atcmd.WordSource, counter prometheus.Counter) atcmd.WordSource {
	return &countingWords{src: src, counter: counter}
}

func (w *countingWords) PickRandom() ([]byte, error) {
	b, err := w.src.PickRandom()
	if err == nil {
		w.counter.Inc()
	}
	return b, err
}
