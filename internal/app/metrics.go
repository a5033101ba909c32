package app

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taoyao-code/atfuzz/internal/metrics"
)

// NewMetrics 初始化注册表与模糊测试指标
func NewMetrics() (*prometheus.Registry, *metrics.FuzzMetrics) {
	reg := metrics.NewRegistry()
	fm := metrics.NewFuzzMetrics(reg)
	return reg, fm
}
