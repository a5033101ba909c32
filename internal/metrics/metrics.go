package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// FuzzMetrics 模糊测试与重放指标
type FuzzMetrics struct {
	Iterations      prometheus.Counter
	Verdicts        *prometheus.CounterVec // labels: mode=fuzz|replay, verdict=stable|crashed
	WordInclusions  prometheus.Counter
	CrashesRecorded prometheus.Counter
	MirrorFailures  *prometheus.CounterVec // labels: mirror
	ReplayAttempts  prometheus.Counter
	ReplaySkipped   prometheus.Counter
	ResponseLatency prometheus.Histogram
}

// NewFuzzMetrics 注册并返回指标
func NewFuzzMetrics(reg prometheus.Registerer) *FuzzMetrics {
	m := &FuzzMetrics{
		Iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atfuzz_iterations_total",
			Help: "Generate/send/classify cycles executed by the fuzz loop.",
		}),
		Verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atfuzz_verdicts_total",
			Help: "Liveness verdicts by run mode.",
		}, []string{"mode", "verdict"}),
		WordInclusions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atfuzz_dictionary_words_total",
			Help: "Dictionary words drawn while generating commands.",
		}),
		CrashesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atfuzz_crashes_recorded_total",
			Help: "Crash-triggering commands appended to the crash log.",
		}),
		MirrorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atfuzz_crash_mirror_failures_total",
			Help: "Crash records that could not be mirrored.",
		}, []string{"mirror"}),
		ReplayAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atfuzz_replay_attempts_total",
			Help: "Decoded crash log lines sent to the device during replay.",
		}),
		ReplaySkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atfuzz_replay_skipped_total",
			Help: "Crash log lines skipped because they failed to decode.",
		}),
		ResponseLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "atfuzz_send_duration_seconds",
			Help:    "Time from write to read completion, including silent timeouts.",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		}),
	}
	reg.MustRegister(m.Iterations, m.Verdicts, m.WordInclusions, m.CrashesRecorded,
		m.MirrorFailures, m.ReplayAttempts, m.ReplaySkipped, m.ResponseLatency)
	return m
}
