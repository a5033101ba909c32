package replay

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/taoyao-code/atfuzz/internal/crashlog"
	"github.com/taoyao-code/atfuzz/internal/escape"
	"github.com/taoyao-code/atfuzz/internal/metrics"
	"github.com/taoyao-code/atfuzz/internal/oracle"
	"github.com/taoyao-code/atfuzz/internal/transport"
)

const modeLabel = "replay"

// Result 重放结果
type Result struct {
	Found   bool   // 是否找到能复现崩溃的命令
	LineNo  int    // 复现命令所在行号（从 1 开始）
	Line    string // 复现命令的转义文本
	Command []byte // 复现命令的原始字节
	Tried   int    // 实际发送的行数
	Skipped int    // 解码失败被跳过的行数
	Elapsed time.Duration
}

// Confirmer 重放确认后回写附加存储
type Confirmer interface {
	Name() string
	MarkReproduced(ctx context.Context, escaped string, at time.Time) (int64, error)
}

// Engine 按文件顺序重放崩溃日志，第一条判定为 Crashed 的命令即为复现命令
type Engine struct {
	crashes *crashlog.Log
	ch      transport.Channel
	log     *zap.Logger
	metrics *metrics.FuzzMetrics

	confirmers []Confirmer
}

// New 创建重放引擎；m 为 nil 时使用私有注册表
func New(crashes *crashlog.Log, ch transport.Channel, log *zap.Logger, m *metrics.FuzzMetrics) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewFuzzMetrics(prometheus.NewRegistry())
	}
	return &Engine{crashes: crashes, ch: ch, log: log, metrics: m}
}

// SetConfirmers 设置复现确认后的回写目标
func (e *Engine) SetConfirmers(cs ...Confirmer) { e.confirmers = cs }

// Run 重放日志。日志不存在时返回 crashlog.ErrNoLogFound；
// 无法解码或超长的行被跳过；遇到第一条复现命令后不再读取后续行。
func (e *Engine) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result
	var ctxErr error

	err := e.crashes.Walk(func(entry crashlog.Entry) bool {
		if ctxErr = ctx.Err(); ctxErr != nil {
			return true
		}

		if entry.Oversized {
			res.Skipped++
			e.metrics.ReplaySkipped.Inc()
			e.log.Warn("skipping oversized crash log line", zap.Int("line", entry.LineNo))
			return false
		}

		cmd, err := escape.Unescape(entry.Text)
		if err != nil {
			res.Skipped++
			e.metrics.ReplaySkipped.Inc()
			e.log.Warn("skipping undecodable crash log line",
				zap.Int("line", entry.LineNo),
				zap.Error(err))
			return false
		}

		res.Tried++
		e.metrics.ReplayAttempts.Inc()
		sent := time.Now()
		outcome := e.ch.SendAndAwait(cmd)
		e.metrics.ResponseLatency.Observe(time.Since(sent).Seconds())

		verdict := oracle.Classify(outcome)
		e.metrics.Verdicts.WithLabelValues(modeLabel, verdict.String()).Inc()
		e.log.Debug("replayed crash log line",
			zap.Int("line", entry.LineNo),
			zap.Stringer("verdict", verdict))

		if verdict == oracle.Crashed {
			res.Found = true
			res.LineNo = entry.LineNo
			res.Line = entry.Text
			res.Command = cmd
			return true
		}
		return false
	})
	res.Elapsed = time.Since(start)

	if err != nil {
		if errors.Is(err, crashlog.ErrNoLogFound) {
			e.log.Error("no crash log found", zap.String("path", e.crashes.Path()))
		}
		return res, err
	}
	if ctxErr != nil {
		return res, ctxErr
	}

	if res.Found {
		e.log.Info("code works",
			zap.Int("line", res.LineNo),
			zap.String("command", res.Line))
		e.confirm(ctx, res.Line)
	} else {
		e.log.Error("none of the codes worked")
	}
	e.log.Info("replay finished",
		zap.Int("tried", res.Tried),
		zap.Int("skipped", res.Skipped),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// confirm 回写复现标记；失败只告警
func (e *Engine) confirm(ctx context.Context, line string) {
	now := time.Now()
	for _, c := range e.confirmers {
		n, err := c.MarkReproduced(ctx, line, now)
		if err != nil {
			e.log.Warn("mark reproduced failed", zap.String("store", c.Name()), zap.Error(err))
			continue
		}
		e.log.Debug("marked reproduced", zap.String("store", c.Name()), zap.Int64("rows", n))
	}
}
