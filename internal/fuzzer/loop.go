package fuzzer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/taoyao-code/atfuzz/internal/atcmd"
	"github.com/taoyao-code/atfuzz/internal/crashlog"
	"github.com/taoyao-code/atfuzz/internal/metrics"
	"github.com/taoyao-code/atfuzz/internal/oracle"
	"github.com/taoyao-code/atfuzz/internal/transport"
)

const modeLabel = "fuzz"

// defaultMirrorTimeout 单个镜像写入的超时
const defaultMirrorTimeout = 5 * time.Second

// Generator 产生下一条命令
type Generator interface {
	Generate() (atcmd.Command, error)
}

// Options 循环的可选依赖
type Options struct {
	RunID         string
	Device        string
	Limiter       *transport.RateLimiter // nil 表示不限速
	Mirrors       []crashlog.Mirror
	MirrorTimeout time.Duration
	Metrics       *metrics.FuzzMetrics
}

// CrashReport 终止循环的崩溃
type CrashReport struct {
	Iteration uint64
	Command   atcmd.Command
	Escaped   string
	Elapsed   time.Duration
}

// Loop 单状态模糊测试循环：每轮 生成 → 发送 → 判定；
// Stable 继续，Crashed 写入崩溃日志后终止。除此之外只有外部中断（ctx 取消）能结束循环。
type Loop struct {
	gen     Generator
	ch      transport.Channel
	crashes *crashlog.Log
	log     *zap.Logger
	opts    Options

	iterations atomic.Uint64
}

// New 创建模糊测试循环
func New(gen Generator, ch transport.Channel, crashes *crashlog.Log, log *zap.Logger, opts Options) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewFuzzMetrics(prometheus.NewRegistry())
	}
	if opts.MirrorTimeout <= 0 {
		opts.MirrorTimeout = defaultMirrorTimeout
	}
	return &Loop{gen: gen, ch: ch, crashes: crashes, log: log, opts: opts}
}

// Iterations 已完成发送的轮数
func (l *Loop) Iterations() uint64 { return l.iterations.Load() }

// Run 运行直到设备崩溃或 ctx 被取消。
// 崩溃日志写入失败是致命错误，返回包装了 crashlog.ErrPersistence 的错误。
func (l *Loop) Run(ctx context.Context) (*CrashReport, error) {
	start := time.Now()
	m := l.opts.Metrics

	for {
		if err := ctx.Err(); err != nil {
			l.summary(start, "interrupted")
			return nil, err
		}
		if err := l.opts.Limiter.Wait(ctx); err != nil {
			l.summary(start, "interrupted")
			return nil, err
		}

		cmd, err := l.gen.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate command: %w", err)
		}

		sent := time.Now()
		outcome := l.ch.SendAndAwait(cmd)
		m.ResponseLatency.Observe(time.Since(sent).Seconds())
		iter := l.iterations.Add(1)
		m.Iterations.Inc()

		verdict := oracle.Classify(outcome)
		m.Verdicts.WithLabelValues(modeLabel, verdict.String()).Inc()

		if verdict == oracle.Stable {
			l.log.Info("stable for command",
				zap.Uint64("iteration", iter),
				zap.String("command", cmd.Escaped()))
			continue
		}

		escaped := cmd.Escaped()
		l.log.Error("command crashed the device",
			zap.Uint64("iteration", iter),
			zap.String("command", escaped))

		if _, err := l.crashes.Record(cmd); err != nil {
			return nil, err
		}
		m.CrashesRecorded.Inc()
		l.log.Info("crash recorded", zap.String("path", l.crashes.Path()))

		l.mirror(ctx, crashlog.Crash{
			RunID:     l.opts.RunID,
			Device:    l.opts.Device,
			Iteration: iter,
			Escaped:   escaped,
			Length:    len(cmd),
			At:        time.Now(),
		})

		l.summary(start, "crashed")
		return &CrashReport{Iteration: iter, Command: cmd, Escaped: escaped, Elapsed: time.Since(start)}, nil
	}
}

// mirror 将崩溃写入附加存储；失败只告警，文件日志已是权威记录
func (l *Loop) mirror(ctx context.Context, c crashlog.Crash) {
	base := context.WithoutCancel(ctx)
	for _, mr := range l.opts.Mirrors {
		mctx, cancel := context.WithTimeout(base, l.opts.MirrorTimeout)
		err := mr.MirrorCrash(mctx, c)
		cancel()
		if err != nil {
			l.opts.Metrics.MirrorFailures.WithLabelValues(mr.Name()).Inc()
			l.log.Warn("crash mirror failed", zap.String("mirror", mr.Name()), zap.Error(err))
			continue
		}
		l.log.Debug("crash mirrored", zap.String("mirror", mr.Name()))
	}
}

func (l *Loop) summary(start time.Time, result string) {
	l.log.Info("fuzz run finished",
		zap.String("result", result),
		zap.Uint64("iterations", l.iterations.Load()),
		zap.Duration("elapsed", time.Since(start)))
}
