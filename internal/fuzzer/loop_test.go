package fuzzer

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taoyao-code/atfuzz/internal/atcmd"
	"github.com/taoyao-code/atfuzz/internal/crashlog"
	"github.com/taoyao-code/atfuzz/internal/escape"
	"github.com/taoyao-code/atfuzz/internal/metrics"
	"github.com/taoyao-code/atfuzz/internal/transport"
)

// countingGenerator 包装真实生成器并统计调用次数
type countingGenerator struct {
	inner *atcmd.Generator
	calls int
	err   error
}

func (g *countingGenerator) Generate() (atcmd.Command, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.inner.Generate()
}

// scriptedChannel 第 silentOn 次调用返回 Silent，其余返回 Responded；
// 第 cancelAfter 次调用后取消 ctx 以模拟外部中断
type scriptedChannel struct {
	silentOn    int
	cancelAfter int
	cancel      context.CancelFunc
	calls       int
	sent        [][]byte
}

func (c *scriptedChannel) SendAndAwait(cmd []byte) transport.Outcome {
	c.calls++
	c.sent = append(c.sent, append([]byte(nil), cmd...))
	if c.cancelAfter > 0 && c.calls == c.cancelAfter {
		c.cancel()
	}
	if c.calls == c.silentOn {
		return transport.NewSilent()
	}
	return transport.NewResponded([]byte("OK\r\n"))
}

type fakeMirror struct {
	name  string
	err   error
	calls []crashlog.Crash
}

func (m *fakeMirror) Name() string { return m.name }

func (m *fakeMirror) MirrorCrash(_ context.Context, c crashlog.Crash) error {
	m.calls = append(m.calls, c)
	return m.err
}

func newGenerator(t *testing.T) *countingGenerator {
	t.Helper()
	g, err := atcmd.NewGenerator(rand.New(rand.NewPCG(11, 12)), nil, atcmd.Options{})
	require.NoError(t, err)
	return &countingGenerator{inner: g}
}

func TestRun_StableNeverWritesCrashLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "success.txt")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const n = 25
	ch := &scriptedChannel{cancelAfter: n, cancel: cancel}
	gen := newGenerator(t)
	loop := New(gen, ch, crashlog.New(path), zaptest.NewLogger(t), Options{})

	report, err := loop.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
	assert.Equal(t, n, ch.calls)
	assert.Equal(t, uint64(n), loop.Iterations())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "crash log must not be created")
}

func TestRun_CrashOnFifthSend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "success.txt")
	reg := prometheus.NewRegistry()
	m := metrics.NewFuzzMetrics(reg)
	mirror := &fakeMirror{name: "redis"}

	ch := &scriptedChannel{silentOn: 5}
	gen := newGenerator(t)
	loop := New(gen, ch, crashlog.New(path), zaptest.NewLogger(t), Options{
		RunID:   "run-1",
		Device:  "/dev/ttyUSB0",
		Mirrors: []crashlog.Mirror{mirror},
		Metrics: m,
	})

	report, err := loop.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, 5, gen.calls)
	assert.Equal(t, 5, ch.calls)
	assert.Equal(t, uint64(5), report.Iteration)
	assert.Equal(t, ch.sent[4], []byte(report.Command))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 1)
	assert.Equal(t, report.Escaped, lines[0])

	decoded, err := escape.Unescape(lines[0])
	require.NoError(t, err)
	assert.Equal(t, ch.sent[4], decoded)

	require.Len(t, mirror.calls, 1)
	assert.Equal(t, "run-1", mirror.calls[0].RunID)
	assert.Equal(t, uint64(5), mirror.calls[0].Iteration)
	assert.Equal(t, atcmd.DefaultLength, mirror.calls[0].Length)

	assert.InDelta(t, 5, testutil.ToFloat64(m.Iterations), 1e-9)
	assert.InDelta(t, 4, testutil.ToFloat64(m.Verdicts.WithLabelValues("fuzz", "stable")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CrashesRecorded), 1e-9)
}

func TestRun_PersistenceFailureIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no-such-dir", "success.txt")
	mirror := &fakeMirror{name: "postgres"}
	loop := New(newGenerator(t), &scriptedChannel{silentOn: 1}, crashlog.New(path), zaptest.NewLogger(t), Options{
		Mirrors: []crashlog.Mirror{mirror},
	})

	report, err := loop.Run(context.Background())
	assert.Nil(t, report)
	assert.ErrorIs(t, err, crashlog.ErrPersistence)
	assert.Empty(t, mirror.calls, "mirrors only run after the file log succeeded")
}

func TestRun_MirrorFailureDoesNotStopCrashTransition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "success.txt")
	m := metrics.NewFuzzMetrics(prometheus.NewRegistry())
	bad := &fakeMirror{name: "redis", err: errors.New("connection refused")}
	good := &fakeMirror{name: "postgres"}

	loop := New(newGenerator(t), &scriptedChannel{silentOn: 2}, crashlog.New(path), zaptest.NewLogger(t), Options{
		Mirrors: []crashlog.Mirror{bad, good},
		Metrics: m,
	})

	report, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), report.Iteration)
	assert.Len(t, bad.calls, 1)
	assert.Len(t, good.calls, 1)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MirrorFailures.WithLabelValues("redis")), 1e-9)
}

func TestRun_GenerateErrorStopsLoop(t *testing.T) {
	gen := newGenerator(t)
	gen.err = errors.New("dictionary gone")
	ch := &scriptedChannel{}

	loop := New(gen, ch, crashlog.New(filepath.Join(t.TempDir(), "success.txt")), nil, Options{})
	_, err := loop.Run(context.Background())
	assert.ErrorIs(t, err, gen.err)
	assert.Equal(t, 0, ch.calls)
}

func TestRun_ThrottledLoopHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := &scriptedChannel{}
	loop := New(newGenerator(t), ch, crashlog.New(filepath.Join(t.TempDir(), "success.txt")), nil, Options{
		Limiter: transport.NewRateLimiter(1, 1),
	})
	_, err := loop.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, ch.calls)
}
