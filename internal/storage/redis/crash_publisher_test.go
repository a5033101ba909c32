package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/atfuzz/internal/crashlog"
)

func unmarshalCrash(s string) (crashlog.Crash, error) {
	var c crashlog.Crash
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return c, fmt.Errorf("unmarshal crash: %w", err)
	}
	return c, nil
}

// recentCrashes 读取最近 n 条崩溃记录（从旧到新）
func recentCrashes(ctx context.Context, p *CrashPublisher, n int64) ([]crashlog.Crash, error) {
	items, err := p.client.LRange(ctx, p.key, -n, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]crashlog.Crash, 0, len(items))
	for _, it := range items {
		c, err := unmarshalCrash(it)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// 使用测试用Redis客户端（需要真实Redis实例）
func setupTestRedis(t *testing.T) *Client {
	rdb := goredis.NewClient(&goredis.Options{
		Addr: "localhost:6379",
		DB:   15, // 使用测试专用数据库
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping test")
		return nil
	}

	rdb.FlushDB(ctx)
	t.Cleanup(func() {
		rdb.FlushDB(ctx)
		rdb.Close()
	})
	return &Client{Client: rdb}
}

func TestCrashMarshalRoundTrip(t *testing.T) {
	in := crashlog.Crash{
		RunID:     "8f1c",
		Device:    "/dev/ttyUSB0",
		Iteration: 42,
		Escaped:   `AT+\x00\"`,
		Length:    1000,
		At:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	s, err := marshalCrash(in)
	require.NoError(t, err)
	assert.Contains(t, s, `"run_id":"8f1c"`)

	out, err := unmarshalCrash(s)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = unmarshalCrash("{not json")
	assert.Error(t, err)
}

func TestCrashPublisher_MirrorCrash(t *testing.T) {
	client := setupTestRedis(t)
	if client == nil {
		return
	}
	ctx := context.Background()

	sub := client.Subscribe(ctx, "test:crash-events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewCrashPublisher(client, "test:crashes", "test:crash-events")
	assert.Equal(t, "redis", pub.Name())

	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, pub.MirrorCrash(ctx, crashlog.Crash{RunID: "r", Iteration: i, Escaped: "AT"}))
	}

	recent, err := recentCrashes(ctx, pub, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, uint64(2), recent[0].Iteration)
	assert.Equal(t, uint64(3), recent[1].Iteration)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg.Payload, `"iteration":1`)
}
