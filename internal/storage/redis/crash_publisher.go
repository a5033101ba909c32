package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taoyao-code/atfuzz/internal/crashlog"
)

// CrashPublisher 将崩溃记录追加到 Redis 列表并发布事件
type CrashPublisher struct {
	client  *Client
	key     string
	channel string
}

// NewCrashPublisher 创建崩溃发布器；channel 为空时不发布事件
func NewCrashPublisher(client *Client, key, channel string) *CrashPublisher {
	return &CrashPublisher{client: client, key: key, channel: channel}
}

// Name 镜像名称
func (p *CrashPublisher) Name() string { return "redis" }

// MirrorCrash RPUSH 记录到列表，并在同一管道中 PUBLISH
func (p *CrashPublisher) MirrorCrash(ctx context.Context, c crashlog.Crash) error {
	data, err := marshalCrash(c)
	if err != nil {
		return err
	}

	pipe := p.client.TxPipeline()
	pipe.RPush(ctx, p.key, data)
	if p.channel != "" {
		pipe.Publish(ctx, p.channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push crash to redis: %w", err)
	}
	return nil
}

func marshalCrash(c crashlog.Crash) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal crash: %w", err)
	}
	return string(data), nil
}
