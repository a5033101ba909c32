package health

import (
	"context"
	"time"

	"github.com/taoyao-code/atfuzz/internal/transport"
)

// DeviceTarget 串口通道的可检查视图
type DeviceTarget interface {
	Name() string
	Stats() (tx, rx uint64)
	Timeout() time.Duration
}

// DeviceChecker 报告串口收发统计。
// 不主动探测设备：通道只允许一个在途命令，由模糊循环独占。
type DeviceChecker struct {
	dev      DeviceTarget
	throttle *transport.RateLimiter
}

// NewDeviceChecker throttle 为 nil 表示未限速
func NewDeviceChecker(dev DeviceTarget, throttle *transport.RateLimiter) *DeviceChecker {
	return &DeviceChecker{dev: dev, throttle: throttle}
}

func (c *DeviceChecker) Name() string { return "device" }

func (c *DeviceChecker) Check(ctx context.Context) CheckResult {
	tx, rx := c.dev.Stats()
	status := StatusHealthy
	message := "ok"
	if tx > 0 && rx == 0 {
		// 发送过数据却从未收到应答
		status = StatusDegraded
		message = "no bytes received yet"
	}
	details := map[string]interface{}{
		"device":       c.dev.Name(),
		"bytes_tx":     tx,
		"bytes_rx":     rx,
		"read_timeout": c.dev.Timeout().String(),
	}
	if c.throttle != nil {
		details["throttle"] = c.throttle.Stats()
	}
	return CheckResult{
		Status:  status,
		Message: message,
		Details: details,
	}
}
