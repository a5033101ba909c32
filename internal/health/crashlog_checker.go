package health

import (
	"context"
	"fmt"
	"time"
)

// CrashLogTarget 崩溃日志的可检查视图
type CrashLogTarget interface {
	Path() string
	Writable() error
	Records() int
}

// CrashLogChecker 检查崩溃日志目录可写；不可写时崩溃证据会丢失，视为 Unhealthy
type CrashLogChecker struct {
	log CrashLogTarget
}

func NewCrashLogChecker(log CrashLogTarget) *CrashLogChecker {
	return &CrashLogChecker{log: log}
}

func (c *CrashLogChecker) Name() string { return "crashlog" }

func (c *CrashLogChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	details := map[string]interface{}{
		"path":    c.log.Path(),
		"records": c.log.Records(),
	}
	if err := c.log.Writable(); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("not writable: %v", err),
			Details: details,
			Latency: time.Since(start),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "ok", Details: details, Latency: time.Since(start)}
}
