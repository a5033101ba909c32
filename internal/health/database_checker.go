package health

import (
	"context"
	"fmt"
	"time"
)

// Pinger 可探活的存储
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseChecker 崩溃镜像数据库健康检查器；镜像是可选的，失败只降级
type DatabaseChecker struct {
	db Pinger
}

// NewDatabaseChecker 创建数据库健康检查器
func NewDatabaseChecker(db Pinger) *DatabaseChecker {
	return &DatabaseChecker{db: db}
}

// Name 返回检查器名称
func (c *DatabaseChecker) Name() string {
	return "database"
}

// Check 执行健康检查
func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.db.Ping(ctx); err != nil {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("ping failed: %v", err),
			Latency: time.Since(start),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "ok", Latency: time.Since(start)}
}
