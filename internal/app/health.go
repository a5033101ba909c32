package app

import (
	"github.com/gin-gonic/gin"

	"github.com/taoyao-code/atfuzz/internal/health"
	"github.com/taoyao-code/atfuzz/internal/transport"
)

// NewHealthAggregator 创建健康检查聚合器，初始包含崩溃日志与设备检查
func NewHealthAggregator(crashes health.CrashLogTarget, dev health.DeviceTarget, throttle *transport.RateLimiter) *health.Aggregator {
	return health.NewAggregator(
		health.NewCrashLogChecker(crashes),
		health.NewDeviceChecker(dev, throttle),
	)
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}
