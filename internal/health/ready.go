package health

import "sync/atomic"

// Readiness 就绪状态：设备已打开且崩溃日志可写
type Readiness struct {
	deviceReady   atomic.Bool
	crashLogReady atomic.Bool
}

func NewReadiness() *Readiness { return &Readiness{} }

func (r *Readiness) SetDeviceReady(v bool)   { r.deviceReady.Store(v) }
func (r *Readiness) SetCrashLogReady(v bool) { r.crashLogReady.Store(v) }

// Ready 总体就绪：各子系统均为 true
func (r *Readiness) Ready() bool {
	return r.deviceReady.Load() && r.crashLogReady.Load()
}
