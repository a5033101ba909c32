package crashlog

import (
	"context"
	"time"
)

// Crash 一次崩溃的完整描述，供镜像存储使用
type Crash struct {
	RunID     string    `json:"run_id"`
	Device    string    `json:"device"`
	Iteration uint64    `json:"iteration"`
	Escaped   string    `json:"escaped"`
	Length    int       `json:"length"`
	At        time.Time `json:"at"`
}

// Mirror 崩溃记录的附加存储（Redis、PostgreSQL 等）。
// 文件日志始终是权威记录，镜像失败只记录告警。
type Mirror interface {
	Name() string
	MirrorCrash(ctx context.Context, c Crash) error
}
