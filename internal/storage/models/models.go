package models

import (
	"time"
)

// 不使用 gorm.Model，显式声明每个字段，避免隐式 DeletedAt

// Crash 映射 crashes 表：每行对应崩溃日志中的一条记录
type Crash struct {
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// 运行标识（uuid）
	RunID  string `gorm:"column:run_id;type:varchar(36);not null;index"`
	Device string `gorm:"column:device;type:text;not null"`
	// 触发崩溃的轮次
	Iteration uint64 `gorm:"column:iteration;not null"`
	// 转义后的命令文本，与崩溃日志中的行一致
	Escaped string `gorm:"column:escaped;type:text;not null"`
	Length  int    `gorm:"column:length;not null"`
	// 重放确认
	Reproduced   bool       `gorm:"column:reproduced;not null;default:false"`
	ReproducedAt *time.Time `gorm:"column:reproduced_at"`
	// 审计字段
	CrashedAt time.Time `gorm:"column:crashed_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Crash) TableName() string { return "crashes" }
