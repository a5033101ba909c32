package gormrepo

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	cfgpkg "github.com/taoyao-code/atfuzz/internal/config"
	"github.com/taoyao-code/atfuzz/internal/crashlog"
	"github.com/taoyao-code/atfuzz/internal/storage/models"
)

// Repository 基于 GORM 的崩溃记录存储
type Repository struct {
	db *gorm.DB
}

// New 返回一个使用给定 *gorm.DB 的仓库
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Open 连接 PostgreSQL，配置连接池并按需迁移 crashes 表
func Open(ctx context.Context, cfg cfgpkg.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	// 探活
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.WithContext(ctx).AutoMigrate(&models.Crash{}); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("migrate crashes: %w", err)
		}
		if log != nil {
			log.Info("db migrations applied")
		}
	}
	return db, nil
}

// Name 镜像名称
func (r *Repository) Name() string { return "postgres" }

// MirrorCrash 插入一条崩溃记录
func (r *Repository) MirrorCrash(ctx context.Context, c crashlog.Crash) error {
	return r.db.WithContext(ctx).Create(&models.Crash{
		RunID:     c.RunID,
		Device:    c.Device,
		Iteration: c.Iteration,
		Escaped:   c.Escaped,
		Length:    c.Length,
		CrashedAt: c.At,
	}).Error
}

// MarkReproduced 重放确认后标记所有相同文本的记录，返回受影响行数
func (r *Repository) MarkReproduced(ctx context.Context, escaped string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Crash{}).
		Where("escaped = ?", escaped).
		Updates(map[string]interface{}{
			"reproduced":    true,
			"reproduced_at": at,
		})
	return res.RowsAffected, res.Error
}

// Ping 健康检查
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭底层连接
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
