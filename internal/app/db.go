package app

import (
	"context"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/atfuzz/internal/config"
	"github.com/taoyao-code/atfuzz/internal/health"
	"github.com/taoyao-code/atfuzz/internal/storage/gormrepo"
)

// ConnectDB 建立数据库连接并按需迁移；未启用时返回 nil
func ConnectDB(ctx context.Context, cfg cfgpkg.DatabaseConfig, log *zap.Logger) (*gormrepo.Repository, error) {
	if !cfg.Enabled {
		log.Debug("database is disabled, skipping initialization")
		return nil, nil
	}
	db, err := gormrepo.Open(ctx, cfg, log)
	if err != nil {
		log.Error("db connect error", zap.Error(err))
		return nil, err
	}
	log.Info("database ready", zap.String("dsn", MaskDSN(cfg.DSN)))
	return gormrepo.New(db), nil
}

// AddDatabaseChecker 添加数据库检查器到聚合器
func AddDatabaseChecker(aggregator *health.Aggregator, repo *gormrepo.Repository) {
	if repo != nil {
		aggregator.AddChecker(health.NewDatabaseChecker(repo))
	}
}
