package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/atfuzz/internal/config"
	"github.com/taoyao-code/atfuzz/internal/notify"
)

// NewWebhookIfEnabled 按配置创建崩溃通知；未启用时返回 nil
func NewWebhookIfEnabled(cfg cfgpkg.WebhookConfig, log *zap.Logger) (*notify.Webhook, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	w, err := notify.NewWebhook(cfg)
	if err != nil {
		return nil, err
	}
	log.Info("crash webhook enabled", zap.String("url", cfg.URL), zap.Int("retries", cfg.Retries))
	return w, nil
}
