package app

import (
	"errors"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/drivelink/internal/config"
	"github.com/taoyao-code/drivelink/internal/metrics"
	"github.com/taoyao-code/drivelink/internal/notify"
	redisstorage "github.com/taoyao-code/drivelink/internal/storage/redis"
)

// NewNotifier 构建事件推送器；未启用时返回 (nil, nil)，Redis 可用时启用跨实例去重
func NewNotifier(cfg cfgpkg.WebhookConfig, redisClient *redisstorage.Client, appm *metrics.AppMetrics, log *zap.Logger) (*notify.Notifier, error) {
	if !cfg.Enable {
		log.Info("webhook is disabled, skipping initialization")
		return nil, nil
	}
	if cfg.URL == "" {
		return nil, errors.New("webhook.url is required when webhook is enabled")
	}
	n := notify.NewNotifier(notify.NewPusher(nil, cfg.APIKey, cfg.Secret), notify.Options{
		URL:       cfg.URL,
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
		Timeout:   cfg.Timeout,
	}, log.Named("webhook"))
	n.SetMetrics(appm)
	if redisClient != nil {
		n.SetDeduper(notify.NewDeduper(redisClient.Client, cfg.DedupTTL))
	}
	return n, nil
}
