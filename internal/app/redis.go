package app

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/drivelink/internal/config"
	redisstorage "github.com/taoyao-code/drivelink/internal/storage/redis"
)

// NewRedisClient 未启用时返回 (nil, nil)，调用方改用内存队列与内存会话
func NewRedisClient(cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.Client, error) {
	client, err := redisstorage.NewClient(cfg)
	switch {
	case errors.Is(err, redisstorage.ErrDisabled):
		logger.Info("redis disabled, using in-memory queue and sessions")
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	logger.Info("redis connected",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.Int("pool_size", cfg.PoolSize),
		zap.String("key_prefix", redisstorage.KeyPrefix))
	return client, nil
}
