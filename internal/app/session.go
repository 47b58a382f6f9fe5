package app

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/drivelink/internal/config"
	"github.com/taoyao-code/drivelink/internal/session"
	redisstorage "github.com/taoyao-code/drivelink/internal/storage/redis"
)

// NewSessionManager Redis 可用时在线状态跨实例共享，否则仅本进程可见
func NewSessionManager(cfg cfgpkg.SessionConfig, redisClient *redisstorage.Client, logger *zap.Logger) session.SessionManager {
	if redisClient != nil {
		id := instanceID()
		logger.Info("using redis session manager",
			zap.String("server_id", id),
			zap.Duration("timeout", cfg.Timeout))
		return session.NewRedisManager(redisClient.Client, id, cfg.Timeout)
	}
	logger.Info("using memory session manager", zap.Duration("timeout", cfg.Timeout))
	return session.New(cfg.Timeout)
}

// instanceID 链路归属的实例标识：SERVER_ID 优先，否则 drivelink-{hostname}-{pid}
func instanceID() string {
	if id := os.Getenv("SERVER_ID"); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("drivelink-%s-%d", host, os.Getpid())
}
