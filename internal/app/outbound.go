package app

import (
	"context"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/drivelink/internal/config"
	"github.com/taoyao-code/drivelink/internal/metrics"
	"github.com/taoyao-code/drivelink/internal/outbound"
	"github.com/taoyao-code/drivelink/internal/session"
	redisstorage "github.com/taoyao-code/drivelink/internal/storage/redis"
)

// NewOutboundQueue Redis 可用时使用共享队列，否则内存队列
func NewOutboundQueue(redisClient *redisstorage.Client, log *zap.Logger) outbound.Queue {
	if redisClient != nil {
		log.Info("using redis outbound queue")
		return redisstorage.NewCommandQueue(redisClient)
	}
	log.Info("using memory outbound queue")
	return outbound.NewMemoryQueue()
}

// StartOutbound 启动下行 Worker 并返回取消函数；recorder 可为 nil
func StartOutbound(queue outbound.Queue, sess session.SessionManager, cfg cfgpkg.LinkConfig, recorder outbound.Recorder, appm *metrics.AppMetrics, log *zap.Logger) (context.CancelFunc, *outbound.Worker) {
	w := outbound.NewWorker(queue, sess, outbound.Options{
		Throttle:        cfg.Throttle,
		AckTimeout:      cfg.AckTimeout,
		PollInterval:    cfg.PollInterval,
		MaxRetry:        cfg.MaxRetry,
		RetryDelay:      cfg.RetryDelay,
		BreakerFailures: cfg.BreakerFailures,
		BreakerCooldown: cfg.BreakerCooldown,
	}, log)
	if recorder != nil {
		w.SetRecorder(recorder)
	}
	w.SetOnResult(appm.ObserveOutbound)
	w.Breaker().SetStateChangeCallback(func(from, to outbound.BreakerState) {
		log.Warn("outbound circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	})

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	return cancel, w
}
