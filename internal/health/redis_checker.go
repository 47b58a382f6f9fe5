package health

import (
	"context"
	"fmt"

	redisstorage "github.com/taoyao-code/drivelink/internal/storage/redis"
)

// RedisChecker Redis 往返耗时与连接池
type RedisChecker struct {
	client *redisstorage.Client
}

func NewRedisChecker(client *redisstorage.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string { return "redis" }

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	rtt, err := c.client.Probe(ctx)
	if err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("ping failed: %v", err),
			Latency: rtt,
		}
	}

	stats := c.client.PoolStats()
	status, msg, pct := poolVerdict(int64(stats.TotalConns-stats.IdleConns), int64(c.client.Options().PoolSize))
	if status == StatusHealthy && stats.Timeouts > 0 && stats.Misses > stats.Hits {
		status, msg = StatusDegraded, "pool waits timing out"
	}

	return CheckResult{
		Status:  status,
		Message: msg,
		Details: map[string]any{
			"rtt":         rtt.String(),
			"total_conns": stats.TotalConns,
			"idle_conns":  stats.IdleConns,
			"hits":        stats.Hits,
			"misses":      stats.Misses,
			"timeouts":    stats.Timeouts,
			"utilization": pct,
		},
		Latency: rtt,
	}
}
