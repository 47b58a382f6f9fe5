package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/drivelink/internal/migrate"
)

// DatabaseChecker PostgreSQL 连通性、连接池与已应用的迁移版本
type DatabaseChecker struct {
	pool *pgxpool.Pool
}

func NewDatabaseChecker(pool *pgxpool.Pool) *DatabaseChecker {
	return &DatabaseChecker{pool: pool}
}

func (c *DatabaseChecker) Name() string { return "database" }

func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.pool.Ping(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("ping failed: %v", err),
			Latency: time.Since(start),
		}
	}

	stats := c.pool.Stat()
	status, msg, pct := poolVerdict(int64(stats.AcquiredConns()), int64(stats.MaxConns()))
	details := map[string]any{
		"total_conns":    stats.TotalConns(),
		"idle_conns":     stats.IdleConns(),
		"acquired_conns": stats.AcquiredConns(),
		"max_conns":      stats.MaxConns(),
		"utilization":    pct,
	}

	applied, err := migrate.AppliedVersions(ctx, c.pool)
	if err != nil {
		// 迁移表不可读不影响收发，仅降级
		if status == StatusHealthy {
			status, msg = StatusDegraded, "schema_migrations unreadable"
		}
	} else {
		details["schema_version"] = latestVersion(applied)
	}

	return CheckResult{Status: status, Message: msg, Details: details, Latency: time.Since(start)}
}

func latestVersion(applied map[int64]time.Time) int64 {
	var v int64
	for k := range applied {
		if k > v {
			v = k
		}
	}
	return v
}
