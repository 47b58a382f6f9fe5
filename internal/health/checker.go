package health

import (
	"context"
	"fmt"
	"time"
)

// Status 健康状态
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"  // 部分受损，仍可下发指令
	StatusUnhealthy Status = "unhealthy" // 无法服务
)

// CheckResult 单项检查结果
type CheckResult struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Latency time.Duration  `json:"latency"`
}

// Checker 健康检查项
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// CheckerFunc 以函数实现 Checker
type CheckerFunc struct {
	ID string
	Fn func(ctx context.Context) CheckResult
}

func (c CheckerFunc) Name() string { return c.ID }

func (c CheckerFunc) Check(ctx context.Context) CheckResult {
	start := time.Now()
	r := c.Fn(ctx)
	if r.Latency == 0 {
		r.Latency = time.Since(start)
	}
	return r
}

// poolVerdict 连接池占用率判定：超过 90% 降级，占满不健康
func poolVerdict(inUse, max int64) (Status, string, string) {
	if max <= 0 {
		return StatusHealthy, "ok", "n/a"
	}
	u := float64(inUse) / float64(max)
	pct := fmt.Sprintf("%.1f%%", u*100)
	switch {
	case u >= 1:
		return StatusUnhealthy, "connection pool exhausted", pct
	case u > 0.9:
		return StatusDegraded, "connection pool near limit", pct
	}
	return StatusHealthy, "ok", pct
}
