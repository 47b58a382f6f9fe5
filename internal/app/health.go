package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/drivelink/internal/health"
	"github.com/taoyao-code/drivelink/internal/notify"
	redisstorage "github.com/taoyao-code/drivelink/internal/storage/redis"
)

// NewHealthAggregator 按已启用的组件组装检查项；链路相关检查在链路启动后追加
func NewHealthAggregator(ready *health.Readiness, dbpool *pgxpool.Pool, redisClient *redisstorage.Client, notifier *notify.Notifier) *health.Aggregator {
	agg := health.NewAggregator(ready)
	// 探针与 /health 高频访问时避免反复 PING 数据库
	agg.SetCacheTTL(time.Second)
	if dbpool != nil {
		agg.AddChecker(health.NewDatabaseChecker(dbpool))
	}
	if redisClient != nil {
		agg.AddChecker(health.NewRedisChecker(redisClient))
	}
	if notifier != nil {
		agg.AddChecker(webhookChecker(notifier))
	}
	return agg
}

// webhookChecker 推送失败或丢弃只降级，不影响就绪
func webhookChecker(n *notify.Notifier) health.Checker {
	return health.CheckerFunc{ID: "webhook", Fn: func(context.Context) health.CheckResult {
		st := n.Stats()
		res := health.CheckResult{
			Status:  health.StatusHealthy,
			Message: "ok",
			Details: map[string]any{
				"sent":    st.Sent,
				"failed":  st.Failed,
				"dropped": st.Dropped,
				"queued":  st.Queued,
			},
		}
		if st.Dropped > 0 || (st.Failed > 0 && st.Failed >= st.Sent) {
			res.Status = health.StatusDegraded
			res.Message = fmt.Sprintf("%d failed, %d dropped", st.Failed, st.Dropped)
		}
		return res
	}}
}
