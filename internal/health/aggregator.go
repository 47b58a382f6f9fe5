package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout 单项检查上限
const checkTimeout = 2 * time.Second

// Aggregator 并发执行全部检查项；cacheFor 内的重复请求复用上次结果
type Aggregator struct {
	mu       sync.RWMutex
	checkers []Checker
	started  time.Time

	cacheFor time.Duration
	cacheMu  sync.Mutex
	cachedAt time.Time
	cached   map[string]CheckResult
}

func NewAggregator(checkers ...Checker) *Aggregator {
	return &Aggregator{checkers: checkers, started: time.Now()}
}

// SetCacheTTL 0 关闭缓存
func (a *Aggregator) SetCacheTTL(d time.Duration) { a.cacheFor = d }

func (a *Aggregator) AddChecker(c Checker) {
	a.mu.Lock()
	a.checkers = append(a.checkers, c)
	a.mu.Unlock()
	a.invalidate()
}

func (a *Aggregator) invalidate() {
	a.cacheMu.Lock()
	a.cached = nil
	a.cacheMu.Unlock()
}

func (a *Aggregator) snapshot() []Checker {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Checker(nil), a.checkers...)
}

// CheckAll 按名称返回各项结果
func (a *Aggregator) CheckAll(ctx context.Context) map[string]CheckResult {
	if a.cacheFor > 0 {
		a.cacheMu.Lock()
		defer a.cacheMu.Unlock()
		if a.cached != nil && time.Since(a.cachedAt) < a.cacheFor {
			return a.cached
		}
	}

	checkers := a.snapshot()
	results := make([]CheckResult, len(checkers))
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			results[i] = c.Check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]CheckResult, len(checkers))
	for i, c := range checkers {
		out[c.Name()] = results[i]
	}
	if a.cacheFor > 0 {
		a.cached, a.cachedAt = out, time.Now()
	}
	return out
}

var severity = map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}

// overall 取最差状态；没有检查项时健康
func overall(results map[string]CheckResult) Status {
	worst := StatusHealthy
	for _, r := range results {
		if severity[r.Status] > severity[worst] {
			worst = r.Status
		}
	}
	return worst
}

func (a *Aggregator) OverallStatus(ctx context.Context) Status {
	return overall(a.CheckAll(ctx))
}

// Ready 降级仍视为就绪
func (a *Aggregator) Ready(ctx context.Context) bool {
	return a.OverallStatus(ctx) != StatusUnhealthy
}

// CheckOne 不走缓存
func (a *Aggregator) CheckOne(ctx context.Context, name string) (CheckResult, bool) {
	for _, c := range a.snapshot() {
		if c.Name() != name {
			continue
		}
		ctx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()
		return c.Check(ctx), true
	}
	return CheckResult{}, false
}

func (a *Aggregator) Uptime() time.Duration { return time.Since(a.started) }

// HealthReport /health 响应体
type HealthReport struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

func (a *Aggregator) Report(ctx context.Context) HealthReport {
	results := a.CheckAll(ctx)
	return HealthReport{
		Status:    overall(results),
		Timestamp: time.Now(),
		Uptime:    a.Uptime().Truncate(time.Second).String(),
		Checks:    results,
	}
}
