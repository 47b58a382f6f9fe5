package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Readiness 启动阶段就绪标记：各组件启动成功后置位，全部置位前视为不健康
type Readiness struct {
	mu    sync.RWMutex
	state map[string]bool
}

// New 以待启动的组件名创建
func New(components ...string) *Readiness {
	r := &Readiness{state: make(map[string]bool, len(components))}
	for _, c := range components {
		r.state[c] = false
	}
	return r
}

// Set 标记组件就绪状态；未登记的组件也会加入
func (r *Readiness) Set(component string, ready bool) {
	r.mu.Lock()
	r.state[component] = ready
	r.mu.Unlock()
}

// Ready 全部组件已就绪
func (r *Readiness) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ok := range r.state {
		if !ok {
			return false
		}
	}
	return true
}

func (r *Readiness) Name() string { return "startup" }

func (r *Readiness) Check(ctx context.Context) CheckResult {
	start := time.Now()
	r.mu.RLock()
	var waiting []string
	for c, ok := range r.state {
		if !ok {
			waiting = append(waiting, c)
		}
	}
	r.mu.RUnlock()
	if len(waiting) == 0 {
		return CheckResult{Status: StatusHealthy, Message: "ok", Latency: time.Since(start)}
	}
	sort.Strings(waiting)
	return CheckResult{
		Status:  StatusUnhealthy,
		Message: "components not ready",
		Details: map[string]any{"waiting": waiting},
		Latency: time.Since(start),
	}
}
