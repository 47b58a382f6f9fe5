package tcpserver

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrAcceptRateLimited 建连速率超限
	ErrAcceptRateLimited = errors.New("accept rate limited")
	// ErrTooManyConns 并发连接已满
	ErrTooManyConns = errors.New("connection limit exceeded")
)

// admission 接入控制：先过建连速率令牌桶，再占用并发连接信号量
type admission struct {
	sem    chan struct{}
	wait   time.Duration
	bucket *rate.Limiter // nil 表示不限速

	active       atomic.Int64
	rejectedFull atomic.Int64
	rejectedRate atomic.Int64
}

// newAdmission maxConn<=0 取 1000；perSec<=0 不限速，burst<=0 取速率的2倍
func newAdmission(maxConn int, wait time.Duration, perSec float64, burst int) *admission {
	if maxConn <= 0 {
		maxConn = 1000
	}
	if wait <= 0 {
		wait = time.Second
	}
	a := &admission{sem: make(chan struct{}, maxConn), wait: wait}
	if perSec > 0 {
		if burst <= 0 {
			burst = max(int(perSec*2), 1)
		}
		a.bucket = rate.NewLimiter(rate.Limit(perSec), burst)
	}
	return a
}

// admit 放行后调用方须在连接结束时 release
func (a *admission) admit(ctx context.Context) error {
	if a.bucket != nil && !a.bucket.Allow() {
		a.rejectedRate.Add(1)
		return ErrAcceptRateLimited
	}
	ctx, cancel := context.WithTimeout(ctx, a.wait)
	defer cancel()
	select {
	case a.sem <- struct{}{}:
		a.active.Add(1)
		return nil
	case <-ctx.Done():
		a.rejectedFull.Add(1)
		return ErrTooManyConns
	}
}

// release 多余的调用被忽略
func (a *admission) release() {
	select {
	case <-a.sem:
		a.active.Add(-1)
	default:
	}
}

// AdmissionStats 接入统计
type AdmissionStats struct {
	MaxConnections    int     `json:"max_connections"`
	ActiveConnections int     `json:"active_connections"`
	RejectedFull      int64   `json:"rejected_full"`
	RejectedRate      int64   `json:"rejected_rate"`
	AcceptRate        float64 `json:"accept_rate"` // 0 表示不限速
}

func (a *admission) stats() AdmissionStats {
	st := AdmissionStats{
		MaxConnections:    cap(a.sem),
		ActiveConnections: int(a.active.Load()),
		RejectedFull:      a.rejectedFull.Load(),
		RejectedRate:      a.rejectedRate.Load(),
	}
	if a.bucket != nil {
		st.AcceptRate = float64(a.bucket.Limit())
	}
	return st
}
