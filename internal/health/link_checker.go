package health

import (
	"context"
	"time"

	"github.com/taoyao-code/drivelink/internal/outbound"
)

// serialLink 串口链路
type serialLink interface {
	Path() string
	Done() <-chan struct{}
}

// SerialChecker 串口链路是否仍在读
type SerialChecker struct {
	link serialLink
}

func NewSerialChecker(link serialLink) *SerialChecker { return &SerialChecker{link: link} }

func (c *SerialChecker) Name() string { return "serial" }

func (c *SerialChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	select {
	case <-c.link.Done():
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "serial link closed",
			Details: map[string]any{"port": c.link.Path()},
			Latency: time.Since(start),
		}
	default:
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: "ok",
		Details: map[string]any{"port": c.link.Path()},
		Latency: time.Since(start),
	}
}

// workerStats 下行发送统计
type workerStats interface {
	Stats(ctx context.Context) outbound.WorkerStats
}

// OutboundChecker 熔断打开时降级
type OutboundChecker struct {
	worker workerStats
}

func NewOutboundChecker(w workerStats) *OutboundChecker { return &OutboundChecker{worker: w} }

func (c *OutboundChecker) Name() string { return "outbound" }

func (c *OutboundChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	st := c.worker.Stats(ctx)

	status := StatusHealthy
	message := "ok"
	switch st.Breaker {
	case outbound.StateOpen.String():
		status = StatusDegraded
		message = "circuit breaker open"
	case outbound.StateHalfOpen.String():
		status = StatusDegraded
		message = "circuit breaker probing"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: map[string]any{
			"breaker":      st.Breaker,
			"pending":      st.Queue.Pending,
			"dead":         st.Queue.Dead,
			"awaiting_ack": st.Pending,
		},
		Latency: time.Since(start),
	}
}
