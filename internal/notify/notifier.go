package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/drivelink/internal/metrics"
	"github.com/taoyao-code/drivelink/internal/outbound"
)

// 推送结果，同时作为指标 label
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultDedup   = "dedup"
	ResultDropped = "dropped"
)

type dedupAPI interface {
	IsDuplicate(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Options 推送参数
type Options struct {
	URL       string
	Workers   int
	QueueSize int
	Timeout   time.Duration // 单个事件的总推送时限（含重试）
}

// Notifier 异步推送机器人事件；队列满时丢弃，不阻塞链路与下行流程
type Notifier struct {
	opts    Options
	pusher  *Pusher
	dedup   dedupAPI
	metrics *metrics.AppMetrics
	logger  *zap.Logger

	mu      sync.RWMutex
	closed  bool
	ch      chan *Event
	wg      sync.WaitGroup
	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

func NewNotifier(pusher *Pusher, opts Options, logger *zap.Logger) *Notifier {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		opts:   opts,
		pusher: pusher,
		logger: logger,
		ch:     make(chan *Event, opts.QueueSize),
	}
}

// SetDeduper 多实例部署时注入共享去重
func (n *Notifier) SetDeduper(d dedupAPI) { n.dedup = d }

func (n *Notifier) SetMetrics(m *metrics.AppMetrics) { n.metrics = m }

// Start 启动推送协程，ctx 取消会中断进行中的推送
func (n *Notifier) Start(ctx context.Context) {
	for i := 0; i < n.opts.Workers; i++ {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			for ev := range n.ch {
				n.deliver(ctx, ev)
			}
		}()
	}
	n.logger.Info("webhook notifier started",
		zap.String("url", n.opts.URL),
		zap.Int("workers", n.opts.Workers))
}

// Stop 停止接收并等待队列中事件推送完
func (n *Notifier) Stop() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.ch)
	n.mu.Unlock()
	n.wg.Wait()
}

// Publish 非阻塞入队
func (n *Notifier) Publish(ev *Event) bool {
	if n == nil || ev == nil {
		return false
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return false
	}
	select {
	case n.ch <- ev:
		return true
	default:
		n.dropped.Add(1)
		n.metrics.ObserveWebhook(string(ev.Event), ResultDropped, 0)
		n.logger.Warn("webhook queue full, event dropped",
			zap.String("event", string(ev.Event)),
			zap.String("robot_id", ev.RobotID))
		return false
	}
}

func (n *Notifier) deliver(ctx context.Context, ev *Event) {
	if n.dedup != nil {
		dup, err := n.dedup.IsDuplicate(ctx, ev.EventID)
		if err != nil {
			n.logger.Warn("webhook dedup check failed", zap.String("event_id", ev.EventID), zap.Error(err))
		} else if dup {
			n.metrics.ObserveWebhook(string(ev.Event), ResultDedup, 0)
			return
		}
	}

	start := time.Now()
	pctx, cancel := context.WithTimeout(ctx, n.opts.Timeout)
	code, _, err := n.pusher.SendJSON(pctx, n.opts.URL, ev)
	cancel()
	elapsed := time.Since(start)

	if err == nil && code >= 200 && code < 300 {
		n.sent.Add(1)
		n.metrics.ObserveWebhook(string(ev.Event), ResultSuccess, elapsed)
		return
	}
	n.failed.Add(1)
	n.metrics.ObserveWebhook(string(ev.Event), ResultFailed, elapsed)
	n.logger.Warn("webhook push failed",
		zap.String("event", string(ev.Event)),
		zap.String("event_id", ev.EventID),
		zap.String("robot_id", ev.RobotID),
		zap.Int("status", code),
		zap.Error(err))
	if n.dedup != nil {
		_ = n.dedup.Forget(context.Background(), ev.EventID)
	}
}

// RobotOnline 链路绑定
func (n *Notifier) RobotOnline(robotID, transport string) {
	n.Publish(NewEvent(EventRobotOnline, robotID, map[string]any{"transport": transport}))
}

// RobotOffline 链路断开
func (n *Notifier) RobotOffline(robotID, transport string) {
	n.Publish(NewEvent(EventRobotOffline, robotID, map[string]any{"transport": transport}))
}

// MarkCommand 实现 outbound.Recorder，仅推送确认与死信两种终态
func (n *Notifier) MarkCommand(_ context.Context, cmd *outbound.Command, status, errMsg string) error {
	var typ EventType
	switch status {
	case outbound.ResultAcked:
		typ = EventCommandAcked
	case outbound.ResultDead:
		typ = EventCommandDead
	default:
		return nil
	}
	data := map[string]any{
		"command_id": cmd.ID,
		"type":       cmd.Type,
		"body":       cmd.Body,
		"seq":        cmd.Seq,
		"retries":    cmd.Retries,
	}
	if errMsg != "" {
		data["error"] = errMsg
	}
	ev := NewEvent(typ, cmd.RobotID, data)
	// 同一指令同一终态只推送一次
	ev.EventID = cmd.ID + ":" + status
	n.Publish(ev)
	return nil
}

// Stats 推送统计
type Stats struct {
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
	Queued  int   `json:"queued"`
}

func (n *Notifier) Stats() Stats {
	return Stats{
		Sent:    n.sent.Load(),
		Failed:  n.failed.Load(),
		Dropped: n.dropped.Load(),
		Queued:  len(n.ch),
	}
}
