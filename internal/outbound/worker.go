package outbound

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/drivelink/internal/session"
)

// connGetter session.SessionManager 的子集
type connGetter interface {
	GetConn(robotID string) (session.Conn, bool)
}

// Recorder 可选的指令结果持久化
type Recorder interface {
	MarkCommand(ctx context.Context, cmd *Command, status, errMsg string) error
}

// Recorders 依次调用多个 Recorder，返回第一个错误
type Recorders []Recorder

func (rs Recorders) MarkCommand(ctx context.Context, cmd *Command, status, errMsg string) error {
	var first error
	for _, r := range rs {
		if err := r.MarkCommand(ctx, cmd, status, errMsg); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// 指令结果，同时作为指标 label
const (
	ResultSent       = "sent"
	ResultAcked      = "acked"
	ResultRetry      = "retry"
	ResultDead       = "dead"
	ResultWriteError = "write_error"
)

// Options Worker 参数
type Options struct {
	Throttle        time.Duration // 两条下行之间的最小间隔
	AckTimeout      time.Duration // <=0 表示不等待 ACK，写成功即完成
	PollInterval    time.Duration
	MaxRetry        int
	RetryDelay      time.Duration // 首次重试退避，之后翻倍，上限 maxRetryDelay
	BreakerFailures int
	BreakerCooldown time.Duration
}

const maxRetryDelay = 30 * time.Second

type pendingKey struct {
	robotID string
	seq     uint16
}

// pendingCmd 等待 ACK 的指令；announced 之前到达的 ACK 只置 acked，由发送方补记结果
type pendingCmd struct {
	cmd       *Command
	deadline  time.Time
	announced bool
	acked     bool
}

// Worker 下行指令消费者：分配序号、编码、写链路、等待 ACK、超时重试
type Worker struct {
	queue   Queue
	conns   connGetter
	logger  *zap.Logger
	opts    Options
	breaker *CircuitBreaker

	recorder Recorder
	onResult func(result string)

	mu      sync.Mutex
	seqs    map[string]uint16
	pending map[pendingKey]*pendingCmd

	// 仅消费协程访问
	held      []*Command // 本轮 drain 中未到重试时间的指令
	lastWrite time.Time

	sent    atomic.Int64
	acked   atomic.Int64
	retried atomic.Int64
	dead    atomic.Int64
}

// NewWorker 创建 Worker
func NewWorker(queue Queue, conns connGetter, opts Options, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.MaxRetry <= 0 {
		opts.MaxRetry = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	return &Worker{
		queue:   queue,
		conns:   conns,
		logger:  logger,
		opts:    opts,
		breaker: NewCircuitBreaker(opts.BreakerFailures, opts.BreakerCooldown),
		seqs:    make(map[string]uint16),
		pending: make(map[pendingKey]*pendingCmd),
	}
}

// SetRecorder 指令结果落库
func (w *Worker) SetRecorder(r Recorder) { w.recorder = r }

// SetOnResult 结果回调（用于指标）
func (w *Worker) SetOnResult(fn func(result string)) { w.onResult = fn }

// Breaker 返回熔断器
func (w *Worker) Breaker() *CircuitBreaker { return w.breaker }

// Submit 入队
func (w *Worker) Submit(ctx context.Context, cmd *Command) error {
	if cmd.MaxRetry <= 0 {
		cmd.MaxRetry = w.opts.MaxRetry
	}
	if err := w.queue.Enqueue(ctx, cmd); err != nil {
		return err
	}
	w.record(ctx, cmd, "queued", "")
	return nil
}

// Run 阻塞直到 ctx 取消
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("outbound worker started")
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("outbound worker stopped")
			return
		case <-ticker.C:
			w.sweepTimeouts(ctx, time.Now())
			w.drain(ctx)
		}
	}
}

// drain 取空队列或熔断为止；未到重试时间的指令暂存，结束时放回队列
func (w *Worker) drain(ctx context.Context) {
	defer w.releaseHeld(ctx)
	for ctx.Err() == nil {
		if !w.breaker.Allow() {
			return
		}
		more, err := w.processOne(ctx, time.Now())
		if err != nil {
			w.logger.Error("process outbound command failed", zap.Error(err))
			return
		}
		if !more {
			return
		}
	}
}

func (w *Worker) releaseHeld(ctx context.Context) {
	if len(w.held) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, cmd := range w.held {
		if err := w.queue.Enqueue(ctx, cmd); err != nil {
			w.logger.Error("requeue held command failed", zap.String("cmd_id", cmd.ID), zap.Error(err))
		}
	}
	w.held = w.held[:0]
}

// processOne 处理一条；队列为空时 more=false
func (w *Worker) processOne(ctx context.Context, now time.Time) (more bool, err error) {
	cmd, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, fmt.Errorf("dequeue: %w", err)
	}
	if cmd == nil {
		return false, nil
	}
	if now.Before(cmd.NextAttempt) {
		w.held = append(w.held, cmd)
		return true, nil
	}

	conn, ok := w.conns.GetConn(cmd.RobotID)
	if !ok {
		w.fail(ctx, cmd, "robot not connected", now)
		return true, nil
	}

	if !w.waitThrottle(ctx) {
		_ = w.queue.Enqueue(context.WithoutCancel(ctx), cmd)
		return false, nil
	}

	seq := w.nextSeq(cmd.RobotID)
	frame, err := cmd.Frame(seq)
	if err != nil {
		// 报文体在入队时已校验，这里失败说明数据被篡改，不再重试
		w.deadLetter(ctx, cmd, err.Error())
		return true, nil
	}
	cmd.Seq = seq
	cmd.UpdatedAt = now

	// 写之前登记，写完到记录 sent 之间到达的 ACK 也能匹配上
	key := pendingKey{cmd.RobotID, seq}
	var p *pendingCmd
	if w.opts.AckTimeout > 0 {
		p = &pendingCmd{cmd: cmd, deadline: now.Add(w.opts.AckTimeout)}
		w.mu.Lock()
		w.pending[key] = p
		w.mu.Unlock()
	}

	err = w.breaker.Call(func() error { return conn.Write(frame) })
	w.lastWrite = time.Now()
	if err != nil {
		if p != nil {
			w.mu.Lock()
			if w.pending[key] == p {
				delete(w.pending, key)
			}
			w.mu.Unlock()
		}
		w.emit(ResultWriteError)
		w.logger.Warn("write downlink failed",
			zap.String("cmd_id", cmd.ID),
			zap.String("robot_id", cmd.RobotID),
			zap.Uint16("seq", seq),
			zap.Error(err))
		if errors.Is(err, ErrCircuitOpen) {
			// 熔断不计入重试次数
			_ = w.queue.Enqueue(ctx, cmd)
			return false, nil
		}
		w.fail(ctx, cmd, "write failed: "+err.Error(), now)
		return true, nil
	}

	w.sent.Add(1)
	w.emit(ResultSent)
	w.logger.Debug("downlink sent",
		zap.String("cmd_id", cmd.ID),
		zap.String("robot_id", cmd.RobotID),
		zap.String("type", cmd.Type),
		zap.Uint16("seq", seq),
		zap.Binary("frame", frame))

	w.record(ctx, cmd, ResultSent, "")
	if p == nil {
		return true, nil
	}
	w.mu.Lock()
	p.announced = true
	acked := p.acked
	w.mu.Unlock()
	if acked {
		w.record(ctx, cmd, ResultAcked, "")
	}
	return true, nil
}

// waitThrottle 保证两次写链路间隔不小于 Throttle；ctx 取消返回 false
func (w *Worker) waitThrottle(ctx context.Context) bool {
	if w.opts.Throttle <= 0 || w.lastWrite.IsZero() {
		return true
	}
	wait := w.opts.Throttle - time.Since(w.lastWrite)
	if wait <= 0 {
		return true
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// nextSeq 每个机器人独立的16位序号，自然回绕
func (w *Worker) nextSeq(robotID string) uint16 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seqs[robotID]++
	return w.seqs[robotID]
}

// Ack 上行 RESPONSE+ACK 确认下行指令；无匹配时返回 false
func (w *Worker) Ack(robotID string, seq uint16) bool {
	w.mu.Lock()
	p, ok := w.pending[pendingKey{robotID, seq}]
	announced := false
	if ok {
		delete(w.pending, pendingKey{robotID, seq})
		announced = p.announced
		if !announced {
			p.acked = true
		}
	}
	w.mu.Unlock()
	if !ok {
		return false
	}
	w.acked.Add(1)
	w.emit(ResultAcked)
	if announced {
		w.record(context.Background(), p.cmd, ResultAcked, "")
	}
	return true
}

// sweepTimeouts 超时未确认的指令重新入队
func (w *Worker) sweepTimeouts(ctx context.Context, now time.Time) {
	var expired []*Command
	w.mu.Lock()
	for k, p := range w.pending {
		if now.After(p.deadline) {
			expired = append(expired, p.cmd)
			delete(w.pending, k)
		}
	}
	w.mu.Unlock()
	for _, cmd := range expired {
		w.logger.Warn("ack timeout",
			zap.String("cmd_id", cmd.ID),
			zap.String("robot_id", cmd.RobotID),
			zap.Uint16("seq", cmd.Seq))
		w.fail(ctx, cmd, "ack timeout", now)
	}
}

// fail 未超过上限则退避后重新入队，否则进死信
func (w *Worker) fail(ctx context.Context, cmd *Command, reason string, now time.Time) {
	cmd.Retries++
	cmd.UpdatedAt = now
	if cmd.Retries >= cmd.MaxRetry {
		w.deadLetter(ctx, cmd, reason)
		return
	}
	w.retried.Add(1)
	w.emit(ResultRetry)
	cmd.NextAttempt = now.Add(w.retryDelay(cmd.Retries))
	if err := w.queue.Enqueue(ctx, cmd); err != nil {
		w.logger.Error("requeue failed", zap.String("cmd_id", cmd.ID), zap.Error(err))
	}
}

// retryDelay 第 n 次重试的退避：RetryDelay * 2^(n-1)，不超过 maxRetryDelay
func (w *Worker) retryDelay(n int) time.Duration {
	d := w.opts.RetryDelay
	for i := 1; i < n && d < maxRetryDelay; i++ {
		d *= 2
	}
	return min(d, maxRetryDelay)
}

func (w *Worker) deadLetter(ctx context.Context, cmd *Command, reason string) {
	w.dead.Add(1)
	w.emit(ResultDead)
	w.logger.Warn("command moved to dead letter",
		zap.String("cmd_id", cmd.ID),
		zap.String("robot_id", cmd.RobotID),
		zap.Int("retries", cmd.Retries),
		zap.String("reason", reason))
	if err := w.queue.DeadLetter(ctx, cmd, reason); err != nil {
		w.logger.Error("dead letter failed", zap.String("cmd_id", cmd.ID), zap.Error(err))
	}
	w.record(ctx, cmd, ResultDead, reason)
}

func (w *Worker) emit(result string) {
	if w.onResult != nil {
		w.onResult(result)
	}
}

func (w *Worker) record(ctx context.Context, cmd *Command, status, errMsg string) {
	if w.recorder == nil {
		return
	}
	if err := w.recorder.MarkCommand(ctx, cmd, status, errMsg); err != nil {
		w.logger.Warn("record command failed", zap.String("cmd_id", cmd.ID), zap.Error(err))
	}
}

// WorkerStats 统计
type WorkerStats struct {
	Sent    int64      `json:"sent"`
	Acked   int64      `json:"acked"`
	Retried int64      `json:"retried"`
	Dead    int64      `json:"dead"`
	Pending int        `json:"awaiting_ack"`
	Breaker string     `json:"breaker"`
	Queue   QueueStats `json:"queue"`
}

// Stats 获取统计信息
func (w *Worker) Stats(ctx context.Context) WorkerStats {
	qs, _ := w.queue.Stats(ctx)
	w.mu.Lock()
	pending := len(w.pending)
	w.mu.Unlock()
	return WorkerStats{
		Sent:    w.sent.Load(),
		Acked:   w.acked.Load(),
		Retried: w.retried.Load(),
		Dead:    w.dead.Load(),
		Pending: pending,
		Breaker: w.breaker.State().String(),
		Queue:   qs,
	}
}
