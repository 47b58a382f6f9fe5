package outbound

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Queue 下行指令队列，内存与 Redis 两种实现
type Queue interface {
	Enqueue(ctx context.Context, cmd *Command) error
	// Dequeue 取优先级最高的一条，队列为空时返回 (nil, nil)
	Dequeue(ctx context.Context) (*Command, error)
	// DeadLetter 超过重试上限的指令
	DeadLetter(ctx context.Context, cmd *Command, reason string) error
	Stats(ctx context.Context) (QueueStats, error)
}

// QueueStats 队列统计
type QueueStats struct {
	Pending int64 `json:"pending"`
	Dead    int64 `json:"dead"`
}

// DeadCommand 死信记录
type DeadCommand struct {
	Command  *Command  `json:"command"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// MemoryQueue 单实例内存队列
type MemoryQueue struct {
	mu   sync.Mutex
	h    cmdHeap
	seq  uint64
	dead []DeadCommand
}

func NewMemoryQueue() *MemoryQueue { return &MemoryQueue{} }

func (q *MemoryQueue) Enqueue(_ context.Context, cmd *Command) error {
	q.mu.Lock()
	q.seq++
	heap.Push(&q.h, heapItem{cmd: cmd, order: q.seq})
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) Dequeue(_ context.Context) (*Command, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.h.Len() == 0 {
		return nil, nil
	}
	return heap.Pop(&q.h).(heapItem).cmd, nil
}

func (q *MemoryQueue) DeadLetter(_ context.Context, cmd *Command, reason string) error {
	q.mu.Lock()
	q.dead = append(q.dead, DeadCommand{Command: cmd, Reason: reason, FailedAt: time.Now()})
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) Stats(_ context.Context) (QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{Pending: int64(q.h.Len()), Dead: int64(len(q.dead))}, nil
}

// Dead 死信快照
func (q *MemoryQueue) Dead() []DeadCommand {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadCommand(nil), q.dead...)
}

type heapItem struct {
	cmd   *Command
	order uint64
}

// cmdHeap 优先级升序，同优先级按入队顺序
type cmdHeap []heapItem

func (h cmdHeap) Len() int { return len(h) }
func (h cmdHeap) Less(i, j int) bool {
	if h[i].cmd.Priority != h[j].cmd.Priority {
		return h[i].cmd.Priority < h[j].cmd.Priority
	}
	return h[i].order < h[j].order
}
func (h cmdHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *cmdHeap) Push(x any)   { *h = append(*h, x.(heapItem)) }
func (h *cmdHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}
