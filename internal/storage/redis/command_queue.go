package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taoyao-code/drivelink/internal/outbound"
)

const (
	commandQueueKey = KeyPrefix + "outbound:queue" // 待发送（Sorted Set，按优先级+时间排序）
	commandDeadKey  = KeyPrefix + "outbound:dead"  // 死信（List）
)

// CommandQueue Redis下行队列，实现 outbound.Queue，多实例共享
type CommandQueue struct {
	client *Client
}

var _ outbound.Queue = (*CommandQueue)(nil)

// NewCommandQueue 创建Redis下行队列
func NewCommandQueue(client *Client) *CommandQueue {
	return &CommandQueue{client: client}
}

// commandScore 优先级数值小者先出；同优先级按创建时间（毫秒）先进先出
func commandScore(cmd *outbound.Command) float64 {
	return float64(cmd.Priority)*1e13 + float64(cmd.CreatedAt.UnixMilli())
}

// Enqueue 入队
func (q *CommandQueue) Enqueue(ctx context.Context, cmd *outbound.Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	return q.client.ZAdd(ctx, commandQueueKey, redis.Z{
		Score:  commandScore(cmd),
		Member: cmd.ID + ":" + string(data),
	}).Err()
}

// Dequeue ZPOPMIN 原子出队，队列为空返回 (nil, nil)
func (q *CommandQueue) Dequeue(ctx context.Context) (*outbound.Command, error) {
	result, err := q.client.ZPopMin(ctx, commandQueueKey, 1).Result()
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, nil
	}
	member, ok := result[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected member type %T", result[0].Member)
	}
	cmd, err := parseMember(member)
	if err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}
	return cmd, nil
}

// DeadLetter 写入死信列表
func (q *CommandQueue) DeadLetter(ctx context.Context, cmd *outbound.Command, reason string) error {
	data, err := json.Marshal(outbound.DeadCommand{Command: cmd, Reason: reason, FailedAt: time.Now()})
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, commandDeadKey, data).Err()
}

// Stats 队列统计
func (q *CommandQueue) Stats(ctx context.Context) (outbound.QueueStats, error) {
	pipe := q.client.Pipeline()
	pending := pipe.ZCard(ctx, commandQueueKey)
	dead := pipe.LLen(ctx, commandDeadKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return outbound.QueueStats{}, err
	}
	return outbound.QueueStats{Pending: pending.Val(), Dead: dead.Val()}, nil
}

// Dead 最近的死信记录，最新在前
func (q *CommandQueue) Dead(ctx context.Context, limit int64) ([]outbound.DeadCommand, error) {
	if limit <= 0 {
		limit = 50
	}
	vals, err := q.client.LRange(ctx, commandDeadKey, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]outbound.DeadCommand, 0, len(vals))
	for _, v := range vals {
		var d outbound.DeadCommand
		if err := json.Unmarshal([]byte(v), &d); err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// parseMember 格式 "ID:JSON"
func parseMember(member string) (*outbound.Command, error) {
	_, data, ok := strings.Cut(member, ":")
	if !ok {
		return nil, fmt.Errorf("invalid member format")
	}
	var cmd outbound.Command
	if err := json.Unmarshal([]byte(data), &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}
