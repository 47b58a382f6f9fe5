package notify

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dedupKeyPrefix = "drivelink:webhook:dedup:"

	// DefaultDedupTTL 默认去重窗口
	DefaultDedupTTL = time.Hour
)

// Deduper 基于 Redis SETNX 的事件去重，多实例共享
type Deduper struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewDeduper(client *redis.Client, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &Deduper{redis: client, ttl: ttl}
}

// IsDuplicate 首次出现返回 false 并占位
func (d *Deduper) IsDuplicate(ctx context.Context, eventID string) (bool, error) {
	if d == nil || d.redis == nil {
		return false, errors.New("deduper not initialized")
	}
	if eventID == "" {
		return false, errors.New("event_id is empty")
	}
	ok, err := d.redis.SetNX(ctx, dedupKeyPrefix+eventID, 1, d.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Forget 推送失败后释放占位，允许后续重投
func (d *Deduper) Forget(ctx context.Context, eventID string) error {
	if d == nil || d.redis == nil {
		return nil
	}
	return d.redis.Del(ctx, dedupKeyPrefix+eventID).Err()
}
