package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taoyao-code/drivelink/internal/protocol/drive"
)

const telemetryKeyPrefix = KeyPrefix + "telemetry:"

// CachedTelemetry 最新一帧遥测
type CachedTelemetry struct {
	RobotID    string              `json:"robot_id"`
	Seq        uint16              `json:"seq"`
	Telemetry  drive.TelemetryBody `json:"telemetry"`
	ReceivedAt time.Time           `json:"received_at"`
}

// TelemetryCache 按机器人缓存最新遥测
type TelemetryCache struct {
	client *Client
	ttl    time.Duration
}

func NewTelemetryCache(client *Client, ttl time.Duration) *TelemetryCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TelemetryCache{client: client, ttl: ttl}
}

// PutTelemetry 覆盖写入
func (c *TelemetryCache) PutTelemetry(ctx context.Context, robotID string, seq uint16, t drive.TelemetryBody) error {
	b, err := json.Marshal(CachedTelemetry{RobotID: robotID, Seq: seq, Telemetry: t, ReceivedAt: time.Now()})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, telemetryKeyPrefix+robotID, b, c.ttl).Err()
}

// GetTelemetry 未命中返回 (nil, nil)
func (c *TelemetryCache) GetTelemetry(ctx context.Context, robotID string) (*CachedTelemetry, error) {
	val, err := c.client.Get(ctx, telemetryKeyPrefix+robotID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out CachedTelemetry
	if err := json.Unmarshal(val, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
