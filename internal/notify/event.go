package notify

import (
	"time"

	"github.com/google/uuid"
)

// EventType 推送事件类型
type EventType string

const (
	EventRobotOnline  EventType = "robot.online"
	EventRobotOffline EventType = "robot.offline"
	EventCommandAcked EventType = "command.acked"
	EventCommandDead  EventType = "command.dead"
)

// Event 推送给外部系统的机器人事件
type Event struct {
	EventID   string         `json:"event_id"`
	Event     EventType      `json:"event"`
	RobotID   string         `json:"robot_id"`
	Timestamp int64          `json:"timestamp"` // 毫秒
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent 生成带随机 ID 的事件
func NewEvent(typ EventType, robotID string, data map[string]any) *Event {
	return &Event{
		EventID:   uuid.New().String(),
		Event:     typ,
		RobotID:   robotID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}
