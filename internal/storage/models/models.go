package models

import "time"

// 与 migrate/sql 下的表结构保持一致；不使用 gorm.Model

// Robot 映射 robots 表
type Robot struct {
	ID         int64      `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	RobotID    string     `gorm:"column:robot_id;type:text;not null;uniqueIndex" json:"robot_id"`
	LastSeenAt *time.Time `gorm:"column:last_seen_at" json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Robot) TableName() string { return "robots" }

// FrameLog 映射 frame_logs 表
type FrameLog struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RobotDBID int64     `gorm:"column:robot_db_id;not null" json:"-"`
	Seq       int32     `gorm:"column:seq" json:"seq"`
	Cmd       string    `gorm:"column:cmd" json:"cmd"`
	Direction int16     `gorm:"column:direction" json:"direction"` // 0 下行 1 上行
	Body      string    `gorm:"column:body" json:"body"`
	Ack       bool      `gorm:"column:ack" json:"ack"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (FrameLog) TableName() string { return "frame_logs" }

// Telemetry 映射 telemetry 表
type Telemetry struct {
	ID                int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RobotDBID         int64     `gorm:"column:robot_db_id;not null" json:"-"`
	Seq               int32     `gorm:"column:seq" json:"seq"`
	LastPacketCounter int32     `gorm:"column:last_packet_counter" json:"last_packet_counter"`
	CurrentGrade      int32     `gorm:"column:current_grade" json:"current_grade"`
	HitCount          int32     `gorm:"column:hit_count" json:"hit_count"`
	LastCommand       int16     `gorm:"column:last_command" json:"last_command"`
	LastCommandValue  int16     `gorm:"column:last_command_value" json:"last_command_value"`
	LastCommandSpeed  int16     `gorm:"column:last_command_speed" json:"last_command_speed"`
	ReceivedAt        time.Time `gorm:"column:received_at" json:"received_at"`
}

func (Telemetry) TableName() string { return "telemetry" }

// Command 映射 commands 表
type Command struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	RobotID   string    `gorm:"column:robot_id" json:"robot_id"`
	Type      string    `gorm:"column:type" json:"type"`
	Body      string    `gorm:"column:body" json:"body"`
	Priority  int32     `gorm:"column:priority" json:"priority"`
	Seq       int32     `gorm:"column:seq" json:"seq"`
	Retries   int32     `gorm:"column:retries" json:"retries"`
	Status    string    `gorm:"column:status" json:"status"`
	LastError *string   `gorm:"column:last_error" json:"last_error,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Command) TableName() string { return "commands" }
