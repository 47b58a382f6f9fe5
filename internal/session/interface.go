package session

import "time"

// Conn 可下发帧的链路（TCP 连接或串口）
type Conn interface {
	Write(b []byte) error
}

// Info 会话快照
type Info struct {
	RobotID     string    `json:"robot_id"`
	Transport   string    `json:"transport"` // tcp | serial
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
	Online      bool      `json:"online"`
}

// SessionManager 会话管理器接口，支持内存和Redis两种实现
type SessionManager interface {
	// Bind 绑定机器人到链路，重复绑定覆盖旧链路
	Bind(robotID, transport string, conn Conn)

	// Unbind 仅当当前绑定仍是 conn 时解除，避免误删重连后的新链路
	Unbind(robotID string, conn Conn)

	// OnSeen 收到任意上行帧时刷新
	OnSeen(robotID string, t time.Time)

	// GetConn 返回本实例上的链路
	GetConn(robotID string) (Conn, bool)

	IsOnline(robotID string, now time.Time) bool

	OnlineCount(now time.Time) int

	// List 全部已知会话（含离线）
	List(now time.Time) []Info
}
