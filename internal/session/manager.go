package session

import (
	"sort"
	"sync"
	"time"
)

type entry struct {
	info Info
	conn Conn
}

// Manager 内存会话表
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry
	timeout time.Duration
}

func New(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Manager{entries: make(map[string]*entry), timeout: timeout}
}

// Bind 绑定机器人到链路
func (m *Manager) Bind(robotID, transport string, conn Conn) {
	now := time.Now()
	m.mu.Lock()
	m.entries[robotID] = &entry{
		info: Info{RobotID: robotID, Transport: transport, ConnectedAt: now, LastSeen: now},
		conn: conn,
	}
	m.mu.Unlock()
}

// Unbind 解除绑定，保留最近在线时间供查询
func (m *Manager) Unbind(robotID string, conn Conn) {
	m.mu.Lock()
	if e, ok := m.entries[robotID]; ok && e.conn == conn {
		e.conn = nil
	}
	m.mu.Unlock()
}

// OnSeen 刷新最近上行时间
func (m *Manager) OnSeen(robotID string, t time.Time) {
	m.mu.Lock()
	e, ok := m.entries[robotID]
	if !ok {
		e = &entry{info: Info{RobotID: robotID, ConnectedAt: t}}
		m.entries[robotID] = e
	}
	e.info.LastSeen = t
	m.mu.Unlock()
}

// GetConn 返回绑定的链路
func (m *Manager) GetConn(robotID string) (Conn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[robotID]
	if !ok || e.conn == nil {
		return nil, false
	}
	return e.conn, true
}

func (m *Manager) online(e *entry, now time.Time) bool {
	return e.conn != nil && now.Sub(e.info.LastSeen) <= m.timeout
}

// IsOnline 有链路且未超时
func (m *Manager) IsOnline(robotID string, now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[robotID]
	return ok && m.online(e, now)
}

// OnlineCount 返回当前在线数量
func (m *Manager) OnlineCount(now time.Time) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, e := range m.entries {
		if m.online(e, now) {
			count++
		}
	}
	return count
}

// List 按 robotID 排序
func (m *Manager) List(now time.Time) []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.entries))
	for _, e := range m.entries {
		info := e.info
		info.Online = m.online(e, now)
		out = append(out, info)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].RobotID < out[j].RobotID })
	return out
}
