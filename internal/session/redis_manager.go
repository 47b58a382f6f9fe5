package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisManager Redis版本的会话管理器，多实例部署时共享在线状态；
// 链路对象只存在于持有它的实例本地
type RedisManager struct {
	client   *redis.Client
	serverID string
	timeout  time.Duration

	// 本地链路缓存 connID -> conn
	mu        sync.RWMutex
	localConn map[string]Conn
}

type sessionData struct {
	RobotID     string    `json:"robot_id"`
	ConnID      string    `json:"conn_id"`
	ServerID    string    `json:"server_id"`
	Transport   string    `json:"transport"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
}

const (
	// session:robot:{robotID} -> sessionData JSON
	keyRobotPrefix = "drivelink:session:robot:"
	// session:server:{serverID}:conns -> Set[connID]
	keyServerConnsPrefix = "drivelink:session:server:"
)

// NewRedisManager 创建Redis会话管理器
func NewRedisManager(client *redis.Client, serverID string, timeout time.Duration) *RedisManager {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if serverID == "" {
		serverID = uuid.New().String()
	}
	return &RedisManager{
		client:    client,
		serverID:  serverID,
		timeout:   timeout,
		localConn: make(map[string]Conn),
	}
}

// Bind 绑定机器人到本实例的链路
func (m *RedisManager) Bind(robotID, transport string, conn Conn) {
	ctx := context.Background()
	connID := uuid.New().String()

	// 覆盖本实例上的旧链路
	if prev, err := m.getSessionData(ctx, robotID); err == nil && prev.ServerID == m.serverID && prev.ConnID != "" {
		m.mu.Lock()
		delete(m.localConn, prev.ConnID)
		m.mu.Unlock()
		m.client.SRem(ctx, m.serverConnsKey(), prev.ConnID)
	}

	m.mu.Lock()
	m.localConn[connID] = conn
	m.mu.Unlock()

	now := time.Now()
	_ = m.setSessionData(ctx, &sessionData{
		RobotID:     robotID,
		ConnID:      connID,
		ServerID:    m.serverID,
		Transport:   transport,
		ConnectedAt: now,
		LastSeen:    now,
	})
	m.client.SAdd(ctx, m.serverConnsKey(), connID)
}

// Unbind 仅当 Redis 中记录的仍是该链路时清除 connID
func (m *RedisManager) Unbind(robotID string, conn Conn) {
	ctx := context.Background()
	data, err := m.getSessionData(ctx, robotID)
	if err != nil {
		return
	}

	m.mu.Lock()
	cur, ok := m.localConn[data.ConnID]
	if ok && cur == conn {
		delete(m.localConn, data.ConnID)
	}
	m.mu.Unlock()
	if !ok || cur != conn {
		return
	}

	m.client.SRem(ctx, m.serverConnsKey(), data.ConnID)
	data.ConnID = ""
	data.ServerID = ""
	_ = m.setSessionData(ctx, data)
}

// OnSeen 刷新最近上行时间
func (m *RedisManager) OnSeen(robotID string, t time.Time) {
	ctx := context.Background()
	data, err := m.getSessionData(ctx, robotID)
	if err != nil {
		data = &sessionData{RobotID: robotID, ConnectedAt: t}
	}
	data.LastSeen = t
	_ = m.setSessionData(ctx, data)
}

// GetConn 获取链路（仅限本实例）
func (m *RedisManager) GetConn(robotID string) (Conn, bool) {
	data, err := m.getSessionData(context.Background(), robotID)
	if err != nil || data.ServerID != m.serverID {
		return nil, false
	}
	m.mu.RLock()
	conn, ok := m.localConn[data.ConnID]
	m.mu.RUnlock()
	return conn, ok
}

func (m *RedisManager) online(d *sessionData, now time.Time) bool {
	return d.ConnID != "" && now.Sub(d.LastSeen) <= m.timeout
}

// IsOnline 判断是否在线
func (m *RedisManager) IsOnline(robotID string, now time.Time) bool {
	data, err := m.getSessionData(context.Background(), robotID)
	if err != nil {
		return false
	}
	return m.online(data, now)
}

// OnlineCount 扫描全部会话计数
func (m *RedisManager) OnlineCount(now time.Time) int {
	count := 0
	for _, info := range m.List(now) {
		if info.Online {
			count++
		}
	}
	return count
}

// List 扫描全部会话
func (m *RedisManager) List(now time.Time) []Info {
	ctx := context.Background()
	var out []Info
	var cursor uint64
	for {
		keys, next, err := m.client.Scan(ctx, cursor, keyRobotPrefix+"*", 100).Result()
		if err != nil {
			break
		}
		for _, key := range keys {
			data, err := m.getSessionData(ctx, strings.TrimPrefix(key, keyRobotPrefix))
			if err != nil {
				continue
			}
			out = append(out, Info{
				RobotID:     data.RobotID,
				Transport:   data.Transport,
				ConnectedAt: data.ConnectedAt,
				LastSeen:    data.LastSeen,
				Online:      m.online(data, now),
			})
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RobotID < out[j].RobotID })
	return out
}

// Cleanup 清理本实例持有的链路记录（优雅关闭）
func (m *RedisManager) Cleanup() error {
	ctx := context.Background()
	m.mu.Lock()
	m.localConn = make(map[string]Conn)
	m.mu.Unlock()
	return m.client.Del(ctx, m.serverConnsKey()).Err()
}

// --- 辅助方法 ---

func (m *RedisManager) getSessionData(ctx context.Context, robotID string) (*sessionData, error) {
	val, err := m.client.Get(ctx, keyRobotPrefix+robotID).Result()
	if err != nil {
		return nil, err
	}
	var data sessionData
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (m *RedisManager) setSessionData(ctx context.Context, data *sessionData) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	// 过期时间为超时的2倍，离线记录保留一段时间供查询
	return m.client.Set(ctx, keyRobotPrefix+data.RobotID, b, m.timeout*2).Err()
}

func (m *RedisManager) serverConnsKey() string {
	return fmt.Sprintf("%s%s:conns", keyServerConnsPrefix, m.serverID)
}
