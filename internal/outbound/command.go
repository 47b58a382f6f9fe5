package outbound

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/taoyao-code/drivelink/internal/protocol/drive"
)

// ErrEmptyRobotID 缺少目标机器人
var ErrEmptyRobotID = errors.New("empty robot id")

// Command 一条下行指令
type Command struct {
	ID        string    `json:"id"`
	RobotID   string    `json:"robot_id"`
	Type      string    `json:"type"` // DRIVE | SLEEP
	Body      string    `json:"body"` // 报文体文本，SLEEP 为空
	Priority  int       `json:"priority"`
	Retries   int       `json:"retries"`
	MaxRetry  int       `json:"max_retry"`
	Seq       uint16    `json:"seq"` // 最近一次发送使用的序号
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// NextAttempt 重试退避到期时间，零值表示立即可发
	NextAttempt time.Time `json:"next_attempt,omitempty"`
}

// NewCommand 构造指令并预先校验报文体，非法文本在入队前即被拒绝
func NewCommand(robotID string, cmd drive.CommandType, body string, maxRetry int) (*Command, error) {
	if robotID == "" {
		return nil, ErrEmptyRobotID
	}
	if _, err := drive.Build(cmd, 0, false, body); err != nil {
		return nil, err
	}
	if cmd == drive.Sleep {
		body = ""
	}
	now := time.Now()
	return &Command{
		ID:        uuid.New().String(),
		RobotID:   robotID,
		Type:      cmd.String(),
		Body:      body,
		Priority:  PriorityFor(cmd),
		MaxRetry:  maxRetry,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CommandType 解析 Type 字段
func (c *Command) CommandType() (drive.CommandType, bool) {
	return drive.ParseCommandType(c.Type)
}

// Frame 以给定序号编码下行帧
func (c *Command) Frame(seq uint16) ([]byte, error) {
	ct, ok := c.CommandType()
	if !ok {
		return nil, errors.New("unknown command type: " + c.Type)
	}
	return drive.Build(ct, seq, false, c.Body)
}
