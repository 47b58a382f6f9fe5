package outbound

import "github.com/taoyao-code/drivelink/internal/protocol/drive"

// 数值越小优先级越高（Redis ZPOPMIN 取最小 score）
const (
	// PriorityEmergency 停车/休眠，必须插队
	PriorityEmergency = 1
	// PriorityHigh 运动指令
	PriorityHigh = 2
	// PriorityNormal 其它
	PriorityNormal = 3
)

// PriorityFor 按指令类型返回优先级
func PriorityFor(cmd drive.CommandType) int {
	switch cmd {
	case drive.Sleep:
		return PriorityEmergency
	case drive.Drive:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}
