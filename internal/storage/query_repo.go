package storage

import (
	"context"

	"github.com/taoyao-code/drivelink/internal/storage/models"
)

// QueryRepo 控制 API 使用的只读查询抽象；写路径走 pg.Repository
type QueryRepo interface {
	// ListRobots 分页，按最近上行时间倒序
	ListRobots(ctx context.Context, limit, offset int) ([]models.Robot, error)
	// GetRobot 不存在返回 ErrNotFound
	GetRobot(ctx context.Context, robotID string) (*models.Robot, error)
	// ListTelemetry 最近 limit 条遥测，最新在前
	ListTelemetry(ctx context.Context, robotID string, limit int) ([]models.Telemetry, error)
	// ListFrameLogs 最近 limit 条帧日志，最新在前
	ListFrameLogs(ctx context.Context, robotID string, limit int) ([]models.FrameLog, error)
	// ListCommands 最近 limit 条下行指令记录
	ListCommands(ctx context.Context, robotID string, limit int) ([]models.Command, error)
	// GetCommand 不存在返回 ErrNotFound
	GetCommand(ctx context.Context, id string) (*models.Command, error)
}
