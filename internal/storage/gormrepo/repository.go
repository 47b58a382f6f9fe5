package gormrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/taoyao-code/drivelink/internal/storage"
	"github.com/taoyao-code/drivelink/internal/storage/models"
)

const defaultLimit = 50

// Open 复用 pgx 连接池构建 *gorm.DB，避免维护两套连接
func Open(pool *pgxpool.Pool, log *zap.Logger) (*gorm.DB, error) {
	level := logger.Silent
	if log != nil && log.Core().Enabled(zap.DebugLevel) {
		level = logger.Info
	}
	return gorm.Open(postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pool)}), &gorm.Config{
		Logger:                 logger.Default.LogMode(level),
		SkipDefaultTransaction: true,
	})
}

// Repository 基于 GORM 的 QueryRepo 实现。
type Repository struct {
	db *gorm.DB
}

// New 返回一个使用给定 *gorm.DB 的 QueryRepo 实例。
func New(db *gorm.DB) storage.QueryRepo {
	return &Repository{db: db}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return defaultLimit
	}
	return limit
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

// ListRobots 分页返回机器人列表。
func (r *Repository) ListRobots(ctx context.Context, limit, offset int) ([]models.Robot, error) {
	var robots []models.Robot
	q := r.db.WithContext(ctx).Order("last_seen_at DESC NULLS LAST").Order("id DESC").Limit(clampLimit(limit))
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&robots).Error; err != nil {
		return nil, err
	}
	return robots, nil
}

// GetRobot 通过 robot_id 查询。
func (r *Repository) GetRobot(ctx context.Context, robotID string) (*models.Robot, error) {
	var robot models.Robot
	if err := r.db.WithContext(ctx).Where("robot_id = ?", robotID).First(&robot).Error; err != nil {
		return nil, notFound(err)
	}
	return &robot, nil
}

// robotScope 通过子查询按 robot_id 过滤
func (r *Repository) robotScope(robotID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("robot_db_id = (?)", r.db.Model(&models.Robot{}).Select("id").Where("robot_id = ?", robotID))
	}
}

// ListTelemetry 最近遥测。
func (r *Repository) ListTelemetry(ctx context.Context, robotID string, limit int) ([]models.Telemetry, error) {
	var rows []models.Telemetry
	err := r.db.WithContext(ctx).
		Scopes(r.robotScope(robotID)).
		Order("received_at DESC").Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&rows).Error
	return rows, err
}

// ListFrameLogs 最近帧日志。
func (r *Repository) ListFrameLogs(ctx context.Context, robotID string, limit int) ([]models.FrameLog, error) {
	var rows []models.FrameLog
	err := r.db.WithContext(ctx).
		Scopes(r.robotScope(robotID)).
		Order("created_at DESC").Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&rows).Error
	return rows, err
}

// ListCommands 最近下行指令。
func (r *Repository) ListCommands(ctx context.Context, robotID string, limit int) ([]models.Command, error) {
	var rows []models.Command
	err := r.db.WithContext(ctx).
		Where("robot_id = ?", robotID).
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&rows).Error
	return rows, err
}

// GetCommand 按指令 ID 查询。
func (r *Repository) GetCommand(ctx context.Context, id string) (*models.Command, error) {
	var cmd models.Command
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&cmd).Error; err != nil {
		return nil, notFound(err)
	}
	return &cmd, nil
}
