package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/drivelink/internal/outbound"
	"github.com/taoyao-code/drivelink/internal/protocol/drive"
	"github.com/taoyao-code/drivelink/internal/session"
	"github.com/taoyao-code/drivelink/internal/storage"
)

// commandSubmitter 下行指令入队
type commandSubmitter interface {
	Submit(ctx context.Context, cmd *outbound.Command) error
	Stats(ctx context.Context) outbound.WorkerStats
}

// CommandHandler 下行控制
type CommandHandler struct {
	worker     commandSubmitter
	sess       session.SessionManager
	repo       storage.QueryRepo
	directions *drive.DirectionMap
	maxRetry   int
	logger     *zap.Logger
}

// NewCommandHandler 创建下行控制处理器
func NewCommandHandler(worker commandSubmitter, sess session.SessionManager, repo storage.QueryRepo, directions *drive.DirectionMap, maxRetry int, logger *zap.Logger) *CommandHandler {
	if directions == nil {
		directions = drive.DefaultDirectionMap()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandHandler{
		worker:     worker,
		sess:       sess,
		repo:       repo,
		directions: directions,
		maxRetry:   maxRetry,
		logger:     logger,
	}
}

// DriveRequest 运动指令；direction 可为方向码或名称（FORWARD 等）
type DriveRequest struct {
	Direction any `json:"direction" binding:"required"`
	Duration  int `json:"duration"`
	Speed     int `json:"speed"`
}

func (h *CommandHandler) directionCode(v any) (int, error) {
	switch d := v.(type) {
	case float64:
		if d != float64(int(d)) {
			return 0, fmt.Errorf("direction must be an integer")
		}
		return int(d), nil
	case string:
		code, ok := h.directions.Code(d)
		if !ok {
			return 0, fmt.Errorf("unknown direction %q", d)
		}
		return int(code), nil
	}
	return 0, fmt.Errorf("direction must be a number or a name")
}

// Drive 下发 DRIVE
// POST /api/robots/:robotId/drive
func (h *CommandHandler) Drive(c *gin.Context) {
	var req DriveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	dir, err := h.directionCode(req.Direction)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if dir < -128 || dir > 255 || req.Duration < 0 || req.Duration > 255 || req.Speed < -128 || req.Speed > 255 {
		respondError(c, http.StatusBadRequest, "direction/duration/speed out of range")
		return
	}
	h.submit(c, drive.Drive, fmt.Sprintf("%d,%d,%d", dir, req.Duration, req.Speed))
}

// Sleep 下发 SLEEP
// POST /api/robots/:robotId/sleep
func (h *CommandHandler) Sleep(c *gin.Context) {
	h.submit(c, drive.Sleep, "")
}

func (h *CommandHandler) submit(c *gin.Context, ct drive.CommandType, body string) {
	robotID := c.Param("robotId")
	if h.sess != nil && !h.sess.IsOnline(robotID, time.Now()) {
		respondError(c, http.StatusConflict, "robot offline", gin.H{"robot_id": robotID})
		return
	}
	cmd, err := outbound.NewCommand(robotID, ct, body, h.maxRetry)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.worker.Submit(c.Request.Context(), cmd); err != nil {
		h.logger.Error("submit command failed", zap.String("robot_id", robotID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	h.logger.Info("command queued",
		zap.String("cmd_id", cmd.ID),
		zap.String("robot_id", robotID),
		zap.String("type", cmd.Type),
		zap.String("body", cmd.Body))
	c.JSON(http.StatusAccepted, gin.H{
		"id":       cmd.ID,
		"robot_id": robotID,
		"type":     cmd.Type,
		"body":     cmd.Body,
		"priority": cmd.Priority,
	})
}

// GetCommand 指令状态
// GET /api/commands/:id
func (h *CommandHandler) GetCommand(c *gin.Context) {
	if h.repo == nil {
		respondError(c, http.StatusServiceUnavailable, "database disabled")
		return
	}
	cmd, err := h.repo.GetCommand(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		respondError(c, http.StatusNotFound, "command not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, cmd)
}

// ListRobotCommands 机器人最近指令
// GET /api/robots/:robotId/commands
func (h *CommandHandler) ListRobotCommands(c *gin.Context) {
	if h.repo == nil {
		respondError(c, http.StatusServiceUnavailable, "database disabled")
		return
	}
	robotID := c.Param("robotId")
	rows, err := h.repo.ListCommands(c.Request.Context(), robotID, intQuery(c, "limit", 50))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"robot_id": robotID, "commands": rows})
}

// Stats 下行统计
// GET /api/outbound/stats
func (h *CommandHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.worker.Stats(c.Request.Context()))
}
