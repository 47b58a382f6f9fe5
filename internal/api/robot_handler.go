package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/drivelink/internal/session"
	"github.com/taoyao-code/drivelink/internal/storage"
	redisstore "github.com/taoyao-code/drivelink/internal/storage/redis"
)

// telemetryReader 最新遥测缓存
type telemetryReader interface {
	GetTelemetry(ctx context.Context, robotID string) (*redisstore.CachedTelemetry, error)
}

// RobotHandler 机器人只读查询；repo/cache 未启用时为 nil
type RobotHandler struct {
	sess   session.SessionManager
	repo   storage.QueryRepo
	cache  telemetryReader
	logger *zap.Logger
}

// NewRobotHandler 创建机器人查询处理器
func NewRobotHandler(sess session.SessionManager, repo storage.QueryRepo, cache telemetryReader, logger *zap.Logger) *RobotHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RobotHandler{sess: sess, repo: repo, cache: cache, logger: logger}
}

func intQuery(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// ListRobots 会话列表（含离线）
// GET /api/robots
func (h *RobotHandler) ListRobots(c *gin.Context) {
	now := time.Now()
	list := h.sess.List(now)
	if list == nil {
		list = []session.Info{}
	}
	c.JSON(http.StatusOK, gin.H{
		"robots":       list,
		"online_count": h.sess.OnlineCount(now),
	})
}

// ListRegistered 数据库中登记过的机器人
// GET /api/robots/registered
func (h *RobotHandler) ListRegistered(c *gin.Context) {
	if h.repo == nil {
		respondError(c, http.StatusServiceUnavailable, "database disabled")
		return
	}
	list, err := h.repo.ListRobots(c.Request.Context(), intQuery(c, "limit", 100), intQuery(c, "offset", 0))
	if err != nil {
		h.logger.Error("list robots failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"robots": list})
}

// GetRobot 单个机器人的会话状态与登记信息
// GET /api/robots/:robotId
func (h *RobotHandler) GetRobot(c *gin.Context) {
	robotID := c.Param("robotId")
	now := time.Now()

	var info *session.Info
	for _, s := range h.sess.List(now) {
		if s.RobotID == robotID {
			info = &s
			break
		}
	}

	resp := gin.H{
		"robot_id": robotID,
		"online":   h.sess.IsOnline(robotID, now),
		"session":  info,
	}
	if h.repo != nil {
		rec, err := h.repo.GetRobot(c.Request.Context(), robotID)
		switch {
		case err == nil:
			resp["record"] = rec
		case !errors.Is(err, storage.ErrNotFound):
			respondError(c, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if info == nil && resp["record"] == nil {
		respondError(c, http.StatusNotFound, "robot not found")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetTelemetry 最新遥测；history>0 时附带数据库历史
// GET /api/robots/:robotId/telemetry?history=N
func (h *RobotHandler) GetTelemetry(c *gin.Context) {
	robotID := c.Param("robotId")
	ctx := c.Request.Context()
	resp := gin.H{"robot_id": robotID}

	if h.cache != nil {
		latest, err := h.cache.GetTelemetry(ctx, robotID)
		if err != nil {
			h.logger.Warn("read telemetry cache failed", zap.String("robot_id", robotID), zap.Error(err))
		} else if latest != nil {
			resp["latest"] = latest
		}
	}

	history := intQuery(c, "history", 0)
	if (resp["latest"] == nil || history > 0) && h.repo != nil {
		n := history
		if n == 0 {
			n = 1
		}
		rows, err := h.repo.ListTelemetry(ctx, robotID, n)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err.Error())
			return
		}
		if resp["latest"] == nil && len(rows) > 0 {
			resp["latest"] = rows[0]
		}
		if history > 0 {
			resp["history"] = rows
		}
	}

	if resp["latest"] == nil {
		respondError(c, http.StatusNotFound, "no telemetry")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListFrames 最近帧日志
// GET /api/robots/:robotId/frames?limit=N
func (h *RobotHandler) ListFrames(c *gin.Context) {
	if h.repo == nil {
		respondError(c, http.StatusServiceUnavailable, "database disabled")
		return
	}
	robotID := c.Param("robotId")
	rows, err := h.repo.ListFrameLogs(c.Request.Context(), robotID, intQuery(c, "limit", 50))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"robot_id": robotID, "frames": rows})
}
