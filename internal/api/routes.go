package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/drivelink/internal/api/middleware"
)

// Handlers 路由依赖；Commands 为 nil 时不注册下行接口
type Handlers struct {
	Robots   *RobotHandler
	Commands *CommandHandler
	Frames   *FrameHandler
}

// RegisterRoutes 注册 /api 路由组
func RegisterRoutes(r *gin.Engine, h Handlers, authCfg middleware.AuthConfig, rl middleware.RateLimitConfig, logger *zap.Logger) {
	if r == nil {
		return
	}

	api := r.Group("/api")
	if authCfg.Enabled {
		api.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("api authentication disabled - only for development!")
	}
	// 限流在认证之后，已认证请求按 key 计数
	api.Use(middleware.RateLimit(rl))

	endpoints := 0
	if h.Robots != nil {
		api.GET("/robots", h.Robots.ListRobots)
		api.GET("/robots/registered", h.Robots.ListRegistered)
		api.GET("/robots/:robotId", h.Robots.GetRobot)
		api.GET("/robots/:robotId/telemetry", h.Robots.GetTelemetry)
		api.GET("/robots/:robotId/frames", h.Robots.ListFrames)
		endpoints += 5
	}
	if h.Commands != nil {
		api.POST("/robots/:robotId/drive", h.Commands.Drive)
		api.POST("/robots/:robotId/sleep", h.Commands.Sleep)
		api.GET("/robots/:robotId/commands", h.Commands.ListRobotCommands)
		api.GET("/commands/:id", h.Commands.GetCommand)
		api.GET("/outbound/stats", h.Commands.Stats)
		endpoints += 5
	}
	if h.Frames != nil {
		api.POST("/frames/decode", h.Frames.Decode)
		api.POST("/frames/encode", h.Frames.Encode)
		endpoints += 2
	}

	logger.Info("api routes registered", zap.Int("endpoints", endpoints))
}
