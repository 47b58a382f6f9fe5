package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RegisterHTTPRoutes 注册探针与详细健康报告
//
//	GET /health/live    进程存活
//	GET /health/ready   无 unhealthy 项即就绪
//	GET /health         全部检查项
//	GET /health/:name   单个检查项，如 /health/outbound
func RegisterHTTPRoutes(r *gin.Engine, aggregator *Aggregator) {
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"alive":  true,
			"uptime": aggregator.Uptime().Truncate(time.Second).String(),
		})
	})

	r.GET("/health/ready", func(c *gin.Context) {
		if !aggregator.Ready(c.Request.Context()) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": StatusUnhealthy, "ready": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "ready": true})
	})

	r.GET("/health", func(c *gin.Context) {
		report := aggregator.Report(c.Request.Context())
		c.JSON(statusCode(report.Status), report)
	})

	r.GET("/health/:name", func(c *gin.Context) {
		res, ok := aggregator.CheckOne(c.Request.Context(), c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown check"})
			return
		}
		c.JSON(statusCode(res.Status), res)
	})
}

// degraded 仍返回 200，表示可以服务
func statusCode(s Status) int {
	if s == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
