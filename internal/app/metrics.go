package app

import (
	"net/http"

	cfgpkg "github.com/taoyao-code/drivelink/internal/config"
	"github.com/taoyao-code/drivelink/internal/metrics"
)

// NewMetrics 业务指标总是采集；未启用暴露时 handler 为 nil，HTTP 层不挂载指标路由
func NewMetrics(cfg cfgpkg.MetricsConfig) (*metrics.AppMetrics, http.Handler) {
	reg := metrics.NewRegistry()
	appm := metrics.NewAppMetrics(reg)
	if !cfg.Enable {
		return appm, nil
	}
	return appm, metrics.Handler(reg)
}
