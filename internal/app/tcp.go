package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/drivelink/internal/config"
	"github.com/taoyao-code/drivelink/internal/metrics"
	"github.com/taoyao-code/drivelink/internal/tcpserver"
)

// NewTCPServer 接入计数与上行字节计数挂到 Prometheus
func NewTCPServer(cfg cfgpkg.TCPConfig, appm *metrics.AppMetrics, log *zap.Logger) *tcpserver.Server {
	s := tcpserver.New(cfg, log)
	if appm != nil {
		s.SetMetricsCallbacks(
			func() { appm.TCPAccepted.Inc() },
			func(n int) { appm.TCPBytesReceived.Add(float64(n)) },
		)
	}
	return s
}
