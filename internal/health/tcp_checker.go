package health

import (
	"context"
	"fmt"

	"github.com/taoyao-code/drivelink/internal/tcpserver"
)

type admissionSource interface {
	AdmissionStats() tcpserver.AdmissionStats
}

// NewTCPChecker 按连接占用率判定 TCP 网关：>80% 降级，>95% 不健康
func NewTCPChecker(server admissionSource) Checker {
	return CheckerFunc{ID: "tcp", Fn: func(context.Context) CheckResult {
		st := server.AdmissionStats()
		details := map[string]any{
			"active_connections": st.ActiveConnections,
			"max_connections":    st.MaxConnections,
			"rejected_full":      st.RejectedFull,
			"rejected_rate":      st.RejectedRate,
		}
		if st.MaxConnections <= 0 {
			return CheckResult{Status: StatusHealthy, Message: "no connection cap", Details: details}
		}

		used := float64(st.ActiveConnections) / float64(st.MaxConnections)
		details["utilization"] = fmt.Sprintf("%.1f%%", used*100)
		res := CheckResult{Status: StatusHealthy, Message: "ok", Details: details}
		switch {
		case used > 0.95:
			res.Status, res.Message = StatusUnhealthy, "connection cap nearly exhausted"
		case used > 0.8:
			res.Status, res.Message = StatusDegraded, "high connection usage"
		}
		return res
	}}
}
