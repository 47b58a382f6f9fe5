package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/drivelink/internal/metrics"
	padapter "github.com/taoyao-code/drivelink/internal/protocol/adapter"
	"github.com/taoyao-code/drivelink/internal/protocol/drive"
	"github.com/taoyao-code/drivelink/internal/session"
	"github.com/taoyao-code/drivelink/internal/tcpserver"
)

// 链路类型
const (
	TransportTCP    = "tcp"
	TransportSerial = "serial"
)

// handleTimeout 单帧上行处理（落库/缓存）超时
const handleTimeout = 5 * time.Second

// LinkEvents 链路上下线通知
type LinkEvents interface {
	RobotOnline(robotID, transport string)
	RobotOffline(robotID, transport string)
}

// Deps 上行处理依赖
// 通过 GetHandlers 延迟获取处理集合，以便在 DB/Redis 初始化后赋值。
type Deps struct {
	Sess        session.SessionManager
	Metrics     *metrics.AppMetrics
	GetHandlers func() *drive.Handlers
	Events      LinkEvents // 可为 nil
	Logger      *zap.Logger
}

func (d Deps) log() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d Deps) handlers() *drive.Handlers {
	if d.GetHandlers == nil {
		return nil
	}
	return d.GetHandlers()
}

func (d Deps) updateOnline() {
	if d.Metrics != nil {
		d.Metrics.OnlineGauge.Set(float64(d.Sess.OnlineCount(time.Now())))
	}
}

// bound 会话绑定后的统一收尾
func (d Deps) bound(robotID, transport string) {
	d.updateOnline()
	if d.Events != nil {
		d.Events.RobotOnline(robotID, transport)
	}
}

func (d Deps) unbound(robotID, transport string) {
	d.updateOnline()
	if d.Events != nil {
		d.Events.RobotOffline(robotID, transport)
	}
}

// newDriveAdapter 为一条链路构建适配器；robotID 由链路决定
func newDriveAdapter(robotID string, d Deps) *drive.Adapter {
	a := drive.NewAdapter()
	a.SetOnParse(d.Metrics.ObserveParse)

	route := func(p *drive.Packet) error {
		d.Sess.OnSeen(robotID, time.Now())
		if d.Metrics != nil {
			d.Metrics.FrameRouteTotal.WithLabelValues(p.CommandType().String()).Inc()
			if p.CommandType() == drive.Response && p.Length() == drive.TelemetryFrameSize {
				d.Metrics.TelemetryTotal.Inc()
			}
		}
		h := d.handlers()
		if h == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		if p.CommandType() == drive.Response {
			return h.HandleResponse(ctx, robotID, p)
		}
		return h.HandleGeneric(ctx, robotID, p)
	}
	a.Register(drive.Response, route)
	a.Register(drive.Drive, route)
	a.Register(drive.Sleep, route)
	return a
}

// NewConnHandler 构建 TCP 连接处理器：以远端地址作为机器人标识，
// 完成协议识别、会话绑定与指标上报。
func NewConnHandler(d Deps) func(*tcpserver.ConnContext) {
	return func(cc *tcpserver.ConnContext) {
		robotID := cc.RemoteAddr().String()
		mux := tcpserver.NewMux(d.log(), func(*tcpserver.ConnContext) padapter.Adapter {
			return newDriveAdapter(robotID, d)
		})
		mux.BindToConn(cc)

		d.Sess.Bind(robotID, TransportTCP, cc)
		d.bound(robotID, TransportTCP)
		d.log().Info("robot connected",
			zap.String("robot_id", robotID),
			zap.String("transport", TransportTCP),
			zap.Uint64("conn_id", cc.ID()))

		go func() {
			<-cc.Done()
			d.Sess.Unbind(robotID, cc)
			d.unbound(robotID, TransportTCP)
			st := cc.Stats()
			d.log().Info("robot disconnected",
				zap.String("robot_id", robotID),
				zap.Uint64("conn_id", cc.ID()),
				zap.Duration("connected_for", time.Since(st.ConnectedAt)),
				zap.Int64("bytes_in", st.BytesIn),
				zap.Int64("bytes_out", st.BytesOut),
				zap.Int64("frames_out", st.Writes))
		}()
	}
}
