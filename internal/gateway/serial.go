package gateway

import (
	"context"

	"go.uber.org/zap"

	"github.com/taoyao-code/drivelink/internal/seriallink"
)

// ServeSerial 串口直连：端口路径即机器人标识，阻塞到链路关闭
func ServeSerial(ctx context.Context, link *seriallink.Link, d Deps) error {
	robotID := link.Path()
	link.SetProcessor(newDriveAdapter(robotID, d))
	if d.Metrics != nil {
		link.SetOnRecvBytes(func(n int) { d.Metrics.SerialBytesReceived.Add(float64(n)) })
	}

	d.Sess.Bind(robotID, TransportSerial, link)
	d.bound(robotID, TransportSerial)
	d.log().Info("robot connected", zap.String("robot_id", robotID), zap.String("transport", TransportSerial))
	defer func() {
		d.Sess.Unbind(robotID, link)
		d.unbound(robotID, TransportSerial)
		d.log().Info("robot disconnected", zap.String("robot_id", robotID), zap.String("transport", TransportSerial))
	}()

	return link.Run(ctx)
}
