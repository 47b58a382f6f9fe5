package tcpserver

import (
	"go.uber.org/zap"

	padapter "github.com/taoyao-code/drivelink/internal/protocol/adapter"
)

// AdapterFactory 每个连接一个适配器实例（解码器有状态）
type AdapterFactory func(cc *ConnContext) padapter.Adapter

// Mux 首帧初判：命中的适配器绑定到连接，之后所有字节直通该适配器
type Mux struct {
	factories []AdapterFactory
	logger    *zap.Logger
}

func NewMux(logger *zap.Logger, factories ...AdapterFactory) *Mux {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mux{factories: factories, logger: logger}
}

// BindToConn 为连接安装 onRead
func (m *Mux) BindToConn(cc *ConnContext) {
	adapters := make([]padapter.Adapter, 0, len(m.factories))
	for _, f := range m.factories {
		adapters = append(adapters, f(cc))
	}

	var bound padapter.Adapter
	var pending []byte
	cc.SetOnRead(func(p []byte) {
		if bound == nil {
			pending = append(pending, p...)
			for _, a := range adapters {
				if a.Sniff(pending) {
					bound = a
					break
				}
			}
			if bound == nil {
				// 帧头不足或前缀是噪声：交给第一个适配器自行重同步
				if len(pending) < 16 {
					return
				}
				m.logger.Debug("no adapter matched prefix, fallback",
					zap.String("remote_addr", cc.RemoteAddr().String()),
					zap.Int("buffered", len(pending)))
				if len(adapters) == 0 {
					pending = nil
					return
				}
				bound = adapters[0]
			}
			p, pending = pending, nil
		}
		if err := bound.ProcessBytes(p); err != nil {
			m.logger.Warn("process bytes failed",
				zap.String("remote_addr", cc.RemoteAddr().String()),
				zap.Error(err))
		}
	})
}
