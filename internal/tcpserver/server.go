package tcpserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/drivelink/internal/config"
)

// Server 机器人 TCP 接入网关
type Server struct {
	cfg    cfgpkg.TCPConfig
	logger *zap.Logger

	mu    sync.Mutex
	ln    net.Listener
	conns map[uint64]*ConnContext

	wg         sync.WaitGroup
	stopC      chan struct{}
	stopOnce   sync.Once
	nextConnID uint64

	gate *admission

	connHandler func(*ConnContext)
	// 可选指标回调
	onAccept    func()
	onRecvBytes func(n int)
}

// New 创建 TCP 网关
func New(cfg cfgpkg.TCPConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		conns:  make(map[uint64]*ConnContext),
		stopC:  make(chan struct{}),
		gate:   newAdmission(cfg.MaxConnections, 100*time.Millisecond, cfg.AcceptRate, cfg.AcceptBurst),
	}
}

func (s *Server) writeTimeout() time.Duration {
	if s.cfg.WriteTimeout > 0 {
		return s.cfg.WriteTimeout
	}
	return 5 * time.Second
}

// SetConnHandler 新连接建立后、读循环启动前调用，用于安装 onRead
func (s *Server) SetConnHandler(h func(*ConnContext)) { s.connHandler = h }

// SetMetricsCallbacks 设置指标回调
func (s *Server) SetMetricsCallbacks(onAccept func(), onRecvBytes func(int)) {
	s.onAccept, s.onRecvBytes = onAccept, onRecvBytes
}

// Start 监听并接受连接（非阻塞，内部 goroutine）
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("tcp server listening", zap.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stopC:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// 短暂错误等待后重试
			s.logger.Warn("accept failed", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}

		if err := s.gate.admit(context.Background()); err != nil {
			s.logger.Warn("connection rejected",
				zap.String("remote_addr", conn.RemoteAddr().String()),
				zap.Error(err))
			_ = conn.Close()
			continue
		}
		if s.onAccept != nil {
			s.onAccept()
		}

		cc := newConnContext(s, conn)
		s.track(cc)
		if s.connHandler != nil {
			s.connHandler(cc)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.gate.release()
			defer s.untrack(cc)
			cc.run()
		}()
	}
}

func (s *Server) track(cc *ConnContext) {
	s.mu.Lock()
	s.conns[cc.ID()] = cc
	s.mu.Unlock()
}

func (s *Server) untrack(cc *ConnContext) {
	s.mu.Lock()
	delete(s.conns, cc.ID())
	s.mu.Unlock()
}

// Addr 监听地址（未启动时为 nil）
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ActiveConnections 当前已接入连接数
func (s *Server) ActiveConnections() int { return s.gate.stats().ActiveConnections }

// AdmissionStats 接入控制统计
func (s *Server) AdmissionStats() AdmissionStats { return s.gate.stats() }

// Shutdown 关闭监听与全部连接，等待 goroutine 退出
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopC) })

	s.mu.Lock()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	conns := make([]*ConnContext, 0, len(s.conns))
	for _, cc := range s.conns {
		conns = append(conns, cc)
	}
	s.mu.Unlock()

	for _, cc := range conns {
		_ = cc.Close()
	}

	ch := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(ch)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}
