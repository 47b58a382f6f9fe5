// Package httpserver gin 引擎与 http.Server 的组装，控制 API 与健康路由挂在 Engine 上。
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/drivelink/internal/config"
)

// Option 可选路由
type Option func(*Server)

// WithMetrics 在 path 暴露 Prometheus 指标；handler 为 nil 时不注册
func WithMetrics(path string, handler http.Handler) Option {
	return func(s *Server) {
		if handler == nil {
			return
		}
		if path == "" {
			path = "/metrics"
		}
		s.quiet[path] = true
		s.engine.GET(path, gin.WrapH(handler))
	}
}

// WithReadiness /readyz 依据 fn 返回 200 或 503
func WithReadiness(fn func() bool) Option {
	return func(s *Server) { s.ready = fn }
}

type Server struct {
	engine *gin.Engine
	srv    *http.Server
	ready  func() bool
	quiet  map[string]bool
}

func New(cfg cfgpkg.HTTPConfig, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine: gin.New(),
		quiet:  map[string]bool{"/healthz": true, "/readyz": true},
	}
	s.engine.Use(gin.Recovery(), accessLog(logger, s.quiet))
	for _, o := range opts {
		o(s)
	}

	s.engine.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	s.engine.GET("/readyz", s.readyz)

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) readyz(c *gin.Context) {
	if s.ready != nil && !s.ready() {
		c.String(http.StatusServiceUnavailable, "not-ready")
		return
	}
	c.String(http.StatusOK, "ready")
}

func (s *Server) Engine() *gin.Engine { return s.engine }

// Start 阻塞；Shutdown 触发的关闭返回 nil
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve 在已有监听上提供服务
func (s *Server) Serve(ln net.Listener) error {
	if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
