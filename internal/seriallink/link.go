package seriallink

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	padapter "github.com/taoyao-code/drivelink/internal/protocol/adapter"
)

// ErrLinkClosed 串口已关闭
var ErrLinkClosed = errors.New("serial link closed")

// Port 串口抽象，go.bug.st/serial.Port 满足该接口；测试中可替换
type Port interface {
	io.ReadWriteCloser
}

// Link 串口直连的单台机器人
type Link struct {
	path   string
	port   Port
	logger *zap.Logger

	wmu    sync.Mutex
	closed atomic.Bool
	doneC  chan struct{}

	processor   padapter.Adapter
	onRecvBytes func(n int)
}

// Open 打开真实串口
func Open(path string, opts PortOptions, readTimeout time.Duration, logger *zap.Logger) (*Link, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	if readTimeout > 0 {
		// 读超时让 Run 能及时感知 ctx 取消
		if err := port.SetReadTimeout(readTimeout); err != nil {
			_ = port.Close()
			return nil, err
		}
	}
	return New(path, port, logger), nil
}

// New 用已打开的端口构造 Link
func New(path string, port Port, logger *zap.Logger) *Link {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Link{path: path, port: port, logger: logger, doneC: make(chan struct{})}
}

// Path 串口路径，同时作为机器人标识
func (l *Link) Path() string { return l.path }

// SetProcessor 上行字节处理器
func (l *Link) SetProcessor(p padapter.Adapter) { l.processor = p }

// SetOnRecvBytes 指标回调
func (l *Link) SetOnRecvBytes(fn func(int)) { l.onRecvBytes = fn }

// Run 读循环，直到 ctx 取消、端口关闭或读错误
func (l *Link) Run(ctx context.Context) error {
	defer l.Close()
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-l.doneC:
		}
	}()

	buf := make([]byte, 1024)
	for {
		n, err := l.port.Read(buf)
		if n > 0 {
			if l.onRecvBytes != nil {
				l.onRecvBytes(n)
			}
			if l.processor != nil {
				if perr := l.processor.ProcessBytes(buf[:n]); perr != nil {
					l.logger.Warn("serial process bytes failed", zap.String("port", l.path), zap.Error(perr))
				}
			}
		}
		if err != nil {
			if l.closed.Load() || ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			l.logger.Error("serial read failed", zap.String("port", l.path), zap.Error(err))
			return err
		}
		// go.bug.st/serial 读超时返回 (0, nil)
		if n == 0 && ctx.Err() != nil {
			return nil
		}
	}
}

// Write 写一帧；串口写为阻塞调用，用互斥保证帧不交错
func (l *Link) Write(b []byte) error {
	if l.closed.Load() {
		return ErrLinkClosed
	}
	l.wmu.Lock()
	defer l.wmu.Unlock()
	for len(b) > 0 {
		n, err := l.port.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// Close 关闭端口
func (l *Link) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(l.doneC)
	return l.port.Close()
}

// Done 关闭通知
func (l *Link) Done() <-chan struct{} { return l.doneC }
