package tcpserver

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrConnClosed 连接已关闭
	ErrConnClosed = errors.New("connection closed")
	// ErrWriteQueueFull 写队列在写超时内未腾出空间
	ErrWriteQueueFull = errors.New("write queue full")
)

// 驱动帧最长 15 字节，读缓冲按多帧粘包留余量
const (
	readBufSize  = 512
	writeQueueSz = 64
)

// ConnStats 单连接流量统计
type ConnStats struct {
	ConnectedAt time.Time
	BytesIn     int64
	BytesOut    int64
	Writes      int64
}

// ConnContext 一条机器人 TCP 连接：读循环回调 onRead，写经由队列串行化
type ConnContext struct {
	s      *Server
	c      net.Conn
	id     uint64
	since  time.Time
	writeC chan []byte
	doneC  chan struct{}
	closed atomic.Bool

	mu     sync.RWMutex
	onRead func([]byte)

	bytesIn  atomic.Int64
	bytesOut atomic.Int64
	writes   atomic.Int64
}

func newConnContext(s *Server, c net.Conn) *ConnContext {
	return &ConnContext{
		s:      s,
		c:      c,
		id:     atomic.AddUint64(&s.nextConnID, 1),
		since:  time.Now(),
		writeC: make(chan []byte, writeQueueSz),
		doneC:  make(chan struct{}),
	}
}

func (cc *ConnContext) ID() uint64 { return cc.id }

func (cc *ConnContext) RemoteAddr() net.Addr { return cc.c.RemoteAddr() }

// SetOnRead 安装上行字节回调，须在读循环启动前调用
func (cc *ConnContext) SetOnRead(h func([]byte)) {
	cc.mu.Lock()
	cc.onRead = h
	cc.mu.Unlock()
}

func (cc *ConnContext) readHandler() func([]byte) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.onRead
}

// Write 把一帧放入写队列；队列满时最多等待一个写超时
func (cc *ConnContext) Write(b []byte) error {
	if cc.closed.Load() {
		return ErrConnClosed
	}
	frame := bytes.Clone(b)
	select {
	case cc.writeC <- frame:
		return nil
	default:
	}

	timer := time.NewTimer(cc.s.writeTimeout())
	defer timer.Stop()
	select {
	case cc.writeC <- frame:
		return nil
	case <-cc.doneC:
		return ErrConnClosed
	case <-timer.C:
		return ErrWriteQueueFull
	}
}

// Stats 当前流量统计快照
func (cc *ConnContext) Stats() ConnStats {
	return ConnStats{
		ConnectedAt: cc.since,
		BytesIn:     cc.bytesIn.Load(),
		BytesOut:    cc.bytesOut.Load(),
		Writes:      cc.writes.Load(),
	}
}

// Close 幂等
func (cc *ConnContext) Close() error {
	if !cc.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(cc.doneC)
	return cc.c.Close()
}

// Done 连接关闭后可读
func (cc *ConnContext) Done() <-chan struct{} { return cc.doneC }

func (cc *ConnContext) writeLoop() {
	for {
		select {
		case frame := <-cc.writeC:
			if to := cc.s.cfg.WriteTimeout; to > 0 {
				_ = cc.c.SetWriteDeadline(time.Now().Add(to))
			}
			n, err := cc.c.Write(frame)
			cc.bytesOut.Add(int64(n))
			if err != nil {
				_ = cc.Close()
				return
			}
			cc.writes.Add(1)
		case <-cc.doneC:
			return
		}
	}
}

// run 阻塞直至连接结束
func (cc *ConnContext) run() {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		cc.writeLoop()
	}()

	buf := make([]byte, readBufSize)
	for {
		if to := cc.s.cfg.ReadTimeout; to > 0 {
			_ = cc.c.SetReadDeadline(time.Now().Add(to))
		}
		n, err := cc.c.Read(buf)
		if n > 0 {
			cc.bytesIn.Add(int64(n))
			if cc.s.onRecvBytes != nil {
				cc.s.onRecvBytes(n)
			}
			if h := cc.readHandler(); h != nil {
				h(buf[:n])
			}
		}
		if err == nil {
			continue
		}
		// 读超时只续期，离线由会话层按心跳判定
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() && !cc.closed.Load() {
			continue
		}
		break
	}
	_ = cc.Close()
	<-writerDone
}
