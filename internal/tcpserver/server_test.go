package tcpserver

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/drivelink/internal/config"
)

func startServer(t *testing.T, cfg cfgpkg.TCPConfig, h func(*ConnContext), opts ...func(*Server)) *Server {
	t.Helper()
	cfg.Addr = "127.0.0.1:0"
	s := New(cfg, nil)
	s.SetConnHandler(h)
	for _, o := range opts {
		o(s)
	}
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func TestServer_EchoRoundTrip(t *testing.T) {
	var accepted, received int
	var mu sync.Mutex
	got := make(chan *ConnContext, 1)
	s := startServer(t, cfgpkg.TCPConfig{ReadTimeout: time.Second, WriteTimeout: time.Second}, func(cc *ConnContext) {
		cc.SetOnRead(func(b []byte) { _ = cc.Write(b) })
		got <- cc
	}, func(s *Server) {
		s.SetMetricsCallbacks(func() {
			mu.Lock()
			accepted++
			mu.Unlock()
		}, func(n int) {
			mu.Lock()
			received += n
			mu.Unlock()
		})
	})

	c, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Write([]byte{1, 0, 0x20, 6, 0, 4})
	require.NoError(t, err)

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 6)
	_, err = io.ReadFull(c, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0x20, 6, 0, 4}, buf)

	assert.Eventually(t, func() bool { return s.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 6, received)
	mu.Unlock()

	cc := <-got
	assert.Eventually(t, func() bool { return cc.Stats().Writes == 1 }, time.Second, 10*time.Millisecond)
	st := cc.Stats()
	assert.Equal(t, int64(6), st.BytesIn)
	assert.Equal(t, int64(6), st.BytesOut)
	assert.False(t, st.ConnectedAt.IsZero())
}

func TestServer_ConnDoneOnClientClose(t *testing.T) {
	done := make(chan struct{})
	s := startServer(t, cfgpkg.TCPConfig{ReadTimeout: time.Second}, func(cc *ConnContext) {
		go func() {
			<-cc.Done()
			close(done)
		}()
	})

	c, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection not closed")
	}
	assert.Eventually(t, func() bool { return s.ActiveConnections() == 0 }, time.Second, 10*time.Millisecond)
}

func TestServer_MaxConnections(t *testing.T) {
	s := startServer(t, cfgpkg.TCPConfig{MaxConnections: 1, ReadTimeout: time.Second}, nil)
	assert.Equal(t, 1, s.AdmissionStats().MaxConnections)

	c1, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer c1.Close()
	assert.Eventually(t, func() bool { return s.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)

	c2, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer c2.Close()

	// 第二个连接被服务端关闭
	_ = c2.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = c2.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return s.AdmissionStats().RejectedFull == 1 }, time.Second, 10*time.Millisecond)
}

func TestServer_WriteAfterClose(t *testing.T) {
	got := make(chan *ConnContext, 1)
	s := startServer(t, cfgpkg.TCPConfig{ReadTimeout: time.Second}, func(cc *ConnContext) { got <- cc })

	c, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	cc := <-got
	require.NoError(t, cc.Close())
	assert.ErrorIs(t, cc.Write([]byte{1}), ErrConnClosed)
}
