package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/drivelink/internal/outbound"
	"github.com/taoyao-code/drivelink/internal/protocol/drive"
	"github.com/taoyao-code/drivelink/internal/testutil"
)

func TestSignHMAC(t *testing.T) {
	canonical := Canonical("post", "/hook", 1700000000, "nonce", []byte(`{}`))
	got := SignHMAC("secret", canonical)
	assert.Len(t, got, 64)
	assert.True(t, VerifyHMAC("secret", canonical, got))
	assert.False(t, VerifyHMAC("other", canonical, got))
	assert.True(t, VerifyHMAC("secret", canonical, strings.ToUpper(got)))
	assert.False(t, VerifyHMAC("secret", canonical, "zz"))
	assert.Equal(t, "POST\n/hook\n1700000000\nnonce\n", canonical[:len(canonical)-64])
}

// verifyingServer 校验签名并收集事件
type verifyingServer struct {
	mu     sync.Mutex
	events []Event
	fail   atomic.Int32 // 前 N 次返回 500
	calls  atomic.Int32
}

func (s *verifyingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.calls.Add(1)
	body, _ := io.ReadAll(r.Body)
	ts, _ := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64)
	canonical := Canonical(r.Method, r.URL.Path, ts, r.Header.Get(HeaderNonce), body)
	if r.Header.Get(HeaderAPIKey) != "key" || !VerifyHMAC("secret", canonical, r.Header.Get(HeaderSignature)) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if s.fail.Load() > 0 {
		s.fail.Add(-1)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *verifyingServer) received() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func fastPusher() *Pusher {
	p := NewPusher(nil, "key", "secret")
	p.Backoff = []time.Duration{time.Millisecond}
	return p
}

func TestPusher_RetriesOn5xx(t *testing.T) {
	srv := &verifyingServer{}
	srv.fail.Store(2)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	code, _, err := fastPusher().SendJSON(context.Background(), ts.URL+"/hook", NewEvent(EventRobotOnline, "r1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, int32(3), srv.calls.Load())
	require.Len(t, srv.received(), 1)
}

func TestPusher_NoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	code, _, err := fastPusher().SendJSON(context.Background(), ts.URL, map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPusher_GivesUpAfterRetries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	p := fastPusher()
	p.Retries = 1
	code, _, err := p.SendJSON(context.Background(), ts.URL, map[string]any{})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, http.StatusBadGateway, code)
}

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDedup) IsDuplicate(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[id] {
		return true, nil
	}
	d.seen[id] = true
	return false, nil
}

func (d *memDedup) Forget(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}

func TestNotifier_DeliversRobotAndCommandEvents(t *testing.T) {
	srv := &verifyingServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	n := NewNotifier(fastPusher(), Options{URL: ts.URL + "/events", Workers: 1}, nil)
	n.SetDeduper(&memDedup{seen: map[string]bool{}})
	n.Start(context.Background())

	cmd, err := outbound.NewCommand("r1", drive.Drive, "1,10,90", 3)
	require.NoError(t, err)

	n.RobotOnline("r1", "tcp")
	require.NoError(t, n.MarkCommand(context.Background(), cmd, outbound.ResultSent, ""))
	require.NoError(t, n.MarkCommand(context.Background(), cmd, outbound.ResultDead, "ack timeout"))
	// 重复终态被去重
	require.NoError(t, n.MarkCommand(context.Background(), cmd, outbound.ResultDead, "ack timeout"))
	n.RobotOffline("r1", "tcp")
	n.Stop()

	events := srv.received()
	require.Len(t, events, 3)
	assert.Equal(t, EventRobotOnline, events[0].Event)
	assert.Equal(t, "tcp", events[0].Data["transport"])
	assert.Equal(t, EventCommandDead, events[1].Event)
	assert.Equal(t, cmd.ID+":dead", events[1].EventID)
	assert.Equal(t, "ack timeout", events[1].Data["error"])
	assert.Equal(t, EventRobotOffline, events[2].Event)

	st := n.Stats()
	assert.Equal(t, int64(3), st.Sent)
	assert.Equal(t, int64(0), st.Failed)
}

func TestNotifier_DropsWhenFullAndAfterStop(t *testing.T) {
	n := NewNotifier(fastPusher(), Options{URL: "http://127.0.0.1:0", QueueSize: 1}, nil)
	// 未启动 worker，队列只能容纳一个事件
	assert.True(t, n.Publish(NewEvent(EventRobotOnline, "r1", nil)))
	assert.False(t, n.Publish(NewEvent(EventRobotOnline, "r2", nil)))
	assert.Equal(t, int64(1), n.Stats().Dropped)

	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	assert.False(t, n.Publish(NewEvent(EventRobotOffline, "r1", nil)))
}

func TestNotifier_NilSafe(t *testing.T) {
	var n *Notifier
	n.RobotOnline("r1", "serial")
	assert.False(t, n.Publish(NewEvent(EventRobotOnline, "r1", nil)))
}

func TestDeduper_Redis(t *testing.T) {
	d := NewDeduper(testutil.SetupTestRedis(t), time.Minute)
	ctx := context.Background()

	dup, err := d.IsDuplicate(ctx, "cmd-1:dead")
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = d.IsDuplicate(ctx, "cmd-1:dead")
	require.NoError(t, err)
	assert.True(t, dup)

	require.NoError(t, d.Forget(ctx, "cmd-1:dead"))
	dup, err = d.IsDuplicate(ctx, "cmd-1:dead")
	require.NoError(t, err)
	assert.False(t, dup)

	_, err = d.IsDuplicate(ctx, "")
	assert.Error(t, err)
}
