package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taoyao-code/drivelink/internal/api/middleware"
	"github.com/taoyao-code/drivelink/internal/outbound"
	"github.com/taoyao-code/drivelink/internal/protocol/drive"
	"github.com/taoyao-code/drivelink/internal/session"
	redisstore "github.com/taoyao-code/drivelink/internal/storage/redis"
)

type fakeWorker struct {
	submitted []*outbound.Command
	err       error
}

func (f *fakeWorker) Submit(_ context.Context, cmd *outbound.Command) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, cmd)
	return nil
}

func (f *fakeWorker) Stats(context.Context) outbound.WorkerStats {
	return outbound.WorkerStats{Sent: int64(len(f.submitted)), Breaker: "closed"}
}

type fakeCache map[string]*redisstore.CachedTelemetry

func (f fakeCache) GetTelemetry(_ context.Context, robotID string) (*redisstore.CachedTelemetry, error) {
	return f[robotID], nil
}

type nopConn struct{}

func (nopConn) Write([]byte) error { return nil }

func newTestEngine(t *testing.T, w *fakeWorker, cache telemetryReader) (*gin.Engine, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sess := session.New(time.Minute)
	logger := zap.NewNop()

	r := gin.New()
	RegisterRoutes(r, Handlers{
		Robots:   NewRobotHandler(sess, nil, cache, logger),
		Commands: NewCommandHandler(w, sess, nil, nil, 3, logger),
		Frames:   NewFrameHandler(nil),
	}, middleware.AuthConfig{}, middleware.RateLimitConfig{}, logger)
	return r, sess
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestDrive_QueuesCommand(t *testing.T) {
	w := &fakeWorker{}
	r, sess := newTestEngine(t, w, nil)
	sess.Bind("robot-1", "tcp", nopConn{})

	rr := doJSON(r, http.MethodPost, "/api/robots/robot-1/drive", gin.H{"direction": "forward", "duration": 10, "speed": 90})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	require.Len(t, w.submitted, 1)
	assert.Equal(t, "DRIVE", w.submitted[0].Type)
	assert.Equal(t, "1,10,90", w.submitted[0].Body)
	assert.Equal(t, outbound.PriorityHigh, w.submitted[0].Priority)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, w.submitted[0].ID, resp["id"])
}

func TestDrive_NumericDirection(t *testing.T) {
	w := &fakeWorker{}
	r, sess := newTestEngine(t, w, nil)
	sess.Bind("robot-1", "tcp", nopConn{})

	rr := doJSON(r, http.MethodPost, "/api/robots/robot-1/drive", gin.H{"direction": 3, "duration": 1, "speed": 20})
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "3,1,20", w.submitted[0].Body)
}

func TestDrive_Rejections(t *testing.T) {
	w := &fakeWorker{}
	r, sess := newTestEngine(t, w, nil)
	sess.Bind("robot-1", "tcp", nopConn{})

	rr := doJSON(r, http.MethodPost, "/api/robots/robot-1/drive", gin.H{"direction": "UPWARD", "duration": 1, "speed": 1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(r, http.MethodPost, "/api/robots/robot-1/drive", gin.H{"direction": 1, "duration": 300, "speed": 1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(r, http.MethodPost, "/api/robots/robot-2/drive", gin.H{"direction": 1, "duration": 1, "speed": 1})
	assert.Equal(t, http.StatusConflict, rr.Code)

	assert.Empty(t, w.submitted)
}

func TestSleep_SubmitError(t *testing.T) {
	w := &fakeWorker{err: errors.New("queue down")}
	r, sess := newTestEngine(t, w, nil)
	sess.Bind("robot-1", "serial", nopConn{})

	rr := doJSON(r, http.MethodPost, "/api/robots/robot-1/sleep", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestSleep_Emergency(t *testing.T) {
	w := &fakeWorker{}
	r, sess := newTestEngine(t, w, nil)
	sess.Bind("robot-1", "serial", nopConn{})

	rr := doJSON(r, http.MethodPost, "/api/robots/robot-1/sleep", nil)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "SLEEP", w.submitted[0].Type)
	assert.Equal(t, outbound.PriorityEmergency, w.submitted[0].Priority)
}

func TestListRobotsAndGetRobot(t *testing.T) {
	r, sess := newTestEngine(t, &fakeWorker{}, nil)
	sess.Bind("robot-1", "tcp", nopConn{})

	rr := doJSON(r, http.MethodGet, "/api/robots", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Robots      []session.Info `json:"robots"`
		OnlineCount int            `json:"online_count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Robots, 1)
	assert.Equal(t, 1, list.OnlineCount)

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/api/robots/robot-1", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/api/robots/ghost", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(r, http.MethodGet, "/api/robots/registered", nil).Code)
}

func TestGetTelemetry_FromCache(t *testing.T) {
	cache := fakeCache{"robot-1": {RobotID: "robot-1", Seq: 9, Telemetry: drive.TelemetryBody{HitCount: 4}}}
	r, _ := newTestEngine(t, &fakeWorker{}, cache)

	rr := doJSON(r, http.MethodGet, "/api/robots/robot-1/telemetry", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"hit_count":4`)

	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/api/robots/robot-2/telemetry", nil).Code)
}

func TestFrames_DecodeEncode(t *testing.T) {
	r, _ := newTestEngine(t, &fakeWorker{}, nil)

	rr := doJSON(r, http.MethodPost, "/api/frames/decode", gin.H{"hex": "010020060004"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var v FrameView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	assert.Equal(t, "SLEEP", v.Type)
	assert.Equal(t, uint16(1), v.Seq)
	assert.Equal(t, 6, v.Length)

	rr = doJSON(r, http.MethodPost, "/api/frames/decode", gin.H{"hex": "010020060005"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = doJSON(r, http.MethodPost, "/api/frames/decode", gin.H{"hex": "zz"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(r, http.MethodPost, "/api/frames/encode", gin.H{"type": "drive", "seq": 2, "body": "2,5,60"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	assert.Equal(t, 9, v.Length)
	assert.Equal(t, "BACKWARD", v.Direction)
	require.NotNil(t, v.Drive)
	assert.Equal(t, uint8(60), v.Drive.Speed)

	rr = doJSON(r, http.MethodPost, "/api/frames/encode", gin.H{"type": "jump"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOutboundStats(t *testing.T) {
	r, _ := newTestEngine(t, &fakeWorker{}, nil)
	rr := doJSON(r, http.MethodGet, "/api/outbound/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"breaker":"closed"`)
}

func TestErrorBody_CodeAndMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sess := session.New(time.Minute)
	w := &fakeWorker{err: errors.New("queue down")}
	r := gin.New()
	RegisterRoutes(r, Handlers{
		Robots:   NewRobotHandler(sess, nil, nil, nil),
		Commands: NewCommandHandler(w, sess, nil, nil, 3, nil),
		Frames:   NewFrameHandler(nil),
	}, middleware.AuthConfig{}, middleware.RateLimitConfig{}, zap.NewNop())

	rr := doJSON(r, http.MethodPost, "/api/robots/ghost/drive", gin.H{"direction": 1, "duration": 1, "speed": 1})
	require.Equal(t, http.StatusConflict, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "conflict", body["error"])
	assert.Equal(t, "robot offline", body["message"])
	assert.Equal(t, "ghost", body["robot_id"])

	// 未注入 logger 时提交失败仍能记录日志并返回 500
	sess.Bind("robot-1", "tcp", nopConn{})
	rr = doJSON(r, http.MethodPost, "/api/robots/robot-1/sleep", nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	body = nil
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "internal_server_error", body["error"])
	assert.Equal(t, "queue down", body["message"])
}
