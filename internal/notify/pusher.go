package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// 推送签名头
const (
	HeaderAPIKey    = "X-Api-Key"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
)

// maxRespBody 只保留响应体前 64KB 用于排障
const maxRespBody = 64 << 10

// StatusError 重试耗尽后仍为 5xx
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string { return fmt.Sprintf("webhook responded %d", e.Code) }

// Pusher 带 HMAC 签名的 JSON 推送；网络错误与 5xx 按 Backoff 重试
type Pusher struct {
	Client  *http.Client
	APIKey  string
	Secret  string
	Retries int
	Backoff []time.Duration
}

func NewPusher(client *http.Client, apiKey, secret string) *Pusher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Pusher{
		Client:  client,
		APIKey:  apiKey,
		Secret:  secret,
		Retries: 3,
		Backoff: []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, time.Second},
	}
}

// signed 同一次推送的所有重试共用签名与 nonce，接收方可据此去重
type signed struct {
	endpoint string
	body     []byte
	ts       string
	nonce    string
	sig      string
}

func (p *Pusher) sign(endpoint string, payload any) (*signed, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	ts := time.Now().Unix()
	nonce := uuid.NewString()
	return &signed{
		endpoint: endpoint,
		body:     body,
		ts:       strconv.FormatInt(ts, 10),
		nonce:    nonce,
		sig:      SignHMAC(p.Secret, Canonical(http.MethodPost, u.Path, ts, nonce, body)),
	}, nil
}

// post 每次新建请求，请求体不可复用
func (p *Pusher) post(ctx context.Context, s *signed) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(s.body))
	if err != nil {
		return 0, nil, err
	}
	h := req.Header
	h.Set("Content-Type", "application/json")
	h.Set(HeaderAPIKey, p.APIKey)
	h.Set(HeaderSignature, s.sig)
	h.Set(HeaderTimestamp, s.ts)
	h.Set(HeaderNonce, s.nonce)

	resp, err := p.Client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxRespBody))
	return resp.StatusCode, b, nil
}

func (p *Pusher) backoff(attempt int) time.Duration {
	if len(p.Backoff) == 0 {
		return time.Second
	}
	return p.Backoff[min(attempt, len(p.Backoff)-1)]
}

// SendJSON 4xx 视为接收方明确拒绝，直接返回状态码且 err 为 nil
func (p *Pusher) SendJSON(ctx context.Context, endpoint string, payload any) (int, []byte, error) {
	if p == nil || p.Client == nil {
		return 0, nil, errors.New("nil pusher")
	}
	s, err := p.sign(endpoint, payload)
	if err != nil {
		return 0, nil, err
	}

	var (
		code int
		body []byte
	)
	for attempt := 0; ; attempt++ {
		code, body, err = p.post(ctx, s)
		if err == nil && code < 500 {
			return code, body, nil
		}
		if attempt >= p.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}
	if err != nil {
		return 0, nil, err
	}
	return code, body, &StatusError{Code: code, Body: body}
}
