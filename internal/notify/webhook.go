// Package notify 将崩溃事件推送到外部 Webhook。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	cfgpkg "github.com/taoyao-code/atfuzz/internal/config"
	"github.com/taoyao-code/atfuzz/internal/crashlog"
)

// EventCrash 崩溃事件名
const EventCrash = "device.crashed"

// Event 推送给接收方的事件体
type Event struct {
	Event     string         `json:"event"`
	Device    string         `json:"device"`
	Timestamp int64          `json:"timestamp"`
	Nonce     string         `json:"nonce"`
	Data      crashlog.Crash `json:"data"`
}

// Webhook 带签名的崩溃通知
type Webhook struct {
	Client   *http.Client
	Endpoint string
	APIKey   string
	Secret   string
	Retries  int
	Backoff  []time.Duration
}

// NewWebhook 根据配置创建；Endpoint 不合法时返回错误
func NewWebhook(cfg cfgpkg.WebhookConfig) (*Webhook, error) {
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("webhook url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{
		Client:   &http.Client{Timeout: timeout},
		Endpoint: cfg.URL,
		APIKey:   cfg.APIKey,
		Secret:   cfg.Secret,
		Retries:  cfg.Retries,
		Backoff:  []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 500 * time.Millisecond, time.Second},
	}, nil
}

// Name 镜像名称
func (w *Webhook) Name() string { return "webhook" }

// MirrorCrash 推送崩溃事件
func (w *Webhook) MirrorCrash(ctx context.Context, c crashlog.Crash) error {
	nonce := newNonce()
	code, _, err := w.send(ctx, nonce, Event{
		Event:     EventCrash,
		Device:    c.Device,
		Timestamp: c.At.Unix(),
		Nonce:     nonce,
		Data:      c,
	})
	if err != nil {
		return err
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("webhook rejected crash event: http %d", code)
	}
	return nil
}

// send 使用给定 nonce 签名并发送 JSON；仅对 5xx 与网络错误重试
func (w *Webhook) send(ctx context.Context, nonce string, payload any) (int, []byte, error) {
	if w == nil || w.Client == nil {
		return 0, nil, errors.New("nil webhook")
	}
	u, err := url.Parse(w.Endpoint)
	if err != nil {
		return 0, nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	ts := time.Now().Unix()
	sig := SignHMAC(w.Secret, buildCanonical(http.MethodPost, u.Path, ts, nonce, hashHex(body)))

	var respBody []byte
	var code int
	var lastErr error
	for attempt := 0; attempt <= w.Retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint, bytes.NewReader(body))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Api-Key", w.APIKey)
		req.Header.Set("X-Signature", sig)
		req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
		req.Header.Set("X-Nonce", nonce)

		resp, err := w.Client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			code = resp.StatusCode
			respBody, _ = io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if code < 500 {
				return code, respBody, nil
			}
			lastErr = nil
		}
		if attempt == w.Retries {
			break
		}
		backoff := w.Backoff[min(attempt, len(w.Backoff)-1)]
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	if lastErr != nil {
		return 0, nil, lastErr
	}
	return code, respBody, fmt.Errorf("http %d", code)
}

func newNonce() string {
	return fmt.Sprintf("%08x", rand.Uint32())
}
