package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"margin_guard/internal/modules/config"
)

// Client — подписанный HTTP-клиент к приватному API брокера.
type Client struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	apiSecret string
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		http:      &http.Client{Timeout: 10 * time.Second},
		baseURL:   cfg.Broker.BaseURL,
		apiKey:    cfg.Broker.APIKey,
		apiSecret: cfg.Broker.APISecret,
	}
}

func (c *Client) SetCreds(key, secret string) { c.apiKey, c.apiSecret = key, secret }

func (c *Client) sign(ts, method, requestPath, body string) string {
	msg := ts + method + requestPath + body
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// signedRequest собирает запрос с подписью и идемпотентным ключом.
func (c *Client) signedRequest(ctx context.Context, method, requestPath string, payload []byte) (*http.Request, error) {
	var req *http.Request
	var err error
	if len(payload) > 0 {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bytes.NewReader(payload))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("X-API-SIGN", c.sign(ts, method, requestPath, string(payload)))
	req.Header.Set("X-API-TIMESTAMP", ts)
	req.Header.Set("Content-Type", "application/json")
	if method == http.MethodPost {
		req.Header.Set("X-Idempotency-Key", uuid.NewString())
	}

	return req, nil
}

func formatPrice(px float64) string {
	return strconv.FormatFloat(px, 'f', -1, 64)
}

func formatSize(sz float64) string {
	return strconv.FormatFloat(sz, 'f', -1, 64)
}
