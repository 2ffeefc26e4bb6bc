package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"margin_guard/internal/models"
	"margin_guard/internal/modules/config"
)

const quoteBatchSize = 25

// StreamHealth отражает состояние WebSocket-подключения.
type StreamHealth interface {
	SetWSConnected(connected bool)
}

// Client ходит за котировками по HTTP и держит кэш последних значений.
// Кэш пополняет и WebSocket-стрим, тогда HTTP остаётся запасным путём.
type Client struct {
	cfg     *config.Config
	http    *http.Client
	baseURL string
	health  StreamHealth

	reqMu       sync.Mutex
	lastRequest time.Time

	cacheMu sync.RWMutex
	cache   map[string]cachedQuote
}

type cachedQuote struct {
	quote models.Quote
	at    time.Time
}

func NewClient(cfg *config.Config, health StreamHealth) *Client {
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: cfg.Broker.BaseURL,
		health:  health,
		cache:   make(map[string]cachedQuote),
	}
}

// throttle выдерживает минимальную паузу между HTTP-запросами котировок.
func (c *Client) throttle() {
	interval := c.cfg.QuoteMinInterval
	if interval < 300*time.Millisecond {
		interval = 300 * time.Millisecond
	}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	if dt := time.Since(c.lastRequest); dt < interval {
		time.Sleep(interval - dt)
	}
	c.lastRequest = time.Now()
}

// GetQuote отдаёт котировку из кэша, пока она свежая, иначе идёт по HTTP.
func (c *Client) GetQuote(ctx context.Context, instrumentID string) (*models.Quote, error) {
	if q, ok := c.fresh(instrumentID); ok {
		return q, nil
	}

	c.throttle()

	reqURL := fmt.Sprintf("%s/api/v1/market/quote?instId=%s", c.baseURL, url.QueryEscape(instrumentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("GetQuote request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GetQuote do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GetQuote read: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("GetQuote http %d: %s", resp.StatusCode, string(body))
	}

	var wrap quotesResponse
	if err := json.Unmarshal(body, &wrap); err != nil {
		return nil, fmt.Errorf("GetQuote decode: %w", err)
	}
	if wrap.Code != "0" {
		return nil, fmt.Errorf("GetQuote api %s: %s", wrap.Code, wrap.Msg)
	}
	if len(wrap.Data) == 0 {
		return nil, fmt.Errorf("GetQuote: no quote for %s", instrumentID)
	}

	q, err := parseQuote(wrap.Data[0])
	if err != nil {
		return nil, fmt.Errorf("GetQuote parse: %w", err)
	}

	c.store(q)
	return &q, nil
}

// GetQuotes забирает котировки пачками, не больше quoteBatchSize за запрос.
func (c *Client) GetQuotes(ctx context.Context, instrumentIDs []string) ([]models.Quote, error) {
	out := make([]models.Quote, 0, len(instrumentIDs))

	for start := 0; start < len(instrumentIDs); start += quoteBatchSize {
		end := start + quoteBatchSize
		if end > len(instrumentIDs) {
			end = len(instrumentIDs)
		}
		chunk, err := c.fetchBatch(ctx, instrumentIDs[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (c *Client) fetchBatch(ctx context.Context, ids []string) ([]models.Quote, error) {
	c.throttle()

	payload, err := json.Marshal(map[string][]string{"instIds": ids})
	if err != nil {
		return nil, fmt.Errorf("GetQuotes marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/market/quotes/batch", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("GetQuotes request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GetQuotes do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GetQuotes read: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("GetQuotes http %d: %s", resp.StatusCode, string(body))
	}

	var wrap quotesResponse
	if err := json.Unmarshal(body, &wrap); err != nil {
		return nil, fmt.Errorf("GetQuotes decode: %w", err)
	}
	if wrap.Code != "0" {
		return nil, fmt.Errorf("GetQuotes api %s: %s", wrap.Code, wrap.Msg)
	}

	out := make([]models.Quote, 0, len(wrap.Data))
	for _, row := range wrap.Data {
		q, err := parseQuote(row)
		if err != nil {
			continue
		}
		c.store(q)
		out = append(out, q)
	}
	return out, nil
}

func (c *Client) fresh(instrumentID string) (*models.Quote, bool) {
	ttl := c.cfg.QuoteCacheTTL
	if ttl <= 0 {
		return nil, false
	}

	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	entry, ok := c.cache[instrumentID]
	if !ok || time.Since(entry.at) > ttl {
		return nil, false
	}
	q := entry.quote
	return &q, true
}

func (c *Client) store(q models.Quote) {
	c.cacheMu.Lock()
	c.cache[q.InstrumentID] = cachedQuote{quote: q, at: time.Now()}
	c.cacheMu.Unlock()
}

type quotesResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data []quoteRow `json:"data"`
}

type quoteRow struct {
	InstID string `json:"instId"`
	BidPx  string `json:"bidPx"`
	AskPx  string `json:"askPx"`
	Last   string `json:"last"`
	Ts     string `json:"ts"`
}

func parseQuote(row quoteRow) (models.Quote, error) {
	bid, err := strconv.ParseFloat(row.BidPx, 64)
	if err != nil {
		return models.Quote{}, fmt.Errorf("bad bidPx %q", row.BidPx)
	}
	ask, err := strconv.ParseFloat(row.AskPx, 64)
	if err != nil {
		return models.Quote{}, fmt.Errorf("bad askPx %q", row.AskPx)
	}
	last, err := strconv.ParseFloat(row.Last, 64)
	if err != nil {
		return models.Quote{}, fmt.Errorf("bad last %q", row.Last)
	}

	q := models.Quote{
		InstrumentID: row.InstID,
		Bid:          bid,
		Ask:          ask,
		Last:         last,
		Ts:           time.Now(),
	}
	if ms, err := strconv.ParseInt(row.Ts, 10, 64); err == nil && ms > 0 {
		q.Ts = time.UnixMilli(ms)
	}
	return q, nil
}
