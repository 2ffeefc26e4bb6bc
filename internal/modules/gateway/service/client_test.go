package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"margin_guard/internal/models"
	"margin_guard/internal/modules/config"
)

const okOrderEnvelope = `{"code":"0","msg":"","data":[{"ordId":"o-1","sCode":"0","sMsg":""}]}`

type recordedRequest struct {
	method string
	path   string // путь вместе с query
	body   []byte
	header http.Header
}

// fakeBroker записывает все запросы и отвечает через respond,
// по умолчанию — успешным ордерным конвертом.
type fakeBroker struct {
	mu      sync.Mutex
	reqs    []recordedRequest
	respond func(rec recordedRequest) (int, string)
}

func (b *fakeBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec := recordedRequest{
		method: r.Method,
		path:   r.URL.RequestURI(),
		body:   body,
		header: r.Header.Clone(),
	}

	b.mu.Lock()
	b.reqs = append(b.reqs, rec)
	respond := b.respond
	b.mu.Unlock()

	status, out := http.StatusOK, okOrderEnvelope
	if respond != nil {
		status, out = respond(rec)
	}
	w.WriteHeader(status)
	fmt.Fprint(w, out)
}

func (b *fakeBroker) requests(path string) []recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedRequest
	for _, r := range b.reqs {
		if r.path == path {
			out = append(out, r)
		}
	}
	return out
}

func (b *fakeBroker) setRespond(f func(rec recordedRequest) (int, string)) {
	b.mu.Lock()
	b.respond = f
	b.mu.Unlock()
}

func newGatewayClient(t *testing.T) (*Client, *fakeBroker) {
	t.Helper()
	broker := &fakeBroker{}
	srv := httptest.NewServer(broker)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Broker.BaseURL = srv.URL
	cfg.Broker.APIKey = "test-key"
	cfg.Broker.APISecret = "test-secret"
	return NewClient(cfg), broker
}

func decodeBody(t *testing.T, rec recordedRequest) map[string]string {
	t.Helper()
	out := map[string]string{}
	require.NoError(t, json.Unmarshal(rec.body, &out))
	return out
}

func TestSignedRequestHeaders(t *testing.T) {
	c, broker := newGatewayClient(t)
	broker.setRespond(func(recordedRequest) (int, string) {
		return 200, `{"code":"0","msg":"","data":[{"equity":"10000","marginUsed":"500","marginAvail":"9500","upl":"0","dailyPnl":"0"}]}`
	})

	_, err := c.GetAccount(context.Background())
	require.NoError(t, err)

	reqs := broker.requests("/api/v1/account")
	require.Len(t, reqs, 1)
	h := reqs[0].header

	assert.Equal(t, "test-key", h.Get("X-API-KEY"))
	assert.Empty(t, h.Get("X-Idempotency-Key")) // только для POST

	ts := h.Get("X-API-TIMESTAMP")
	require.NotEmpty(t, ts)

	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte(ts + "GET" + "/api/v1/account" + ""))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, h.Get("X-API-SIGN"))
}

func TestIdempotencyKeyPerPost(t *testing.T) {
	c, broker := newGatewayClient(t)

	require.NoError(t, c.CancelOrder(context.Background(), "o-1"))
	require.NoError(t, c.CancelOrder(context.Background(), "o-2"))

	reqs := broker.requests("/api/v1/orders/cancel")
	require.Len(t, reqs, 2)

	k1 := reqs[0].header.Get("X-Idempotency-Key")
	k2 := reqs[1].header.Get("X-Idempotency-Key")
	assert.NotEmpty(t, k1)
	assert.NotEmpty(t, k2)
	assert.NotEqual(t, k1, k2)
}

func TestGetPositions(t *testing.T) {
	c, broker := newGatewayClient(t)
	broker.setRespond(func(recordedRequest) (int, string) {
		return 200, `{"code":"0","msg":"","data":[
			{"posId":"p-1","instId":"MESU6","side":"BUY","qty":"4","avgPx":"100.5","upl":"12.5","uTime":"1755770400000"},
			{"posId":"p-flat","instId":"NQZ6","side":"SELL","qty":"0","avgPx":"0","upl":"0","uTime":""},
			{"posId":"p-2","instId":"NQZ6","side":"SELL","qty":"1","avgPx":"18000","upl":"-40","uTime":""}
		]}`
	})

	out, err := c.GetPositions(context.Background())
	require.NoError(t, err)

	// плоская позиция с нулевым объёмом выпадает
	require.Len(t, out, 2)
	assert.Equal(t, "p-1", out[0].ID)
	assert.Equal(t, models.SideBuy, out[0].Side)
	assert.Equal(t, 4.0, out[0].Qty)
	assert.Equal(t, 100.5, out[0].AvgEntryPrice)
	assert.Equal(t, 12.5, out[0].UnrealizedPnL)
	assert.True(t, out[0].Updated.Equal(time.UnixMilli(1755770400000)))

	assert.Equal(t, models.SideSell, out[1].Side)
	assert.True(t, out[1].Updated.IsZero())
}

func TestGetPositionsAPIError(t *testing.T) {
	c, broker := newGatewayClient(t)
	broker.setRespond(func(recordedRequest) (int, string) {
		return 200, `{"code":"50011","msg":"rate limit","data":[]}`
	})

	_, err := c.GetPositions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "50011")
}

func TestPlaceStopOrder(t *testing.T) {
	c, broker := newGatewayClient(t)

	ordID, err := c.PlaceStopOrder(context.Background(), "MESU6", 4, 99.75, models.SideSell)
	require.NoError(t, err)
	assert.Equal(t, "o-1", ordID)

	reqs := broker.requests("/api/v1/orders")
	require.Len(t, reqs, 1)
	body := decodeBody(t, reqs[0])

	assert.Equal(t, "MESU6", body["instId"])
	assert.Equal(t, "SELL", body["side"])
	assert.Equal(t, "stop", body["ordType"])
	assert.Equal(t, "4", body["qty"])
	assert.Equal(t, "99.75", body["stopPx"])
	assert.Equal(t, "true", body["reduceOnly"])
}

func TestPlaceStopOrderValidatesLocally(t *testing.T) {
	c, broker := newGatewayClient(t)
	ctx := context.Background()

	_, err := c.PlaceStopOrder(ctx, "MESU6", 4, 99.75, models.SideNone)
	assert.Error(t, err)
	_, err = c.PlaceStopOrder(ctx, "MESU6", 0, 99.75, models.SideSell)
	assert.Error(t, err)
	_, err = c.PlaceStopOrder(ctx, "MESU6", 4, 0, models.SideSell)
	assert.Error(t, err)

	// до брокера ни один из них не дошёл
	assert.Empty(t, broker.requests("/api/v1/orders"))
}

func TestPlaceStopOrderRejected(t *testing.T) {
	c, broker := newGatewayClient(t)
	broker.setRespond(func(recordedRequest) (int, string) {
		return 200, `{"code":"0","msg":"","data":[{"ordId":"","sCode":"51008","sMsg":"Insufficient margin"}]}`
	})

	_, err := c.PlaceStopOrder(context.Background(), "MESU6", 4, 99.75, models.SideSell)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "51008")
}

func TestPlaceLimitOrderReduceOnly(t *testing.T) {
	c, broker := newGatewayClient(t)
	ctx := context.Background()

	_, err := c.PlaceLimitOrder(ctx, "MESU6", 3, 102.25, models.SideSell, true)
	require.NoError(t, err)
	_, err = c.PlaceLimitOrder(ctx, "MESU6", 3, 102.25, models.SideBuy, false)
	require.NoError(t, err)

	reqs := broker.requests("/api/v1/orders")
	require.Len(t, reqs, 2)

	withFlag := decodeBody(t, reqs[0])
	assert.Equal(t, "limit", withFlag["ordType"])
	assert.Equal(t, "102.25", withFlag["px"])
	assert.Equal(t, "true", withFlag["reduceOnly"])

	plain := decodeBody(t, reqs[1])
	_, hasFlag := plain["reduceOnly"]
	assert.False(t, hasFlag)
}

func TestCancelOrderReject(t *testing.T) {
	c, broker := newGatewayClient(t)
	broker.setRespond(func(recordedRequest) (int, string) {
		return 200, `{"code":"0","msg":"","data":[]}`
	})

	err := c.CancelOrder(context.Background(), "o-404")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CancelOrder reject")
}

func TestGetInstrumentMeta(t *testing.T) {
	c, broker := newGatewayClient(t)
	broker.setRespond(func(recordedRequest) (int, string) {
		return 200, `{"code":"0","msg":"","data":[{"instId":"MESU6","name":"Micro E-mini S&P","tickSz":"0.25","minSz":"1","maxDevTicks":"","state":"live"}]}`
	})

	inst, err := c.GetInstrumentMeta(context.Background(), "MESU6")
	require.NoError(t, err)

	assert.Equal(t, "MESU6", inst.ID)
	assert.Equal(t, 0.25, inst.TickSize)
	assert.Equal(t, 1.0, inst.MinQty)
	assert.Equal(t, 0, inst.MaxDeviationTicks) // коридор опционален
}

func TestGetInstrumentMetaNotLive(t *testing.T) {
	c, broker := newGatewayClient(t)
	broker.setRespond(func(recordedRequest) (int, string) {
		return 200, `{"code":"0","msg":"","data":[{"instId":"MESU6","tickSz":"0.25","minSz":"1","state":"suspended"}]}`
	})

	_, err := c.GetInstrumentMeta(context.Background(), "MESU6")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suspended")
}

func TestGetAccount(t *testing.T) {
	c, broker := newGatewayClient(t)
	broker.setRespond(func(recordedRequest) (int, string) {
		return 200, `{"code":"0","msg":"","data":[{"equity":"25000.5","marginUsed":"4000","marginAvail":"21000.5","upl":"-120.25","dailyPnl":"75"}]}`
	})

	acc, err := c.GetAccount(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 25000.5, acc.Equity)
	assert.Equal(t, 4000.0, acc.MarginUsed)
	assert.Equal(t, 21000.5, acc.AvailableMargin)
	assert.Equal(t, -120.25, acc.UnrealizedPnL)
	assert.Equal(t, 75.0, acc.DailyPnL)
}

func orderSequenceRespond(failAt int) func(rec recordedRequest) (int, string) {
	var mu sync.Mutex
	orders := 0
	return func(rec recordedRequest) (int, string) {
		if rec.path != "/api/v1/orders" {
			return 200, okOrderEnvelope
		}
		mu.Lock()
		orders++
		n := orders
		mu.Unlock()
		if n == failAt {
			return 200, `{"code":"0","msg":"","data":[{"ordId":"","sCode":"51000","sMsg":"margin check failed"}]}`
		}
		return 200, fmt.Sprintf(`{"code":"0","msg":"","data":[{"ordId":"o-%d","sCode":"0","sMsg":""}]}`, n)
	}
}

func TestPlaceBracketOrder(t *testing.T) {
	c, broker := newGatewayClient(t)
	broker.setRespond(orderSequenceRespond(0))

	draft := models.BracketDraft{InstrumentID: "MESU6", Side: models.SideBuy, Qty: 2, EntryPrice: 100}
	bracket, err := c.PlaceBracketOrder(context.Background(), draft, 95, 110)
	require.NoError(t, err)

	assert.Equal(t, "o-1", bracket.ParentOrderID)
	assert.Equal(t, "o-2", bracket.StopLossOrderID)
	assert.Equal(t, "o-3", bracket.TakeProfitOrderID)
	assert.NotEmpty(t, bracket.OCOGroupID)
	assert.InDelta(t, 10.0, bracket.RiskAmount, 1e-9)
	assert.InDelta(t, 20.0, bracket.RewardAmount, 1e-9)

	reqs := broker.requests("/api/v1/orders")
	require.Len(t, reqs, 3)

	parent := decodeBody(t, reqs[0])
	assert.Equal(t, "limit", parent["ordType"])
	assert.Equal(t, "100", parent["px"])
	assert.Equal(t, "BUY", parent["side"])
	assert.Equal(t, bracket.OCOGroupID, parent["ocoGroup"])

	sl := decodeBody(t, reqs[1])
	assert.Equal(t, "stop", sl["ordType"])
	assert.Equal(t, "95", sl["stopPx"])
	assert.Equal(t, "SELL", sl["side"])
	assert.Equal(t, "true", sl["reduceOnly"])
	assert.Equal(t, bracket.OCOGroupID, sl["ocoGroup"])

	tp := decodeBody(t, reqs[2])
	assert.Equal(t, "limit", tp["ordType"])
	assert.Equal(t, "110", tp["px"])
	assert.Equal(t, "SELL", tp["side"])
	assert.Equal(t, bracket.OCOGroupID, tp["ocoGroup"])
}

func TestPlaceBracketOrderRollbackOnStopFailure(t *testing.T) {
	c, broker := newGatewayClient(t)
	broker.setRespond(orderSequenceRespond(2))

	draft := models.BracketDraft{InstrumentID: "MESU6", Side: models.SideBuy, Qty: 2, EntryPrice: 100}
	_, err := c.PlaceBracketOrder(context.Background(), draft, 95, 110)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop-loss")

	// родитель не живёт без защитной ноги
	cancels := broker.requests("/api/v1/orders/cancel")
	require.Len(t, cancels, 1)
	var cancelBody []map[string]string
	require.NoError(t, json.Unmarshal(cancels[0].body, &cancelBody))
	assert.Equal(t, "o-1", cancelBody[0]["ordId"])
}

func TestPlaceBracketOrderRollbackOnTakeProfitFailure(t *testing.T) {
	c, broker := newGatewayClient(t)
	broker.setRespond(orderSequenceRespond(3))

	draft := models.BracketDraft{InstrumentID: "MESU6", Side: models.SideBuy, Qty: 2, EntryPrice: 100}
	_, err := c.PlaceBracketOrder(context.Background(), draft, 95, 110)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "take-profit")

	cancels := broker.requests("/api/v1/orders/cancel")
	require.Len(t, cancels, 2)

	var first, second []map[string]string
	require.NoError(t, json.Unmarshal(cancels[0].body, &first))
	require.NoError(t, json.Unmarshal(cancels[1].body, &second))
	assert.Equal(t, "o-1", first[0]["ordId"])
	assert.Equal(t, "o-2", second[0]["ordId"])
}
