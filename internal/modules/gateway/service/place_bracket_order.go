package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"margin_guard/internal/models"
)

// PlaceBracketOrder ставит parent + SL/TP одной OCO-группой.
// Если дочерний ордер не встал, родительский отменяется: связка не живёт наполовину.
func (c *Client) PlaceBracketOrder(
	ctx context.Context,
	draft models.BracketDraft,
	stopLossPrice float64,
	takeProfitPrice float64,
) (*models.BracketOrder, error) {
	if draft.Qty <= 0 {
		return nil, fmt.Errorf("PlaceBracketOrder: qty <= 0")
	}

	ocoGroupID := uuid.NewString()

	parentID, err := c.placeParent(ctx, draft, ocoGroupID)
	if err != nil {
		return nil, fmt.Errorf("PlaceBracketOrder parent: %w", err)
	}

	bracket := &models.BracketOrder{
		ParentOrderID: parentID,
		OCOGroupID:    ocoGroupID,
	}

	closeSide := draft.Side.Opposite()

	if stopLossPrice > 0 {
		slID, err := c.placeChild(ctx, draft.InstrumentID, closeSide, draft.Qty, "stop", stopLossPrice, ocoGroupID)
		if err != nil {
			// дочерний не встал — снимаем родителя
			_ = c.CancelOrder(ctx, parentID)
			return nil, fmt.Errorf("PlaceBracketOrder stop-loss: %w", err)
		}
		bracket.StopLossOrderID = slID
	}

	if takeProfitPrice > 0 {
		tpID, err := c.placeChild(ctx, draft.InstrumentID, closeSide, draft.Qty, "limit", takeProfitPrice, ocoGroupID)
		if err != nil {
			_ = c.CancelOrder(ctx, parentID)
			if bracket.StopLossOrderID != "" {
				_ = c.CancelOrder(ctx, bracket.StopLossOrderID)
			}
			return nil, fmt.Errorf("PlaceBracketOrder take-profit: %w", err)
		}
		bracket.TakeProfitOrderID = tpID
	}

	if draft.EntryPrice > 0 {
		if stopLossPrice > 0 {
			bracket.RiskAmount = math.Abs(draft.EntryPrice-stopLossPrice) * draft.Qty
		}
		if takeProfitPrice > 0 {
			bracket.RewardAmount = math.Abs(takeProfitPrice-draft.EntryPrice) * draft.Qty
		}
	}

	return bracket, nil
}

func (c *Client) placeParent(ctx context.Context, draft models.BracketDraft, ocoGroupID string) (string, error) {
	body := map[string]string{
		"instId":   draft.InstrumentID,
		"side":     string(draft.Side),
		"qty":      formatSize(draft.Qty),
		"ocoGroup": ocoGroupID,
	}
	if draft.EntryPrice > 0 {
		body["ordType"] = "limit"
		body["px"] = formatPrice(draft.EntryPrice)
	} else {
		body["ordType"] = "market"
	}
	return c.submitOrder(ctx, body)
}

func (c *Client) placeChild(
	ctx context.Context,
	instID string,
	side models.Side,
	qty float64,
	ordType string,
	price float64,
	ocoGroupID string,
) (string, error) {
	body := map[string]string{
		"instId":     instID,
		"side":       string(side),
		"ordType":    ordType,
		"qty":        formatSize(qty),
		"ocoGroup":   ocoGroupID,
		"reduceOnly": "true",
	}
	if ordType == "stop" {
		body["stopPx"] = formatPrice(price)
	} else {
		body["px"] = formatPrice(price)
	}
	return c.submitOrder(ctx, body)
}

func (c *Client) submitOrder(ctx context.Context, body map[string]string) (string, error) {
	payload, err := sonic.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("submitOrder marshal: %w", err)
	}

	req, err := c.signedRequest(ctx, http.MethodPost, "/api/v1/orders", payload)
	if err != nil {
		return "", fmt.Errorf("submitOrder: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitOrder do: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("submitOrder http %d: %s", resp.StatusCode, string(data))
	}

	var r orderResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return "", fmt.Errorf("submitOrder decode: %w; body=%s", err, string(data))
	}
	if len(r.Data) > 0 && r.Data[0].SCode != "0" {
		return "", fmt.Errorf("submitOrder rejected: sCode=%s sMsg=%s RAW=%s", r.Data[0].SCode, r.Data[0].SMsg, string(data))
	}
	if r.Code != "0" {
		return "", fmt.Errorf("submitOrder error: code=%s msg=%s RAW=%s", r.Code, r.Msg, string(data))
	}
	if len(r.Data) == 0 || r.Data[0].OrdID == "" {
		return "", fmt.Errorf("submitOrder: empty ordId RAW=%s", string(data))
	}
	return r.Data[0].OrdID, nil
}
