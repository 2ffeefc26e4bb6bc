package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"

	"margin_guard/internal/models"
)

// PlaceLimitOrder ставит лимитный ордер. reduceOnly=true для частичной фиксации,
// чтобы ордер не мог открыть встречную позицию.
func (c *Client) PlaceLimitOrder(
	ctx context.Context,
	instID string,
	qty float64,
	limitPrice float64,
	side models.Side,
	reduceOnly bool,
) (string, error) {
	if side != models.SideBuy && side != models.SideSell {
		return "", fmt.Errorf("PlaceLimitOrder: unsupported side=%q", side)
	}
	if qty <= 0 {
		return "", fmt.Errorf("PlaceLimitOrder: qty <= 0")
	}
	if limitPrice <= 0 {
		return "", fmt.Errorf("PlaceLimitOrder: limitPrice <= 0")
	}

	body := map[string]string{
		"instId":  instID,
		"side":    string(side),
		"ordType": "limit",
		"qty":     formatSize(qty),
		"px":      formatPrice(limitPrice),
	}
	if reduceOnly {
		body["reduceOnly"] = "true"
	}

	payload, err := sonic.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("PlaceLimitOrder marshal: %w", err)
	}

	req, err := c.signedRequest(ctx, http.MethodPost, "/api/v1/orders", payload)
	if err != nil {
		return "", fmt.Errorf("PlaceLimitOrder: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("PlaceLimitOrder do: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("PlaceLimitOrder http %d: %s", resp.StatusCode, string(data))
	}

	var r orderResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return "", fmt.Errorf("PlaceLimitOrder decode: %w; body=%s", err, string(data))
	}

	if len(r.Data) > 0 && r.Data[0].SCode != "0" {
		return "", fmt.Errorf(
			"PlaceLimitOrder rejected: sCode=%s sMsg=%s RAW=%s",
			r.Data[0].SCode, r.Data[0].SMsg, string(data),
		)
	}

	if r.Code != "0" {
		return "", fmt.Errorf(
			"PlaceLimitOrder error: code=%s msg=%s RAW=%s",
			r.Code, r.Msg, string(data),
		)
	}

	if len(r.Data) == 0 || r.Data[0].OrdID == "" {
		return "", fmt.Errorf("PlaceLimitOrder: empty ordId RAW=%s", string(data))
	}

	return r.Data[0].OrdID, nil
}
