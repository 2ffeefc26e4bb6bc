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

// PlaceStopOrder ставит защитный стоп. Возвращает ordId.
func (c *Client) PlaceStopOrder(
	ctx context.Context,
	instID string,
	qty float64,
	stopPrice float64,
	side models.Side,
) (string, error) {
	if side != models.SideBuy && side != models.SideSell {
		return "", fmt.Errorf("PlaceStopOrder: unsupported side=%q", side)
	}
	if qty <= 0 {
		return "", fmt.Errorf("PlaceStopOrder: qty <= 0")
	}
	if stopPrice <= 0 {
		return "", fmt.Errorf("PlaceStopOrder: stopPrice <= 0")
	}

	body := map[string]string{
		"instId":     instID,
		"side":       string(side),
		"ordType":    "stop",
		"qty":        formatSize(qty),
		"stopPx":     formatPrice(stopPrice),
		"reduceOnly": "true",
	}

	payload, err := sonic.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("PlaceStopOrder marshal: %w", err)
	}

	req, err := c.signedRequest(ctx, http.MethodPost, "/api/v1/orders", payload)
	if err != nil {
		return "", fmt.Errorf("PlaceStopOrder: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("PlaceStopOrder do: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("PlaceStopOrder http %d: %s", resp.StatusCode, string(data))
	}

	var r orderResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return "", fmt.Errorf("PlaceStopOrder decode: %w; body=%s", err, string(data))
	}

	// детальный статус
	if len(r.Data) > 0 && r.Data[0].SCode != "0" {
		return "", fmt.Errorf(
			"PlaceStopOrder rejected: sCode=%s sMsg=%s RAW=%s",
			r.Data[0].SCode, r.Data[0].SMsg, string(data),
		)
	}

	// общий код
	if r.Code != "0" {
		return "", fmt.Errorf(
			"PlaceStopOrder error: code=%s msg=%s RAW=%s",
			r.Code, r.Msg, string(data),
		)
	}

	if len(r.Data) == 0 || r.Data[0].OrdID == "" {
		return "", fmt.Errorf("PlaceStopOrder: empty ordId RAW=%s", string(data))
	}

	return r.Data[0].OrdID, nil
}
