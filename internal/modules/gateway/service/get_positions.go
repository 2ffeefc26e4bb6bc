package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"margin_guard/internal/models"
)

// GetPositions вытаскивает открытые позиции брокера и мапит их в упрощённую структуру.
func (c *Client) GetPositions(ctx context.Context) ([]models.Position, error) {
	req, err := c.signedRequest(ctx, http.MethodGet, "/api/v1/positions", nil)
	if err != nil {
		return nil, fmt.Errorf("GetPositions: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GetPositions do: %w", err)
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("GetPositions http %d: %s", resp.StatusCode, string(rb))
	}

	respData := positionsResponse{}
	if err := json.Unmarshal(rb, &respData); err != nil {
		return nil, err
	}
	if respData.Code != "0" {
		return nil, fmt.Errorf("GetPositions error: code=%s msg=%s", respData.Code, respData.Msg)
	}

	res := make([]models.Position, 0, len(respData.Data))
	for _, d := range respData.Data {
		qty, _ := strconv.ParseFloat(d.Qty, 64)
		if qty <= 0 {
			continue
		}
		avgPx, _ := strconv.ParseFloat(d.AvgPx, 64)
		upl, _ := strconv.ParseFloat(d.Upl, 64)

		updated := time.Time{}
		if ms, err := strconv.ParseInt(d.UTime, 10, 64); err == nil {
			updated = time.UnixMilli(ms)
		}

		res = append(res, models.Position{
			ID:            d.PosID,
			InstrumentID:  d.InstID,
			Side:          models.Side(d.Side), // "BUY"/"SELL"
			Qty:           qty,
			AvgEntryPrice: avgPx,
			UnrealizedPnL: upl,
			Updated:       updated,
		})
	}
	return res, nil
}
