package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"margin_guard/internal/models"
)

func (c *Client) GetAccount(ctx context.Context) (*models.AccountInfo, error) {
	req, err := c.signedRequest(ctx, http.MethodGet, "/api/v1/account", nil)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GetAccount do: %w", err)
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("GetAccount http %d: %s", resp.StatusCode, string(rb))
	}

	respData := accountResponse{}
	if err := json.Unmarshal(rb, &respData); err != nil {
		return nil, err
	}
	if respData.Code != "0" {
		return nil, fmt.Errorf("GetAccount error: code=%s msg=%s", respData.Code, respData.Msg)
	}
	if len(respData.Data) == 0 {
		return nil, fmt.Errorf("GetAccount: empty data RAW=%s", string(rb))
	}

	d := respData.Data[0]
	equity, _ := strconv.ParseFloat(d.Equity, 64)
	used, _ := strconv.ParseFloat(d.MarginUsed, 64)
	avail, _ := strconv.ParseFloat(d.MarginAvail, 64)
	upl, _ := strconv.ParseFloat(d.Upl, 64)
	daily, _ := strconv.ParseFloat(d.DailyPnl, 64)

	return &models.AccountInfo{
		Equity:          equity,
		MarginUsed:      used,
		AvailableMargin: avail,
		UnrealizedPnL:   upl,
		DailyPnL:        daily,
	}, nil
}
