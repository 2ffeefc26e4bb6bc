package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"margin_guard/internal/models"
)

func (c *Client) GetInstrumentMeta(ctx context.Context, instID string) (models.Instrument, error) {
	req, err := c.signedRequest(ctx, http.MethodGet, "/api/v1/instruments?instId="+url.QueryEscape(instID), nil)
	if err != nil {
		return models.Instrument{}, fmt.Errorf("GetInstrumentMeta: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Instrument{}, fmt.Errorf("GetInstrumentMeta do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return models.Instrument{}, fmt.Errorf("GetInstrumentMeta http %d: %s", resp.StatusCode, string(b))
	}

	var payload instrumentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return models.Instrument{}, fmt.Errorf("GetInstrumentMeta decode: %w", err)
	}
	if payload.Code != "0" {
		return models.Instrument{}, fmt.Errorf("GetInstrumentMeta error %s: %s", payload.Code, payload.Msg)
	}
	if len(payload.Data) == 0 {
		return models.Instrument{}, fmt.Errorf("GetInstrumentMeta: unknown instrument %s", instID)
	}

	inst := payload.Data[0]
	if inst.State != "" && inst.State != "live" {
		return models.Instrument{}, fmt.Errorf("GetInstrumentMeta: instrument %s is %s, not tradable", instID, inst.State)
	}

	tickSz, err := strconv.ParseFloat(inst.TickSz, 64)
	if err != nil || tickSz <= 0 {
		return models.Instrument{}, fmt.Errorf("GetInstrumentMeta: bad tickSz %q", inst.TickSz)
	}

	minSz, err := strconv.ParseFloat(inst.MinSz, 64)
	if err != nil || minSz <= 0 {
		return models.Instrument{}, fmt.Errorf("GetInstrumentMeta: bad minSz %q", inst.MinSz)
	}

	// ширина ценового коридора опциональна, у части инструментов её нет
	maxDev := 0
	if inst.MaxDevTicks != "" {
		if n, err := strconv.Atoi(inst.MaxDevTicks); err == nil && n > 0 {
			maxDev = n
		}
	}

	return models.Instrument{
		ID:                inst.InstID,
		Name:              inst.Name,
		TickSize:          tickSz,
		MinQty:            minSz,
		MaxDeviationTicks: maxDev,
	}, nil
}
