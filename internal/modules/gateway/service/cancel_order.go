package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
)

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	body := []map[string]string{{"ordId": orderID}}
	payload, _ := sonic.Marshal(body)

	req, err := c.signedRequest(ctx, http.MethodPost, "/api/v1/orders/cancel", payload)
	if err != nil {
		return fmt.Errorf("CancelOrder: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("CancelOrder do: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("CancelOrder http %d: %s", resp.StatusCode, string(data))
	}

	var r orderResponse
	_ = json.Unmarshal(data, &r)

	if r.Code != "0" {
		return fmt.Errorf("CancelOrder error: code=%s msg=%s RAW=%s", r.Code, r.Msg, string(data))
	}
	if len(r.Data) == 0 || r.Data[0].SCode != "0" {
		return fmt.Errorf("CancelOrder reject RAW=%s", string(data))
	}
	return nil
}
