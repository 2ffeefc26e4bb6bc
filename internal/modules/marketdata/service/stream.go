package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

type subscription struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type wsRequest struct {
	Op   string         `json:"op"`
	Args []subscription `json:"args,omitempty"`
}

type quoteFrame struct {
	Arg  subscription `json:"arg"`
	Data []quoteRow   `json:"data"`
}

// StreamQuotes держит WebSocket с котировками и пополняет кэш клиента.
// Разрывы переживает сам: секунда паузы и переподключение.
func (c *Client) StreamQuotes(ctx context.Context, instrumentIDs []string) {
	if len(instrumentIDs) == 0 {
		return
	}

	args := make([]subscription, 0, len(instrumentIDs))
	for _, id := range instrumentIDs {
		args = append(args, subscription{Channel: "quotes", InstID: id})
	}

	go c.runQuoteStream(ctx, args)
}

func (c *Client) runQuoteStream(ctx context.Context, args []subscription) {
	dialer := &websocket.Dialer{}

	for ctx.Err() == nil {
		conn, _, err := dialer.Dial(c.cfg.Broker.WSURL, nil)
		if err != nil {
			log.Printf("[WS] dial error: %v", err)
			sleepOrDone(ctx, time.Second)
			continue
		}

		if err := conn.WriteJSON(wsRequest{Op: "subscribe", Args: args}); err != nil {
			log.Printf("[WS] subscribe error: %v", err)
			_ = conn.Close()
			sleepOrDone(ctx, time.Second)
			continue
		}

		log.Printf("[WS] quotes stream up, %d instruments", len(args))
		c.setConnected(true)
		c.consumeQuotes(ctx, conn)
		c.setConnected(false)
		_ = conn.Close()

		sleepOrDone(ctx, time.Second)
	}
}

func (c *Client) consumeQuotes(ctx context.Context, conn *websocket.Conn) {
	stopPing := make(chan struct{})
	defer close(stopPing)

	// keepalive ping каждые 20s, иначе брокер рвёт соединение
	go func() {
		t := time.NewTicker(20 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopPing:
				return
			case <-t.C:
				_ = conn.WriteJSON(wsRequest{Op: "ping"})
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] read error: %v", err)
			return
		}

		var frame quoteFrame
		if err := json.Unmarshal(msg, &frame); err != nil || frame.Arg.Channel != "quotes" {
			continue
		}

		for _, row := range frame.Data {
			q, err := parseQuote(row)
			if err != nil {
				continue
			}
			if q.InstrumentID == "" {
				q.InstrumentID = frame.Arg.InstID
			}
			c.store(q)
		}
	}
}

func (c *Client) setConnected(v bool) {
	if c.health != nil {
		c.health.SetWSConnected(v)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
