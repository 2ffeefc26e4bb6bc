package models

import "time"

// Side как у брокера: "BUY"/"SELL" или пустая строка.
type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite — сторона закрывающего ордера.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	}
	return SideNone
}

type Position struct {
	ID            string
	InstrumentID  string
	Side          Side // BUY/SELL
	Qty           float64
	AvgEntryPrice float64
	UnrealizedPnL float64
	Updated       time.Time
}

type Quote struct {
	InstrumentID string
	Bid          float64
	Ask          float64
	Last         float64
	Ts           time.Time
}

type AccountInfo struct {
	Equity          float64
	MarginUsed      float64
	AvailableMargin float64
	UnrealizedPnL   float64
	DailyPnL        float64
}

type PosKey struct {
	InstrumentID string
	Side         Side
}
