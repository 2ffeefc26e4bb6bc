package service

import (
	"context"
	"fmt"
	"sort"

	"margin_guard/internal/models"
	"margin_guard/internal/notify"
)

// PositionSource отдаёт открытые позиции брокера.
type PositionSource interface {
	GetPositions(ctx context.Context) ([]models.Position, error)
}

// Registrar ставит позиции под сопровождение.
type Registrar interface {
	Register(ctx context.Context, pos models.Position, entryPrice float64)
	MonitorCount() int
}

// QuoteStreamer поднимает WS-поток котировок по списку инструментов.
type QuoteStreamer interface {
	StreamQuotes(ctx context.Context, instrumentIDs []string)
}

// ReadySink переключает readiness после прогрева.
type ReadySink interface {
	SetReady(v bool)
}

// Warmuper на старте подхватывает уже открытые позиции:
// регистрирует каждую в риск-движке и подписывает WS на их инструменты.
type Warmuper struct {
	positions PositionSource
	engine    Registrar
	stream    QuoteStreamer
	ready     ReadySink
	n         notify.Notifier
}

func NewWarmuper(positions PositionSource, engine Registrar, stream QuoteStreamer, ready ReadySink, n notify.Notifier) *Warmuper {
	return &Warmuper{
		positions: positions,
		engine:    engine,
		stream:    stream,
		ready:     ready,
		n:         n,
	}
}

func (w *Warmuper) Warmup(ctx context.Context) error {
	positions, err := w.positions.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("warmup positions: %w", err)
	}

	seen := make(map[string]struct{}, len(positions))
	for _, pos := range positions {
		w.engine.Register(ctx, pos, pos.AvgEntryPrice)
		seen[pos.InstrumentID] = struct{}{}
	}

	instruments := make([]string, 0, len(seen))
	for id := range seen {
		instruments = append(instruments, id)
	}
	sort.Strings(instruments)

	if len(instruments) > 0 {
		w.stream.StreamQuotes(ctx, instruments)
	}

	w.ready.SetReady(true)

	if len(positions) == 0 {
		w.n.Send("🚀 Старт: открытых позиций нет, жду регистраций")
		return nil
	}
	w.n.Sendf("🚀 Старт: под сопровождением %d позиций, WS на %d инструментов", w.engine.MonitorCount(), len(instruments))
	return nil
}
