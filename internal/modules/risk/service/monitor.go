package service

import (
	"context"
	"strconv"
	"time"

	"margin_guard/internal/models"
	"margin_guard/pkg/logger"
)

// TradingGateway — то, что риск-движку нужно от торгового шлюза.
type TradingGateway interface {
	GetPositions(ctx context.Context) ([]models.Position, error)
	PlaceStopOrder(ctx context.Context, instrumentID string, qty, stopPrice float64, side models.Side) (string, error)
	PlaceLimitOrder(ctx context.Context, instrumentID string, qty, limitPrice float64, side models.Side, reduceOnly bool) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// QuoteFeed отдаёт актуальную котировку по инструменту.
type QuoteFeed interface {
	GetQuote(ctx context.Context, instrumentID string) (*models.Quote, error)
}

// Journal пишет перестановки стопов в хранилище.
type Journal interface {
	RecordAdjustment(ctx context.Context, a models.Adjustment) error
}

// Notifier шлёт уведомления о действиях движка.
type Notifier interface {
	Sendf(format string, args ...interface{})
}

// PositionMonitor ведёт одну позицию: переводит стоп в безубыток и тянет
// трейлинг за лучшей ценой. Все поля мутирует только петля мониторинга.
type PositionMonitor struct {
	pos        models.Position
	entryPrice float64
	settings   models.RiskManagementSettings
	inst       models.Instrument

	breakEvenActivated    bool
	trailingActivated     bool
	highestFavorablePrice float64
	currentStopID         string
	lastStopPrice         float64
	closed                bool

	gateway  TradingGateway
	quotes   QuoteFeed
	journal  Journal
	notifier Notifier
}

func newPositionMonitor(
	pos models.Position,
	entryPrice float64,
	settings models.RiskManagementSettings,
	inst models.Instrument,
	gateway TradingGateway,
	quotes QuoteFeed,
	journal Journal,
	notifier Notifier,
) *PositionMonitor {
	if entryPrice <= 0 {
		entryPrice = pos.AvgEntryPrice
	}
	return &PositionMonitor{
		pos:                   pos,
		entryPrice:            entryPrice,
		settings:              settings,
		inst:                  inst,
		highestFavorablePrice: entryPrice,
		gateway:               gateway,
		quotes:                quotes,
		journal:               journal,
		notifier:              notifier,
	}
}

// update прогоняет один тик мониторинга. current == nil означает, что
// позиции больше нет в снапшоте шлюза.
func (m *PositionMonitor) update(ctx context.Context, current *models.Position) {
	if m.closed {
		return
	}
	if current == nil {
		m.closed = true
		logger.Info("monitor %s: position closed", m.pos.ID)
		return
	}
	m.pos = *current

	price, ok := m.currentPrice(ctx)
	if !ok {
		// без котировки тик пропускаем целиком
		return
	}

	m.ratchet(price)

	// --- 1) безубыток ---
	if m.settings.EnableBreakEvenProtection && !m.breakEvenActivated {
		m.checkBreakEven(ctx, price)
	}

	// --- 2) трейлинг ---
	if m.settings.EnableTrailingStops {
		if !m.trailingActivated {
			m.checkTrailingActivation(ctx, price)
		} else {
			m.updateTrailingStop(ctx)
		}
	}
}

// Лонг закрывается по биду, шорт по аску — за этой ценой и следим.
func (m *PositionMonitor) currentPrice(ctx context.Context) (float64, bool) {
	q, err := m.quotes.GetQuote(ctx, m.pos.InstrumentID)
	if err != nil {
		logger.Error("monitor %s: quote %s: %v", m.pos.ID, m.pos.InstrumentID, err)
		return 0, false
	}

	px := q.Ask
	if m.pos.Side == models.SideBuy {
		px = q.Bid
	}
	if px <= 0 {
		return 0, false
	}
	return px, true
}

// ratchet двигает лучшую цену только в сторону профита.
func (m *PositionMonitor) ratchet(price float64) {
	if m.pos.Side == models.SideBuy {
		if price > m.highestFavorablePrice {
			m.highestFavorablePrice = price
		}
		return
	}
	if price < m.highestFavorablePrice {
		m.highestFavorablePrice = price
	}
}

// profitPct — профит в процентах от входа, для шорта знак перевёрнут.
func (m *PositionMonitor) profitPct(price float64) float64 {
	if m.entryPrice <= 0 {
		return 0
	}
	diff := price - m.entryPrice
	if m.pos.Side == models.SideSell {
		diff = m.entryPrice - price
	}
	return diff / m.entryPrice * 100
}

func (m *PositionMonitor) checkBreakEven(ctx context.Context, price float64) {
	if m.profitPct(price) < m.settings.BreakEvenTriggerPct {
		return
	}

	buffer := float64(m.settings.BreakEvenBufferTicks) * m.inst.TickSize
	cand := m.entryPrice - buffer
	if m.pos.Side == models.SideSell {
		cand = m.entryPrice + buffer
	}

	cand, err := TickRound(cand, m.inst.TickSize)
	if err != nil {
		logger.Error("monitor %s: break-even price: %v", m.pos.ID, err)
		return
	}

	// действующий стоп уже не хуже безубытка — ослаблять его нельзя
	if m.lastStopPrice > 0 && !m.improvesEnough(cand) {
		m.breakEvenActivated = true
		logger.Info("monitor %s: break-even already covered by stop %v", m.pos.ID, m.lastStopPrice)
		return
	}

	if err := m.replaceStop(ctx, cand, models.AdjustBreakEven); err != nil {
		// флаг не ставим, следующий тик попробует снова
		logger.Error("monitor %s: break-even stop: %v", m.pos.ID, err)
		return
	}

	m.breakEvenActivated = true
	m.sendf("🛡 [%s] Стоп переведён в безубыток: %s", m.pos.InstrumentID, fmtPx(cand))
	logger.Info("monitor %s: break-even stop at %v", m.pos.ID, cand)
}

func (m *PositionMonitor) checkTrailingActivation(ctx context.Context, price float64) {
	if m.profitPct(price) < m.settings.TrailingStopTriggerPct {
		return
	}

	m.trailingActivated = true
	m.sendf("📈 [%s] Трейлинг-стоп активирован", m.pos.InstrumentID)
	logger.Info("monitor %s: trailing activated at %v", m.pos.ID, price)
	m.updateTrailingStop(ctx)
}

func (m *PositionMonitor) updateTrailingStop(ctx context.Context) {
	distance := float64(m.settings.TrailingStopDistanceTicks) * m.inst.TickSize

	cand := m.highestFavorablePrice - distance
	if m.pos.Side == models.SideSell {
		cand = m.highestFavorablePrice + distance
	}

	cand, err := TickRound(cand, m.inst.TickSize)
	if err != nil {
		logger.Error("monitor %s: trailing price: %v", m.pos.ID, err)
		return
	}

	if m.lastStopPrice > 0 && !m.improvesEnough(cand) {
		return
	}

	old := m.lastStopPrice
	if err := m.replaceStop(ctx, cand, models.AdjustTrailing); err != nil {
		logger.Error("monitor %s: trailing stop: %v", m.pos.ID, err)
		return
	}
	logger.Info("monitor %s: trailing stop %v -> %v", m.pos.ID, old, cand)
}

// improvesEnough — стоп двигается только в сторону профита и минимум на тик.
func (m *PositionMonitor) improvesEnough(cand float64) bool {
	minImprove := m.inst.TickSize - 1e-12
	if m.pos.Side == models.SideBuy {
		return cand-m.lastStopPrice >= minImprove
	}
	return m.lastStopPrice-cand >= minImprove
}

// replaceStop снимает старый стоп и ставит новый reduce-only.
// Неудавшаяся отмена постановку не блокирует: старый ордер мог уже
// исполниться или быть снят вручную.
func (m *PositionMonitor) replaceStop(ctx context.Context, stopPrice float64, kind models.AdjustmentKind) error {
	if m.currentStopID != "" {
		if err := m.gateway.CancelOrder(ctx, m.currentStopID); err != nil {
			logger.Info("monitor %s: cancel stop %s: %v", m.pos.ID, m.currentStopID, err)
		}
	}

	orderID, err := m.gateway.PlaceStopOrder(ctx, m.pos.InstrumentID, m.pos.Qty, stopPrice, m.pos.Side.Opposite())
	if err != nil {
		return err
	}

	old := m.lastStopPrice
	m.currentStopID = orderID
	m.lastStopPrice = stopPrice

	if m.journal != nil {
		rec := models.Adjustment{
			PositionID:   m.pos.ID,
			InstrumentID: m.pos.InstrumentID,
			Kind:         kind,
			OldStop:      old,
			NewStop:      stopPrice,
			Qty:          m.pos.Qty,
			OrderID:      orderID,
			CreatedAt:    time.Now(),
		}
		if err := m.journal.RecordAdjustment(ctx, rec); err != nil {
			logger.Error("monitor %s: journal: %v", m.pos.ID, err)
		}
	}
	return nil
}

func (m *PositionMonitor) sendf(format string, args ...interface{}) {
	if m.notifier == nil {
		return
	}
	m.notifier.Sendf(format, args...)
}

func fmtPx(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
