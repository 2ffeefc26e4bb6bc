package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/opentracing/opentracing-go"

	"margin_guard/internal/models"
	"margin_guard/internal/modules/config"
	"margin_guard/pkg/logger"
)

// BracketGateway ставит связку parent + SL/TP одной OCO-группой.
type BracketGateway interface {
	PlaceBracketOrder(ctx context.Context, draft models.BracketDraft, stopLossPrice, takeProfitPrice float64) (*models.BracketOrder, error)
}

// EntryDesk проверяет и ставит входные связки. Вход без стопа не ставим:
// каждая заявка проходит тиковую сетку, ценовой коридор и лимит риска.
type EntryDesk struct {
	cfg      *config.Config
	gateway  BracketGateway
	accounts AccountReader
	quotes   QuoteFeed
	meta     InstrumentMeta
	journal  Journal
	settings SettingsSource
}

func NewEntryDesk(
	cfg *config.Config,
	gateway BracketGateway,
	accounts AccountReader,
	quotes QuoteFeed,
	meta InstrumentMeta,
	journal Journal,
	settings SettingsSource,
) *EntryDesk {
	return &EntryDesk{
		cfg:      cfg,
		gateway:  gateway,
		accounts: accounts,
		quotes:   quotes,
		meta:     meta,
		journal:  journal,
		settings: settings,
	}
}

// PlanBracket нормализует заявку: цены к сетке тиков, объём от риска,
// проверка стороны стопа/тейка и лимита риска на сделку.
// Qty == 0 в черновике означает "посчитай размер от депозита".
func (e *EntryDesk) PlanBracket(
	ctx context.Context,
	draft models.BracketDraft,
	stopPrice float64,
	takeProfit float64,
) (*models.BracketPlan, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "risk.plan_bracket")
	defer span.Finish()

	if draft.Side != models.SideBuy && draft.Side != models.SideSell {
		return nil, fmt.Errorf("%w: unsupported side %q", ErrRiskValidation, draft.Side)
	}
	if stopPrice <= 0 {
		return nil, fmt.Errorf("%w: entry without a stop-loss is not allowed", ErrRiskValidation)
	}
	if draft.Qty < 0 {
		return nil, fmt.Errorf("%w: qty must not be negative", ErrRiskValidation)
	}

	inst, err := e.meta.GetInstrumentMeta(ctx, draft.InstrumentID)
	if err != nil {
		return nil, fmt.Errorf("PlanBracket instrument %s: %w", draft.InstrumentID, err)
	}

	stopPrice, err = TickRound(stopPrice, inst.TickSize)
	if err != nil {
		return nil, err
	}
	if takeProfit > 0 {
		if takeProfit, err = TickRound(takeProfit, inst.TickSize); err != nil {
			return nil, err
		}
	}
	if draft.EntryPrice > 0 {
		if draft.EntryPrice, err = TickRound(draft.EntryPrice, inst.TickSize); err != nil {
			return nil, err
		}
	}

	refPrice, err := e.refPrice(ctx, draft, inst)
	if err != nil {
		return nil, err
	}

	// защитная сторона: стоп режет убыток, тейк забирает профит
	switch draft.Side {
	case models.SideBuy:
		if stopPrice >= refPrice {
			return nil, fmt.Errorf("%w: BUY stop %v must be below entry %v", ErrRiskValidation, stopPrice, refPrice)
		}
		if takeProfit > 0 && takeProfit <= refPrice {
			return nil, fmt.Errorf("%w: BUY take-profit %v must be above entry %v", ErrRiskValidation, takeProfit, refPrice)
		}
	case models.SideSell:
		if stopPrice <= refPrice {
			return nil, fmt.Errorf("%w: SELL stop %v must be above entry %v", ErrRiskValidation, stopPrice, refPrice)
		}
		if takeProfit > 0 && takeProfit >= refPrice {
			return nil, fmt.Errorf("%w: SELL take-profit %v must be below entry %v", ErrRiskValidation, takeProfit, refPrice)
		}
	}

	acct, err := e.accounts.GetAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("PlanBracket account: %w", err)
	}
	if acct.Equity <= 0 {
		return nil, fmt.Errorf("%w: account equity %v", ErrRiskValidation, acct.Equity)
	}

	riskFraction := e.settings.Settings().MaxRiskPerTradePct / 100
	if riskFraction <= 0 {
		return nil, fmt.Errorf("%w: max_risk_per_trade_pct must be positive", ErrInvalidConfiguration)
	}
	budget := acct.Equity * riskFraction
	stopDist := math.Abs(refPrice - stopPrice)

	qty := draft.Qty
	sizedByRisk := false
	if qty == 0 {
		raw := budget / stopDist
		if math.IsNaN(raw) || math.IsInf(raw, 0) {
			return nil, fmt.Errorf("%w: qty calc invalid: budget=%v stopDist=%v", ErrRiskValidation, budget, stopDist)
		}
		// округляем ВНИЗ: риск — потолок, а не цель
		steps := math.Floor(raw/inst.MinQty + 1e-9)
		qty = steps * inst.MinQty
		if qty < inst.MinQty {
			return nil, fmt.Errorf("%w: risk budget %v covers less than %v contracts at stop distance %v",
				ErrQuantityTooSmall, budget, inst.MinQty, stopDist)
		}
		sizedByRisk = true
	} else if err := EnsureQtyIncrement(qty, inst.MinQty); err != nil {
		return nil, err
	}

	riskAmount := stopDist * qty
	if riskAmount > budget+1e-9 {
		return nil, fmt.Errorf("%w: risk %v exceeds per-trade budget %v (%.2f%% of equity)",
			ErrRiskValidation, riskAmount, budget, e.settings.Settings().MaxRiskPerTradePct)
	}

	plan := &models.BracketPlan{
		Draft:       draft,
		StopPrice:   stopPrice,
		TakeProfit:  takeProfit,
		RefPrice:    refPrice,
		RiskAmount:  riskAmount,
		RiskPct:     riskAmount / acct.Equity * 100,
		SizedByRisk: sizedByRisk,
	}
	plan.Draft.Qty = qty
	if takeProfit > 0 {
		plan.RewardAmount = math.Abs(takeProfit-refPrice) * qty
	}
	return plan, nil
}

// refPrice — цена для расчёта риска. Для лимитного входа это entry,
// дополнительно прижатый к коридору вокруг последней цены. Для market
// берём последнюю котировку, без неё рыночный вход не считается.
func (e *EntryDesk) refPrice(ctx context.Context, draft models.BracketDraft, inst models.Instrument) (float64, error) {
	q, qErr := e.quotes.GetQuote(ctx, draft.InstrumentID)

	if draft.EntryPrice > 0 {
		if qErr != nil || q.Last <= 0 {
			if qErr != nil {
				logger.Error("risk: quote %s: %v", draft.InstrumentID, qErr)
			}
			return draft.EntryPrice, nil
		}
		maxTicks := inst.MaxDeviationTicks
		if maxTicks <= 0 {
			maxTicks = e.cfg.MaxDeviationTicks
		}
		if err := EnsurePriceBands(q.Last, draft.EntryPrice, maxTicks, inst.TickSize); err != nil {
			return 0, err
		}
		return draft.EntryPrice, nil
	}

	if qErr != nil {
		return 0, fmt.Errorf("PlanBracket quote %s: %w", draft.InstrumentID, qErr)
	}
	if q.Last <= 0 {
		return 0, fmt.Errorf("%w: no market price for %s", ErrRiskValidation, draft.InstrumentID)
	}
	return q.Last, nil
}

// PlaceBracket исполняет подготовленный план. Свежесть плана на совести
// вызывающего: между plan и place рынок может уйти.
func (e *EntryDesk) PlaceBracket(ctx context.Context, plan *models.BracketPlan) (*models.BracketOrder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "risk.place_bracket")
	defer span.Finish()

	if plan == nil || plan.Draft.Qty <= 0 {
		return nil, fmt.Errorf("%w: empty bracket plan", ErrRiskValidation)
	}

	bracket, err := e.gateway.PlaceBracketOrder(ctx, plan.Draft, plan.StopPrice, plan.TakeProfit)
	if err != nil {
		return nil, fmt.Errorf("PlaceBracket: %w", err)
	}

	logger.Info("risk: bracket placed: inst=%s side=%s qty=%v entry=%v sl=%v tp=%v oco=%s",
		plan.Draft.InstrumentID, plan.Draft.Side, plan.Draft.Qty,
		plan.Draft.EntryPrice, plan.StopPrice, plan.TakeProfit, bracket.OCOGroupID)

	if e.journal != nil {
		rec := models.Adjustment{
			// позиции ещё нет, связку идентифицирует OCO-группа
			PositionID:   bracket.OCOGroupID,
			InstrumentID: plan.Draft.InstrumentID,
			Kind:         models.AdjustBracketOpen,
			NewStop:      plan.StopPrice,
			Qty:          plan.Draft.Qty,
			OrderID:      bracket.ParentOrderID,
			CreatedAt:    time.Now(),
		}
		if err := e.journal.RecordAdjustment(ctx, rec); err != nil {
			logger.Error("risk: journal bracket open: %v", err)
		}
	}
	return bracket, nil
}
