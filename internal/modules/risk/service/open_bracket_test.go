package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"margin_guard/internal/models"
	"margin_guard/internal/modules/config"
)

type bracketCall struct {
	draft models.BracketDraft
	sl    float64
	tp    float64
}

type fakeBracketGateway struct {
	mu      sync.Mutex
	calls   []bracketCall
	err     error
	bracket models.BracketOrder
}

func (g *fakeBracketGateway) PlaceBracketOrder(_ context.Context, draft models.BracketDraft, sl, tp float64) (*models.BracketOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, bracketCall{draft: draft, sl: sl, tp: tp})
	if g.err != nil {
		return nil, g.err
	}
	b := g.bracket
	return &b, nil
}

func (g *fakeBracketGateway) placed() []bracketCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]bracketCall(nil), g.calls...)
}

type deskFixture struct {
	desk     *EntryDesk
	gw       *fakeBracketGateway
	accounts *fakeAccounts
	quotes   *fakeQuotes
	meta     *fakeMeta
	journal  *fakeJournal
}

// котировка 101.75/102 -> last 101.875; депозит 10000, риск 2% -> бюджет 200
func newDeskFixture() *deskFixture {
	f := &deskFixture{
		gw: &fakeBracketGateway{bracket: models.BracketOrder{
			ParentOrderID:     "o-1",
			StopLossOrderID:   "o-2",
			TakeProfitOrderID: "o-3",
			OCOGroupID:        "oco-1",
		}},
		accounts: &fakeAccounts{acc: models.AccountInfo{Equity: 10000}},
		quotes:   &fakeQuotes{},
		meta:     &fakeMeta{inst: models.Instrument{ID: "MESU6", TickSize: 0.25, MinQty: 1}},
		journal:  &fakeJournal{},
	}
	f.quotes.set("MESU6", 101.75, 102)

	cfg := &config.Config{MaxDeviationTicks: 10}
	f.desk = NewEntryDesk(cfg, f.gw, f.accounts, f.quotes, f.meta, f.journal,
		staticSettings{models.RiskManagementSettings{MaxRiskPerTradePct: 2}})
	return f
}

func buyDraft(qty, entry float64) models.BracketDraft {
	return models.BracketDraft{InstrumentID: "MESU6", Side: models.SideBuy, Qty: qty, EntryPrice: entry}
}

func TestPlanBracketLimitBuy(t *testing.T) {
	f := newDeskFixture()

	plan, err := f.desk.PlanBracket(context.Background(), buyDraft(2, 102.13), 99.4, 110.6)
	require.NoError(t, err)

	// все цены прижаты к тиковой сетке
	assert.Equal(t, 102.25, plan.Draft.EntryPrice)
	assert.Equal(t, 99.5, plan.StopPrice)
	assert.Equal(t, 110.5, plan.TakeProfit)
	assert.Equal(t, 102.25, plan.RefPrice)

	assert.Equal(t, 2.0, plan.Draft.Qty)
	assert.False(t, plan.SizedByRisk)
	assert.InDelta(t, 5.5, plan.RiskAmount, 1e-9)    // 2.75 * 2
	assert.InDelta(t, 16.5, plan.RewardAmount, 1e-9) // 8.25 * 2
	assert.InDelta(t, 0.055, plan.RiskPct, 1e-9)
}

func TestPlanBracketMarketSellSizedByRisk(t *testing.T) {
	f := newDeskFixture()

	draft := models.BracketDraft{InstrumentID: "MESU6", Side: models.SideSell}
	plan, err := f.desk.PlanBracket(context.Background(), draft, 103.875, 0)
	require.NoError(t, err)

	// стоп 103.875 -> 104, дистанция 2.125 от last 101.875;
	// бюджет 200 покрывает 94 контракта, вниз до шага
	assert.True(t, plan.SizedByRisk)
	assert.Equal(t, 94.0, plan.Draft.Qty)
	assert.InDelta(t, 101.875, plan.RefPrice, 1e-9)
	assert.Equal(t, 104.0, plan.StopPrice)
	assert.InDelta(t, 199.75, plan.RiskAmount, 1e-9)
	assert.Zero(t, plan.RewardAmount)
}

func TestPlanBracketProtectiveSide(t *testing.T) {
	f := newDeskFixture()
	ctx := context.Background()

	// BUY: стоп на уровне входа или выше — не защита
	_, err := f.desk.PlanBracket(ctx, buyDraft(2, 102.25), 102.25, 0)
	assert.ErrorIs(t, err, ErrRiskValidation)
	_, err = f.desk.PlanBracket(ctx, buyDraft(2, 102.25), 103, 0)
	assert.ErrorIs(t, err, ErrRiskValidation)

	// BUY: тейк ниже входа
	_, err = f.desk.PlanBracket(ctx, buyDraft(2, 102.25), 99.5, 101)
	assert.ErrorIs(t, err, ErrRiskValidation)

	// SELL: стоп ниже входа
	sell := models.BracketDraft{InstrumentID: "MESU6", Side: models.SideSell, Qty: 2, EntryPrice: 102.25}
	_, err = f.desk.PlanBracket(ctx, sell, 100, 0)
	assert.ErrorIs(t, err, ErrRiskValidation)
}

func TestPlanBracketRejectsBadDraft(t *testing.T) {
	f := newDeskFixture()
	ctx := context.Background()

	_, err := f.desk.PlanBracket(ctx, buyDraft(2, 102.25), 0, 0)
	assert.ErrorIs(t, err, ErrRiskValidation) // без стопа входа нет

	noSide := models.BracketDraft{InstrumentID: "MESU6", Qty: 2, EntryPrice: 102.25}
	_, err = f.desk.PlanBracket(ctx, noSide, 99.5, 0)
	assert.ErrorIs(t, err, ErrRiskValidation)

	_, err = f.desk.PlanBracket(ctx, buyDraft(-1, 102.25), 99.5, 0)
	assert.ErrorIs(t, err, ErrRiskValidation)
}

func TestPlanBracketOutOfBand(t *testing.T) {
	f := newDeskFixture()

	// 110 в 32.5 тиках от last 101.875 при лимите 10
	_, err := f.desk.PlanBracket(context.Background(), buyDraft(2, 110), 99.5, 0)
	assert.ErrorIs(t, err, ErrOutOfBandPrice)
}

func TestPlanBracketRiskBudgetExceeded(t *testing.T) {
	f := newDeskFixture()

	// 100 контрактов * 2.75 = 275 > бюджета 200
	_, err := f.desk.PlanBracket(context.Background(), buyDraft(100, 102.25), 99.5, 0)
	require.ErrorIs(t, err, ErrRiskValidation)
	assert.Contains(t, err.Error(), "exceeds per-trade budget")
}

func TestPlanBracketQtyTooSmall(t *testing.T) {
	f := newDeskFixture()
	ctx := context.Background()

	// явный объём ниже минимального
	_, err := f.desk.PlanBracket(ctx, buyDraft(0.5, 102.25), 99.5, 0)
	assert.ErrorIs(t, err, ErrQuantityTooSmall)

	// автоподбор: бюджета не хватает даже на один контракт
	f.accounts.acc = models.AccountInfo{Equity: 10}
	_, err = f.desk.PlanBracket(ctx, buyDraft(0, 102.25), 99.5, 0)
	assert.ErrorIs(t, err, ErrQuantityTooSmall)
}

func TestPlanBracketQuoteFailures(t *testing.T) {
	f := newDeskFixture()
	ctx := context.Background()
	f.quotes.setErr(errors.New("feed down"))

	// market-вход без котировки не считается
	market := models.BracketDraft{InstrumentID: "MESU6", Side: models.SideBuy, Qty: 2}
	_, err := f.desk.PlanBracket(ctx, market, 99.5, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quote")

	// лимитный вход живёт без котировки, коридор не проверяем
	plan, err := f.desk.PlanBracket(ctx, buyDraft(2, 102.25), 99.5, 0)
	require.NoError(t, err)
	assert.Equal(t, 102.25, plan.RefPrice)
}

func TestPlanBracketMetaError(t *testing.T) {
	f := newDeskFixture()
	f.meta.set(models.Instrument{}, errors.New("meta down"))

	_, err := f.desk.PlanBracket(context.Background(), buyDraft(2, 102.25), 99.5, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "meta down")
}

func TestPlaceBracket(t *testing.T) {
	f := newDeskFixture()
	ctx := context.Background()

	plan, err := f.desk.PlanBracket(ctx, buyDraft(2, 102.13), 99.4, 110.6)
	require.NoError(t, err)

	bracket, err := f.desk.PlaceBracket(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, "o-1", bracket.ParentOrderID)

	calls := f.gw.placed()
	require.Len(t, calls, 1)
	assert.Equal(t, 102.25, calls[0].draft.EntryPrice)
	assert.Equal(t, 2.0, calls[0].draft.Qty)
	assert.Equal(t, 99.5, calls[0].sl)
	assert.Equal(t, 110.5, calls[0].tp)

	recs := f.journal.records()
	require.Len(t, recs, 1)
	assert.Equal(t, models.AdjustBracketOpen, recs[0].Kind)
	assert.Equal(t, "oco-1", recs[0].PositionID)
	assert.Equal(t, "o-1", recs[0].OrderID)
	assert.Equal(t, 99.5, recs[0].NewStop)
	assert.Equal(t, 2.0, recs[0].Qty)
}

func TestPlaceBracketEmptyPlan(t *testing.T) {
	f := newDeskFixture()

	_, err := f.desk.PlaceBracket(context.Background(), nil)
	assert.ErrorIs(t, err, ErrRiskValidation)
	assert.Empty(t, f.gw.placed())
}

func TestPlaceBracketGatewayError(t *testing.T) {
	f := newDeskFixture()
	f.gw.err = errors.New("rejected")

	plan := &models.BracketPlan{
		Draft:     buyDraft(2, 102.25),
		StopPrice: 99.5,
	}
	_, err := f.desk.PlaceBracket(context.Background(), plan)
	require.Error(t, err)
	assert.Empty(t, f.journal.records())
}
