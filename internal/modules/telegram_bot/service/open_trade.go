package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"margin_guard/internal/models"
)

const openUsage = "Формат: /open `<инструмент> <BUY|SELL> <объём|auto> <цена|mkt> <стоп> [тейк]`\n" +
	"Например: `/open MESU6 BUY 2 102.25 99.5 110.5`\n" +
	"`auto` — размер от риска, `mkt` — вход по рынку"

// handleOpen: /open <inst> <side> <qty|auto> <entry|mkt> <sl> [tp].
// План считает риск-движок, дальше подтверждение кнопками.
func (t *Telegram) handleOpen(ctx context.Context, args string) {
	fields := strings.Fields(args)
	if len(fields) < 5 || len(fields) > 6 {
		t.sendMarkdown(openUsage)
		return
	}

	draft := models.BracketDraft{
		InstrumentID: fields[0],
		Side:         models.Side(strings.ToUpper(fields[1])),
	}

	if !strings.EqualFold(fields[2], "auto") {
		qty, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			t.Sendf("Не понял объём %q", fields[2])
			return
		}
		draft.Qty = qty
	}

	if !strings.EqualFold(fields[3], "mkt") {
		entry, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			t.Sendf("Не понял цену входа %q", fields[3])
			return
		}
		draft.EntryPrice = entry
	}

	stop, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		t.Sendf("Не понял стоп %q", fields[4])
		return
	}

	var takeProfit float64
	if len(fields) == 6 {
		if takeProfit, err = strconv.ParseFloat(fields[5], 64); err != nil {
			t.Sendf("Не понял тейк %q", fields[5])
			return
		}
	}

	plan, err := t.trader.PlanBracket(ctx, draft, stop, takeProfit)
	if err != nil {
		t.Sendf("🚫 Заявка не прошла проверку: %v", err)
		return
	}

	if !t.Confirm(ctx, renderOpenPlan(plan), time.Minute) {
		return
	}

	bracket, err := t.trader.PlaceBracket(ctx, plan)
	if err != nil {
		t.Sendf("❗️ Связка не поставилась: %v", err)
		return
	}
	t.Send(renderBracketPlaced(bracket))
}
