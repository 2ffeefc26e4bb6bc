package service

import (
	"fmt"
	"strconv"
	"strings"

	"margin_guard/internal/models"
)

func renderSettings(rs models.RiskManagementSettings) string {
	return fmt.Sprintf(
		"⚙️ Настройки защиты\n\n"+
			"Безубыток: %s\n"+
			"  Триггер: %s%%\n"+
			"  Отступ: %d тик.\n\n"+
			"Трейлинг: %s\n"+
			"  Триггер: %s%%\n"+
			"  Дистанция: %d тик.\n\n"+
			"Риск на сделку: %s%%",
		onOff(rs.EnableBreakEvenProtection),
		dec2(rs.BreakEvenTriggerPct),
		rs.BreakEvenBufferTicks,
		onOff(rs.EnableTrailingStops),
		dec2(rs.TrailingStopTriggerPct),
		rs.TrailingStopDistanceTicks,
		dec2(rs.MaxRiskPerTradePct),
	)
}

func renderStatus(monitors int, positions []models.Position) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Под наблюдением: %d\n", monitors)

	if len(positions) == 0 {
		b.WriteString("📭 Открытых позиций нет")
		return b.String()
	}

	b.WriteString("\nОткрытые позиции:\n")
	for _, p := range positions {
		fmt.Fprintf(&b, "- %s [%s] qty=%s @ %s uPnL=%s\n",
			p.InstrumentID, p.Side, fmtNum(p.Qty), fmtNum(p.AvgEntryPrice), dec2(p.UnrealizedPnL))
	}
	return b.String()
}

func renderAssessment(as models.RiskAssessment, risks []models.PositionRisk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Риск счёта: %s (скор %s/100)\n",
		riskEmoji(as.RiskLevel), as.RiskLevel, dec2(as.RiskScore))
	fmt.Fprintf(&b, "Макс. размер позиции: %s\n", dec2(as.MaxPositionSize))
	fmt.Fprintf(&b, "Рекомендованный: %s\n", dec2(as.RecommendedPositionSize))

	if len(as.RiskWarnings) > 0 {
		b.WriteString("\n⚠️ Предупреждения:\n")
		for _, w := range as.RiskWarnings {
			b.WriteString("• " + w + "\n")
		}
	}

	if len(risks) > 0 {
		b.WriteString("\nПо позициям:\n")
		for _, r := range risks {
			fmt.Fprintf(&b, "- %s: риск %s, доля депозита %s%%\n",
				r.InstrumentID, dec2(r.CurrentRiskAmount), dec2(r.MarginUtilization*100))
			for _, rec := range r.Recommendations {
				b.WriteString("   ⚠️ " + rec + "\n")
			}
		}
	}
	return b.String()
}

func riskEmoji(level models.RiskLevel) string {
	switch level {
	case models.RiskLow:
		return "🟢"
	case models.RiskMedium:
		return "🟡"
	case models.RiskHigh:
		return "🟠"
	default:
		return "🔴"
	}
}

func renderPartialTP(positionID string, qty, price, remaining float64) string {
	return fmt.Sprintf(
		"💰 Частичная фиксация\n\n"+
			"Позиция: %s\n"+
			"Объём: %s\n"+
			"Цена: %s\n"+
			"Останется в позиции: %s\n\n"+
			"Исполнить?",
		positionID, fmtNum(qty), fmtNum(price), fmtNum(remaining))
}

func renderOpenPlan(plan *models.BracketPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📌 Вход связкой\n\n")
	fmt.Fprintf(&b, "Инструмент: %s\n", plan.Draft.InstrumentID)
	fmt.Fprintf(&b, "Сторона: %s\n", plan.Draft.Side)

	qty := fmtNum(plan.Draft.Qty)
	if plan.SizedByRisk {
		qty += " (по риску)"
	}
	fmt.Fprintf(&b, "Объём: %s\n", qty)

	if plan.Draft.EntryPrice > 0 {
		fmt.Fprintf(&b, "Вход: %s\n", fmtNum(plan.Draft.EntryPrice))
	} else {
		fmt.Fprintf(&b, "Вход: market (~%s)\n", fmtNum(plan.RefPrice))
	}
	fmt.Fprintf(&b, "Стоп: %s\n", fmtNum(plan.StopPrice))
	if plan.TakeProfit > 0 {
		fmt.Fprintf(&b, "Тейк: %s\n", fmtNum(plan.TakeProfit))
	}

	fmt.Fprintf(&b, "\nРиск: %s (%s%% депозита)\n", dec2(plan.RiskAmount), dec2(plan.RiskPct))
	if plan.RewardAmount > 0 && plan.RiskAmount > 0 {
		fmt.Fprintf(&b, "Потенциал: %s (R:R = 1:%s)\n", dec2(plan.RewardAmount), dec2(plan.RewardAmount/plan.RiskAmount))
	}
	b.WriteString("\nСтавим?")
	return b.String()
}

func renderBracketPlaced(bracket *models.BracketOrder) string {
	var b strings.Builder
	b.WriteString("✅ Связка поставлена\n")
	fmt.Fprintf(&b, "Parent: %s\n", bracket.ParentOrderID)
	if bracket.StopLossOrderID != "" {
		fmt.Fprintf(&b, "SL: %s\n", bracket.StopLossOrderID)
	}
	if bracket.TakeProfitOrderID != "" {
		fmt.Fprintf(&b, "TP: %s\n", bracket.TakeProfitOrderID)
	}
	fmt.Fprintf(&b, "OCO: %s", bracket.OCOGroupID)
	return b.String()
}

func renderJournal(recs []models.Adjustment) string {
	if len(recs) == 0 {
		return "📒 Журнал пуст"
	}

	var b strings.Builder
	b.WriteString("📒 Последние действия:\n")
	for _, r := range recs {
		ts := r.CreatedAt.Format("02.01 15:04")
		switch r.Kind {
		case models.AdjustBreakEven:
			fmt.Fprintf(&b, "%s 🛡 %s: стоп в безубыток %s\n", ts, r.InstrumentID, fmtNum(r.NewStop))
		case models.AdjustTrailing:
			fmt.Fprintf(&b, "%s 📈 %s: трейл %s -> %s\n", ts, r.InstrumentID, fmtNum(r.OldStop), fmtNum(r.NewStop))
		case models.AdjustPartialTP:
			fmt.Fprintf(&b, "%s 💰 %s: фиксация %s по %s\n", ts, r.InstrumentID, fmtNum(r.Qty), fmtNum(r.NewStop))
		case models.AdjustBracketOpen:
			fmt.Fprintf(&b, "%s 📌 %s: вход %s, стоп %s\n", ts, r.InstrumentID, fmtNum(r.Qty), fmtNum(r.NewStop))
		}
	}
	return b.String()
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
