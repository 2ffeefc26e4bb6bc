package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"margin_guard/internal/models"
)

// AccountReader отдаёт сводку по счёту.
type AccountReader interface {
	GetAccount(ctx context.Context) (*models.AccountInfo, error)
}

// SettingsSource — откуда ассессор берёт действующие настройки.
type SettingsSource interface {
	Settings() models.RiskManagementSettings
}

const assessCacheTTL = 5 * time.Minute

// Assessor считает сводный риск-скор счёта и разбор рисков по позициям.
type Assessor struct {
	accounts AccountReader
	gateway  TradingGateway
	settings SettingsSource

	mu       sync.Mutex
	cached   models.RiskAssessment
	cachedAt time.Time
}

func NewAssessor(accounts AccountReader, gateway TradingGateway, settings SettingsSource) *Assessor {
	return &Assessor{accounts: accounts, gateway: gateway, settings: settings}
}

// AssessAccountRisk — риск-скор 0-100 по плечу, марже и P&L.
// Свежая оценка живёт в кэше пять минут.
func (a *Assessor) AssessAccountRisk(ctx context.Context) (models.RiskAssessment, error) {
	a.mu.Lock()
	if !a.cachedAt.IsZero() && time.Since(a.cachedAt) < assessCacheTTL {
		cached := a.cached
		a.mu.Unlock()
		return cached, nil
	}
	a.mu.Unlock()

	acc, err := a.accounts.GetAccount(ctx)
	if err != nil {
		return models.RiskAssessment{}, fmt.Errorf("AssessAccountRisk account: %w", err)
	}

	factors := map[string]float64{}
	var warnings []string

	var leverage float64
	if acc.Equity > 0 {
		leverage = acc.MarginUsed / acc.Equity
	}
	factors["leverage_ratio"] = leverage

	var utilization float64
	if total := acc.MarginUsed + acc.AvailableMargin; total > 0 {
		utilization = acc.MarginUsed / total
	}
	factors["margin_utilization"] = utilization

	var uplRatio float64
	if acc.Equity > 0 {
		uplRatio = acc.UnrealizedPnL / acc.Equity
	}
	factors["unrealized_pnl_ratio"] = math.Abs(uplRatio)

	var dailyRatio float64
	if acc.Equity > 0 && acc.DailyPnL != 0 {
		dailyRatio = acc.DailyPnL / acc.Equity
	}
	factors["daily_pnl_impact"] = math.Abs(dailyRatio)

	score := riskScore(factors)

	if leverage > 0.8 {
		warnings = append(warnings, "High leverage ratio detected")
	}
	if utilization > 0.9 {
		warnings = append(warnings, "Margin utilization approaching limits")
	}
	if math.Abs(uplRatio) > 0.1 {
		warnings = append(warnings, "Significant unrealized P&L exposure")
	}

	maxSize := acc.Equity * a.settings.Settings().MaxRiskPerTradePct / 100

	out := models.RiskAssessment{
		RiskScore:               score,
		RiskLevel:               riskLevel(score),
		MaxPositionSize:         maxSize,
		RecommendedPositionSize: maxSize * 0.5,
		RiskWarnings:            warnings,
		RiskFactors:             factors,
		AssessedAt:              time.Now().UTC(),
	}

	a.mu.Lock()
	a.cached = out
	a.cachedAt = time.Now()
	a.mu.Unlock()

	return out, nil
}

// riskScore — взвешенная сумма нормированных факторов, потолок 100.
func riskScore(factors map[string]float64) float64 {
	weights := map[string]float64{
		"leverage_ratio":       0.3,
		"margin_utilization":   0.25,
		"unrealized_pnl_ratio": 0.25,
		"daily_pnl_impact":     0.2,
	}

	var score float64
	for name, v := range factors {
		w, ok := weights[name]
		if !ok {
			w = 0.1
		}
		score += math.Min(v*100, 100) * w
	}
	return math.Min(score, 100)
}

func riskLevel(score float64) models.RiskLevel {
	switch {
	case score < 25:
		return models.RiskLow
	case score < 50:
		return models.RiskMedium
	case score < 75:
		return models.RiskHigh
	default:
		return models.RiskExtreme
	}
}

// AnalyzePositionRisks — прикидка риска по каждой открытой позиции.
func (a *Assessor) AnalyzePositionRisks(ctx context.Context) ([]models.PositionRisk, error) {
	positions, err := a.gateway.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("AnalyzePositionRisks positions: %w", err)
	}
	acc, err := a.accounts.GetAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("AnalyzePositionRisks account: %w", err)
	}

	out := make([]models.PositionRisk, 0, len(positions))
	for _, p := range positions {
		riskAmount := p.Qty * p.AvgEntryPrice
		maxLoss := riskAmount * 0.1

		var rr float64
		if maxLoss > 0 {
			rr = math.Abs(p.UnrealizedPnL / maxLoss)
		}

		var exposure float64
		if acc.Equity > 0 {
			exposure = riskAmount / acc.Equity
		}

		var recs []string
		if exposure > 0.5 {
			recs = append(recs, "Consider reducing position size")
		}
		if p.UnrealizedPnL < -maxLoss*0.5 {
			recs = append(recs, "Position approaching stop loss levels")
		}

		out = append(out, models.PositionRisk{
			PositionID:        p.ID,
			InstrumentID:      p.InstrumentID,
			CurrentRiskAmount: riskAmount,
			MaxLossPotential:  maxLoss,
			RiskRewardRatio:   rr,
			MarginUtilization: exposure,
			Recommendations:   recs,
		})
	}
	return out, nil
}
