package models

import (
	"time"

	"margin_guard/internal/modules/config"
)

// RiskManagementSettings — неизменяемый набор параметров защиты позиции.
// Сервис держит одно активное значение, монитор копирует его при создании.
type RiskManagementSettings struct {
	BreakEvenTriggerPct       float64 `json:"break_even_trigger_pct"`       // перенос SL в безубыток при профите > 2%
	BreakEvenBufferTicks      int     `json:"break_even_buffer_ticks"`      // отступ от входа в тиках
	TrailingStopTriggerPct    float64 `json:"trailing_stop_trigger_pct"`    // старт трейлинга при 3%
	TrailingStopDistanceTicks int     `json:"trailing_stop_distance_ticks"` // дистанция трейла в тиках
	MaxRiskPerTradePct        float64 `json:"max_risk_per_trade_pct"`       // максимум 2% депозита на сделку

	EnableBreakEvenProtection bool `json:"enable_break_even_protection"`
	EnableTrailingStops       bool `json:"enable_trailing_stops"`
}

func NewRiskSettingsFromDefaults(cfg *config.Config) RiskManagementSettings {
	return RiskManagementSettings{
		BreakEvenTriggerPct:       cfg.DefaultBreakEvenTriggerPct,
		BreakEvenBufferTicks:      cfg.DefaultBreakEvenBufferTicks,
		TrailingStopTriggerPct:    cfg.DefaultTrailingTriggerPct,
		TrailingStopDistanceTicks: cfg.DefaultTrailingDistanceTicks,
		MaxRiskPerTradePct:        cfg.DefaultMaxRiskPerTradePct,

		EnableBreakEvenProtection: cfg.DefaultEnableBreakEven,
		EnableTrailingStops:       cfg.DefaultEnableTrailing,
	}
}

// PartialTakeProfitRule — результат проверки частичной фиксации.
// Живёт только внутри пары validate -> execute, никуда не сохраняется.
type PartialTakeProfitRule struct {
	PositionID        string
	PartialQty        float64
	TriggerPrice      float64 // заполняется на execute
	RemainingQtyAfter float64
	IsValid           bool
	ValidationErrors  []string
}

// BracketDraft — параметры родительского ордера связки.
type BracketDraft struct {
	InstrumentID string
	Side         Side
	Qty          float64 // 0 = размер от риска по настройкам
	EntryPrice   float64 // лимитная цена входа; 0 = market
}

// BracketPlan — проверенная и нормализованная заявка на вход.
// Живёт только внутри пары plan -> place.
type BracketPlan struct {
	Draft        BracketDraft
	StopPrice    float64
	TakeProfit   float64 // 0 = без тейка
	RefPrice     float64 // цена расчётов: entry либо последняя котировка
	RiskAmount   float64
	RewardAmount float64
	RiskPct      float64 // доля депозита под стопом, в процентах
	SizedByRisk  bool
}

// BracketOrder — результат постановки связки parent + SL/TP.
type BracketOrder struct {
	ParentOrderID     string
	StopLossOrderID   string
	TakeProfitOrderID string
	OCOGroupID        string
	RiskAmount        float64
	RewardAmount      float64
}

type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskExtreme RiskLevel = "EXTREME"
)

type RiskAssessment struct {
	RiskScore               float64
	RiskLevel               RiskLevel
	MaxPositionSize         float64
	RecommendedPositionSize float64
	RiskWarnings            []string
	RiskFactors             map[string]float64
	AssessedAt              time.Time
}

type PositionRisk struct {
	PositionID        string
	InstrumentID      string
	CurrentRiskAmount float64
	MaxLossPotential  float64
	RiskRewardRatio   float64
	MarginUtilization float64
	Recommendations   []string
}

type AdjustmentKind string

const (
	AdjustBreakEven   AdjustmentKind = "BREAK_EVEN"
	AdjustTrailing    AdjustmentKind = "TRAILING"
	AdjustPartialTP   AdjustmentKind = "PARTIAL_TP"
	AdjustBracketOpen AdjustmentKind = "BRACKET_OPEN"
)

// Adjustment — запись журнала о перестановке стопа или частичной фиксации.
type Adjustment struct {
	PositionID   string
	InstrumentID string
	Kind         AdjustmentKind
	OldStop      float64
	NewStop      float64
	Qty          float64
	OrderID      string
	CreatedAt    time.Time
}
