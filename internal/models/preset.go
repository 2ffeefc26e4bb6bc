package models

type Preset struct {
	Name        string
	Description string
	Apply       func(rs *RiskManagementSettings)
}

var Presets = map[string]Preset{
	"safe": {
		Name:        "🟢 Консервативный",
		Description: "Рано защищаем сделку, меньше откатов и стресса",
		Apply: func(rs *RiskManagementSettings) {
			// BE — рано в безубыток
			rs.BreakEvenTriggerPct = 1.0
			rs.BreakEvenBufferTicks = 2

			// трейлинг близко к цене
			rs.TrailingStopTriggerPct = 2.0
			rs.TrailingStopDistanceTicks = 3

			rs.MaxRiskPerTradePct = 1.0
			rs.EnableBreakEvenProtection = true
			rs.EnableTrailingStops = true
		},
	},
	"mid": {
		Name:        "🟡 Сбалансированный",
		Description: "Компромисс между безопасностью и потенциалом роста",
		Apply: func(rs *RiskManagementSettings) {
			rs.BreakEvenTriggerPct = 2.0
			rs.BreakEvenBufferTicks = 1

			rs.TrailingStopTriggerPct = 3.0
			rs.TrailingStopDistanceTicks = 5

			rs.MaxRiskPerTradePct = 2.0
			rs.EnableBreakEvenProtection = true
			rs.EnableTrailingStops = true
		},
	},
	"aggr": {
		Name:        "🔴 Агрессивный",
		Description: "Максимум свободы для цены, минимум ранних выходов",
		Apply: func(rs *RiskManagementSettings) {
			// BE — позже, даём тренду развиться
			rs.BreakEvenTriggerPct = 3.5
			rs.BreakEvenBufferTicks = 0

			// трейлинг далеко, либо вообще выключен
			rs.TrailingStopTriggerPct = 5.0
			rs.TrailingStopDistanceTicks = 10

			rs.MaxRiskPerTradePct = 3.0
			rs.EnableBreakEvenProtection = true
			rs.EnableTrailingStops = false
		},
	},
}
