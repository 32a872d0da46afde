package models

type Preset struct {
	Name        string
	Description string
	Apply       func(s *Settings)
}

var Presets = map[string]Preset{
	"safe": {
		Name:        "🟢 Консервативный",
		Description: "Маленький объём, короткий стоп, ранний трейлинг",
		Apply: func(s *Settings) {
			s.PositionSize = 50
			s.MaxConcurrentPositions = 3
			s.StopLossPercent = 1.5
			s.ATRMultiplier = 1.5
			s.TrailingEnabled = true
			s.TrailingActivationPercent = 1.0
			s.TrailingBreakeven = true
			s.MinPriceDiffPercent = 4
		},
	},
	"mid": {
		Name:        "🟡 Средний",
		Description: "Баланс риска и доходности",
		Apply: func(s *Settings) {
			s.PositionSize = 100
			s.MaxConcurrentPositions = 5
			s.StopLossPercent = 2
			s.ATRMultiplier = 2
			s.TrailingEnabled = true
			s.TrailingActivationPercent = 1.5
			s.TrailingBreakeven = false
			s.MinPriceDiffPercent = 3
		},
	},
	"aggr": {
		Name:        "🔴 Агрессивный",
		Description: "Больше слотов, широкий стоп, фиксированный тейк",
		Apply: func(s *Settings) {
			s.PositionSize = 200
			s.MaxConcurrentPositions = 8
			s.StopLossPercent = 3
			s.TakeProfitPercent = 6
			s.ATRMultiplier = 3
			s.TrailingEnabled = false
			s.TrailingBreakeven = false
			s.MinPriceDiffPercent = 2
		},
	},
}
