package models

import (
	"errors"
	"fmt"
)

type StopMode string

const (
	StopModeATR     StopMode = "atr"
	StopModePercent StopMode = "percent"
)

// Settings: неизменяемый снимок торговых настроек. Проценты в процентах (2.0 => 2%),
// CommissionRate: доля (0.001 => 0.1%).
type Settings struct {
	Version int64 `yaml:"version" mapstructure:"-"`

	PositionSize           float64 `yaml:"position_size" mapstructure:"position_size"`
	MaxConcurrentPositions int     `yaml:"max_concurrent_positions" mapstructure:"max_concurrent_positions"`
	CommissionRate         float64 `yaml:"commission_rate" mapstructure:"commission_rate"`

	// Стоп / тейк
	StopMode          StopMode `yaml:"stop_mode" mapstructure:"stop_mode"`
	StopLossPercent   float64  `yaml:"stop_loss_percent" mapstructure:"stop_loss_percent"`
	TakeProfitPercent float64  `yaml:"take_profit_percent" mapstructure:"take_profit_percent"`
	ATRMultiplier     float64  `yaml:"atr_multiplier" mapstructure:"atr_multiplier"`

	// --- трейлинг ---
	TrailingEnabled           bool    `yaml:"trailing_enabled" mapstructure:"trailing_enabled"`
	TrailingActivationPercent float64 `yaml:"trailing_activation_percent" mapstructure:"trailing_activation_percent"`
	TrailingBreakeven         bool    `yaml:"trailing_breakeven" mapstructure:"trailing_breakeven"` // при активации стоп не ниже входа

	// Дивергенция
	MinPriceDiffPercent float64 `yaml:"min_price_diff_percent" mapstructure:"min_price_diff_percent"`
	RequireHigherLow    bool    `yaml:"require_higher_low" mapstructure:"require_higher_low"`
	NearWindow          int     `yaml:"near_window" mapstructure:"near_window"`
	FarWindow           int     `yaml:"far_window" mapstructure:"far_window"`

	// Подтверждение старшим таймфреймом
	TrendFilter   bool   `yaml:"trend_filter" mapstructure:"trend_filter"`
	TrendInterval string `yaml:"trend_interval" mapstructure:"trend_interval"`
}

func DefaultSettings() Settings {
	return Settings{
		PositionSize:              100,
		MaxConcurrentPositions:    5,
		CommissionRate:            0.001,
		StopMode:                  StopModeATR,
		StopLossPercent:           2,
		TakeProfitPercent:         4,
		ATRMultiplier:             2,
		TrailingEnabled:           true,
		TrailingActivationPercent: 1.5,
		MinPriceDiffPercent:       3,
		RequireHigherLow:          true,
		NearWindow:                15,
		FarWindow:                 50,
		TrendInterval:             "60",
	}
}

func (s Settings) Validate() error {
	var errs []error
	if s.MaxConcurrentPositions < 1 {
		errs = append(errs, fmt.Errorf("max_concurrent_positions must be >= 1, got %d", s.MaxConcurrentPositions))
	}
	if s.PositionSize <= 0 {
		errs = append(errs, fmt.Errorf("position_size must be > 0, got %v", s.PositionSize))
	}
	if s.CommissionRate < 0 || s.CommissionRate >= 1 {
		errs = append(errs, fmt.Errorf("commission_rate must be in [0,1), got %v", s.CommissionRate))
	}
	if s.StopLossPercent <= 0 || s.StopLossPercent >= 100 {
		errs = append(errs, fmt.Errorf("stop_loss_percent must be in (0,100), got %v", s.StopLossPercent))
	}
	if s.TakeProfitPercent <= 0 {
		errs = append(errs, fmt.Errorf("take_profit_percent must be > 0, got %v", s.TakeProfitPercent))
	}
	if s.ATRMultiplier <= 0 {
		errs = append(errs, fmt.Errorf("atr_multiplier must be > 0, got %v", s.ATRMultiplier))
	}
	if s.TrailingActivationPercent < 0 {
		errs = append(errs, fmt.Errorf("trailing_activation_percent must be >= 0, got %v", s.TrailingActivationPercent))
	}
	if s.MinPriceDiffPercent < 0 {
		errs = append(errs, fmt.Errorf("min_price_diff_percent must be >= 0, got %v", s.MinPriceDiffPercent))
	}
	if s.NearWindow < 1 || s.FarWindow < 1 {
		errs = append(errs, fmt.Errorf("windows must be >= 1, got near=%d far=%d", s.NearWindow, s.FarWindow))
	}
	switch s.StopMode {
	case StopModeATR, StopModePercent:
	default:
		errs = append(errs, fmt.Errorf("unknown stop_mode %q", s.StopMode))
	}
	return errors.Join(errs...)
}
