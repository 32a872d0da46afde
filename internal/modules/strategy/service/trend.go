package service

import (
	"context"
	"fmt"

	"divergence_bot/internal/models"

	"github.com/markcheno/go-talib"
)

type Trend int

const (
	TrendNone Trend = iota
	TrendUp
	TrendDown
)

func (t Trend) String() string {
	switch t {
	case TrendUp:
		return "up"
	case TrendDown:
		return "down"
	default:
		return "none"
	}
}

type CandleSource interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
}

// TrendFilter подтверждает сигнал старшим таймфреймом, EMA fast/slow по закрытым свечам HTF.
type TrendFilter struct {
	src   CandleSource
	fast  int
	slow  int
	limit int
}

func NewTrendFilter(src CandleSource) *TrendFilter {
	return &TrendFilter{src: src, fast: 20, slow: 50, limit: 120}
}

func (f *TrendFilter) Trend(ctx context.Context, symbol, interval string) (Trend, error) {
	candles, err := f.src.FetchCandles(ctx, symbol, interval, f.limit)
	if err != nil {
		return TrendNone, err
	}
	return trendOf(candles, f.fast, f.slow)
}

func trendOf(candles []models.Candle, fast, slow int) (Trend, error) {
	// последняя свеча формируется
	if len(candles) > 0 {
		candles = candles[:len(candles)-1]
	}
	if len(candles) < slow+1 {
		return TrendNone, fmt.Errorf("htf: %d candles, need %d: %w", len(candles), slow+1, models.ErrInsufficientData)
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	emaFast := talib.Ema(closes, fast)
	emaSlow := talib.Ema(closes, slow)

	i := len(closes) - 1
	switch {
	case emaFast[i] > emaSlow[i] && closes[i] > emaSlow[i]:
		return TrendUp, nil
	case emaFast[i] < emaSlow[i] && closes[i] < emaSlow[i]:
		return TrendDown, nil
	default:
		return TrendNone, nil
	}
}
