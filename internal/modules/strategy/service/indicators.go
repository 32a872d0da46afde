package service

import (
	"fmt"

	"divergence_bot/internal/models"

	"github.com/markcheno/go-talib"
)

const (
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
	smaPeriod  = 200
	rsiPeriod  = 14
	atrPeriod  = 14

	// MinBars: минимум прогретых свечей, с которым работает детектор.
	MinBars = 61
)

// IndicatorEngine считает MACD(12,26,9), SMA-200, RSI-14, ATR-14 (сглаживание TA-Lib)
// и отбрасывает свечи без полного прогрева.
type IndicatorEngine struct{}

func NewIndicatorEngine() *IndicatorEngine { return &IndicatorEngine{} }

// Warmup: сколько первых свечей уходит на прогрев самого длинного индикатора.
func (e *IndicatorEngine) Warmup() int {
	return max(
		smaPeriod-1,
		(macdSlow-1)+(macdSignal-1),
		rsiPeriod,
		atrPeriod,
	)
}

func (e *IndicatorEngine) Compute(candles []models.Candle) ([]models.Bar, error) {
	n := len(candles)
	warm := e.Warmup()
	if n-warm < MinBars {
		return nil, fmt.Errorf("%d candles, need %d: %w", n, warm+MinBars, models.ErrInsufficientData)
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	macd, signal, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
	sma := talib.Sma(closes, smaPeriod)
	rsi := talib.Rsi(closes, rsiPeriod)
	atr := talib.Atr(highs, lows, closes, atrPeriod)

	out := make([]models.Bar, 0, n-warm)
	for i := warm; i < n; i++ {
		out = append(out, models.Bar{
			Candle: candles[i],
			Indicators: models.Indicators{
				MACD:       macd[i],
				MACDSignal: signal[i],
				Hist:       hist[i],
				SMA200:     sma[i],
				RSI:        rsi[i],
				ATR:        atr[i],
			},
		})
	}
	return out, nil
}
