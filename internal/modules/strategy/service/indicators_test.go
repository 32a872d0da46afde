package service

import (
	"math"
	"testing"
	"time"

	"divergence_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waveCandles(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		c := 100 + 5*math.Sin(float64(i)/7) + float64(i)*0.01
		out[i] = models.Candle{
			Start:  t0.Add(time.Duration(i) * 5 * time.Minute),
			Open:   c - 0.2,
			High:   c + 0.8,
			Low:    c - 0.9,
			Close:  c,
			Volume: 10 + float64(i%5),
		}
	}
	return out
}

func TestIndicatorEngine_DropsWarmup(t *testing.T) {
	t.Parallel()

	e := NewIndicatorEngine()
	candles := waveCandles(300)

	bars, err := e.Compute(candles)
	require.NoError(t, err)
	require.Len(t, bars, 300-e.Warmup())
	assert.Equal(t, 199, e.Warmup())
	assert.Equal(t, candles[199].Start, bars[0].Start)

	var sum float64
	for _, c := range candles[100:] {
		sum += c.Close
	}
	last := bars[len(bars)-1]
	assert.InDelta(t, sum/200, last.SMA200, 1e-6)
	assert.InDelta(t, last.MACD-last.MACDSignal, last.Hist, 1e-9)

	for _, b := range bars {
		assert.True(t, b.RSI > 0 && b.RSI < 100, "rsi %v", b.RSI)
		assert.Greater(t, b.ATR, 0.0)
		assert.Greater(t, b.SMA200, 0.0)
	}
}

func TestIndicatorEngine_InsufficientData(t *testing.T) {
	t.Parallel()

	e := NewIndicatorEngine()

	_, err := e.Compute(waveCandles(259))
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	bars, err := e.Compute(waveCandles(260))
	require.NoError(t, err)
	assert.Len(t, bars, MinBars)
}

func TestDivergenceEngine_Evaluate(t *testing.T) {
	t.Parallel()

	eng := NewEngine()
	_, _, err := eng.Evaluate("X", waveCandles(100), models.DefaultSettings())
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	_, _, err = eng.Evaluate("X", waveCandles(300), models.DefaultSettings())
	assert.NoError(t, err)
}
