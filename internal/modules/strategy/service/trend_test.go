package service

import (
	"context"
	"testing"
	"time"

	"divergence_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	candles []models.Candle
	err     error
	gotTF   string
}

func (f *fakeSource) FetchCandles(_ context.Context, _ string, tf string, _ int) ([]models.Candle, error) {
	f.gotTF = tf
	return f.candles, f.err
}

func lineCandles(n int, step float64) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		c := 100 + float64(i)*step
		out[i] = models.Candle{Start: t0.Add(time.Duration(i) * time.Hour), Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return out
}

func TestTrendFilter(t *testing.T) {
	t.Parallel()

	src := &fakeSource{candles: lineCandles(120, 0.5)}
	f := NewTrendFilter(src)

	tr, err := f.Trend(context.Background(), "BTCUSDT", "60")
	require.NoError(t, err)
	assert.Equal(t, TrendUp, tr)
	assert.Equal(t, "60", src.gotTF)

	src.candles = lineCandles(120, -0.5)
	tr, err = f.Trend(context.Background(), "BTCUSDT", "60")
	require.NoError(t, err)
	assert.Equal(t, TrendDown, tr)
	assert.Equal(t, "down", tr.String())

	src.candles = lineCandles(30, 0.5)
	_, err = f.Trend(context.Background(), "BTCUSDT", "60")
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}
