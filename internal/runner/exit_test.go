package runner

import (
	"math/rand"
	"testing"

	"divergence_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackerFor(entry, atr float64, s models.Settings) *exitTracker {
	stop, tp := initialLevels(entry, atr, s)
	return newExitTracker(models.Position{
		Symbol:          "TESTUSDT",
		EntryPrice:      entry,
		Status:          models.StatusArmed,
		StopPrice:       stop,
		TakeProfitPrice: tp,
		HighestPrice:    entry,
		TrailingEnabled: s.TrailingEnabled,
		ATR:             atr,
	}, s)
}

func TestInitialLevels(t *testing.T) {
	t.Parallel()

	s := models.DefaultSettings()

	tests := []struct {
		name     string
		mutate   func(*models.Settings)
		atr      float64
		wantStop float64
		wantTP   float64
	}{
		{name: "atr mode", atr: 1.5, wantStop: 97},
		{name: "atr mode without atr falls back to percent", atr: 0, wantStop: 98},
		{
			name:     "percent mode ignores atr",
			mutate:   func(s *models.Settings) { s.StopMode = models.StopModePercent },
			atr:      5,
			wantStop: 98,
		},
		{
			name:     "fixed take profit when trailing off",
			mutate:   func(s *models.Settings) { s.TrailingEnabled = false },
			atr:      1,
			wantStop: 98,
			wantTP:   104,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := s
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			stop, tp := initialLevels(100, tt.atr, cfg)
			assert.InDelta(t, tt.wantStop, stop, 1e-9)
			assert.InDelta(t, tt.wantTP, tp, 1e-9)
		})
	}
}

func TestExitTracker_StopLossBeforeTrailing(t *testing.T) {
	t.Parallel()

	tr := trackerFor(100, 1, models.DefaultSettings())

	out := tr.OnTick(99)
	assert.False(t, out.Close)

	out = tr.OnTick(98)
	require.True(t, out.Close)
	assert.Equal(t, models.ReasonStopLoss, out.Reason)
	assert.True(t, tr.Closed())

	// после закрытия тики игнорируются
	assert.False(t, tr.OnTick(50).Close)
}

func TestExitTracker_TakeProfit(t *testing.T) {
	t.Parallel()

	s := models.DefaultSettings()
	s.TrailingEnabled = false
	tr := trackerFor(100, 1, s)

	assert.False(t, tr.OnTick(103.9).Close)
	out := tr.OnTick(104)
	require.True(t, out.Close)
	assert.Equal(t, models.ReasonTakeProfit, out.Reason)
}

func TestExitTracker_TrailingActivationAndExit(t *testing.T) {
	t.Parallel()

	tr := trackerFor(100, 1, models.DefaultSettings())

	out := tr.OnTick(101.5)
	assert.True(t, out.Activated)
	assert.Equal(t, models.StatusTrailing, tr.Progress().Status)
	assert.Zero(t, tr.Progress().TakeProfitPrice)
	assert.InDelta(t, 99.5, tr.Progress().StopPrice, 1e-9)

	out = tr.OnTick(105)
	assert.True(t, out.Raised)
	assert.InDelta(t, 103, tr.Progress().StopPrice, 1e-9)
	assert.Equal(t, 105.0, tr.Progress().HighestPrice)

	// откат не опускает стоп
	out = tr.OnTick(104)
	assert.False(t, out.Raised)
	assert.InDelta(t, 103, tr.Progress().StopPrice, 1e-9)

	out = tr.OnTick(103)
	require.True(t, out.Close)
	assert.Equal(t, models.ReasonTrailingStop, out.Reason)
}

func TestExitTracker_Breakeven(t *testing.T) {
	t.Parallel()

	s := models.DefaultSettings()
	s.TrailingBreakeven = true
	s.ATRMultiplier = 3
	tr := trackerFor(100, 1, s)

	out := tr.OnTick(101.5)
	assert.True(t, out.Activated)
	assert.True(t, out.Raised)
	assert.Equal(t, 100.0, tr.Progress().StopPrice)

	out = tr.OnTick(100)
	require.True(t, out.Close)
	assert.Equal(t, models.ReasonTrailingStop, out.Reason)
}

func TestExitTracker_TrailingWithoutATRUsesInitialGap(t *testing.T) {
	t.Parallel()

	tr := trackerFor(100, 0, models.DefaultSettings())
	require.InDelta(t, 98, tr.Progress().StopPrice, 1e-9)

	tr.OnTick(110)
	assert.InDelta(t, 108, tr.Progress().StopPrice, 1e-9)
}

func TestExitTracker_StopNeverDecreasesInTrailing(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 50; run++ {
		tr := trackerFor(100, 0.8, models.DefaultSettings())
		price := 100.0
		prevStop := tr.Progress().StopPrice
		for i := 0; i < 500; i++ {
			price *= 1 + (rng.Float64()-0.48)*0.01
			out := tr.OnTick(price)
			p := tr.Progress()
			if p.Status == models.StatusTrailing {
				assert.GreaterOrEqual(t, p.StopPrice, prevStop)
				assert.Zero(t, p.TakeProfitPrice)
			}
			prevStop = p.StopPrice
			if out.Close {
				assert.LessOrEqual(t, price, p.StopPrice)
				break
			}
		}
	}
}
