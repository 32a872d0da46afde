package runner

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"divergence_bot/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func openParams(entry float64) OpenParams {
	return OpenParams{
		EntryPrice:      entry,
		EntryTime:       time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		Size:            1000,
		StopPrice:       entry * 0.98,
		TrailingEnabled: true,
		ATR:             1,
		CommissionRate:  0.001,
		Analytics:       models.Analytics{models.AnalyticsRSI: 31.5},
	}
}

func TestLedger_CapacityUnderConcurrency(t *testing.T) {
	t.Parallel()

	l := NewLedger(1000, nil, zaptest.NewLogger(t))
	const maxPos = 3

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted = map[string]int{}
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sym := fmt.Sprintf("S%dUSDT", i%10)
			res, err := l.TryOpen(sym, maxPos)
			if err != nil {
				assert.ErrorIs(t, err, models.ErrSlotUnavailable)
				return
			}
			mu.Lock()
			granted[res.Symbol()]++
			mu.Unlock()
			assert.LessOrEqual(t, l.Count(), maxPos)
		}(i)
	}
	wg.Wait()

	assert.Len(t, granted, maxPos)
	for sym, n := range granted {
		assert.Equal(t, 1, n, sym)
	}
	assert.Equal(t, maxPos, l.Count())
}

func TestLedger_DuplicateSymbol(t *testing.T) {
	t.Parallel()

	l := NewLedger(1000, nil, zaptest.NewLogger(t))
	_, err := l.TryOpen("BTCUSDT", 5)
	require.NoError(t, err)

	_, err = l.TryOpen("BTCUSDT", 5)
	assert.ErrorIs(t, err, models.ErrSlotUnavailable)
}

func TestLedger_FinalizeAndRelease(t *testing.T) {
	t.Parallel()

	l := NewLedger(1000, nil, zaptest.NewLogger(t))
	res, err := l.TryOpen("ETHUSDT", 1)
	require.NoError(t, err)

	snap := l.Snapshot()
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, models.StatusPending, snap.Positions[0].Status)

	pos, err := l.FinalizeOpen(res, openParams(100))
	require.NoError(t, err)
	assert.Equal(t, models.StatusArmed, pos.Status)
	assert.Equal(t, 100.0, pos.HighestPrice)
	assert.InDelta(t, 98.0, pos.StopPrice, 1e-9)

	_, err = l.FinalizeOpen(res, openParams(100))
	assert.Error(t, err)

	assert.True(t, l.Release(res))
	assert.False(t, l.Release(res))
	assert.Equal(t, 0, l.Count())
	assert.True(t, l.Balance().Equal(decimal.NewFromInt(1000)))

	_, err = l.FinalizeOpen(res, openParams(100))
	assert.ErrorIs(t, err, models.ErrPositionNotFound)
}

func TestLedger_StaleReservationDoesNotTouchNewPosition(t *testing.T) {
	t.Parallel()

	l := NewLedger(1000, nil, zaptest.NewLogger(t))
	old, err := l.TryOpen("ETHUSDT", 1)
	require.NoError(t, err)
	require.True(t, l.Release(old))

	_, err = l.TryOpen("ETHUSDT", 1)
	require.NoError(t, err)

	assert.False(t, l.Release(old))
	assert.Equal(t, 1, l.Count())
}

func TestLedger_CloseOnce(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	l := NewLedger(5000, rec, zaptest.NewLogger(t))
	res, err := l.TryOpen("SOLUSDT", 2)
	require.NoError(t, err)
	_, err = l.FinalizeOpen(res, openParams(100))
	require.NoError(t, err)

	tr, err := l.Close("SOLUSDT", 110, models.ReasonTakeProfit)
	require.NoError(t, err)

	assert.Equal(t, "SOLUSDT", tr.Token)
	assert.Equal(t, models.ReasonTakeProfit, tr.Result)
	assert.InDelta(t, 97.9, tr.NetPnL, 1e-9)
	assert.InDelta(t, 2.1, tr.Commission, 1e-9)
	assert.InDelta(t, 5097.9, tr.BalanceAfter, 1e-9)
	assert.Equal(t, 31.5, tr.Analytics[models.AnalyticsRSI])
	assert.True(t, l.Balance().Equal(decimal.RequireFromString("5097.9")))
	assert.Equal(t, 0, l.Count())

	_, err = l.Close("SOLUSDT", 120, models.ReasonTakeProfit)
	assert.ErrorIs(t, err, models.ErrPositionNotFound)
	assert.True(t, l.Balance().Equal(decimal.RequireFromString("5097.9")))
	assert.Len(t, rec.records(), 1)
}

func TestLedger_ClosePendingRejected(t *testing.T) {
	t.Parallel()

	l := NewLedger(1000, nil, zaptest.NewLogger(t))
	_, err := l.TryOpen("XRPUSDT", 1)
	require.NoError(t, err)

	_, err = l.Close("XRPUSDT", 1, models.ReasonStopLoss)
	assert.Error(t, err)
	assert.Equal(t, 1, l.Count())
}

func TestLedger_TrackGuards(t *testing.T) {
	t.Parallel()

	l := NewLedger(1000, nil, zaptest.NewLogger(t))
	res, _ := l.TryOpen("ADAUSDT", 1)
	_, err := l.FinalizeOpen(res, openParams(100))
	require.NoError(t, err)

	require.NoError(t, l.Track("ADAUSDT", Progress{Status: models.StatusTrailing, StopPrice: 99, HighestPrice: 102}))

	err = l.Track("ADAUSDT", Progress{Status: models.StatusTrailing, StopPrice: 98.5, HighestPrice: 102})
	assert.Error(t, err)

	err = l.Track("ADAUSDT", Progress{Status: models.StatusArmed, StopPrice: 99, HighestPrice: 102})
	assert.Error(t, err)

	snap := l.Snapshot()
	assert.Equal(t, models.StatusTrailing, snap.Positions[0].Status)
	assert.Equal(t, 99.0, snap.Positions[0].StopPrice)

	assert.ErrorIs(t, l.Track("NOPE", Progress{}), models.ErrPositionNotFound)
}

func TestLedger_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	l := NewLedger(1000, nil, zaptest.NewLogger(t))
	res, _ := l.TryOpen("DOTUSDT", 1)
	_, err := l.FinalizeOpen(res, openParams(10))
	require.NoError(t, err)

	snap := l.Snapshot()
	snap.Positions[0].Analytics[models.AnalyticsRSI] = 99.0
	snap.Positions[0].StopPrice = 1

	again := l.Snapshot()
	assert.Equal(t, 31.5, again.Positions[0].Analytics[models.AnalyticsRSI])
	assert.InDelta(t, 9.8, again.Positions[0].StopPrice, 1e-9)
	assert.Equal(t, 1, again.Count)
	assert.Equal(t, 1000.0, again.Balance)
}
