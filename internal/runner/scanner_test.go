package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"divergence_bot/internal/models"
	strategy "divergence_bot/internal/modules/strategy/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeMarket struct {
	*fakeTicks

	mu          sync.Mutex
	instruments []string
	instrErr    error
	candleErr   map[string]error
	fetches     map[string]int
}

func newFakeMarket(symbols ...string) *fakeMarket {
	return &fakeMarket{
		fakeTicks:   newFakeTicks(),
		instruments: symbols,
		candleErr:   map[string]error{},
		fetches:     map[string]int{},
	}
}

func (m *fakeMarket) FetchCandles(_ context.Context, symbol, _ string, _ int) ([]models.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches[symbol]++
	if err := m.candleErr[symbol]; err != nil {
		return nil, err
	}
	return []models.Candle{{Close: 1}}, nil
}

func (m *fakeMarket) Instruments(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instruments, m.instrErr
}

func (m *fakeMarket) fetchCount(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches[symbol]
}

// fakeEngine выдаёт сигнал для символов из signals.
type fakeEngine struct {
	mu      sync.Mutex
	signals map[string]models.Signal
	calls   map[string]int
	panics  bool
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Evaluate(symbol string, _ []models.Candle, _ models.Settings) (models.Signal, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.panics {
		panic("indicator blew up")
	}
	if e.calls == nil {
		e.calls = map[string]int{}
	}
	e.calls[symbol]++
	sig, ok := e.signals[symbol]
	if !ok {
		return models.Signal{}, false, nil
	}
	sig.Analytics = models.Analytics{models.AnalyticsRSI: 28.0}
	return sig, true, nil
}

func (e *fakeEngine) callCount(symbol string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[symbol]
}

type fakeTrend struct {
	trend strategy.Trend
	err   error
}

func (f fakeTrend) Trend(context.Context, string, string) (strategy.Trend, error) {
	return f.trend, f.err
}

type scanEnv struct {
	market  *fakeMarket
	engine  *fakeEngine
	ledger  *Ledger
	store   *SettingsStore
	notify  *fakeNotifier
	scanner *Scanner

	mu      sync.Mutex
	spawned []models.Position
	sleeps  []time.Duration
}

func newScanEnv(t *testing.T, market *fakeMarket, engine *fakeEngine, mutate func(*models.Settings)) *scanEnv {
	t.Helper()

	log := zaptest.NewLogger(t)
	s := models.DefaultSettings()
	if mutate != nil {
		mutate(&s)
	}
	store, err := NewSettingsStore(s)
	require.NoError(t, err)

	disp := NewDispatcher(log)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = disp.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-disp.Done()
	})

	env := &scanEnv{
		market: market,
		engine: engine,
		ledger: NewLedger(1000, nil, log),
		store:  store,
		notify: &fakeNotifier{},
	}
	policy := fastPolicy()
	env.scanner = NewScanner(
		ScanConfig{Interval: 5 * time.Minute, Timeframe: "5", CandleLimit: 300, SymbolPause: time.Second},
		policy, market, nil, engine, nil, store, env.ledger, disp, env.notify,
		func(pos models.Position, _ models.Settings) error {
			env.mu.Lock()
			defer env.mu.Unlock()
			env.spawned = append(env.spawned, pos)
			return nil
		},
		log,
	)
	env.scanner.sleep = func(ctx context.Context, d time.Duration) error {
		env.mu.Lock()
		env.sleeps = append(env.sleeps, d)
		env.mu.Unlock()
		return ctx.Err()
	}
	return env
}

func (e *scanEnv) spawnedPositions() []models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Position(nil), e.spawned...)
}

func always() bool { return true }

func TestScanner_OpensPositionOnSignal(t *testing.T) {
	t.Parallel()

	market := newFakeMarket("AAAUSDT", "BBBUSDT", "CCCUSDT")
	engine := &fakeEngine{signals: map[string]models.Signal{
		"BBBUSDT": {Symbol: "BBBUSDT", EntryPrice: 100, ATR: 1},
	}}
	env := newScanEnv(t, market, engine, nil)

	require.NoError(t, env.scanner.cycle(context.Background(), always))

	spawned := env.spawnedPositions()
	require.Len(t, spawned, 1)
	pos := spawned[0]
	assert.Equal(t, "BBBUSDT", pos.Symbol)
	assert.Equal(t, models.StatusArmed, pos.Status)
	assert.InDelta(t, 98, pos.StopPrice, 1e-9)
	assert.Zero(t, pos.TakeProfitPrice)
	assert.Equal(t, 100.0, pos.Size)
	assert.Equal(t, 28.0, pos.Analytics[models.AnalyticsRSI])

	assert.True(t, env.ledger.Has("BBBUSDT"))
	assert.Equal(t, 1, engine.callCount("CCCUSDT"))
	assert.Contains(t, env.notify.messages()[0], "Покупка: BBBUSDT")

	// пауза между символами, но не перед первым
	assert.Equal(t, []time.Duration{time.Second, time.Second}, env.sleeps)
}

func TestScanner_SkipsOpenSymbols(t *testing.T) {
	t.Parallel()

	market := newFakeMarket("AAAUSDT", "BBBUSDT")
	engine := &fakeEngine{}
	env := newScanEnv(t, market, engine, nil)

	_, err := env.ledger.TryOpen("AAAUSDT", 5)
	require.NoError(t, err)

	require.NoError(t, env.scanner.cycle(context.Background(), always))
	assert.Zero(t, market.fetchCount("AAAUSDT"))
	assert.Equal(t, 1, market.fetchCount("BBBUSDT"))
}

func TestScanner_ConfiguredSymbolsWin(t *testing.T) {
	t.Parallel()

	market := newFakeMarket("AAAUSDT")
	engine := &fakeEngine{}
	env := newScanEnv(t, market, engine, nil)
	env.scanner.cfg.Symbols = []string{"eth/usdt", " btc-usdt "}

	require.NoError(t, env.scanner.cycle(context.Background(), always))
	assert.Equal(t, 1, market.fetchCount("ETHUSDT"))
	assert.Equal(t, 1, market.fetchCount("BTCUSDT"))
	assert.Zero(t, market.fetchCount("AAAUSDT"))
}

type staticUniverse []string

func (u staticUniverse) Symbols(context.Context) ([]string, error) { return u, nil }

func TestScanner_UniverseSourceOverridesInstruments(t *testing.T) {
	t.Parallel()

	market := newFakeMarket("AAAUSDT")
	engine := &fakeEngine{}
	env := newScanEnv(t, market, engine, nil)
	env.scanner.universe = staticUniverse{"XRPUSDT"}

	require.NoError(t, env.scanner.cycle(context.Background(), always))
	assert.Equal(t, 1, market.fetchCount("XRPUSDT"))
	assert.Zero(t, market.fetchCount("AAAUSDT"))
}

func TestScanner_FetchErrors(t *testing.T) {
	t.Parallel()

	market := newFakeMarket("GONEUSDT", "FLAKYUSDT", "OKUSDT")
	market.candleErr["GONEUSDT"] = models.ErrSymbolUnavailable
	market.candleErr["FLAKYUSDT"] = &models.NetworkError{Op: "kline", Err: errors.New("503")}
	engine := &fakeEngine{}
	env := newScanEnv(t, market, engine, nil)

	require.NoError(t, env.scanner.cycle(context.Background(), always))
	assert.Equal(t, 1, market.fetchCount("GONEUSDT"))
	assert.Equal(t, 3, market.fetchCount("FLAKYUSDT"))
	assert.Equal(t, 1, engine.callCount("OKUSDT"))
	assert.Zero(t, engine.callCount("FLAKYUSDT"))
}

func TestScanner_CapacityFull(t *testing.T) {
	t.Parallel()

	market := newFakeMarket("AAAUSDT")
	env := newScanEnv(t, market, &fakeEngine{}, func(s *models.Settings) { s.MaxConcurrentPositions = 1 })
	_, err := env.ledger.TryOpen("ZZZUSDT", 1)
	require.NoError(t, err)

	assert.ErrorIs(t, env.scanner.cycle(context.Background(), always), models.ErrCapacityFull)

	ctx, cancel := context.WithCancel(context.Background())
	env.scanner.sleep = func(_ context.Context, d time.Duration) error {
		env.mu.Lock()
		env.sleeps = append(env.sleeps, d)
		env.mu.Unlock()
		cancel()
		return context.Canceled
	}
	env.scanner.Run(ctx, always)

	assert.Equal(t, []time.Duration{30 * time.Second}, env.sleeps)
	assert.Zero(t, market.fetchCount("AAAUSDT"))
}

func TestScanner_FatalErrorCoolsDown(t *testing.T) {
	t.Parallel()

	market := newFakeMarket()
	market.instrErr = errors.New("bad json")
	engine := &fakeEngine{}
	env := newScanEnv(t, market, engine, nil)

	var cycles atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	env.scanner.sleep = func(_ context.Context, d time.Duration) error {
		env.mu.Lock()
		env.sleeps = append(env.sleeps, d)
		env.mu.Unlock()
		if cycles.Add(1) == 2 {
			cancel()
			return context.Canceled
		}
		return nil
	}
	env.scanner.Run(ctx, always)

	assert.Equal(t, []time.Duration{60 * time.Second, 60 * time.Second}, env.sleeps)
	msgs := env.notify.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "Ошибка сканера")
}

func TestScanner_PanicBecomesFatalScanError(t *testing.T) {
	t.Parallel()

	market := newFakeMarket("AAAUSDT")
	env := newScanEnv(t, market, &fakeEngine{panics: true}, nil)

	err := env.scanner.safeCycle(context.Background(), always)
	var fatal *models.FatalScanError
	require.ErrorAs(t, err, &fatal)
	assert.Contains(t, err.Error(), "indicator blew up")
}

func TestScanner_NextBoundaryAfterCleanCycle(t *testing.T) {
	t.Parallel()

	env := newScanEnv(t, newFakeMarket(), &fakeEngine{}, nil)
	env.scanner.now = func() time.Time { return time.Date(2025, 1, 1, 10, 3, 30, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	env.scanner.sleep = func(_ context.Context, d time.Duration) error {
		env.mu.Lock()
		env.sleeps = append(env.sleeps, d)
		env.mu.Unlock()
		cancel()
		return context.Canceled
	}
	env.scanner.Run(ctx, always)
	assert.Equal(t, []time.Duration{90 * time.Second}, env.sleeps)
}

func TestScanner_StopFlagEndsLoop(t *testing.T) {
	t.Parallel()

	market := newFakeMarket("AAAUSDT", "BBBUSDT")
	env := newScanEnv(t, market, &fakeEngine{}, nil)

	var checks atomic.Int32
	running := func() bool { return checks.Add(1) <= 2 }
	env.scanner.Run(context.Background(), running)

	assert.Equal(t, 1, market.fetchCount("AAAUSDT"))
	assert.Zero(t, market.fetchCount("BBBUSDT"))
}

func TestScanner_SpawnFailureReleasesSlot(t *testing.T) {
	t.Parallel()

	market := newFakeMarket("AAAUSDT")
	engine := &fakeEngine{signals: map[string]models.Signal{"AAAUSDT": {Symbol: "AAAUSDT", EntryPrice: 10, ATR: 0.1}}}
	env := newScanEnv(t, market, engine, nil)
	env.scanner.spawn = func(models.Position, models.Settings) error { return ErrDispatcherClosed }

	require.NoError(t, env.scanner.cycle(context.Background(), always))
	assert.False(t, env.ledger.Has("AAAUSDT"))
	assert.Empty(t, env.notify.messages())
}

func TestScanner_TrendFilter(t *testing.T) {
	t.Parallel()

	sig := models.Signal{Symbol: "AAAUSDT", EntryPrice: 10, ATR: 0.1}
	withFilter := func(s *models.Settings) { s.TrendFilter = true }

	tests := []struct {
		name   string
		trend  fakeTrend
		opened bool
	}{
		{name: "up confirms", trend: fakeTrend{trend: strategy.TrendUp}, opened: true},
		{name: "down rejects", trend: fakeTrend{trend: strategy.TrendDown}},
		{name: "error rejects", trend: fakeTrend{err: &models.NetworkError{Op: "kline", Err: errors.New("x")}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			market := newFakeMarket("AAAUSDT")
			engine := &fakeEngine{signals: map[string]models.Signal{"AAAUSDT": sig}}
			env := newScanEnv(t, market, engine, withFilter)
			env.scanner.trend = tt.trend

			require.NoError(t, env.scanner.cycle(context.Background(), always))
			assert.Equal(t, tt.opened, env.ledger.Has("AAAUSDT"))
			if tt.opened {
				spawned := env.spawnedPositions()
				require.Len(t, spawned, 1)
				assert.Equal(t, "up", spawned[0].Analytics[models.AnalyticsHTFTrend])
			} else {
				assert.Empty(t, env.spawnedPositions())
			}
		})
	}
}
