package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"divergence_bot/internal/helper"
	"divergence_bot/internal/models"
	strategy "divergence_bot/internal/modules/strategy/service"
	"divergence_bot/internal/notify"
	"divergence_bot/pkg/tracing"

	"go.uber.org/zap"
)

// MarketData: рыночные данные для сканера и вотчеров.
type MarketData interface {
	TickFeed
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
	Instruments(ctx context.Context) ([]string, error)
}

// SymbolSource: список пар для сканирования.
type SymbolSource interface {
	Symbols(ctx context.Context) ([]string, error)
}

type TrendChecker interface {
	Trend(ctx context.Context, symbol, interval string) (strategy.Trend, error)
}

type ScanConfig struct {
	Symbols     []string
	Interval    time.Duration
	Timeframe   string
	CandleLimit int
	SymbolPause time.Duration
}

// SpawnFunc запускает сопровождение уже открытой (ARMED) позиции.
type SpawnFunc func(pos models.Position, s models.Settings) error

// Scanner: последовательный цикл поиска сигналов.
type Scanner struct {
	cfg    ScanConfig
	policy Policy

	feed     MarketData
	universe SymbolSource
	engine   strategy.Engine
	trend    TrendChecker
	settings *SettingsStore
	ledger   *Ledger
	disp     *Dispatcher
	notify   notify.Notifier
	log      *zap.Logger

	spawn   SpawnFunc
	onCycle func(at time.Time)
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

func NewScanner(
	cfg ScanConfig,
	policy Policy,
	feed MarketData,
	universe SymbolSource,
	engine strategy.Engine,
	trend TrendChecker,
	settings *SettingsStore,
	ledger *Ledger,
	disp *Dispatcher,
	n notify.Notifier,
	spawn SpawnFunc,
	log *zap.Logger,
) *Scanner {
	return &Scanner{
		cfg:      cfg,
		policy:   policy,
		feed:     feed,
		universe: universe,
		engine:   engine,
		trend:    trend,
		settings: settings,
		ledger:   ledger,
		disp:     disp,
		notify:   n,
		spawn:    spawn,
		log:      log.Named("scanner"),
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

// Run крутит циклы, пока ctx жив и running() == true.
func (s *Scanner) Run(ctx context.Context, running func() bool) {
	s.log.Info("scanner started", zap.String("engine", s.engine.Name()), zap.Duration("interval", s.cfg.Interval))
	defer s.log.Info("scanner stopped")

	for ctx.Err() == nil && running() {
		err := s.safeCycle(ctx, running)

		var wait time.Duration
		switch {
		case err == nil:
			now := s.now()
			wait = helper.NextBoundary(now, s.cfg.Interval).Sub(now)
			s.log.Debug("cycle done", zap.Duration("next_in", wait))
		case ctx.Err() != nil:
			return
		case errors.Is(err, models.ErrCapacityFull):
			wait = s.policy.WaitFor(err)
			s.log.Info("all slots busy", zap.Duration("retry_in", wait))
		default:
			wait = s.policy.WaitFor(err)
			s.log.Error("scan cycle failed", zap.Error(err), zap.Duration("cooldown", wait))
			s.notify.Sendf(ctx, "🔴 Ошибка сканера: %v\nПауза %s", err, wait)
		}

		if err := s.sleep(ctx, wait); err != nil {
			return
		}
	}
}

func (s *Scanner) safeCycle(ctx context.Context, running func() bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scan cycle panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = &models.FatalScanError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	span, ctx := tracing.StartSpan(ctx, "scan.cycle", nil)
	err = s.cycle(ctx, running)
	tracing.Finish(span, err)

	var fatal *models.FatalScanError
	if err != nil && !errors.Is(err, models.ErrCapacityFull) && !errors.As(err, &fatal) {
		err = &models.FatalScanError{Err: err}
	}
	return err
}

func (s *Scanner) cycle(ctx context.Context, running func() bool) error {
	set := s.settings.Snapshot()
	if s.ledger.Count() >= set.MaxConcurrentPositions {
		return models.ErrCapacityFull
	}

	symbols, err := s.symbols(ctx)
	if err != nil {
		return err
	}
	s.log.Info("scan cycle", zap.Int("symbols", len(symbols)), zap.Int64("settings_version", set.Version))

	scanned := 0
	for _, sym := range symbols {
		if ctx.Err() != nil || !running() {
			return nil
		}
		if s.ledger.Count() >= s.settings.Snapshot().MaxConcurrentPositions {
			s.log.Info("slots filled mid-cycle, stopping early")
			break
		}
		if s.ledger.Has(sym) {
			continue
		}
		if scanned > 0 {
			if err := s.sleep(ctx, s.cfg.SymbolPause); err != nil {
				return nil
			}
		}
		scanned++
		s.scanSymbol(ctx, sym)
	}

	if s.onCycle != nil {
		s.onCycle(s.now())
	}
	return nil
}

func (s *Scanner) symbols(ctx context.Context) ([]string, error) {
	if len(s.cfg.Symbols) > 0 {
		out := make([]string, 0, len(s.cfg.Symbols))
		for _, sym := range s.cfg.Symbols {
			if k := helper.SymbolKey(sym); k != "" {
				out = append(out, k)
			}
		}
		return out, nil
	}
	if s.universe != nil {
		return retry(ctx, s.policy, s.log, "universe", s.universe.Symbols)
	}
	return retry(ctx, s.policy, s.log, "instruments", s.feed.Instruments)
}

func (s *Scanner) scanSymbol(ctx context.Context, sym string) {
	span, ctx := tracing.StartSpan(ctx, "scan.symbol", map[string]any{"symbol": sym})
	defer span.Finish()

	log := s.log.With(zap.String("symbol", sym))

	candles, err := retry(ctx, s.policy, log, "candles", func(ctx context.Context) ([]models.Candle, error) {
		return s.feed.FetchCandles(ctx, sym, s.cfg.Timeframe, s.cfg.CandleLimit)
	})
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return
	case errors.Is(err, models.ErrSymbolUnavailable):
		log.Debug("symbol unavailable, skipped", zap.Error(err))
		return
	case models.IsNetwork(err):
		log.Warn("candles fetch failed after retries", zap.Error(err))
		return
	default:
		log.Warn("candles fetch failed", zap.Error(err))
		return
	}

	sig, ok, err := s.engine.Evaluate(sym, candles, s.settings.Snapshot())
	if err != nil {
		if errors.Is(err, models.ErrInsufficientData) {
			log.Debug("not enough bars", zap.Int("candles", len(candles)))
			return
		}
		log.Warn("evaluate failed", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	log.Info("signal", zap.Float64("entry", sig.EntryPrice), zap.Any("analytics", sig.Analytics))
	s.open(ctx, sig)
}

// open: слот, подтверждение тренда, фиксация уровней, запуск вотчера.
// Любая неудача после TryOpen освобождает слот.
func (s *Scanner) open(ctx context.Context, sig models.Signal) {
	log := s.log.With(zap.String("symbol", sig.Symbol))

	set := s.settings.Snapshot()
	res, err := s.ledger.TryOpen(sig.Symbol, set.MaxConcurrentPositions)
	if err != nil {
		log.Debug("no slot for signal", zap.Error(err))
		return
	}

	if set.TrendFilter && s.trend != nil {
		var tr strategy.Trend
		err := s.disp.Call(ctx, func(jobCtx context.Context) error {
			var err error
			tr, err = s.trend.Trend(jobCtx, sig.Symbol, set.TrendInterval)
			return err
		})
		if err != nil {
			s.ledger.Release(res)
			log.Warn("trend check failed, signal dropped", zap.Error(err))
			return
		}
		if tr != strategy.TrendUp {
			s.ledger.Release(res)
			log.Info("signal rejected by higher timeframe", zap.Stringer("trend", tr))
			return
		}
		if sig.Analytics == nil {
			sig.Analytics = models.Analytics{}
		}
		sig.Analytics[models.AnalyticsHTFTrend] = tr.String()
	}

	// настройки могли поменяться, пока ждали подтверждение
	set = s.settings.Snapshot()
	stop, tp := initialLevels(sig.EntryPrice, sig.ATR, set)
	pos, err := s.ledger.FinalizeOpen(res, OpenParams{
		EntryPrice:      sig.EntryPrice,
		EntryTime:       s.now(),
		Size:            set.PositionSize,
		StopPrice:       stop,
		TakeProfitPrice: tp,
		TrailingEnabled: set.TrailingEnabled,
		ATR:             sig.ATR,
		CommissionRate:  set.CommissionRate,
		Analytics:       sig.Analytics,
	})
	if err != nil {
		s.ledger.Release(res)
		log.Error("finalize open", zap.Error(err))
		return
	}

	if err := s.spawn(pos, set); err != nil {
		s.ledger.Release(res)
		log.Error("watcher not started, slot released", zap.Error(err))
		return
	}

	exit := "трейлинг от +" + helper.FormatPrice(set.TrailingActivationPercent) + "%"
	if tp > 0 {
		exit = "тейк " + helper.FormatPrice(tp)
	}
	s.notify.Sendf(ctx, "🟢 *Покупка: %s*\nЦена входа: %s\nСтоп: %s, %s",
		sig.Symbol, helper.FormatPrice(sig.EntryPrice), helper.FormatPrice(stop), exit)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
