package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"divergence_bot/internal/models"
	health "divergence_bot/internal/modules/health/service"
	strategy "divergence_bot/internal/modules/strategy/service"
	"divergence_bot/internal/notify"

	"go.uber.org/zap"
)

type Options struct {
	Scan           ScanConfig
	Policy         Policy
	InitialBalance float64
	Settings       models.Settings
	AutoStart      bool
}

// Status: снимок для /status.
type Status struct {
	Running   bool
	Positions []models.Position
	Open      int
	Max       int
	Balance   float64
	Settings  models.Settings
	LastScan  time.Time
}

// Runner собирает сканер, леджер, диспетчер и вотчеры и даёт управление ими
// телеграм-боту. /stop останавливает только поиск сигналов, открытые позиции
// сопровождаются дальше; Shutdown закрывает их вручную.
type Runner struct {
	opts   Options
	log    *zap.Logger
	notify notify.Notifier
	health *health.State
	feed   MarketData

	settings *SettingsStore
	ledger   *Ledger
	disp     *Dispatcher
	scanner  *Scanner

	rootCtx    context.Context
	rootCancel context.CancelFunc
	launchOnce sync.Once
	launched   atomic.Bool

	running atomic.Bool

	mu         sync.Mutex
	watchers   map[string]*Watcher
	scanCancel context.CancelFunc
	scanDone   chan struct{}
}

func New(
	opts Options,
	feed MarketData,
	universe SymbolSource,
	engine strategy.Engine,
	trend TrendChecker,
	rec Recorder,
	n notify.Notifier,
	state *health.State,
	log *zap.Logger,
) (*Runner, error) {
	settings, err := NewSettingsStore(opts.Settings)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = health.NewState()
	}

	r := &Runner{
		opts:     opts,
		log:      log.Named("runner"),
		notify:   n,
		health:   state,
		feed:     feed,
		settings: settings,
		ledger:   NewLedger(opts.InitialBalance, rec, log),
		disp:     NewDispatcher(log),
		watchers: make(map[string]*Watcher),
	}
	r.rootCtx, r.rootCancel = context.WithCancel(context.Background())
	r.scanner = NewScanner(opts.Scan, opts.Policy, feed, universe, engine, trend, settings, r.ledger, r.disp, n, r.spawn, log)
	r.scanner.onCycle = func(at time.Time) {
		r.health.TouchScan(at)
		r.syncHealth()
	}
	r.syncHealth()
	return r, nil
}

// Launch поднимает диспетчер и, если включено, сразу запускает сканер.
func (r *Runner) Launch() {
	r.launchOnce.Do(func() {
		r.launched.Store(true)
		go func() {
			if err := r.disp.Run(r.rootCtx); err != nil {
				r.log.Error("dispatcher", zap.Error(err))
			}
		}()
		if r.opts.AutoStart {
			r.Start()
		}
	})
}

// Start запускает сканер. false, если уже запущен.
func (r *Runner) Start() bool {
	if r.rootCtx.Err() != nil || !r.running.CompareAndSwap(false, true) {
		return false
	}

	r.mu.Lock()
	prev := r.scanDone
	ctx, cancel := context.WithCancel(r.rootCtx)
	done := make(chan struct{})
	r.scanCancel, r.scanDone = cancel, done
	r.mu.Unlock()

	go func() {
		defer close(done)
		if prev != nil {
			// предыдущий цикл ещё дочищается после /stop
			<-prev
		}
		r.scanner.Run(ctx, r.running.Load)
	}()
	r.health.SetReady(true)
	r.log.Info("scanner started")
	return true
}

// Stop останавливает сканер. false, если уже остановлен.
func (r *Runner) Stop() bool {
	if !r.running.CompareAndSwap(true, false) {
		return false
	}
	r.mu.Lock()
	if r.scanCancel != nil {
		r.scanCancel()
	}
	r.mu.Unlock()
	r.health.SetReady(false)
	r.log.Info("scanner stopped, open positions are still watched")
	return true
}

func (r *Runner) Running() bool { return r.running.Load() }

// Shutdown гасит всё: сканер, вотчеры (Manual Sell), диспетчер.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.Stop()
	r.rootCancel()

	r.mu.Lock()
	scanDone := r.scanDone
	r.mu.Unlock()

	if scanDone != nil {
		select {
		case <-scanDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.launched.Load() {
		select {
		case <-r.disp.Done():
		case <-ctx.Done():
			return fmt.Errorf("shutdown: watchers still running: %w", ctx.Err())
		}
	}
	r.log.Info("runner shut down", zap.String("balance", r.ledger.Balance().StringFixed(2)))
	return nil
}

// ForceClose закрывает позицию по рынку (/sell) и ждёт, пока вотчер её закроет.
func (r *Runner) ForceClose(ctx context.Context, symbol string) error {
	r.mu.Lock()
	w, ok := r.watchers[symbol]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", symbol, models.ErrPositionNotFound)
	}

	w.Cancel()
	select {
	case <-w.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) Status() Status {
	snap := r.ledger.Snapshot()
	set := r.settings.Snapshot()
	return Status{
		Running:   r.Running(),
		Positions: snap.Positions,
		Open:      snap.Count,
		Max:       set.MaxConcurrentPositions,
		Balance:   snap.Balance,
		Settings:  set,
		LastScan:  r.health.LastScan(),
	}
}

func (r *Runner) Balance() float64 { return r.ledger.Balance().InexactFloat64() }

func (r *Runner) Settings() models.Settings { return r.settings.Snapshot() }

func (r *Runner) SetSetting(key, value string) (models.Settings, error) {
	s, err := r.settings.Set(key, value)
	if err == nil {
		r.log.Info("setting changed", zap.String("key", key), zap.String("value", value), zap.Int64("version", s.Version))
	}
	return s, err
}

func (r *Runner) ApplyPreset(name string) (models.Settings, error) {
	s, err := r.settings.ApplyPreset(name)
	if err == nil {
		r.log.Info("preset applied", zap.String("preset", name), zap.Int64("version", s.Version))
	}
	return s, err
}

// spawn регистрирует вотчер и отдаёт его диспетчеру. Вотчеры живут в корневом
// контексте, а не в контексте сканера.
func (r *Runner) spawn(pos models.Position, s models.Settings) error {
	w := newWatcher(pos, s, r.feed, r.ledger, r.notify, r.log)
	w.onExit = func(string) { r.forget(w) }

	r.mu.Lock()
	r.watchers[pos.Symbol] = w
	r.mu.Unlock()

	if err := r.disp.Go(w.Run); err != nil {
		r.forget(w)
		return err
	}
	r.syncHealth()
	return nil
}

func (r *Runner) forget(w *Watcher) {
	r.mu.Lock()
	if cur, ok := r.watchers[w.Symbol()]; ok && cur == w {
		delete(r.watchers, w.Symbol())
	}
	r.mu.Unlock()
	r.syncHealth()
}

func (r *Runner) syncHealth() {
	snap := r.ledger.Snapshot()
	r.health.SetPortfolio(snap.Count, snap.Balance)
}
