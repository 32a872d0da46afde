package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"divergence_bot/internal/helper"
	"divergence_bot/internal/models"
	"divergence_bot/internal/notify"
	"divergence_bot/pkg/tracing"

	"go.uber.org/zap"
)

// TickFeed: то, что вотчеру нужно от биржи.
type TickFeed interface {
	SubscribeTicks(ctx context.Context, symbol string) (<-chan models.Tick, error)
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

const lastPriceTimeout = 5 * time.Second

// Watcher сопровождает одну открытую позицию до закрытия.
// Единственный писатель её Progress в леджере.
type Watcher struct {
	pos      models.Position
	settings models.Settings

	feed   TickFeed
	ledger *Ledger
	notify notify.Notifier
	log    *zap.Logger

	priceTimeout time.Duration
	onExit       func(symbol string)

	cancelOnce sync.Once
	cancelCh   chan struct{}
	closeOnce  sync.Once
	done       chan struct{}
}

func newWatcher(pos models.Position, s models.Settings, feed TickFeed, ledger *Ledger, n notify.Notifier, log *zap.Logger) *Watcher {
	return &Watcher{
		pos:          pos,
		settings:     s,
		feed:         feed,
		ledger:       ledger,
		notify:       n,
		log:          log.Named("watcher").With(zap.String("symbol", pos.Symbol)),
		priceTimeout: lastPriceTimeout,
		cancelCh:     make(chan struct{}),
		done:         make(chan struct{}),
	}
}

func (w *Watcher) Symbol() string { return w.pos.Symbol }

// Cancel просит закрыть позицию вручную (Manual Sell).
func (w *Watcher) Cancel() {
	w.cancelOnce.Do(func() { close(w.cancelCh) })
}

func (w *Watcher) Done() <-chan struct{} { return w.done }

func (w *Watcher) cancelled() bool {
	select {
	case <-w.cancelCh:
		return true
	default:
		return false
	}
}

// Run блокируется до закрытия позиции. Отмена ctx или Cancel закрывают позицию по рынку.
func (w *Watcher) Run(ctx context.Context) (err error) {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			err = w.fail(fmt.Errorf("panic: %v", r))
		}
	}()

	tracker := newExitTracker(w.pos, w.settings)
	var lastSeen float64

	streamCtx, stop := context.WithCancel(ctx)
	defer stop()

	ticks, err := w.feed.SubscribeTicks(streamCtx, w.pos.Symbol)
	if err != nil {
		if ctx.Err() != nil || w.cancelled() {
			return w.manualClose(lastSeen)
		}
		return w.fail(err)
	}

	w.log.Info("watching position",
		zap.Float64("entry", w.pos.EntryPrice),
		zap.Float64("stop", w.pos.StopPrice),
		zap.Float64("take_profit", w.pos.TakeProfitPrice),
	)

	for {
		select {
		case <-ctx.Done():
			return w.manualClose(lastSeen)
		case <-w.cancelCh:
			return w.manualClose(lastSeen)
		case t, ok := <-ticks:
			if !ok || t.Err != nil {
				// лента закрывается и при остановке, это не сбой
				if ctx.Err() != nil || w.cancelled() {
					return w.manualClose(lastSeen)
				}
				if !ok {
					return w.fail(errors.New("tick stream closed"))
				}
				return w.fail(t.Err)
			}
			if t.Price <= 0 {
				continue
			}
			lastSeen = t.Price

			out := tracker.OnTick(t.Price)
			if out.Activated || out.Raised {
				if err := w.ledger.Track(w.pos.Symbol, tracker.Progress()); err != nil {
					w.log.Warn("track progress", zap.Error(err))
				}
			}
			if out.Activated {
				p := tracker.Progress()
				w.log.Info("trailing activated", zap.Float64("price", t.Price), zap.Float64("stop", p.StopPrice))
				w.notify.Sendf(ctx, "📈 *Трейлинг активирован: %s*\nЦена: %s, стоп: %s",
					w.pos.Symbol, helper.FormatPrice(t.Price), helper.FormatPrice(p.StopPrice))
			}
			if out.Close {
				w.finish(ctx, t.Price, out.Reason)
				return nil
			}
		}
	}
}

// manualClose закрывает по свежей цене; если её нет, то по последнему тику, иначе по входу.
func (w *Watcher) manualClose(lastSeen float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.priceTimeout)
	defer cancel()

	price, err := w.feed.LastPrice(ctx, w.pos.Symbol)
	if err != nil || price <= 0 {
		w.log.Warn("last price unavailable for manual close", zap.Error(err), zap.Float64("last_seen", lastSeen))
		price = lastSeen
	}
	if price <= 0 {
		price = w.pos.EntryPrice
	}
	w.finish(ctx, price, models.ReasonManualSell)
	return nil
}

func (w *Watcher) fail(cause error) error {
	werr := &models.PositionWatchError{Symbol: w.pos.Symbol, Err: cause}
	w.log.Error("position watch failed", zap.Error(werr))
	w.notify.Sendf(context.Background(), "🔴 Ошибка сопровождения %s: %v", w.pos.Symbol, cause)
	w.finish(context.Background(), w.pos.EntryPrice, models.ReasonError)
	return werr
}

func (w *Watcher) finish(ctx context.Context, price float64, reason models.CloseReason) {
	w.closeOnce.Do(func() {
		span, _ := tracing.StartSpan(ctx, "position.close", map[string]any{
			"symbol": w.pos.Symbol,
			"reason": string(reason),
		})
		rec, err := w.ledger.Close(w.pos.Symbol, price, reason)
		tracing.Finish(span, err)

		if w.onExit != nil {
			w.onExit(w.pos.Symbol)
		}
		if err != nil {
			w.log.Warn("close position", zap.Error(err))
			return
		}

		pct := helper.PctChange(rec.PurchasePrice, rec.SalePrice)
		w.notify.Sendf(context.Background(), "✅ *Сделка закрыта: %s*\nРезультат: *%s* (%+.2f%%)\nPnL: %.2f, баланс: %.2f",
			w.pos.Symbol, reason, pct, rec.NetPnL, rec.BalanceAfter)
	})
}
