package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InstrumentSource: откуда берём список торгуемых пар.
type InstrumentSource interface {
	Instruments(ctx context.Context) ([]string, error)
}

// Watchlist кэширует список пар сканера. Статический список из конфига имеет приоритет.
type Watchlist struct {
	src    InstrumentSource
	static []string
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	cached    []string
	fetchedAt time.Time
}

func NewWatchlist(src InstrumentSource, static []string, ttl time.Duration, log *zap.Logger) *Watchlist {
	out := make([]string, 0, len(static))
	for _, s := range static {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return &Watchlist{
		src:    src,
		static: out,
		ttl:    ttl,
		log:    log.Named("watchlist"),
		now:    time.Now,
	}
}

// Symbols отдаёт кэш, пока он свежий. Если биржа не ответила, а кэш есть, работаем по старому списку.
func (w *Watchlist) Symbols(ctx context.Context) ([]string, error) {
	if len(w.static) > 0 {
		return append([]string(nil), w.static...), nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.cached) > 0 && w.ttl > 0 && w.now().Sub(w.fetchedAt) < w.ttl {
		return append([]string(nil), w.cached...), nil
	}

	syms, err := w.src.Instruments(ctx)
	if err != nil {
		if len(w.cached) > 0 {
			w.log.Warn("instruments refresh failed, using stale list",
				zap.Int("symbols", len(w.cached)),
				zap.Duration("age", w.now().Sub(w.fetchedAt)),
				zap.Error(err),
			)
			return append([]string(nil), w.cached...), nil
		}
		return nil, fmt.Errorf("watchlist: %w", err)
	}

	if len(syms) != len(w.cached) {
		w.log.Info("universe refreshed", zap.Int("symbols", len(syms)))
	}
	w.cached = syms
	w.fetchedAt = w.now()
	return append([]string(nil), syms...), nil
}
