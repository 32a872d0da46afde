package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"divergence_bot/internal/models"
	"divergence_bot/internal/notify"

	"go.uber.org/zap"
)

const (
	warmupParallel = 8  // чтобы не словить rate limit
	warmupSample   = 20 // больше для проверки канала не нужно
)

// CandleSource: REST свечей.
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
}

type WarmupConfig struct {
	Timeframe string
	MinBars   int
}

type WarmupReport struct {
	Universe int
	Probed   int
	Ready    int // хватает истории под индикаторы
	Short    int
	Failed   int
}

// Warmuper перед стартом проверяет, что список пар и REST свечей живые.
type Warmuper struct {
	wl      *Watchlist
	candles CandleSource
	n       notify.Notifier
	cfg     WarmupConfig
	log     *zap.Logger

	sem chan struct{}
}

func NewWarmuper(wl *Watchlist, candles CandleSource, n notify.Notifier, cfg WarmupConfig, log *zap.Logger) *Warmuper {
	return &Warmuper{
		wl:      wl,
		candles: candles,
		n:       n,
		cfg:     cfg,
		log:     log.Named("warmup"),
		sem:     make(chan struct{}, warmupParallel),
	}
}

func (w *Warmuper) Warmup(ctx context.Context) (WarmupReport, error) {
	syms, err := w.wl.Symbols(ctx)
	if err != nil {
		w.n.Sendf(ctx, "⚠️ Прогрев: не удалось получить список пар: %v", err)
		return WarmupReport{}, err
	}

	rep := WarmupReport{Universe: len(syms)}
	sample := syms
	if len(sample) > warmupSample {
		sample = sample[:warmupSample]
	}
	rep.Probed = len(sample)

	var ready, short, failed atomic.Int64
	var firstErr error
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, sym := range sample {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case w.sem <- struct{}{}:
			case <-ctx.Done():
				failed.Add(1)
				return
			}
			defer func() { <-w.sem }()

			candles, err := w.candles.FetchCandles(ctx, sym, w.cfg.Timeframe, w.cfg.MinBars)
			if err != nil {
				failed.Add(1)
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("warmup %s: %w", sym, err)
				}
				mu.Unlock()
				return
			}
			if len(candles) < w.cfg.MinBars {
				short.Add(1)
				return
			}
			ready.Add(1)
		}()
	}
	wg.Wait()

	rep.Ready = int(ready.Load())
	rep.Short = int(short.Load())
	rep.Failed = int(failed.Load())

	w.log.Info("warmup finished",
		zap.Int("universe", rep.Universe),
		zap.Int("probed", rep.Probed),
		zap.Int("ready", rep.Ready),
		zap.Int("short", rep.Short),
		zap.Int("failed", rep.Failed),
	)

	if firstErr != nil && rep.Ready == 0 {
		w.n.Sendf(ctx, "⚠️ Прогрев завершён с ошибкой: %v", firstErr)
		return rep, firstErr
	}
	w.n.Sendf(ctx, "🔥 Прогрев: пар %d, проверено %d, готово %d", rep.Universe, rep.Probed, rep.Ready)
	return rep, nil
}
