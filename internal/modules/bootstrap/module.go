package bootstrap

import (
	"context"
	"time"

	bootstrap "divergence_bot/internal/modules/bootstrap/service"
	bybit "divergence_bot/internal/modules/bybit/service"
	"divergence_bot/internal/modules/config"
	strategy "divergence_bot/internal/modules/strategy/service"
	"divergence_bot/internal/notify"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const warmupTimeout = 2 * time.Minute

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			func(cfg *config.Config, client *bybit.Client, log *zap.Logger) *bootstrap.Watchlist {
				return bootstrap.NewWatchlist(client, cfg.Scanner.Symbols, cfg.Scanner.UniverseTTL, log)
			},
			func(cfg *config.Config, wl *bootstrap.Watchlist, client *bybit.Client, n notify.Notifier, log *zap.Logger) *bootstrap.Warmuper {
				return bootstrap.NewWarmuper(wl, client, n, bootstrap.WarmupConfig{
					Timeframe: cfg.Scanner.Timeframe,
					MinBars:   strategy.MinBars,
				}, log)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, wu *bootstrap.Warmuper, log *zap.Logger) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					// в фоне: старт бота не ждёт биржу
					go func() {
						defer close(done)
						wctx, stop := context.WithTimeout(ctx, warmupTimeout)
						defer stop()
						if _, err := wu.Warmup(wctx); err != nil {
							log.Warn("warmup failed", zap.Error(err))
						}
					}()
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					cancel()
					select {
					case <-done:
					case <-stopCtx.Done():
					}
					return nil
				},
			})
		}),
	)
}
