package runner

import (
	"context"

	"divergence_bot/internal/journal"
	bootstrap "divergence_bot/internal/modules/bootstrap/service"
	"divergence_bot/internal/modules/config"
	health "divergence_bot/internal/modules/health/service"
	strategy "divergence_bot/internal/modules/strategy/service"
	"divergence_bot/internal/notify"

	bybit "divergence_bot/internal/modules/bybit/service"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewOptions(cfg *config.Config) Options {
	policy := DefaultPolicy()
	policy.FetchTries = cfg.Scanner.FetchTries
	policy.FullWait = cfg.Scanner.FullWait
	policy.ErrorCooldown = cfg.Scanner.ErrorCooldown

	return Options{
		Scan: ScanConfig{
			Symbols:     cfg.Scanner.Symbols,
			Interval:    cfg.Scanner.Interval,
			Timeframe:   cfg.Scanner.Timeframe,
			CandleLimit: cfg.Scanner.CandleLimit,
			SymbolPause: cfg.Scanner.SymbolPause,
		},
		Policy:         policy,
		InitialBalance: cfg.Trading.InitialBalance,
		Settings:       cfg.Trading.Settings,
		AutoStart:      cfg.Scanner.AutoStart,
	}
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			NewOptions,
			func(
				opts Options,
				client *bybit.Client,
				wl *bootstrap.Watchlist,
				engine strategy.Engine,
				trend *strategy.TrendFilter,
				w *journal.Writer,
				n notify.Notifier,
				state *health.State,
				log *zap.Logger,
			) (*Runner, error) {
				return New(opts, client, wl, engine, trend, w, n, state, log)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, r *Runner) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					r.Launch()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					return r.Shutdown(ctx)
				},
			})
		}),
	)
}
