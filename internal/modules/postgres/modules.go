package postgres

import (
	"context"
	"fmt"
	"time"

	"divergence_bot/internal/modules/config"
	"divergence_bot/pkg/db"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module даёт *db.PgTxManager. Без journal.postgres_dsn отдаёт nil: журнал тогда без Postgres.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*db.PgTxManager, error) {
				if cfg.Journal.PostgresDSN == "" {
					log.Info("postgres journal disabled")
					return nil, nil
				}

				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN:      cfg.Journal.PostgresDSN,
					MaxConns: 4,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				if err = poolMaster.Ping(ctx); err != nil {
					poolMaster.Close()
					return nil, err
				}

				m := db.NewPgTxManager(poolMaster)
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						m.Close()
						return nil
					},
				})
				return m, nil
			},
		),
	)
}
