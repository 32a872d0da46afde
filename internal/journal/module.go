package journal

import (
	"context"
	"time"

	"divergence_bot/internal/modules/config"
	"divergence_bot/pkg/db"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewJournal собирает Writer из настроенных sinks. pg может быть nil.
func NewJournal(lc fx.Lifecycle, cfg *config.Config, pg *db.PgTxManager, log *zap.Logger) (*Writer, error) {
	var sinks []Sink

	if cfg.Journal.CSVPath != "" {
		s, err := NewCSVSink(cfg.Journal.CSVPath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if pg != nil {
		s, err := NewPostgresSink(ctx, pg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.Journal.SQLitePath != "" {
		s, err := NewSQLiteSink(ctx, cfg.Journal.SQLitePath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	log.Info("trade journal", zap.Strings("sinks", names))

	w := NewWriter(log, sinks...)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			w.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return w.Close(ctx)
		},
	})
	return w, nil
}

func Module() fx.Option {
	return fx.Module("journal",
		fx.Provide(NewJournal),
	)
}
