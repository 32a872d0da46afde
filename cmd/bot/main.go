package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"divergence_bot/internal/journal"
	"divergence_bot/internal/modules/bootstrap"
	bybit "divergence_bot/internal/modules/bybit"
	bybitsvc "divergence_bot/internal/modules/bybit/service"
	"divergence_bot/internal/modules/config"
	"divergence_bot/internal/modules/health"
	"divergence_bot/internal/modules/postgres"
	"divergence_bot/internal/modules/strategy"
	telegram "divergence_bot/internal/modules/telegram_bot"
	"divergence_bot/internal/notify"
	"divergence_bot/internal/runner"
	"divergence_bot/pkg/logger"
	"divergence_bot/pkg/tracing"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bot",
		Short:         "MACD divergence scanner with simulated positions (Bybit spot)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
	cmd.AddCommand(newSymbolsCmd())
	return cmd
}

func newSymbolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "symbols",
		Short: "Print the symbols the scanner would use",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}
			log, sync, err := logger.New(logger.Config{Level: "warn"})
			if err != nil {
				return err
			}
			defer sync()

			symbols := cfg.Scanner.Symbols
			if len(symbols) == 0 {
				ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
				defer cancel()
				symbols, err = bybitsvc.NewClient(cfg, log).Instruments(ctx)
				if err != nil {
					return err
				}
			}
			for _, s := range symbols {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}

func run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	app := newApp()

	startCtx, cancel := context.WithTimeout(parent, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case <-ctx.Done():
	case <-app.Done():
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancelStop()
	return app.Stop(stopCtx)
}

func newApp() *fx.App {
	return fx.New(
		fx.StopTimeout(30*time.Second),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
		config.Module(),
		fx.Provide(
			newLogger,
			newBotAPI,
			newNotifier,
		),
		fx.Invoke(initTracing),
		postgres.Module(),
		bybit.Module(),
		bootstrap.Module(),
		strategy.Module(),
		journal.Module(),
		health.Module(),
		runner.Module(),
		telegram.Module(),
	)
}

func newLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	logger.SetServiceName(cfg.Tracing.Service)
	log, sync, err := logger.New(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sync()
			return nil
		},
	})
	return log, nil
}

// newBotAPI: без токена nil, бот работает без Telegram.
func newBotAPI(cfg *config.Config, log *zap.Logger) *tgbot.BotAPI {
	if cfg.Telegram.Token == "" {
		return nil
	}
	bot, err := notify.NewBot(cfg.Telegram.Token)
	if err != nil {
		log.Warn("telegram unavailable, falling back to stdout", zap.Error(err))
		return nil
	}
	log.Info("telegram authorized", zap.String("bot", bot.Self.UserName))
	return bot
}

// Notifier: если Telegram нет, используем stdout.
func newNotifier(lc fx.Lifecycle, cfg *config.Config, bot *tgbot.BotAPI, log *zap.Logger) notify.Notifier {
	if bot == nil || cfg.Telegram.ChatID == 0 {
		return notify.NewStdout(log)
	}

	tg := notify.NewTelegram(bot, cfg.Telegram.ChatID, log)
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			tg.Start(ctx)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-tg.Done():
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
	return tg
}

func initTracing(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) error {
	if !cfg.Tracing.Enabled {
		return nil
	}
	_, closer, err := tracing.InitTracer(tracing.Config{
		Service: cfg.Tracing.Service,
		Host:    cfg.Tracing.Host,
		Port:    cfg.Tracing.Port,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	log.Info("tracing enabled", zap.String("agent", fmt.Sprintf("%s:%d", cfg.Tracing.Host, cfg.Tracing.Port)))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closer()
			return nil
		},
	})
	return nil
}
