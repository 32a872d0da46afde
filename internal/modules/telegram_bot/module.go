package telegram

import (
	"context"

	"divergence_bot/internal/modules/config"
	"divergence_bot/internal/modules/telegram_bot/service"
	"divergence_bot/internal/runner"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module: управление ботом из Telegram. Без токена не поднимается.
func Module() fx.Option {
	return fx.Module("telegram",
		fx.Invoke(
			func(lc fx.Lifecycle, bot *tgbot.BotAPI, cfg *config.Config, r *runner.Runner, log *zap.Logger) {
				if bot == nil {
					log.Info("telegram control disabled: no token")
					return
				}
				if cfg.Telegram.ChatID == 0 {
					log.Warn("telegram.chat_id is not set, commands will be ignored")
				}

				t := service.NewTelegram(bot, cfg.Telegram.ChatID, r, log)
				ctx, cancel := context.WithCancel(context.Background())
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						t.Start(ctx)
						return nil
					},
					OnStop: func(context.Context) error {
						cancel()
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
