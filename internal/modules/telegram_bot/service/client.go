package service

import (
	"context"
	"sync"
	"time"

	"divergence_bot/internal/models"
	"divergence_bot/internal/runner"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Controller: то, чем бот управляет (runner.Runner).
type Controller interface {
	Start() bool
	Stop() bool
	Status() runner.Status
	Balance() float64
	ForceClose(ctx context.Context, symbol string) error
	Settings() models.Settings
	SetSetting(key, value string) (models.Settings, error)
	ApplyPreset(name string) (models.Settings, error)
}

// Bot: нужная часть tgbot.BotAPI.
type Bot interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
	GetUpdatesChan(config tgbot.UpdateConfig) tgbot.UpdatesChannel
	StopReceivingUpdates()
}

const sellTimeout = 15 * time.Second

// Telegram: long polling и команды админа.
type Telegram struct {
	bot     Bot
	adminID int64
	ctrl    Controller
	log     *zap.Logger
	now     func() time.Time

	wg sync.WaitGroup
}

func NewTelegram(bot Bot, adminID int64, ctrl Controller, log *zap.Logger) *Telegram {
	return &Telegram{
		bot:     bot,
		adminID: adminID,
		ctrl:    ctrl,
		log:     log.Named("telegram"),
		now:     time.Now,
	}
}

// Start запускает цикл обновлений в фоне.
func (t *Telegram) Start(ctx context.Context) {
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				t.handleUpdate(ctx, update)
			}
		}
	}()
	t.reply(t.adminID, "🤖 *Бот запущен и готов к работе.*")
}

func (t *Telegram) Stop() {
	t.bot.StopReceivingUpdates()
	t.wg.Wait()
}

func (t *Telegram) reply(chatID int64, text string) {
	if chatID == 0 {
		return
	}
	m := tgbot.NewMessage(chatID, text)
	m.ParseMode = tgbot.ModeMarkdown
	m.ReplyMarkup = mainKeyboard()
	if _, err := t.bot.Send(m); err == nil {
		return
	}
	m.ParseMode = ""
	if _, err := t.bot.Send(m); err != nil {
		t.log.Error("reply failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func mainKeyboard() tgbot.ReplyKeyboardMarkup {
	return tgbot.NewReplyKeyboard(
		tgbot.NewKeyboardButtonRow(
			tgbot.NewKeyboardButton(btnStart),
			tgbot.NewKeyboardButton(btnStop),
		),
		tgbot.NewKeyboardButtonRow(
			tgbot.NewKeyboardButton(btnStatus),
			tgbot.NewKeyboardButton(btnBalance),
		),
		tgbot.NewKeyboardButtonRow(
			tgbot.NewKeyboardButton(btnConfig),
		),
	)
}
