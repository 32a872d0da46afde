package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Notifier: fire-and-forget, ошибки только в лог.
type Notifier interface {
	Send(ctx context.Context, msg string)
	Sendf(ctx context.Context, format string, args ...any)
}

// Sender: то, что нужно от Telegram API (tgbot.BotAPI; в тестах подменяется).
type Sender interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
}

const outboxSize = 256

// Telegram: очередь сообщений в админ-чат, разгребается одной горутиной.
type Telegram struct {
	bot    Sender
	chatID int64
	log    *zap.Logger

	outbox  chan string
	dropped atomic.Int64

	startOnce sync.Once
	done      chan struct{}
}

func NewBot(token string) (*tgbot.BotAPI, error) {
	return tgbot.NewBotAPI(token)
}

func NewTelegram(bot Sender, chatID int64, log *zap.Logger) *Telegram {
	return &Telegram{
		bot:    bot,
		chatID: chatID,
		log:    log.Named("notify"),
		outbox: make(chan string, outboxSize),
		done:   make(chan struct{}),
	}
}

func (t *Telegram) Send(_ context.Context, msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	select {
	case t.outbox <- msg:
	default:
		t.dropped.Add(1)
		t.log.Warn("outbox full, message dropped", zap.Int64("dropped", t.dropped.Load()))
	}
}

func (t *Telegram) Sendf(ctx context.Context, format string, args ...any) {
	t.Send(ctx, fmt.Sprintf(format, args...))
}

// Start запускает отправку. Остановка по ctx: что успело попасть в очередь, дописываем.
func (t *Telegram) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		go func() {
			defer close(t.done)
			for {
				select {
				case <-ctx.Done():
					for {
						select {
						case msg := <-t.outbox:
							t.deliver(msg)
						default:
							return
						}
					}
				case msg := <-t.outbox:
					t.deliver(msg)
				}
			}
		}()
	})
}

// Done закрывается, когда очередь разобрана после остановки.
func (t *Telegram) Done() <-chan struct{} { return t.done }

func (t *Telegram) deliver(text string) {
	m := tgbot.NewMessage(t.chatID, text)
	m.ParseMode = tgbot.ModeMarkdown
	_, err := t.bot.Send(m)
	if err == nil {
		return
	}
	t.log.Warn("send markdown failed, retry as plain text", zap.Error(err))

	// символы вроде 1000_PEPE ломают Markdown: пробуем без разметки
	m.ParseMode = ""
	if _, err = t.bot.Send(m); err != nil {
		t.log.Error("send failed", zap.Error(err))
	}
}

// Stdout: заглушка без Telegram, всё в лог.
type Stdout struct {
	log *zap.Logger
}

func NewStdout(log *zap.Logger) *Stdout { return &Stdout{log: log.Named("notify")} }

func (s *Stdout) Send(_ context.Context, msg string) { s.log.Info(msg) }
func (s *Stdout) Sendf(_ context.Context, format string, args ...any) {
	s.log.Info(fmt.Sprintf(format, args...))
}
