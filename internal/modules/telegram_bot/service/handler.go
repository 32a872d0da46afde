package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"divergence_bot/internal/helper"
	"divergence_bot/internal/models"
	"divergence_bot/internal/runner"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	btnStart   = "▶️ Запустить"
	btnStop    = "⏹ Остановить"
	btnStatus  = "📊 Статус"
	btnBalance = "💰 Баланс"
	btnConfig  = "⚙️ Настройки"
)

// кнопки клавиатуры равны командам
var buttons = map[string]string{
	btnStart:   "start",
	btnStop:    "stop",
	btnStatus:  "status",
	btnBalance: "balance",
	btnConfig:  "config",
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbot.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	// только админ
	if msg.Chat.ID != t.adminID {
		var from int64
		if msg.From != nil {
			from = msg.From.ID
		}
		t.log.Warn("access denied", zap.Int64("chat", msg.Chat.ID), zap.Int64("from", from))
		return
	}

	var cmd, args string
	if msg.IsCommand() {
		cmd, args = msg.Command(), msg.CommandArguments()
	} else if c, ok := buttons[strings.TrimSpace(msg.Text)]; ok {
		cmd = c
	} else {
		return
	}

	t.reply(msg.Chat.ID, t.handleCommand(ctx, cmd, args))
}

// handleCommand возвращает текст ответа.
func (t *Telegram) handleCommand(ctx context.Context, cmd, args string) string {
	fields := strings.Fields(args)

	switch cmd {
	case "start":
		if t.ctrl.Start() {
			return "✅ *Сканер запущен!* Начинаю поиск сигналов."
		}
		return "✅ Бот уже был запущен."

	case "stop":
		if t.ctrl.Stop() {
			return "⛔️ *Сканер остановлен.*\nОткрытые позиции сопровождаются до закрытия."
		}
		return "⛔️ Бот уже был остановлен."

	case "status":
		return formatStatus(t.ctrl.Status(), t.now())

	case "balance":
		return fmt.Sprintf("💰 *Баланс:* `%s` USDT", f2(t.ctrl.Balance()))

	case "sell":
		if len(fields) != 1 {
			return "Использование: `/sell SYMBOL`"
		}
		sym := helper.SymbolKey(fields[0])
		sellCtx, cancel := context.WithTimeout(ctx, sellTimeout)
		defer cancel()
		if err := t.ctrl.ForceClose(sellCtx, sym); err != nil {
			if errors.Is(err, models.ErrPositionNotFound) {
				return fmt.Sprintf("❗️ Нет открытой позиции по `%s`", sym)
			}
			return fmt.Sprintf("⚠️ Не удалось закрыть `%s`: %v", sym, err)
		}
		return fmt.Sprintf("🧾 Позиция `%s` закрыта вручную.", sym)

	case "config":
		text, err := formatSettings(t.ctrl.Settings())
		if err != nil {
			return "⚠️ " + err.Error()
		}
		return text

	case "set":
		if len(fields) != 2 {
			return "Использование: `/set key value`\nКлючи: " + strings.Join(runner.SettingKeys(), ", ")
		}
		s, err := t.ctrl.SetSetting(fields[0], strings.ReplaceAll(fields[1], ",", "."))
		if err != nil {
			return "❗️ " + err.Error()
		}
		return fmt.Sprintf("✅ `%s` = `%s` (версия %d)", fields[0], fields[1], s.Version)

	case "preset":
		if len(fields) != 1 {
			return "Использование: `/preset " + strings.Join(runner.PresetNames(), "|") + "`"
		}
		s, err := t.ctrl.ApplyPreset(fields[0])
		if err != nil {
			return "❗️ " + err.Error()
		}
		p := models.Presets[strings.ToLower(fields[0])]
		return fmt.Sprintf("✅ Пресет %s применён (версия %d)\n_%s_", p.Name, s.Version, p.Description)

	case "help":
		return helpText

	default:
		return "Неизвестная команда. /help"
	}
}

const helpText = "*Команды*\n" +
	"/start - запустить сканер\n" +
	"/stop - остановить сканер\n" +
	"/status - открытые позиции\n" +
	"/balance - баланс\n" +
	"/sell SYMBOL - закрыть позицию по рынку\n" +
	"/config - текущие настройки\n" +
	"/set key value - изменить настройку\n" +
	"/preset safe|mid|aggr - применить пресет"
