package service

import (
	"fmt"
	"strings"
	"time"

	"divergence_bot/internal/helper"
	"divergence_bot/internal/models"
	"divergence_bot/internal/runner"

	"gopkg.in/yaml.v2"
)

func formatStatus(st runner.Status, now time.Time) string {
	var b strings.Builder

	state := "🔴 *Остановлен*"
	if st.Running {
		state = "🟢 *Работает*"
	}
	fmt.Fprintf(&b, "📊 *Статус бота:* %s\n", state)
	fmt.Fprintf(&b, "Баланс: `%s` USDT\n", f2(st.Balance))
	if !st.LastScan.IsZero() {
		fmt.Fprintf(&b, "Последний скан: `%s` назад\n", now.Sub(st.LastScan).Truncate(time.Second))
	}
	b.WriteString("\n")

	if len(st.Positions) == 0 {
		fmt.Fprintf(&b, "Свободных слотов: *%d*. Нет активных сделок.", st.Max)
		return b.String()
	}

	fmt.Fprintf(&b, "Занято слотов: *%d / %d*\n\n", st.Open, st.Max)
	for _, p := range st.Positions {
		fmt.Fprintf(&b, "🪙 *Токен:* `%s` (%s)\n", p.Symbol, statusLabel(p.Status))
		if p.Status == models.StatusPending {
			b.WriteString("\n")
			continue
		}
		fmt.Fprintf(&b, "   *Цена входа:* `%s`\n", helper.FormatPrice(p.EntryPrice))
		fmt.Fprintf(&b, "   *Время входа:* `%s`\n", p.EntryTime.Format(models.TimeLayout))
		fmt.Fprintf(&b, "   *Стоп:* `%s`", helper.FormatPrice(p.StopPrice))
		if p.TakeProfitPrice > 0 {
			fmt.Fprintf(&b, ", *тейк:* `%s`", helper.FormatPrice(p.TakeProfitPrice))
		}
		b.WriteString("\n")
		if p.Status == models.StatusTrailing {
			fmt.Fprintf(&b, "   *Максимум:* `%s`\n", helper.FormatPrice(p.HighestPrice))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func statusLabel(s models.PositionStatus) string {
	switch s {
	case models.StatusPending:
		return "открывается"
	case models.StatusArmed:
		return "стоп/тейк"
	case models.StatusTrailing:
		return "трейлинг"
	default:
		return string(s)
	}
}

func formatSettings(s models.Settings) (string, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("render settings: %w", err)
	}
	return "*⚙️ Настройки*\n```\n" + string(out) + "```\nТрейлинг: *" + onOff(s.TrailingEnabled) +
		"*, безубыток: *" + onOff(s.TrailingBreakeven) + "*", nil
}
