// Package journal пишет закрытые сделки: CSV, Postgres и/или SQLite.
package journal

import (
	"context"
	"strconv"

	"divergence_bot/internal/models"
)

// Sink: одно хранилище журнала. Write вызывается из одной горутины.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec models.TradeRecord) error
	Close() error
}

var baseColumns = []string{
	"token",
	"purchase_time",
	"sale_time",
	"purchase_price",
	"sale_price",
	"result",
	"size",
	"net_pnl",
	"commission",
}

// Columns задаёт порядок колонок: сделка, затем аналитика сигнала.
func Columns() []string {
	out := make([]string, 0, len(baseColumns)+len(models.AnalyticsFields))
	out = append(out, baseColumns...)
	return append(out, models.AnalyticsFields...)
}

// Row: строка журнала в порядке Columns. Нет значения аналитики, значит пустая ячейка.
func Row(rec models.TradeRecord) []string {
	row := []string{
		rec.Token,
		rec.PurchaseTime.Format(models.TimeLayout),
		rec.SaleTime.Format(models.TimeLayout),
		formatFloat(rec.PurchasePrice),
		formatFloat(rec.SalePrice),
		string(rec.Result),
		formatFloat(rec.Size),
		formatFloat(rec.NetPnL),
		formatFloat(rec.Commission),
	}
	for _, k := range models.AnalyticsFields {
		row = append(row, formatAny(rec.Analytics[k]))
	}
	return row
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatAny(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return formatFloat(x)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	default:
		return ""
	}
}

// analyticsValues: значения аналитики для SQL, nil для отсутствующих.
func analyticsValues(a models.Analytics) []any {
	out := make([]any, len(models.AnalyticsFields))
	for i, k := range models.AnalyticsFields {
		v, ok := a[k]
		if !ok {
			continue
		}
		out[i] = v
	}
	return out
}
