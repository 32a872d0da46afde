package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"divergence_bot/internal/models"
)

type klineResult struct {
	Symbol string     `json:"symbol"`
	List   [][]string `json:"list"`
}

// FetchCandles: свечи спота. Bybit отдаёт newest-first строки
// [start, open, high, low, close, volume, turnover], разворачиваем в oldest→newest.
// Последняя свеча в ответе ещё формируется.
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	if limit <= 0 {
		limit = 200
	}
	interval, err := NormInterval(timeframe)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("category", category)
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	res, err := getResult[klineResult](ctx, c, "/v5/market/kline", q)
	if err != nil {
		return nil, err
	}
	if len(res.List) == 0 {
		return nil, fmt.Errorf("kline %s: empty list: %w", symbol, models.ErrSymbolUnavailable)
	}

	out := make([]models.Candle, 0, len(res.List))
	for i := len(res.List) - 1; i >= 0; i-- {
		row := res.List[i]
		if len(row) < 6 {
			continue
		}

		tsMs, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		start := time.UnixMilli(tsMs).UTC()
		// дубликаты и неупорядоченные строки выкидываем
		if n := len(out); n > 0 && !start.After(out[n-1].Start) {
			continue
		}

		open, err1 := strconv.ParseFloat(row[1], 64)
		high, err2 := strconv.ParseFloat(row[2], 64)
		low, err3 := strconv.ParseFloat(row[3], 64)
		closep, err4 := strconv.ParseFloat(row[4], 64)
		vol, err5 := strconv.ParseFloat(row[5], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		if closep <= 0 {
			continue
		}

		out = append(out, models.Candle{
			Start:  start,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closep,
			Volume: vol,
		})
	}

	return out, nil
}
