package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"divergence_bot/internal/models"
)

type tickersResult struct {
	List []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"list"`
}

// LastPrice: разовый запрос последней цены (для ручного закрытия).
func (c *Client) LastPrice(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("category", category)
	q.Set("symbol", symbol)

	res, err := getResult[tickersResult](ctx, c, "/v5/market/tickers", q)
	if err != nil {
		return 0, err
	}
	if len(res.List) == 0 {
		return 0, fmt.Errorf("ticker %s: %w", symbol, models.ErrSymbolUnavailable)
	}

	px, err := strconv.ParseFloat(res.List[0].LastPrice, 64)
	if err != nil || px <= 0 {
		return 0, fmt.Errorf("ticker %s: bad lastPrice %q", symbol, res.List[0].LastPrice)
	}
	return px, nil
}
