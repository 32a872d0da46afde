package service

import (
	"context"
	"net/url"
	"sort"

	"go.uber.org/zap"
)

const maxInstrumentPages = 50

type instrumentsResult struct {
	List []struct {
		Symbol    string `json:"symbol"`
		BaseCoin  string `json:"baseCoin"`
		QuoteCoin string `json:"quoteCoin"`
		Status    string `json:"status"`
	} `json:"list"`
	NextPageCursor string `json:"nextPageCursor"`
}

// Instruments: все спотовые пары к quote-монете (USDT) в статусе Trading, отсортированы, без повторов.
func (c *Client) Instruments(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	cursor := ""

	for page := 0; page < maxInstrumentPages; page++ {
		q := url.Values{}
		q.Set("category", category)
		q.Set("limit", "1000")
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		res, err := getResult[instrumentsResult](ctx, c, "/v5/market/instruments-info", q)
		if err != nil {
			return nil, err
		}

		for _, it := range res.List {
			if it.Status != "Trading" || it.QuoteCoin != c.opts.QuoteCoin {
				continue
			}
			seen[it.Symbol] = struct{}{}
		}

		if res.NextPageCursor == "" || res.NextPageCursor == cursor {
			break
		}
		cursor = res.NextPageCursor
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)

	c.log.Info("instruments loaded", zap.Int("count", len(out)), zap.String("quote", c.opts.QuoteCoin))
	return out, nil
}
