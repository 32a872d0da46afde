package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"divergence_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type wsFrame struct {
	Op      string `json:"op"`
	Success *bool  `json:"success"`
	RetMsg  string `json:"ret_msg"`
	Topic   string `json:"topic"`
	Ts      int64  `json:"ts"`
	Data    struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"data"`
}

// SubscribeTicks: push-поток последних цен по одному символу (topic tickers.<SYMBOL>).
// Переподключение с экспоненциальной паузой: забота клиента. Когда попытки кончились
// (или биржа отвергла подписку), в канал уходит Tick с Err и канал закрывается.
func (c *Client) SubscribeTicks(ctx context.Context, symbol string) (<-chan models.Tick, error) {
	if symbol == "" {
		return nil, errors.New("subscribe: empty symbol")
	}
	ch := make(chan models.Tick)

	go func() {
		defer close(ch)

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 500 * time.Millisecond
		bo.MaxInterval = 15 * time.Second

		var fails uint
		for {
			delivered, err := c.streamOnce(ctx, symbol, ch)
			if ctx.Err() != nil {
				return
			}
			if delivered {
				fails = 0
				bo.Reset()
			}
			fails++

			if errors.Is(err, models.ErrSymbolUnavailable) || fails > c.opts.ReconnectTries {
				c.log.Warn("ticker stream gave up", zap.String("symbol", symbol), zap.Uint("fails", fails), zap.Error(err))
				select {
				case ch <- models.Tick{Symbol: symbol, Time: time.Now(), Err: &models.NetworkError{Op: "ws " + symbol, Err: err}}:
				case <-ctx.Done():
				}
				return
			}

			wait := bo.NextBackOff()
			c.log.Info("ticker stream reconnect", zap.String("symbol", symbol), zap.Duration("in", wait), zap.Error(err))
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	}()

	return ch, nil
}

// streamOnce живёт одно соединение. delivered=true, если хоть один тик ушёл наружу.
func (c *Client) streamOnce(ctx context.Context, symbol string, ch chan<- models.Tick) (bool, error) {
	conn, _, err := c.wsDialer.DialContext(ctx, c.opts.WSURL, nil)
	if err != nil {
		return false, errors.Wrap(err, "dial")
	}
	defer conn.Close()

	topic := "tickers." + symbol
	if err := conn.WriteJSON(map[string]any{"op": "subscribe", "args": []string{topic}}); err != nil {
		return false, errors.Wrap(err, "subscribe")
	}

	// keepalive ping; он же закрывает соединение по ctx, чтобы разбудить ReadMessage
	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		t := time.NewTicker(c.opts.PingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-stopPing:
				return
			case <-t.C:
				_ = conn.WriteJSON(map[string]string{"op": "ping"})
			}
		}
	}()

	delivered := false
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return delivered, errors.Wrap(err, "read")
		}

		var frame wsFrame
		if err := sonic.Unmarshal(msg, &frame); err != nil {
			continue
		}
		if frame.Op == "subscribe" && frame.Success != nil && !*frame.Success {
			return delivered, fmt.Errorf("subscribe %s: %s: %w", topic, frame.RetMsg, models.ErrSymbolUnavailable)
		}
		if frame.Topic != topic || frame.Data.LastPrice == "" {
			continue
		}

		px, err := strconv.ParseFloat(frame.Data.LastPrice, 64)
		if err != nil || px <= 0 {
			continue
		}
		ts := time.Now()
		if frame.Ts > 0 {
			ts = time.UnixMilli(frame.Ts)
		}

		select {
		case ch <- models.Tick{Symbol: symbol, Price: px, Time: ts}:
			delivered = true
		case <-ctx.Done():
			return delivered, ctx.Err()
		}
	}
}
