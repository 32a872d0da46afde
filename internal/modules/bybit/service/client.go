package service

import (
	"net/http"
	"strings"
	"time"

	"divergence_bot/internal/modules/config"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const category = "spot"

type Options struct {
	RESTURL        string
	WSURL          string
	QuoteCoin      string
	HTTPTimeout    time.Duration
	PingInterval   time.Duration
	ReconnectTries uint
}

// Client отдаёт рыночные данные Bybit v5 (spot): свечи, тикеры, инструменты и live-цены по websocket.
// Только чтение, ордера не ставим.
type Client struct {
	opts Options
	log  *zap.Logger

	http     *http.Client
	wsDialer *websocket.Dialer
}

func NewClient(cfg *config.Config, log *zap.Logger) *Client {
	return NewClientWithOptions(Options{
		RESTURL:        cfg.Bybit.RESTURL,
		WSURL:          cfg.Bybit.WSURL,
		QuoteCoin:      cfg.Bybit.QuoteCoin,
		HTTPTimeout:    cfg.Bybit.HTTPTimeout,
		PingInterval:   cfg.Bybit.PingInterval,
		ReconnectTries: cfg.Bybit.ReconnectTries,
	}, log)
}

func NewClientWithOptions(opts Options, log *zap.Logger) *Client {
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 10 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 20 * time.Second
	}
	if opts.QuoteCoin == "" {
		opts.QuoteCoin = "USDT"
	}
	opts.RESTURL = strings.TrimRight(opts.RESTURL, "/")

	return &Client{
		opts:     opts,
		log:      log.Named("bybit"),
		http:     &http.Client{Timeout: opts.HTTPTimeout},
		wsDialer: &websocket.Dialer{HandshakeTimeout: opts.HTTPTimeout},
	}
}
