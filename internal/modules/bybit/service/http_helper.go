package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"divergence_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Коды Bybit, означающие «такого символа нет / не торгуется».
const (
	retParamsError   = 10001
	retInvalidSymbol = 170121
	retRateLimit     = 10006
	retServerError   = 10016
)

type envelope[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  T      `json:"result"`
}

// getResult делает GET на REST Bybit и раскладывает ошибки по таксономии:
// сеть / 5xx / 429 / мусор в ответе => *models.NetworkError, неизвестный символ => ErrSymbolUnavailable.
func getResult[T any](ctx context.Context, c *Client, path string, q url.Values) (T, error) {
	var zero T

	u := c.opts.RESTURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return zero, errors.Wrap(err, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return zero, &models.NetworkError{Op: path, Err: errors.Wrap(err, "do request")}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, &models.NetworkError{Op: path, Err: errors.Wrap(err, "read body")}
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return zero, &models.NetworkError{Op: path, Err: errors.Errorf("http %d: %s", resp.StatusCode, string(b))}
	}
	if resp.StatusCode/100 != 2 {
		return zero, errors.Errorf("%s: http %d: %s", path, resp.StatusCode, string(b))
	}

	var env envelope[T]
	if err := sonic.Unmarshal(b, &env); err != nil {
		return zero, &models.NetworkError{Op: path, Err: errors.Wrap(err, "decode")}
	}

	switch env.RetCode {
	case 0:
		return env.Result, nil
	case retParamsError, retInvalidSymbol:
		return zero, fmt.Errorf("%s: %s: %w", path, env.RetMsg, models.ErrSymbolUnavailable)
	case retRateLimit, retServerError:
		return zero, &models.NetworkError{Op: path, Err: errors.Errorf("retCode=%d %s", env.RetCode, env.RetMsg)}
	default:
		return zero, errors.Errorf("%s: retCode=%d %s", path, env.RetCode, env.RetMsg)
	}
}
