package runner

import (
	"context"
	"errors"
	"time"

	"divergence_bot/internal/models"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Policy: паузы и повторы, выбранные по типу ошибки.
type Policy struct {
	FetchTries    uint
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	FullWait      time.Duration
	ErrorCooldown time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		FetchTries:    3,
		BaseDelay:     500 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		FullWait:      30 * time.Second,
		ErrorCooldown: 60 * time.Second,
	}
}

// WaitFor: сколько ждать сканеру после неудачного цикла.
func (p Policy) WaitFor(err error) time.Duration {
	if errors.Is(err, models.ErrCapacityFull) {
		return p.FullWait
	}
	return p.ErrorCooldown
}

// retry повторяет только NetworkError; остальное возвращается сразу.
func retry[T any](ctx context.Context, p Policy, log *zap.Logger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.MaxInterval = p.MaxDelay

	tries := p.FetchTries
	if tries == 0 {
		tries = 1
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn(ctx)
		if err != nil && !models.IsNetwork(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debug("retrying", zap.String("op", op), zap.Duration("in", next), zap.Error(err))
		}),
	)
}
