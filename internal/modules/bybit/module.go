package bybit

import (
	"divergence_bot/internal/modules/bybit/service"

	"go.uber.org/fx"
)

// Module даёт клиент рыночных данных Bybit.
func Module() fx.Option {
	return fx.Module("bybit",
		fx.Provide(
			service.NewClient,
		),
	)
}
