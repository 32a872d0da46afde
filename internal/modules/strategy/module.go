package strategy

import (
	bybit "divergence_bot/internal/modules/bybit/service"
	"divergence_bot/internal/modules/strategy/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			service.NewEngine, // service.Engine
			func(c *bybit.Client) *service.TrendFilter {
				return service.NewTrendFilter(c)
			},
		),
	)
}
