package marketdata

import (
	"go.uber.org/fx"

	"margin_guard/internal/modules/marketdata/service"
	risksvc "margin_guard/internal/modules/risk/service"
)

// Module поднимает клиент котировок с кэшем и WebSocket-стримом.
func Module() fx.Option {
	return fx.Module("marketdata",
		fx.Provide(
			service.NewClient,
		),

		// Адаптер: *service.Client -> фид котировок риск-движка
		fx.Provide(
			func(c *service.Client) risksvc.QuoteFeed { return c },
		),
	)
}
