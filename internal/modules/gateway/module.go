package gateway

import (
	"go.uber.org/fx"

	"margin_guard/internal/modules/gateway/service"
	risksvc "margin_guard/internal/modules/risk/service"
	telegramsvc "margin_guard/internal/modules/telegram_bot/service"
)

// Module поднимает клиент торгового шлюза.
func Module() fx.Option {
	return fx.Module("gateway",
		fx.Provide(
			service.NewClient,
		),

		// Адаптеры: *service.Client -> интерфейсы потребителей
		fx.Provide(
			func(c *service.Client) risksvc.TradingGateway { return c },
			func(c *service.Client) risksvc.BracketGateway { return c },
			func(c *service.Client) risksvc.InstrumentMeta { return c },
			func(c *service.Client) risksvc.AccountReader { return c },
			func(c *service.Client) telegramsvc.PositionSource { return c },
		),
	)
}
