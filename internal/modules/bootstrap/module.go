package bootstrap

import (
	"context"
	"log"

	"go.uber.org/fx"

	bootstrap "margin_guard/internal/modules/bootstrap/service"
	gwservice "margin_guard/internal/modules/gateway/service"
	healthsvc "margin_guard/internal/modules/health/service"
	mdservice "margin_guard/internal/modules/marketdata/service"
	risksvc "margin_guard/internal/modules/risk/service"
)

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			bootstrap.NewWarmuper, // -> bootstrap.Warmuper

			func(c *gwservice.Client) bootstrap.PositionSource { return c },
			func(s *risksvc.Service) bootstrap.Registrar { return s },
			func(c *mdservice.Client) bootstrap.QuoteStreamer { return c },
			func(st *healthsvc.State) bootstrap.ReadySink { return st },
		),
		// appCtx живёт весь срок приложения, хуковый ctx гаснет после старта
		fx.Invoke(func(lc fx.Lifecycle, appCtx context.Context, wu *bootstrap.Warmuper) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						if err := wu.Warmup(appCtx); err != nil {
							log.Printf("[BOOT] warmup error: %v", err)
							return
						}
						log.Printf("[BOOT] warmup done")
					}()
					return nil
				},
			})
		}),
	)
}
