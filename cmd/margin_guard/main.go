package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"margin_guard/internal/modules/bootstrap"
	"margin_guard/internal/modules/config"
	"margin_guard/internal/modules/gateway"
	"margin_guard/internal/modules/health"
	"margin_guard/internal/modules/marketdata"
	"margin_guard/internal/modules/postgres"
	"margin_guard/internal/modules/risk"
	telegram "margin_guard/internal/modules/telegram_bot"
	"margin_guard/pkg/logger"
	"margin_guard/pkg/tracing"
)

const serviceName = "margin_guard"

func main() {
	logger.SetServiceName(serviceName)
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	tracing.SetServiceName(serviceName)

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		gateway.Module(),
		marketdata.Module(),
		risk.Module(),
		telegram.Module(),
		health.Module(),
		bootstrap.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Jaeger.Host,
				Port: cfg.Jaeger.Port,
			})
			if err != nil {
				return err
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					closeTracer()
					return nil
				},
			})
			return nil
		}),
	)
	app.Run()
}
