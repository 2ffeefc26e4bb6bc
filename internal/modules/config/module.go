package config

import "go.uber.org/fx"

// Module отдаёт конфиг всем остальным модулям приложения.
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(NewConfig),
	)
}
