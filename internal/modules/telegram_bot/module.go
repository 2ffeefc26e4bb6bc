package telegram

import (
	"context"

	"go.uber.org/fx"

	"margin_guard/internal/modules/config"
	"margin_guard/internal/modules/telegram_bot/service"
	"margin_guard/internal/notify"
)

func Module() fx.Option {
	return fx.Module("telegram",
		// 1. Сервис Telegram как *service.Telegram
		fx.Provide(
			service.NewTelegram,
		),

		// 2. Адаптер: бот или stdout-заглушка как notify.Notifier
		fx.Provide(
			func(cfg *config.Config, t *service.Telegram) notify.Notifier {
				if !t.Enabled() {
					return notify.NewStdout()
				}
				return t
			},
		),

		// Запуск long-polling через Lifecycle
		fx.Invoke(
			func(lc fx.Lifecycle, t *service.Telegram) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						t.Start(context.Background())
						return nil
					},
					OnStop: func(ctx context.Context) error {
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
