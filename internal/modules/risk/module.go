package risk

import (
	"context"

	"go.uber.org/fx"

	"margin_guard/internal/modules/risk/service"
	telegramsvc "margin_guard/internal/modules/telegram_bot/service"
	"margin_guard/internal/notify"
)

func Module() fx.Option {
	return fx.Module("risk",
		fx.Provide(
			// 1) ядро: петля сопровождения позиций, оценщик риска счёта,
			// стол постановки входных связок
			service.NewService,
			service.NewAssessor,
			service.NewEntryDesk,

			// 2) оценщик и стол читают живые настройки из сервиса
			func(s *service.Service) service.SettingsSource { return s },

			// 3) адаптеры для телеграм-бота
			func(s *service.Service) telegramsvc.RiskEngine { return s },
			func(a *service.Assessor) telegramsvc.RiskAssessor { return a },
			func(d *service.EntryDesk) telegramsvc.TradeOpener { return d },
		),

		// уведомления подключаются после сборки графа: бот сам зависит от сервиса
		fx.Invoke(func(s *service.Service, n notify.Notifier) {
			s.SetNotifier(n)
		}),

		fx.Invoke(func(lc fx.Lifecycle, s *service.Service) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					s.RestoreSettings(ctx)
					s.Start()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					return s.Stop()
				},
			})
		}),
	)
}
