package postgres

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/jackc/pgx/v5"

	"margin_guard/internal/modules/config"
	"margin_guard/internal/modules/postgres/service"
	risksvc "margin_guard/internal/modules/risk/service"
	telegramsvc "margin_guard/internal/modules/telegram_bot/service"
	"margin_guard/pkg/db"
)

// Module поднимает пул соединений и хранилища риск-движка.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (*db.PgTxManager, error) {
				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				err = poolMaster.Ping(ctx)
				if err != nil {
					return nil, err
				}

				return db.NewPgTxManager(poolMaster), nil
			},
			func(m *db.PgTxManager) db.TxManager { return m },
		),

		// 2. Хранилища
		fx.Provide(
			service.NewSettings,
			service.NewJournal,
		),

		// 3. Адаптеры: конкретные хранилища -> интерфейсы потребителей
		fx.Provide(
			func(s *service.Settings) risksvc.SettingsStore { return s },
			func(j *service.Journal) risksvc.Journal { return j },
			func(j *service.Journal) telegramsvc.JournalReader { return j },
		),

		fx.Invoke(ensureSchema),
	)
}

// ensureSchema доводит схему до нужного вида на старте.
func ensureSchema(ctx context.Context, txm db.TxManager) error {
	return txm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
			CREATE TABLE IF NOT EXISTS risk_settings (
				id         int PRIMARY KEY,
				settings   jsonb NOT NULL,
				updated_at timestamptz NOT NULL DEFAULT now()
			)`)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctxTx, `
			CREATE TABLE IF NOT EXISTS risk_adjustments (
				id            bigserial PRIMARY KEY,
				position_id   text NOT NULL,
				instrument_id text NOT NULL,
				kind          text NOT NULL,
				old_stop      double precision NOT NULL DEFAULT 0,
				new_stop      double precision NOT NULL DEFAULT 0,
				qty           double precision NOT NULL DEFAULT 0,
				order_id      text NOT NULL DEFAULT '',
				created_at    timestamptz NOT NULL DEFAULT now()
			)`)
		return err
	})
}
