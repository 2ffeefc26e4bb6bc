package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"

	"margin_guard/internal/models"
	"margin_guard/pkg/db"
)

// Settings хранит действующие риск-настройки одной строкой jsonb.
type Settings struct {
	db db.TxManager
}

func NewSettings(txm db.TxManager) *Settings {
	return &Settings{db: txm}
}

func (s *Settings) Save(ctx context.Context, rs models.RiskManagementSettings) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Settings.Save: %w", err)
		}
	}()

	data, err := sonic.Marshal(rs)
	if err != nil {
		return err
	}

	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
			INSERT INTO risk_settings (id, settings, updated_at)
			VALUES (1, $1, now())
			ON CONFLICT (id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = now()`,
			data)
		return err
	})
}

func (s *Settings) Load(ctx context.Context) (rs models.RiskManagementSettings, ok bool, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Settings.Load: %w", err)
		}
	}()

	var data []byte
	err = s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctxTx, `SELECT settings FROM risk_settings WHERE id = 1`)
		return row.Scan(&data)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rs, false, nil
		}
		return rs, false, err
	}

	if err = sonic.Unmarshal(data, &rs); err != nil {
		return rs, false, err
	}
	return rs, true, nil
}
