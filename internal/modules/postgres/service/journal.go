package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"margin_guard/internal/models"
	"margin_guard/pkg/db"
)

// Journal — лог перестановок стопов и частичных фиксаций.
type Journal struct {
	db db.TxManager
}

func NewJournal(txm db.TxManager) *Journal {
	return &Journal{db: txm}
}

func (j *Journal) RecordAdjustment(ctx context.Context, a models.Adjustment) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Journal.RecordAdjustment: %w", err)
		}
	}()

	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	return j.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
			INSERT INTO risk_adjustments
				(position_id, instrument_id, kind, old_stop, new_stop, qty, order_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			a.PositionID, a.InstrumentID, string(a.Kind), a.OldStop, a.NewStop, a.Qty, a.OrderID, created)
		return err
	})
}

// Recent — последние записи журнала, свежие первыми.
func (j *Journal) Recent(ctx context.Context, limit int) (out []models.Adjustment, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Journal.Recent: %w", err)
		}
	}()

	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.Conn().Query(ctx, `
		SELECT position_id, instrument_id, kind, old_stop, new_stop, qty, order_id, created_at
		FROM risk_adjustments
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a    models.Adjustment
			kind string
		)
		if err = rows.Scan(&a.PositionID, &a.InstrumentID, &kind, &a.OldStop, &a.NewStop, &a.Qty, &a.OrderID, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Kind = models.AdjustmentKind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}
