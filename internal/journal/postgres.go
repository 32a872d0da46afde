package journal

import (
	"context"
	"fmt"

	"divergence_bot/internal/models"
	"divergence_bot/pkg/db"

	"github.com/bytedance/sonic"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS trades (
	id             TEXT PRIMARY KEY,
	token          TEXT NOT NULL,
	purchase_time  TIMESTAMPTZ NOT NULL,
	sale_time      TIMESTAMPTZ NOT NULL,
	purchase_price DOUBLE PRECISION NOT NULL,
	sale_price     DOUBLE PRECISION NOT NULL,
	result         TEXT NOT NULL,
	size           DOUBLE PRECISION NOT NULL,
	net_pnl        DOUBLE PRECISION NOT NULL,
	commission     DOUBLE PRECISION NOT NULL,
	balance_after  DOUBLE PRECISION NOT NULL,
	analytics      JSONB
)`

const pgInsert = `
INSERT INTO trades (id, token, purchase_time, sale_time, purchase_price, sale_price, result,
                    size, net_pnl, commission, balance_after, analytics)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO NOTHING`

// PostgresSink пишет сделки в таблицу trades, аналитику одним JSONB.
type PostgresSink struct {
	tx db.TxManager
}

func NewPostgresSink(ctx context.Context, tx db.TxManager) (*PostgresSink, error) {
	if _, err := tx.Conn().Exec(ctx, pgSchema); err != nil {
		return nil, fmt.Errorf("create trades table: %w", err)
	}
	return &PostgresSink{tx: tx}, nil
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Write(ctx context.Context, rec models.TradeRecord) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("PostgresSink.Write: %w", err)
		}
	}()

	var analytics []byte
	if len(rec.Analytics) > 0 {
		analytics, err = sonic.Marshal(rec.Analytics)
		if err != nil {
			return err
		}
	}

	return s.tx.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, pgInsert,
			rec.ID,
			rec.Token,
			rec.PurchaseTime,
			rec.SaleTime,
			rec.PurchasePrice,
			rec.SalePrice,
			string(rec.Result),
			rec.Size,
			rec.NetPnL,
			rec.Commission,
			rec.BalanceAfter,
			analytics,
		)
		return err
	})
}

// Close: пулом владеет модуль postgres.
func (s *PostgresSink) Close() error { return nil }
