package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"divergence_bot/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSink: локальный журнал в одном файле, колонка на каждое поле аналитики.
type SQLiteSink struct {
	db     *sql.DB
	insert string
}

func NewSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create trades table: %w", err)
	}

	cols := append([]string{"id"}, Columns()...)
	cols = append(cols, "balance_after")
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return &SQLiteSink{
		db:     db,
		insert: fmt.Sprintf("INSERT OR IGNORE INTO trades (%s) VALUES (%s)", strings.Join(cols, ", "), marks),
	}, nil
}

func sqliteSchema() string {
	var b strings.Builder
	b.WriteString(`CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	token TEXT NOT NULL,
	purchase_time TEXT NOT NULL,
	sale_time TEXT NOT NULL,
	purchase_price REAL NOT NULL,
	sale_price REAL NOT NULL,
	result TEXT NOT NULL,
	size REAL NOT NULL,
	net_pnl REAL NOT NULL,
	commission REAL NOT NULL`)
	for _, k := range models.AnalyticsFields {
		b.WriteString(",\n\t" + k + " NUMERIC")
	}
	b.WriteString(",\n\tbalance_after REAL NOT NULL\n)")
	return b.String()
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Write(ctx context.Context, rec models.TradeRecord) error {
	args := []any{
		rec.ID,
		rec.Token,
		rec.PurchaseTime.Format(models.TimeLayout),
		rec.SaleTime.Format(models.TimeLayout),
		rec.PurchasePrice,
		rec.SalePrice,
		string(rec.Result),
		rec.Size,
		rec.NetPnL,
		rec.Commission,
	}
	args = append(args, analyticsValues(rec.Analytics)...)
	args = append(args, rec.BalanceAfter)

	if _, err := s.db.ExecContext(ctx, s.insert, args...); err != nil {
		return fmt.Errorf("sqlite insert %s: %w", rec.Token, err)
	}
	return nil
}

func (s *SQLiteSink) Close() error { return s.db.Close() }
