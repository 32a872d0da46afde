package journal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"divergence_bot/internal/models"
	"divergence_bot/pkg/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type fakeTx struct {
	calls   []execCall
	execErr error
}

func (f *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeTx) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (f *fakeTx) QueryRow(context.Context, string, ...interface{}) pgx.Row { return nil }

type fakeTxManager struct {
	conn *fakeTx
	runs int
}

func (m *fakeTxManager) RunMaster(ctx context.Context, fn func(ctxTx context.Context, tx db.Transaction) error) error {
	m.runs++
	return fn(ctx, m.conn)
}

func (m *fakeTxManager) Conn() db.Transaction { return m.conn }

func TestPostgresSink_CreatesTableAndInserts(t *testing.T) {
	tm := &fakeTxManager{conn: &fakeTx{}}

	sink, err := NewPostgresSink(context.Background(), tm)
	require.NoError(t, err)
	require.Len(t, tm.conn.calls, 1)
	assert.Contains(t, tm.conn.calls[0].sql, "CREATE TABLE IF NOT EXISTS trades")

	rec := sampleRecord("BTCUSDT")
	rec.Analytics = models.Analytics{models.AnalyticsRSI: 28.5, models.AnalyticsHammer: true}
	require.NoError(t, sink.Write(context.Background(), rec))

	assert.Equal(t, 1, tm.runs)
	require.Len(t, tm.conn.calls, 2)
	ins := tm.conn.calls[1]
	assert.True(t, strings.Contains(ins.sql, "ON CONFLICT (id) DO NOTHING"))
	require.Len(t, ins.args, 12)
	assert.Equal(t, rec.ID, ins.args[0])
	assert.Equal(t, "Take Profit", ins.args[6])

	raw, ok := ins.args[11].([]byte)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"rsi_14":28.5`)
}

func TestPostgresSink_NoAnalyticsIsNull(t *testing.T) {
	tm := &fakeTxManager{conn: &fakeTx{}}
	sink, err := NewPostgresSink(context.Background(), tm)
	require.NoError(t, err)

	rec := sampleRecord("ETHUSDT")
	rec.Analytics = nil
	require.NoError(t, sink.Write(context.Background(), rec))
	assert.Nil(t, tm.conn.calls[1].args[11])
}

func TestPostgresSink_WrapsErrors(t *testing.T) {
	tm := &fakeTxManager{conn: &fakeTx{}}
	sink, err := NewPostgresSink(context.Background(), tm)
	require.NoError(t, err)

	tm.conn.execErr = errors.New("conn refused")
	err = sink.Write(context.Background(), sampleRecord("BTCUSDT"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PostgresSink.Write")
}
