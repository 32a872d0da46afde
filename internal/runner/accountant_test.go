package runner

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRealize_RoundTrip(t *testing.T) {
	t.Parallel()

	r := RealizeFloat(100, 110, 1000, 0.001)

	assert.True(t, r.ExitValue.Equal(decimal.NewFromInt(1100)), r.ExitValue.String())
	assert.True(t, r.Commission.Equal(decimal.RequireFromString("2.1")), r.Commission.String())
	assert.True(t, r.NetPnL.Equal(decimal.RequireFromString("97.9")), r.NetPnL.String())

	before := decimal.NewFromInt(5000)
	assert.True(t, r.Apply(before).Equal(decimal.RequireFromString("5097.9")))
}

func TestRealize_Loss(t *testing.T) {
	t.Parallel()

	r := RealizeFloat(100, 98, 100, 0.001)
	// 98 - 100 - (0.1 + 0.098)
	assert.True(t, r.NetPnL.Equal(decimal.RequireFromString("-2.198")), r.NetPnL.String())
}

func TestRealize_FlatStillPaysCommission(t *testing.T) {
	t.Parallel()

	r := RealizeFloat(100, 100, 100, 0.001)
	assert.True(t, r.NetPnL.Equal(decimal.RequireFromString("-0.2")), r.NetPnL.String())
}

func TestRealize_ZeroEntry(t *testing.T) {
	t.Parallel()

	assert.True(t, RealizeFloat(0, 100, 100, 0.001).NetPnL.IsZero())
}
