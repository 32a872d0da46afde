package runner

import (
	"github.com/shopspring/decimal"
)

// Realization: итог сделки в валюте котировки.
type Realization struct {
	ExitValue  decimal.Decimal
	Commission decimal.Decimal
	NetPnL     decimal.Decimal
}

// Realize считает чистый PnL с комиссией на вход и на выход:
//
//	exit_value = size * exit / entry
//	commission = size*rate + exit_value*rate
//	net_pnl    = exit_value - size - commission
func Realize(entry, exit, size, rate decimal.Decimal) Realization {
	if entry.IsZero() {
		return Realization{}
	}
	exitValue := size.Mul(exit).Div(entry)
	commission := size.Mul(rate).Add(exitValue.Mul(rate))
	return Realization{
		ExitValue:  exitValue,
		Commission: commission,
		NetPnL:     exitValue.Sub(size).Sub(commission),
	}
}

func RealizeFloat(entry, exit, size, rate float64) Realization {
	return Realize(
		decimal.NewFromFloat(entry),
		decimal.NewFromFloat(exit),
		decimal.NewFromFloat(size),
		decimal.NewFromFloat(rate),
	)
}

// Apply: баланс после сделки.
func (r Realization) Apply(balance decimal.Decimal) decimal.Decimal {
	return balance.Add(r.NetPnL)
}
