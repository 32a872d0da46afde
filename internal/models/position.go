package models

import "time"

type PositionStatus string

const (
	StatusPending  PositionStatus = "PENDING"
	StatusArmed    PositionStatus = "ARMED"
	StatusTrailing PositionStatus = "TRAILING"
	StatusClosed   PositionStatus = "CLOSED"
)

// Rank: порядок статусов, переходы только вперёд.
func (s PositionStatus) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusArmed:
		return 1
	case StatusTrailing:
		return 2
	case StatusClosed:
		return 3
	default:
		return -1
	}
}

type CloseReason string

const (
	ReasonStopLoss     CloseReason = "Stop Loss"
	ReasonTrailingStop CloseReason = "Trailing Stop"
	ReasonTakeProfit   CloseReason = "Take Profit"
	ReasonManualSell   CloseReason = "Manual Sell"
	ReasonError        CloseReason = "Error"
)

// Position: симулированная позиция. Size в валюте котировки (USDT).
type Position struct {
	ID              string
	Symbol          string
	EntryPrice      float64
	EntryTime       time.Time
	Size            float64
	Status          PositionStatus
	StopPrice       float64
	TakeProfitPrice float64 // 0: тейк выключен (трейлинг)
	HighestPrice    float64
	TrailingEnabled bool
	ATR             float64
	Analytics       Analytics
}

func (p Position) Clone() Position {
	p.Analytics = p.Analytics.Clone()
	return p
}
