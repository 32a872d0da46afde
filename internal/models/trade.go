package models

import "time"

const TimeLayout = "2006-01-02 15:04:05"

// TradeRecord: запись о закрытой сделке для журнала.
type TradeRecord struct {
	ID            string
	Token         string
	PurchaseTime  time.Time
	SaleTime      time.Time
	PurchasePrice float64
	SalePrice     float64
	Result        CloseReason
	Size          float64
	NetPnL        float64
	Commission    float64
	BalanceAfter  float64
	Analytics     Analytics
}
