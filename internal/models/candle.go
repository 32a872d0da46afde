package models

import "time"

// Candle: свеча биржи, ряды всегда идут oldest→newest.
type Candle struct {
	Start  time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Indicators: значения индикаторов на конкретной свече (только после прогрева).
type Indicators struct {
	MACD       float64
	MACDSignal float64
	Hist       float64
	SMA200     float64
	RSI        float64
	ATR        float64
}

// Bar: свеча вместе с индикаторами.
type Bar struct {
	Candle
	Indicators
}

// Tick: цена из live-потока. Err != nil означает, что поток умер и больше тиков не будет.
type Tick struct {
	Symbol string
	Price  float64
	Time   time.Time
	Err    error
}
