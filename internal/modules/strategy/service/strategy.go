package service

import (
	"divergence_bot/internal/models"
)

// Engine: то, что нужно сканеру от стратегии.
type Engine interface {
	// ok==true когда есть сигнал; ErrInsufficientData: пропустить символ в этом цикле
	Evaluate(symbol string, candles []models.Candle, s models.Settings) (models.Signal, bool, error)
	Name() string
}

// Divergence: индикаторы + детектор дивергенции.
type Divergence struct {
	indicators *IndicatorEngine
}

func NewEngine() Engine {
	return &Divergence{indicators: NewIndicatorEngine()}
}

func (d *Divergence) Name() string { return "macd_divergence" }

func (d *Divergence) Evaluate(symbol string, candles []models.Candle, s models.Settings) (models.Signal, bool, error) {
	bars, err := d.indicators.Compute(candles)
	if err != nil {
		return models.Signal{}, false, err
	}
	return NewDetector(ParamsFromSettings(s)).Detect(symbol, bars)
}
