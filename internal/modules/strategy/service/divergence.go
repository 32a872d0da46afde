package service

import (
	"fmt"
	"time"

	"divergence_bot/internal/models"
)

const (
	patternRadius = 2
	avgVolumeBars = 20
	// допуск на float при сравнении с порогом
	pctEpsilon = 1e-9
)

type DetectorParams struct {
	NearWindow          int
	FarWindow           int
	MinPriceDiffPercent float64
	RequireHigherLow    bool
}

func ParamsFromSettings(s models.Settings) DetectorParams {
	return DetectorParams{
		NearWindow:          s.NearWindow,
		FarWindow:           s.FarWindow,
		MinPriceDiffPercent: s.MinPriceDiffPercent,
		RequireHigherLow:    s.RequireHigherLow,
	}
}

// Detector ищет бычью дивергенцию MACD-гистограммы на последней закрытой свече.
type Detector struct {
	params DetectorParams
	now    func() time.Time
}

func NewDetector(p DetectorParams) *Detector {
	if p.NearWindow <= 0 {
		p.NearWindow = 15
	}
	if p.FarWindow <= 0 {
		p.FarWindow = 50
	}
	return &Detector{params: p, now: time.Now}
}

// Detect: ok=false без ошибки значит «сигнала нет». Последний бар считается формирующимся.
func (d *Detector) Detect(symbol string, bars []models.Bar) (models.Signal, bool, error) {
	n := len(bars)
	if n < MinBars {
		return models.Signal{}, false, fmt.Errorf("%s: %d bars: %w", symbol, n, models.ErrInsufficientData)
	}

	last := n - 2
	trigger := last - 1

	// 1. пересечение нуля снизу
	if !(bars[trigger].Hist < 0 && bars[last].Hist > 0) {
		return models.Signal{}, false, nil
	}

	// 2. point1: минимум гистограммы среди W1 закрытых свечей перед пересечением (включая trigger)
	p1 := argminHist(bars, last-d.params.NearWindow, last-1)
	if p1 < 0 {
		return models.Signal{}, false, nil
	}

	// 3. point2: минимум в W2 свечах перед point1
	p2 := argminHist(bars, p1-d.params.FarWindow, p1-1)
	if p2 < 0 {
		return models.Signal{}, false, nil
	}

	// 4. цена ниже, импульс выше
	low1, low2 := bars[p1].Low, bars[p2].Low
	if !(low1 < low2) {
		return models.Signal{}, false, nil
	}
	if d.params.RequireHigherLow && !(bars[p1].Hist > bars[p2].Hist) {
		return models.Signal{}, false, nil
	}
	diffPct := (low2 - low1) / low2 * 100
	if diffPct+pctEpsilon < d.params.MinPriceDiffPercent {
		return models.Signal{}, false, nil
	}

	// 5. вход по close последней закрытой
	entry := bars[last]
	return models.Signal{
		Symbol:     symbol,
		EntryPrice: entry.Close,
		DetectedAt: d.now(),
		ATR:        entry.ATR,
		Analytics:  analytics(bars, last, p1, p2, diffPct),
	}, true, nil
}

// argminHist: индекс минимума Hist на [from, to], при равенстве самый ранний. -1 если окно пустое.
func argminHist(bars []models.Bar, from, to int) int {
	from = max(from, 0)
	if to >= len(bars) {
		to = len(bars) - 1
	}
	if from > to {
		return -1
	}
	idx := from
	for i := from + 1; i <= to; i++ {
		if bars[i].Hist < bars[idx].Hist {
			idx = i
		}
	}
	return idx
}

func analytics(bars []models.Bar, last, p1, p2 int, diffPct float64) models.Analytics {
	var volSum float64
	from := max(0, last-avgVolumeBars+1)
	for i := from; i <= last; i++ {
		volSum += bars[i].Volume
	}

	hammer, engulfing := patternsAround(bars, p1, patternRadius, last)
	cur := bars[last]

	a := models.Analytics{
		models.AnalyticsAvgVolume20:      volSum / float64(last-from+1),
		models.AnalyticsAboveSMA200:      cur.Close > cur.SMA200,
		models.AnalyticsRSI:              cur.RSI,
		models.AnalyticsATR:              cur.ATR,
		models.AnalyticsHammer:           hammer,
		models.AnalyticsBullishEngulfing: engulfing,
		models.AnalyticsPoint1Low:        bars[p1].Low,
		models.AnalyticsPoint2Low:        bars[p2].Low,
		models.AnalyticsPoint1Hist:       bars[p1].Hist,
		models.AnalyticsPoint2Hist:       bars[p2].Hist,
		models.AnalyticsPriceDiffPct:     diffPct,
	}
	vols := []string{models.AnalyticsVolume1, models.AnalyticsVolume2, models.AnalyticsVolume3}
	for i, key := range vols {
		if last-i >= 0 {
			a[key] = bars[last-i].Volume
		}
	}
	return a
}
