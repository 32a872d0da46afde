package service

import (
	"math"

	"divergence_bot/internal/models"
)

// isHammer: нижняя тень > 2 тел, верхняя < 0.5 тела.
func isHammer(c models.Candle) bool {
	body := math.Abs(c.Close - c.Open)
	lower := math.Min(c.Open, c.Close) - c.Low
	upper := c.High - math.Max(c.Open, c.Close)
	return lower > 2*body && upper < 0.5*body
}

// isBullishEngulfing: медвежья свеча, за ней бычья, тело которой целиком перекрывает предыдущее.
func isBullishEngulfing(prev, cur models.Candle) bool {
	if prev.Close >= prev.Open || cur.Close <= cur.Open {
		return false
	}
	return cur.Open <= prev.Close && cur.Close >= prev.Open &&
		cur.Close-cur.Open > prev.Open-prev.Close
}

// patternsAround ищет паттерны в окне ±radius вокруг idx (не дальше last).
func patternsAround(bars []models.Bar, idx, radius, last int) (hammer, engulfing bool) {
	from := max(0, idx-radius)
	to := min(last, idx+radius)
	for i := from; i <= to; i++ {
		if isHammer(bars[i].Candle) {
			hammer = true
		}
		if i > 0 && isBullishEngulfing(bars[i-1].Candle, bars[i].Candle) {
			engulfing = true
		}
	}
	return hammer, engulfing
}
