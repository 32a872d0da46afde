package models

import "time"

const (
	AnalyticsAvgVolume20      = "avg_volume_20"
	AnalyticsVolume1          = "volume_1"
	AnalyticsVolume2          = "volume_2"
	AnalyticsVolume3          = "volume_3"
	AnalyticsAboveSMA200      = "above_sma200"
	AnalyticsRSI              = "rsi_14"
	AnalyticsATR              = "atr_14"
	AnalyticsHammer           = "hammer"
	AnalyticsBullishEngulfing = "bullish_engulfing"
	AnalyticsPoint1Low        = "point1_low"
	AnalyticsPoint2Low        = "point2_low"
	AnalyticsPoint1Hist       = "point1_hist"
	AnalyticsPoint2Hist       = "point2_hist"
	AnalyticsPriceDiffPct     = "price_diff_pct"
	AnalyticsHTFTrend         = "htf_trend"
)

// AnalyticsFields: фиксированный порядок колонок аналитики в журнале сделок.
var AnalyticsFields = []string{
	AnalyticsAvgVolume20,
	AnalyticsVolume1,
	AnalyticsVolume2,
	AnalyticsVolume3,
	AnalyticsAboveSMA200,
	AnalyticsRSI,
	AnalyticsATR,
	AnalyticsHammer,
	AnalyticsBullishEngulfing,
	AnalyticsPoint1Low,
	AnalyticsPoint2Low,
	AnalyticsPoint1Hist,
	AnalyticsPoint2Hist,
	AnalyticsPriceDiffPct,
	AnalyticsHTFTrend,
}

// Analytics: плоская карта вспомогательных метрик сигнала (float64 или bool).
type Analytics map[string]any

func (a Analytics) Clone() Analytics {
	if a == nil {
		return nil
	}
	out := make(Analytics, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func (a Analytics) Float(key string) (float64, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Signal: подтверждённый сигнал на покупку.
type Signal struct {
	Symbol     string
	EntryPrice float64
	DetectedAt time.Time
	ATR        float64
	Analytics  Analytics
}
