package runner

import "divergence_bot/internal/models"

// initialLevels считает стартовый стоп и тейк. Тейк 0, если включён трейлинг.
func initialLevels(entry, atr float64, s models.Settings) (stop, tp float64) {
	dist := entry * s.StopLossPercent / 100
	if s.StopMode == models.StopModeATR && atr > 0 {
		dist = atr * s.ATRMultiplier
	}
	stop = entry - dist
	if !s.TrailingEnabled {
		tp = entry * (1 + s.TakeProfitPercent/100)
	}
	return stop, tp
}

type tickOutcome struct {
	Close     bool
	Reason    models.CloseReason
	Activated bool // перешли в TRAILING на этом тике
	Raised    bool // стоп подтянут
}

// exitTracker ведёт стоп, тейк и трейлинг одной позиции. Без I/O и без блокировок:
// им владеет только вотчер.
type exitTracker struct {
	entry      float64
	atr        float64
	multiplier float64
	breakeven  bool

	trailing   bool
	activation float64

	status   models.PositionStatus
	closed   bool
	stop     float64
	tp       float64
	highest  float64
	distance float64
}

func newExitTracker(pos models.Position, s models.Settings) *exitTracker {
	t := &exitTracker{
		entry:      pos.EntryPrice,
		atr:        pos.ATR,
		multiplier: s.ATRMultiplier,
		breakeven:  s.TrailingBreakeven,
		trailing:   pos.TrailingEnabled,
		activation: pos.EntryPrice * (1 + s.TrailingActivationPercent/100),
		status:     pos.Status,
		stop:       pos.StopPrice,
		tp:         pos.TakeProfitPrice,
		highest:    pos.HighestPrice,
	}
	if t.status == models.StatusPending || t.status == "" {
		t.status = models.StatusArmed
	}
	if t.highest < t.entry {
		t.highest = t.entry
	}
	if t.status == models.StatusTrailing {
		t.distance = t.trailDistance(t.stop)
	}
	return t
}

// trailDistance фиксируется по ATR на входе; без ATR берём исходный отступ стопа.
func (t *exitTracker) trailDistance(initialStop float64) float64 {
	if t.atr > 0 {
		return t.atr * t.multiplier
	}
	return t.entry - initialStop
}

func (t *exitTracker) OnTick(price float64) tickOutcome {
	var out tickOutcome
	if t.closed || price <= 0 {
		return out
	}

	if t.status == models.StatusArmed && t.trailing && price >= t.activation {
		dist := t.trailDistance(t.stop)
		t.status = models.StatusTrailing
		t.tp = 0
		if t.breakeven && t.stop < t.entry {
			t.stop = t.entry
			out.Raised = true
		}
		t.distance = dist
		out.Activated = true
	}

	if t.status == models.StatusTrailing {
		if price > t.highest {
			t.highest = price
		}
		if candidate := t.highest - t.distance; candidate > t.stop {
			t.stop = candidate
			out.Raised = true
		}
	}

	switch {
	case price <= t.stop:
		out.Close = true
		out.Reason = models.ReasonStopLoss
		if t.status == models.StatusTrailing {
			out.Reason = models.ReasonTrailingStop
		}
	case t.status == models.StatusArmed && t.tp > 0 && price >= t.tp:
		out.Close = true
		out.Reason = models.ReasonTakeProfit
	}
	t.closed = out.Close
	return out
}

func (t *exitTracker) Progress() Progress {
	return Progress{
		Status:          t.status,
		StopPrice:       t.stop,
		TakeProfitPrice: t.tp,
		HighestPrice:    t.highest,
	}
}

func (t *exitTracker) Closed() bool { return t.closed }
