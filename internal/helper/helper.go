package helper

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// NextBoundary: ближайшая граница интервала строго после t (5m => :00, :05, :10 ...).
func NextBoundary(t time.Time, every time.Duration) time.Time {
	if every <= 0 {
		return t
	}
	sec := int64(every / time.Second)
	if sec <= 0 {
		return t.Add(every)
	}
	u := t.Unix()
	next := u - u%sec + sec
	return time.Unix(next, 0).In(t.Location())
}

// PctChange: изменение в процентах от from к to.
func PctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to/from - 1) * 100
}

// FormatPrice печатает цену с точностью по её порядку: 65000.1, 1.2345, 0.00001234.
func FormatPrice(px float64) string {
	if px == 0 || math.IsNaN(px) || math.IsInf(px, 0) {
		return strconv.FormatFloat(px, 'f', 2, 64)
	}
	abs := math.Abs(px)
	prec := 2
	if abs < 1000 {
		// 4 значащих цифры после первой значимой
		prec = int(math.Max(2, 4-math.Floor(math.Log10(abs))))
	}
	if prec > 10 {
		prec = 10
	}
	s := strconv.FormatFloat(px, 'f', prec, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

func SymbolKey(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}
