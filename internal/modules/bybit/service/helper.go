package service

import (
	"fmt"
	"strings"
)

// NormInterval приводит таймфрейм к формату Bybit: "5m" => "5", "1h" => "60", "1d" => "D".
func NormInterval(tf string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(tf)) {
	case "1", "1m":
		return "1", nil
	case "3", "3m":
		return "3", nil
	case "5", "5m":
		return "5", nil
	case "15", "15m":
		return "15", nil
	case "30", "30m":
		return "30", nil
	case "60", "60m", "1h":
		return "60", nil
	case "120", "2h":
		return "120", nil
	case "240", "4h":
		return "240", nil
	case "360", "6h":
		return "360", nil
	case "720", "12h":
		return "720", nil
	case "d", "1d":
		return "D", nil
	case "w", "1w":
		return "W", nil
	case "m", "1mo", "1mth":
		return "M", nil
	}
	return "", fmt.Errorf("unsupported timeframe for Bybit interval: %q", tf)
}
