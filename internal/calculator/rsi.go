package calculator

import (
	"AShareSentinel/internal/model"
)

// CalculateRSI computes RSI from the simple average gain and loss over the
// last period close-to-close changes. Requires at least period+1 closes.
// A window without losses yields 100, without gains 0, and a flat window 50.
func CalculateRSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errPeriod
	}
	if len(closes) < period+1 {
		return 0, &model.InsufficientHistoryError{Indicator: model.IndicatorRSI, Need: period + 1, Have: len(closes)}
	}

	var gains, losses float64
	for i := len(closes) - period; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	switch {
	case gains == 0 && losses == 0:
		return 50.0, nil
	case losses == 0:
		return 100.0, nil
	case gains == 0:
		return 0.0, nil
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs), nil
}
