package calculator

import (
	"errors"
	"math"

	"AShareSentinel/internal/model"
)

// CalculateRange scans the most recent window bars and returns the high and low.
// Shorter series use every bar available.
func CalculateRange(bars []model.PriceBar, window int) (high, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, &model.InsufficientHistoryError{Indicator: model.IndicatorRange, Need: 1, Have: 0}
	}
	if window <= 0 {
		return 0, 0, errPeriod
	}
	n := len(bars)
	start := n - window
	if start < 0 {
		start = 0
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := start; i < n; i++ {
		if bars[i].High > high {
			high = bars[i].High
		}
		if bars[i].Low < low {
			low = bars[i].Low
		}
	}
	return high, low, nil
}

// CalculateRangePosition returns where current sits within [low, high], clamped to 0.0~1.0.
func CalculateRangePosition(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	pos := (current - low) / (high - low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos, nil
}
