package calculator

import (
	"errors"

	"AShareSentinel/internal/model"
)

var (
	errZeroReference = errors.New("reference volume is zero")
	errNoFloat       = errors.New("float shares unavailable")
)

// CalculateVolumeRatio divides the latest volume by the mean volume of the
// window bars before it. The latest bar is not part of its own reference.
func CalculateVolumeRatio(volumes []float64, window int) (float64, error) {
	if window <= 0 {
		return 0, errPeriod
	}
	if len(volumes) < window+1 {
		return 0, &model.InsufficientHistoryError{Indicator: model.IndicatorVolumeRatio, Need: window + 1, Have: len(volumes)}
	}
	last := len(volumes) - 1
	sum := 0.0
	for i := last - window; i < last; i++ {
		sum += volumes[i]
	}
	avg := sum / float64(window)
	if avg <= 0 {
		return 0, errZeroReference
	}
	return volumes[last] / avg, nil
}

// CalculateTurnoverRate returns volume as a percentage of float shares.
func CalculateTurnoverRate(volume float64, floatShares *float64) (float64, error) {
	if floatShares == nil || *floatShares <= 0 {
		return 0, errNoFloat
	}
	return volume / *floatShares * 100, nil
}
