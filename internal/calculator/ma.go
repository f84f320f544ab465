package calculator

import (
	"errors"
	"fmt"

	"AShareSentinel/internal/model"
)

var errPeriod = errors.New("period must be positive")

// CalculateSMA computes the simple moving average of the last period values.
func CalculateSMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errPeriod
	}
	if len(values) < period {
		return 0, &model.InsufficientHistoryError{Indicator: fmt.Sprintf("MA%d", period), Need: period, Have: len(values)}
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period), nil
}

// CalculateEMA returns the exponential moving average series of values.
// The seed is the first value and alpha is 2/(period+1).
func CalculateEMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errPeriod
	}
	if len(values) == 0 {
		return nil, &model.InsufficientHistoryError{Indicator: fmt.Sprintf("EMA%d", period), Need: 1, Have: 0}
	}
	alpha := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out, nil
}
