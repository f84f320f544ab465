package calculator

import (
	"errors"

	"AShareSentinel/internal/model"
)

// CalculateMACD returns the latest DIF, DEA and histogram.
// DIF = EMA(fast) - EMA(slow), DEA = EMA(signal) of DIF, histogram = 2*(DIF-DEA).
// Requires slow+signal closes so the signal line has settled.
func CalculateMACD(closes []float64, fast, slow, signal int) (model.MACD, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return model.MACD{}, errPeriod
	}
	if fast >= slow {
		return model.MACD{}, errors.New("fast period must be shorter than slow period")
	}
	need := slow + signal
	if len(closes) < need {
		return model.MACD{}, &model.InsufficientHistoryError{Indicator: model.IndicatorMACD, Need: need, Have: len(closes)}
	}

	emaFast, err := CalculateEMA(closes, fast)
	if err != nil {
		return model.MACD{}, err
	}
	emaSlow, err := CalculateEMA(closes, slow)
	if err != nil {
		return model.MACD{}, err
	}
	dif := make([]float64, len(closes))
	for i := range closes {
		dif[i] = emaFast[i] - emaSlow[i]
	}
	dea, err := CalculateEMA(dif, signal)
	if err != nil {
		return model.MACD{}, err
	}

	last := len(closes) - 1
	return model.MACD{
		DIF:       dif[last],
		DEA:       dea[last],
		Histogram: 2 * (dif[last] - dea[last]),
	}, nil
}
