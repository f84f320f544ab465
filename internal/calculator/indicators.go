package calculator

import (
	"fmt"

	"AShareSentinel/internal/model"
)

// Params holds indicator windows.
type Params struct {
	MAPeriods   []int
	RSIPeriod   int
	MACDFast    int
	MACDSlow    int
	MACDSignal  int
	VolumeRatio int
	RangeWindow int
}

// DefaultParams are the conventional A-share windows.
func DefaultParams() Params {
	return Params{
		MAPeriods:   []int{5, 10, 20, 60},
		RSIPeriod:   14,
		MACDFast:    12,
		MACDSlow:    26,
		MACDSignal:  9,
		VolumeRatio: 5,
		RangeWindow: 60,
	}
}

// Compute derives every indicator it can from series. Indicators the series
// is too short for are left nil and listed in Omitted; Compute never fails.
// floatShares may be nil, in which case TurnoverRate is omitted.
func Compute(symbol model.Symbol, series model.PriceSeries, floatShares *float64, p Params) model.TechnicalIndicators {
	out := model.TechnicalIndicators{
		Symbol: symbol,
		Bars:   series.Len(),
	}
	if last, ok := series.Last(); ok {
		out.AsOf = last.Time
	}

	omit := func(name string, err error) {
		out.Omitted = append(out.Omitted, model.Omission{Indicator: name, Reason: err.Error()})
	}

	closes := series.Closes()
	volumes := series.Volumes()

	for _, n := range p.MAPeriods {
		v, err := CalculateSMA(closes, n)
		name := fmt.Sprintf("MA%d", n)
		if err != nil {
			omit(name, err)
			continue
		}
		switch n {
		case 5:
			out.MA5 = &v
		case 10:
			out.MA10 = &v
		case 20:
			out.MA20 = &v
		case 60:
			out.MA60 = &v
		}
	}

	if v, err := CalculateRSI(closes, p.RSIPeriod); err != nil {
		omit(model.IndicatorRSI, err)
	} else {
		out.RSI = &v
	}

	if m, err := CalculateMACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal); err != nil {
		omit(model.IndicatorMACD, err)
	} else {
		out.MACD = &m
	}

	if v, err := CalculateVolumeRatio(volumes, p.VolumeRatio); err != nil {
		omit(model.IndicatorVolumeRatio, err)
	} else {
		out.VolumeRatio = &v
	}

	if last, ok := series.Last(); !ok {
		omit(model.IndicatorTurnoverRate, &model.InsufficientHistoryError{Indicator: model.IndicatorTurnoverRate, Need: 1, Have: 0})
	} else if v, err := CalculateTurnoverRate(last.Volume, floatShares); err != nil {
		omit(model.IndicatorTurnoverRate, err)
	} else {
		out.TurnoverRate = &v
	}

	if r, err := computeRange(series, p.RangeWindow); err != nil {
		omit(model.IndicatorRange, err)
	} else {
		out.Range = r
	}

	return out
}

func computeRange(series model.PriceSeries, window int) (*model.PriceRange, error) {
	high, low, err := CalculateRange(series.Bars, window)
	if err != nil {
		return nil, err
	}
	last, _ := series.Last()
	pos, err := CalculateRangePosition(last.Close, high, low)
	if err != nil {
		return nil, err
	}
	n := window
	if series.Len() < n {
		n = series.Len()
	}
	return &model.PriceRange{Window: n, High: high, Low: low, Position: pos}, nil
}
