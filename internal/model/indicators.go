package model

import "time"

// Indicator names, used as keys in TechnicalIndicators.Omitted.
const (
	IndicatorMA5          = "MA5"
	IndicatorMA10         = "MA10"
	IndicatorMA20         = "MA20"
	IndicatorMA60         = "MA60"
	IndicatorRSI          = "RSI"
	IndicatorMACD         = "MACD"
	IndicatorVolumeRatio  = "VolumeRatio"
	IndicatorTurnoverRate = "TurnoverRate"
	IndicatorRange        = "Range"
)

// MACD holds the DIF/DEA/histogram triple. Histogram is 2*(DIF-DEA).
type MACD struct {
	DIF       float64 `json:"dif"`
	DEA       float64 `json:"dea"`
	Histogram float64 `json:"histogram"`
}

// PriceRange is the high/low envelope of the most recent bars and where the
// last close sits inside it (0 at the low, 1 at the high).
type PriceRange struct {
	Window   int     `json:"window"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Position float64 `json:"position"`
}

// Omission records why an indicator is absent.
type Omission struct {
	Indicator string `json:"indicator"`
	Reason    string `json:"reason"`
}

// TechnicalIndicators is a read-only snapshot derived from a PriceSeries.
// Nil fields were not computable and are listed in Omitted.
type TechnicalIndicators struct {
	Symbol       Symbol      `json:"symbol"`
	AsOf         time.Time   `json:"as_of"`
	Bars         int         `json:"bars"`
	MA5          *float64    `json:"ma5,omitempty"`
	MA10         *float64    `json:"ma10,omitempty"`
	MA20         *float64    `json:"ma20,omitempty"`
	MA60         *float64    `json:"ma60,omitempty"`
	RSI          *float64    `json:"rsi,omitempty"`
	MACD         *MACD       `json:"macd,omitempty"`
	VolumeRatio  *float64    `json:"volume_ratio,omitempty"`
	TurnoverRate *float64    `json:"turnover_rate,omitempty"` // percent of float shares
	Range        *PriceRange `json:"range,omitempty"`
	Omitted      []Omission  `json:"omitted,omitempty"`
}

// IsOmitted reports whether the named indicator is absent.
func (t TechnicalIndicators) IsOmitted(name string) bool {
	for _, o := range t.Omitted {
		if o.Indicator == name {
			return true
		}
	}
	return false
}
