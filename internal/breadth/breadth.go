// Package breadth tallies advancing and declining symbols into a market mood.
package breadth

import (
	"math"

	"AShareSentinel/internal/model"
)

// Rising/falling ratio bands.
const (
	DefaultBullishRatio = 1.5
	DefaultBearishRatio = 0.67
)

// Basis values recorded on MarketSentiment.
const (
	BasisBoard = "board"
	BasisIndex = "index"
)

// Thresholds bound the rising/falling ratio.
type Thresholds struct {
	BullishRatio float64
	BearishRatio float64
}

// DefaultThresholds returns the documented bands.
func DefaultThresholds() Thresholds {
	return Thresholds{BullishRatio: DefaultBullishRatio, BearishRatio: DefaultBearishRatio}
}

// Aggregate counts rising (>0), falling (<0) and flat deltas and labels the
// result. NaN changes count as flat.
func Aggregate(deltas []model.Delta, th Thresholds) model.MarketSentiment {
	var out model.MarketSentiment
	for _, d := range deltas {
		switch {
		case d.ChangePercent > 0:
			out.Rising++
		case d.ChangePercent < 0:
			out.Falling++
		default:
			out.Flat++
		}
	}
	out.Sentiment = Label(out.Rising, out.Falling, th)
	return out
}

// Label maps rising/falling counts onto a market label.
// No falling symbols with at least one rising is bullish; no movers is neutral.
func Label(rising, falling int, th Thresholds) model.MarketLabel {
	if falling == 0 {
		if rising > 0 {
			return model.MarketBullish
		}
		return model.MarketNeutral
	}
	ratio := float64(rising) / float64(falling)
	switch {
	case ratio >= th.BullishRatio:
		return model.MarketBullish
	case ratio <= th.BearishRatio:
		return model.MarketBearish
	default:
		return model.MarketNeutral
	}
}

// FromIndices turns index quotes into deltas, the fallback when no board
// breadth is available.
func FromIndices(indices []model.IndexQuote) []model.Delta {
	out := make([]model.Delta, 0, len(indices))
	for _, idx := range indices {
		if math.IsNaN(idx.ChangePercent) {
			continue
		}
		out = append(out, model.Delta{Symbol: idx.Symbol.String(), ChangePercent: idx.ChangePercent})
	}
	return out
}
