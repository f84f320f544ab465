package model

import (
	"fmt"
	"time"
)

// PriceBar represents one historical period.
// Volume is in shares, Turnover in CNY.
type PriceBar struct {
	Time     time.Time `json:"time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	Turnover float64   `json:"turnover,omitempty"`
}

// PriceSeries holds bars oldest first with strictly increasing timestamps.
// Gaps (holidays, suspensions) are kept as-is.
type PriceSeries struct {
	Symbol    Symbol     `json:"symbol"`
	Source    string     `json:"source"`
	Bars      []PriceBar `json:"bars"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// Len returns the number of bars.
func (s PriceSeries) Len() int { return len(s.Bars) }

// Closes extracts close prices in series order.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Volumes extracts volumes in series order.
func (s PriceSeries) Volumes() []float64 {
	vols := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		vols[i] = b.Volume
	}
	return vols
}

// Last returns the most recent bar.
func (s PriceSeries) Last() (PriceBar, bool) {
	if len(s.Bars) == 0 {
		return PriceBar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Validate checks the ordering invariant.
func (s PriceSeries) Validate() error {
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i].Time.After(s.Bars[i-1].Time) {
			return fmt.Errorf("bar %d at %s not after %s", i,
				s.Bars[i].Time.Format(time.DateOnly), s.Bars[i-1].Time.Format(time.DateOnly))
		}
	}
	return nil
}

// Clone returns a deep copy so cached series are never aliased across queries.
func (s PriceSeries) Clone() PriceSeries {
	out := s
	out.Bars = append([]PriceBar(nil), s.Bars...)
	return out
}

// IndexQuote is the reconciled view of one market index.
type IndexQuote struct {
	Symbol        Symbol   `json:"symbol"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	Change        float64  `json:"change"`
	ChangePercent float64  `json:"change_percent"`
	Sources       []string `json:"sources"`
}

// Delta is one symbol's price change, the input to breadth tallies.
type Delta struct {
	Symbol        string  `json:"symbol"`
	ChangePercent float64 `json:"change_percent"`
}

// MoneyFlow is the net inflow (CNY) split by order size.
type MoneyFlow struct {
	MainNetInflow float64   `json:"main_net_inflow"`
	SuperLargeNet float64   `json:"super_large_net"`
	LargeNet      float64   `json:"large_net"`
	MediumNet     float64   `json:"medium_net"`
	SmallNet      float64   `json:"small_net"`
	Source        string    `json:"source"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MarketLabel is the overall market mood.
type MarketLabel string

const (
	MarketBullish MarketLabel = "bullish"
	MarketNeutral MarketLabel = "neutral"
	MarketBearish MarketLabel = "bearish"
)

// MarketSentiment summarizes breadth, indices and money flow.
type MarketSentiment struct {
	Rising    int          `json:"rising"`
	Falling   int          `json:"falling"`
	Flat      int          `json:"flat"`
	Sentiment MarketLabel  `json:"sentiment"`
	Basis     string       `json:"basis"` // "board" or "index"
	Indices   []IndexQuote `json:"indices,omitempty"`
	MoneyFlow *MoneyFlow   `json:"money_flow,omitempty"`
}
