package model

import "time"

// ProviderQuote is one provider's view of a symbol.
// Volume is in shares, Turnover in CNY.
type ProviderQuote struct {
	Provider  string    `json:"provider"`
	Symbol    Symbol    `json:"symbol"`
	Name      string    `json:"name"`
	Current   float64   `json:"current"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	PrevClose float64   `json:"prev_close"`
	Volume    float64   `json:"volume"`
	Turnover  float64   `json:"turnover"`
	Timestamp time.Time `json:"timestamp"`
}

// CanonicalQuote is the reconciled record for a symbol.
type CanonicalQuote struct {
	Symbol        Symbol    `json:"symbol"`
	Name          string    `json:"name"`
	Current       float64   `json:"current"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	PrevClose     float64   `json:"prev_close"`
	Volume        float64   `json:"volume"`
	Turnover      float64   `json:"turnover"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Timestamp     time.Time `json:"timestamp"`

	// Primary supplied every price field above.
	Primary string `json:"primary"`
	// Sources lists every provider that returned usable data, in priority order.
	Sources []string `json:"sources"`
	// Consensus is true when all sources agreed on the current price.
	Consensus bool `json:"consensus"`
}
