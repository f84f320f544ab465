// Package reconciler merges per-provider quotes into one canonical record.
package reconciler

import (
	"math"
	"time"

	"AShareSentinel/internal/model"
)

// QuoteResult is one provider's outcome for a quote request.
// Exactly one of Quote or Err is meaningful.
type QuoteResult struct {
	Provider string
	Quote    model.ProviderQuote
	Err      error
}

// Options tune reconciliation.
type Options struct {
	// StaleAfter lets a lower-priority quote take over when it is newer than
	// the current primary by more than this. Zero disables the override.
	StaleAfter time.Duration
	// Epsilon is the absolute price tolerance for Consensus.
	Epsilon float64
}

// DefaultOptions returns the settings used when none are configured.
func DefaultOptions() Options {
	return Options{StaleAfter: 5 * time.Minute, Epsilon: 0.01}
}

// Reconcile merges results, which must be in configured priority order.
// Every price field of the output comes from a single primary provider.
func Reconcile(results []QuoteResult, opts Options) (model.CanonicalQuote, error) {
	ok := make([]model.ProviderQuote, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		q := r.Quote
		if q.Provider == "" {
			q.Provider = r.Provider
		}
		ok = append(ok, q)
	}
	if len(ok) == 0 {
		return model.CanonicalQuote{}, model.ErrNoDataAvailable
	}

	primary := ok[0]
	if opts.StaleAfter > 0 {
		for _, q := range ok[1:] {
			if q.Timestamp.Sub(primary.Timestamp) > opts.StaleAfter {
				primary = q
			}
		}
	}

	out := model.CanonicalQuote{
		Symbol:    primary.Symbol,
		Name:      primary.Name,
		Current:   primary.Current,
		Open:      primary.Open,
		High:      primary.High,
		Low:       primary.Low,
		PrevClose: primary.PrevClose,
		Volume:    primary.Volume,
		Turnover:  primary.Turnover,
		Timestamp: primary.Timestamp,
		Primary:   primary.Provider,
		Sources:   make([]string, 0, len(ok)),
		Consensus: true,
	}
	if primary.PrevClose > 0 {
		out.Change = primary.Current - primary.PrevClose
		out.ChangePercent = out.Change / primary.PrevClose * 100
	}

	for _, q := range ok {
		out.Sources = append(out.Sources, q.Provider)
		if out.Name == "" && q.Name != "" {
			out.Name = q.Name
		}
		if math.Abs(q.Current-primary.Current) > opts.Epsilon {
			out.Consensus = false
		}
	}
	return out, nil
}

// Index collapses a canonical quote into the market overview's index view.
func Index(q model.CanonicalQuote, fallbackName string) model.IndexQuote {
	name := q.Name
	if name == "" {
		name = fallbackName
	}
	return model.IndexQuote{
		Symbol:        q.Symbol,
		Name:          name,
		Price:         q.Current,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		Sources:       append([]string(nil), q.Sources...),
	}
}
