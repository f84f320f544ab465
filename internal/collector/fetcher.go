package collector

import (
	"context"

	"AShareSentinel/internal/model"
)

// Operation names used in errors, logs and metrics.
const (
	OpQuote     = "quote"
	OpSeries    = "series"
	OpNews      = "news"
	OpShares    = "shares"
	OpBreadth   = "breadth"
	OpMoneyFlow = "money_flow"
)

// Fetcher is an upstream data provider. A provider implements any subset of
// the capability interfaces below; the engine only asks providers that have
// the capability a query needs.
type Fetcher interface {
	Name() string
}

// QuoteFetcher returns a real-time quote.
type QuoteFetcher interface {
	Fetcher
	FetchQuote(ctx context.Context, symbol model.Symbol) (model.ProviderQuote, error)
}

// SeriesFetcher returns up to lookback daily bars, oldest first.
type SeriesFetcher interface {
	Fetcher
	FetchSeries(ctx context.Context, symbol model.Symbol, lookback int) (model.PriceSeries, error)
}

// NewsFetcher returns recent news or announcements for a symbol.
type NewsFetcher interface {
	Fetcher
	FetchNews(ctx context.Context, symbol model.Symbol, name string) ([]model.NewsItem, error)
}

// SharesFetcher returns the number of tradable (float) shares.
type SharesFetcher interface {
	Fetcher
	FetchFloatShares(ctx context.Context, symbol model.Symbol) (float64, error)
}

// BreadthFetcher returns the change percent of every listed A-share.
type BreadthFetcher interface {
	Fetcher
	FetchBreadth(ctx context.Context) ([]model.Delta, error)
}

// FlowFetcher returns today's market-wide money flow.
type FlowFetcher interface {
	Fetcher
	FetchMoneyFlow(ctx context.Context) (model.MoneyFlow, error)
}
