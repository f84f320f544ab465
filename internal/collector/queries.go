package collector

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"AShareSentinel/internal/breadth"
	"AShareSentinel/internal/cache"
	"AShareSentinel/internal/calculator"
	"AShareSentinel/internal/metrics"
	"AShareSentinel/internal/model"
	"AShareSentinel/internal/reconciler"
)

// Query operation names, used for QueryError.Op and the query metrics.
const (
	QueryQuote      = "get_real_time_quote"
	QueryIndicators = "get_technical_indicators"
	QueryNews       = "get_news"
	QuerySentiment  = "get_sentiment_summary"
	QueryMarket     = "get_market_overview"
	QueryStockData  = "get_stock_data"
	QueryAnalyze    = "comprehensive_analysis"
)

// MajorIndices are reported by the market overview, in display order.
var MajorIndices = []struct {
	Symbol model.Symbol
	Name   string
}{
	{"SH000001", "上证指数"},
	{"SZ399001", "深证成指"},
	{"SZ399006", "创业板指"},
}

// QuoteResult is the answer to GetRealTimeQuote.
type QuoteResult struct {
	QueryID          string               `json:"query_id"`
	Quote            model.CanonicalQuote `json:"quote"`
	model.Provenance `json:"provenance"`
}

// IndicatorsResult is the answer to GetTechnicalIndicators.
type IndicatorsResult struct {
	QueryID          string                    `json:"query_id"`
	Symbol           model.Symbol              `json:"symbol"`
	Indicators       model.TechnicalIndicators `json:"indicators"`
	SeriesSource     string                    `json:"series_source"`
	Cached           bool                      `json:"cached"`
	model.Provenance `json:"provenance"`
}

// NewsResult is the answer to GetNews. Items are newest first.
type NewsResult struct {
	QueryID          string           `json:"query_id"`
	Symbol           model.Symbol     `json:"symbol"`
	Items            []model.NewsItem `json:"items"`
	model.Provenance `json:"provenance"`
}

// SentimentResult is the answer to GetSentimentSummary.
type SentimentResult struct {
	QueryID          string                 `json:"query_id"`
	Symbol           model.Symbol           `json:"symbol"`
	Items            []model.NewsItem       `json:"items"`
	Summary          model.SentimentSummary `json:"summary"`
	model.Provenance `json:"provenance"`
}

// MarketResult is the answer to GetMarketOverview.
type MarketResult struct {
	QueryID          string                `json:"query_id"`
	Market           model.MarketSentiment `json:"market"`
	model.Provenance `json:"provenance"`
}

// StockDataResult is the answer to GetStockData. Indicators is nil when not
// requested or not computable; IndicatorsError then says why.
type StockDataResult struct {
	QueryID          string                     `json:"query_id"`
	Quote            model.CanonicalQuote       `json:"quote"`
	Indicators       *model.TechnicalIndicators `json:"indicators,omitempty"`
	IndicatorsError  string                     `json:"indicators_error,omitempty"`
	model.Provenance `json:"provenance"`
}

// Analysis combines quote, indicators, news sentiment and the market
// overview. Any part may be missing; Errors maps part name to the reason.
type Analysis struct {
	QueryID          string                     `json:"query_id"`
	Symbol           model.Symbol               `json:"symbol"`
	Quote            *model.CanonicalQuote      `json:"quote,omitempty"`
	Indicators       *model.TechnicalIndicators `json:"indicators,omitempty"`
	News             []model.NewsItem           `json:"news,omitempty"`
	Sentiment        *model.SentimentSummary    `json:"sentiment,omitempty"`
	Market           *model.MarketSentiment     `json:"market,omitempty"`
	Errors           map[string]string          `json:"errors,omitempty"`
	model.Provenance `json:"provenance"`
}

func (c *Collector) begin(op, symbol string) (string, zerolog.Logger) {
	id := uuid.NewString()
	log := c.log.With().Str("query_id", id).Str("query", op).Logger()
	if symbol != "" {
		log = log.With().Str("symbol", symbol).Logger()
	}
	log.Debug().Msg("query started")
	return id, log
}

func (c *Collector) done(log zerolog.Logger, op string, p model.Provenance) {
	metrics.ObserveQuery(op, nil)
	log.Debug().Strs("sources", p.Sources).Int("failures", len(p.Failures)).Msg("query done")
}

// GetRealTimeQuote returns the reconciled quote for symbol.
func (c *Collector) GetRealTimeQuote(ctx context.Context, symbol string) (QuoteResult, error) {
	id, log := c.begin(QueryQuote, symbol)
	sym, err := model.Canonicalize(symbol)
	if err != nil {
		return QuoteResult{}, c.queryErr(log, QueryQuote, symbol, nil, err)
	}
	q, prov, err := c.quote(ctx, log, sym)
	if err != nil {
		return QuoteResult{}, c.queryErr(log, QueryQuote, sym.String(), prov.Attempted, err)
	}
	c.done(log, QueryQuote, prov)
	return QuoteResult{QueryID: id, Quote: q, Provenance: prov}, nil
}

func (c *Collector) quote(ctx context.Context, log zerolog.Logger, sym model.Symbol) (model.CanonicalQuote, model.Provenance, error) {
	results := fanOut(ctx, c, OpQuote, func(ctx context.Context, f QuoteFetcher) (model.ProviderQuote, error) {
		return f.FetchQuote(ctx, sym)
	})
	prov := provenance(OpQuote, results)
	if err := afterBarrier(ctx); err != nil {
		return model.CanonicalQuote{}, prov, err
	}
	logFailures(log, OpQuote, results)

	in := make([]reconciler.QuoteResult, len(results))
	for i, r := range results {
		in[i] = reconciler.QuoteResult{Provider: r.provider, Quote: r.value, Err: r.err}
		if r.err == nil && r.value.Symbol != sym {
			// Never let a provider answer for a different instrument.
			in[i].Err = model.Malformed(r.provider, OpQuote, "answered for %s", r.value.Symbol)
			prov.Failures = append(prov.Failures, model.FailureFrom(r.provider, OpQuote, in[i].Err))
			log.Warn().Str("provider", r.provider).Str("answered", r.value.Symbol.String()).Msg("quote for another symbol dropped")
		}
	}
	q, err := reconciler.Reconcile(in, c.reconcile)
	if err != nil {
		return model.CanonicalQuote{}, prov, err
	}
	prov.Sources = append([]string(nil), q.Sources...)
	return q, prov, nil
}

// GetTechnicalIndicators computes indicators from the daily series.
// Indicators the history is too short for are omitted, not zeroed.
func (c *Collector) GetTechnicalIndicators(ctx context.Context, symbol string) (IndicatorsResult, error) {
	id, log := c.begin(QueryIndicators, symbol)
	sym, err := model.Canonicalize(symbol)
	if err != nil {
		return IndicatorsResult{}, c.queryErr(log, QueryIndicators, symbol, nil, err)
	}
	res, err := c.indicators(ctx, log, sym)
	if err != nil {
		return IndicatorsResult{}, c.queryErr(log, QueryIndicators, sym.String(), res.Attempted, err)
	}
	res.QueryID = id
	c.done(log, QueryIndicators, res.Provenance)
	return res, nil
}

func (c *Collector) indicators(ctx context.Context, log zerolog.Logger, sym model.Symbol) (IndicatorsResult, error) {
	var (
		series     model.PriceSeries
		cached     bool
		seriesProv model.Provenance
		seriesErr  error
		shares     *float64
		sharesProv model.Provenance
	)
	fanOutAll(
		func() { series, cached, seriesProv, seriesErr = c.series(ctx, log, sym) },
		func() { shares, sharesProv = c.floatShares(ctx, log, sym) },
	)
	prov := seriesProv.Merge(sharesProv)
	res := IndicatorsResult{Symbol: sym, Provenance: prov}
	if err := afterBarrier(ctx); err != nil {
		return res, err
	}
	if seriesErr != nil {
		return res, seriesErr
	}

	res.Indicators = calculator.Compute(sym, series, shares, c.params)
	res.SeriesSource = series.Source
	res.Cached = cached
	for _, o := range res.Indicators.Omitted {
		log.Debug().Str("indicator", o.Indicator).Str("reason", o.Reason).Msg("indicator omitted")
	}
	return res, nil
}

// series returns the highest-priority successful series, via the cache when
// one is configured.
func (c *Collector) series(ctx context.Context, log zerolog.Logger, sym model.Symbol) (model.PriceSeries, bool, model.Provenance, error) {
	key := cache.SeriesKey(sym.String(), c.lookback)
	if c.cache != nil {
		var hit model.PriceSeries
		err := c.cache.Get(ctx, key, &hit)
		switch {
		case err == nil:
			return hit, true, model.Provenance{Sources: []string{hit.Source}, Attempted: []string{}}, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			log.Warn().Err(err).Str("key", key).Msg("series cache read failed")
		}
	}

	results := fanOut(ctx, c, OpSeries, func(ctx context.Context, f SeriesFetcher) (model.PriceSeries, error) {
		return f.FetchSeries(ctx, sym, c.lookback)
	})
	prov := provenance(OpSeries, results)
	if err := afterBarrier(ctx); err != nil {
		return model.PriceSeries{}, false, prov, err
	}
	logFailures(log, OpSeries, results)

	best, ok := firstSuccess(results)
	if !ok {
		return model.PriceSeries{}, false, prov, model.ErrNoDataAvailable
	}
	// Only the series actually used is reported as a source.
	prov.Sources = []string{best.provider}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, best.value, c.cacheTTL); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("series cache write failed")
		}
	}
	return best.value, false, prov, nil
}

// floatShares is best effort: a failure only omits the turnover rate.
func (c *Collector) floatShares(ctx context.Context, log zerolog.Logger, sym model.Symbol) (*float64, model.Provenance) {
	key := cache.SharesKey(sym.String())
	if c.cache != nil {
		var v float64
		if err := c.cache.Get(ctx, key, &v); err == nil && v > 0 {
			return &v, model.Provenance{Sources: []string{}, Attempted: []string{}}
		}
	}
	results := fanOut(ctx, c, OpShares, func(ctx context.Context, f SharesFetcher) (float64, error) {
		return f.FetchFloatShares(ctx, sym)
	})
	prov := provenance(OpShares, results)
	prov.Sources = []string{}
	logFailures(log, OpShares, results)

	best, ok := firstSuccess(results)
	if !ok {
		return nil, prov
	}
	v := best.value
	if c.cache != nil {
		if err := c.cache.Set(ctx, key, v, c.cacheTTL); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("shares cache write failed")
		}
	}
	return &v, prov
}

// GetNews returns news and announcements merged across providers, newest
// first, deduplicated by title and capped at the configured limit. Each item
// carries its sentiment label.
func (c *Collector) GetNews(ctx context.Context, symbol, name string) (NewsResult, error) {
	id, log := c.begin(QueryNews, symbol)
	sym, err := model.Canonicalize(symbol)
	if err != nil {
		return NewsResult{}, c.queryErr(log, QueryNews, symbol, nil, err)
	}
	items, prov, err := c.news(ctx, log, sym, name)
	if err != nil {
		return NewsResult{}, c.queryErr(log, QueryNews, sym.String(), prov.Attempted, err)
	}
	labelled, _ := c.classifier.Classify(items)
	c.done(log, QueryNews, prov)
	return NewsResult{QueryID: id, Symbol: sym, Items: labelled, Provenance: prov}, nil
}

func (c *Collector) news(ctx context.Context, log zerolog.Logger, sym model.Symbol, name string) ([]model.NewsItem, model.Provenance, error) {
	results := fanOut(ctx, c, OpNews, func(ctx context.Context, f NewsFetcher) ([]model.NewsItem, error) {
		return f.FetchNews(ctx, sym, name)
	})
	prov := provenance(OpNews, results)
	if err := afterBarrier(ctx); err != nil {
		return nil, prov, err
	}
	logFailures(log, OpNews, results)
	if len(prov.Sources) == 0 {
		return nil, prov, model.ErrNoDataAvailable
	}

	seen := make(map[string]bool)
	items := make([]model.NewsItem, 0)
	for _, r := range results {
		if r.err != nil {
			continue
		}
		for _, item := range r.value {
			key := strings.Join(strings.Fields(item.Title), "")
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			items = append(items, item)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if c.newsLimit > 0 && len(items) > c.newsLimit {
		items = items[:c.newsLimit]
	}
	return items, prov, nil
}

// GetSentimentSummary classifies the symbol's news.
func (c *Collector) GetSentimentSummary(ctx context.Context, symbol, name string) (SentimentResult, error) {
	id, log := c.begin(QuerySentiment, symbol)
	sym, err := model.Canonicalize(symbol)
	if err != nil {
		return SentimentResult{}, c.queryErr(log, QuerySentiment, symbol, nil, err)
	}
	items, prov, err := c.news(ctx, log, sym, name)
	if err != nil {
		return SentimentResult{}, c.queryErr(log, QuerySentiment, sym.String(), prov.Attempted, err)
	}
	labelled, summary := c.classifier.Classify(items)
	c.done(log, QuerySentiment, prov)
	return SentimentResult{QueryID: id, Symbol: sym, Items: labelled, Summary: summary, Provenance: prov}, nil
}

// GetMarketOverview reports index quotes, advance/decline breadth and,
// optionally, money flow. Breadth falls back to index deltas when no
// provider can list the whole market.
func (c *Collector) GetMarketOverview(ctx context.Context, includeMoneyFlow bool) (MarketResult, error) {
	id, log := c.begin(QueryMarket, "")
	market, prov, err := c.market(ctx, log, includeMoneyFlow)
	if err != nil {
		return MarketResult{}, c.queryErr(log, QueryMarket, "", prov.Attempted, err)
	}
	c.done(log, QueryMarket, prov)
	return MarketResult{QueryID: id, Market: market, Provenance: prov}, nil
}

func (c *Collector) market(ctx context.Context, log zerolog.Logger, includeMoneyFlow bool) (model.MarketSentiment, model.Provenance, error) {
	type indexOutcome struct {
		quote model.IndexQuote
		prov  model.Provenance
		err   error
	}
	indices := make([]indexOutcome, len(MajorIndices))

	var (
		deltas      []outcome[[]model.Delta]
		flows       []outcome[model.MoneyFlow]
		breadthProv model.Provenance
		flowProv    model.Provenance
	)

	parts := make([]func(), 0, len(MajorIndices)+2)
	for i, idx := range MajorIndices {
		parts = append(parts, func() {
			q, p, err := c.quote(ctx, log, idx.Symbol)
			indices[i] = indexOutcome{prov: p, err: err}
			if err == nil {
				indices[i].quote = reconciler.Index(q, idx.Name)
			}
		})
	}
	parts = append(parts, func() {
		deltas = fanOut(ctx, c, OpBreadth, func(ctx context.Context, f BreadthFetcher) ([]model.Delta, error) {
			return f.FetchBreadth(ctx)
		})
		breadthProv = provenance(OpBreadth, deltas)
	})
	if includeMoneyFlow {
		parts = append(parts, func() {
			flows = fanOut(ctx, c, OpMoneyFlow, func(ctx context.Context, f FlowFetcher) (model.MoneyFlow, error) {
				return f.FetchMoneyFlow(ctx)
			})
			flowProv = provenance(OpMoneyFlow, flows)
		})
	}
	fanOutAll(parts...)

	prov := model.Provenance{Sources: []string{}, Attempted: []string{}}
	var quotes []model.IndexQuote
	for _, o := range indices {
		prov = prov.Merge(o.prov)
		if o.err == nil {
			quotes = append(quotes, o.quote)
		}
	}
	prov = prov.Merge(breadthProv).Merge(flowProv)
	if err := afterBarrier(ctx); err != nil {
		return model.MarketSentiment{}, prov, err
	}
	logFailures(log, OpBreadth, deltas)
	logFailures(log, OpMoneyFlow, flows)

	var out model.MarketSentiment
	if best, ok := firstSuccess(deltas); ok {
		out = breadth.Aggregate(best.value, c.thresholds)
		out.Basis = breadth.BasisBoard
	} else if len(quotes) > 0 {
		out = breadth.Aggregate(breadth.FromIndices(quotes), c.thresholds)
		out.Basis = breadth.BasisIndex
	} else {
		return model.MarketSentiment{}, prov, model.ErrNoDataAvailable
	}
	out.Indices = quotes
	if best, ok := firstSuccess(flows); ok {
		flow := best.value
		out.MoneyFlow = &flow
	}
	return out, prov, nil
}

// GetStockData returns the quote and, when asked, the technical indicators.
// An indicator failure never fails the quote.
func (c *Collector) GetStockData(ctx context.Context, symbol string, includeTechnical bool) (StockDataResult, error) {
	id, log := c.begin(QueryStockData, symbol)
	sym, err := model.Canonicalize(symbol)
	if err != nil {
		return StockDataResult{}, c.queryErr(log, QueryStockData, symbol, nil, err)
	}

	var (
		q      model.CanonicalQuote
		qProv  model.Provenance
		qErr   error
		ind    IndicatorsResult
		indErr error
	)
	parts := []func(){func() { q, qProv, qErr = c.quote(ctx, log, sym) }}
	if includeTechnical {
		parts = append(parts, func() { ind, indErr = c.indicators(ctx, log, sym) })
	}
	fanOutAll(parts...)

	prov := qProv.Merge(ind.Provenance)
	if qErr != nil {
		return StockDataResult{}, c.queryErr(log, QueryStockData, sym.String(), prov.Attempted, qErr)
	}
	res := StockDataResult{QueryID: id, Quote: q, Provenance: prov}
	if includeTechnical {
		if indErr != nil {
			res.IndicatorsError = indErr.Error()
		} else {
			res.Indicators = &ind.Indicators
		}
	}
	c.done(log, QueryStockData, prov)
	return res, nil
}

// Analyze gathers quote, indicators, news sentiment and the market overview
// concurrently. It fails only when every part failed.
func (c *Collector) Analyze(ctx context.Context, symbol, name string) (Analysis, error) {
	id, log := c.begin(QueryAnalyze, symbol)
	sym, err := model.Canonicalize(symbol)
	if err != nil {
		return Analysis{}, c.queryErr(log, QueryAnalyze, symbol, nil, err)
	}

	out := Analysis{QueryID: id, Symbol: sym, Errors: map[string]string{}}
	var (
		mu   sync.Mutex
		prov = model.Provenance{Sources: []string{}, Attempted: []string{}}
	)
	record := func(part string, p model.Provenance, err error, apply func()) {
		mu.Lock()
		defer mu.Unlock()
		prov = prov.Merge(p)
		if err != nil {
			out.Errors[part] = err.Error()
			return
		}
		apply()
	}

	fanOutAll(
		func() {
			q, p, err := c.quote(ctx, log, sym)
			record("quote", p, err, func() { out.Quote = &q })
		},
		func() {
			res, err := c.indicators(ctx, log, sym)
			record("indicators", res.Provenance, err, func() { out.Indicators = &res.Indicators })
		},
		func() {
			items, p, err := c.news(ctx, log, sym, name)
			record("sentiment", p, err, func() {
				labelled, summary := c.classifier.Classify(items)
				out.News = labelled
				out.Sentiment = &summary
			})
		},
		func() {
			m, p, err := c.market(ctx, log, true)
			record("market", p, err, func() { out.Market = &m })
		},
	)
	out.Provenance = prov

	if err := afterBarrier(ctx); err != nil {
		return Analysis{}, c.queryErr(log, QueryAnalyze, sym.String(), prov.Attempted, err)
	}
	if out.Quote == nil && out.Indicators == nil && out.Sentiment == nil && out.Market == nil {
		return Analysis{}, c.queryErr(log, QueryAnalyze, sym.String(), prov.Attempted, model.ErrNoDataAvailable)
	}
	if len(out.Errors) == 0 {
		out.Errors = nil
	}
	c.done(log, QueryAnalyze, prov)
	return out, nil
}
