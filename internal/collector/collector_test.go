package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AShareSentinel/internal/cache"
	"AShareSentinel/internal/config"
	"AShareSentinel/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("SENTINEL_PROVIDERS", "")
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Retry.Backoff = time.Millisecond
	cfg.HTTP.ProviderTimeout = time.Second
	return cfg
}

func newCollector(t *testing.T, cfg *config.Config, providers ...Fetcher) *Collector {
	t.Helper()
	c, err := New(cfg, providers)
	require.NoError(t, err)
	return c
}

func failing(kind model.FetchErrorKind, ops ...string) map[string]error {
	errs := make(map[string]error, len(ops))
	for _, op := range ops {
		errs[op] = model.NewFetchError("test", op, kind, errors.New("boom"))
	}
	return errs
}

var allOps = []string{OpQuote, OpSeries, OpNews, OpShares, OpBreadth, OpMoneyFlow}

func TestNew_RejectsBadProviders(t *testing.T) {
	cfg := testConfig(t)

	_, err := New(cfg, nil)
	assert.Error(t, err)

	_, err = New(cfg, []Fetcher{&MockFetcher{ID: "a"}, &MockFetcher{ID: "a"}})
	assert.Error(t, err)
}

func TestGetRealTimeQuote_PriorityAndProvenance(t *testing.T) {
	a := &MockFetcher{ID: "a", Price: 10}
	b := &MockFetcher{ID: "b", Price: 10.5}
	c := &MockFetcher{ID: "c", Errors: failing(model.KindMalformed, OpQuote)}
	col := newCollector(t, testConfig(t), a, b, c)

	res, err := col.GetRealTimeQuote(t.Context(), "600519")
	require.NoError(t, err)

	assert.NotEmpty(t, res.QueryID)
	assert.Equal(t, model.Symbol("SH600519"), res.Quote.Symbol)
	assert.Equal(t, "a", res.Quote.Primary)
	assert.Equal(t, 10.0, res.Quote.Current)
	assert.False(t, res.Quote.Consensus)
	assert.Equal(t, []string{"a", "b"}, res.Sources)
	assert.Equal(t, []string{"a", "b", "c"}, res.Attempted)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "c", res.Failures[0].Provider)
	assert.Equal(t, model.KindMalformed, res.Failures[0].Kind)
}

// otherSymbolFetcher answers every quote request for a fixed instrument.
type otherSymbolFetcher struct {
	*MockFetcher
	answer model.Symbol
}

func (f otherSymbolFetcher) FetchQuote(ctx context.Context, _ model.Symbol) (model.ProviderQuote, error) {
	return f.MockFetcher.FetchQuote(ctx, f.answer)
}

func TestGetRealTimeQuote_DropsQuoteForOtherSymbol(t *testing.T) {
	a := otherSymbolFetcher{MockFetcher: &MockFetcher{ID: "a", Price: 9}, answer: "SZ000001"}
	b := &MockFetcher{ID: "b", Price: 10}
	col := newCollector(t, testConfig(t), a, b)

	res, err := col.GetRealTimeQuote(t.Context(), "600519")
	require.NoError(t, err)

	assert.Equal(t, "b", res.Quote.Primary)
	assert.Equal(t, []string{"b"}, res.Sources)
	assert.Equal(t, []string{"a", "b"}, res.Attempted)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "a", res.Failures[0].Provider)
	assert.Equal(t, model.KindMalformed, res.Failures[0].Kind)
	assert.Contains(t, res.Failures[0].Reason, "SZ000001")
}

func TestGetRealTimeQuote_AllFail(t *testing.T) {
	a := &MockFetcher{ID: "a", Errors: failing(model.KindNotFound, OpQuote)}
	b := &MockFetcher{ID: "b", Errors: failing(model.KindMalformed, OpQuote)}
	col := newCollector(t, testConfig(t), a, b)

	_, err := col.GetRealTimeQuote(t.Context(), "SZ000001")

	require.ErrorIs(t, err, model.ErrNoDataAvailable)
	var qe *model.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, QueryQuote, qe.Op)
	assert.Equal(t, "SZ000001", qe.Symbol)
	assert.Equal(t, []string{"a", "b"}, qe.Attempted)
}

func TestGetRealTimeQuote_InvalidSymbol(t *testing.T) {
	a := &MockFetcher{ID: "a"}
	col := newCollector(t, testConfig(t), a)

	_, err := col.GetRealTimeQuote(t.Context(), "60051X")

	assert.ErrorIs(t, err, model.ErrInvalidSymbol)
	assert.Zero(t, a.Calls())
}

func TestRetry_OnlyTransient(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retry.MaxAttempts = 3
	flaky := &MockFetcher{ID: "flaky", Errors: failing(model.KindNetwork, OpQuote)}
	broken := &MockFetcher{ID: "broken", Errors: failing(model.KindMalformed, OpQuote)}
	col := newCollector(t, cfg, flaky, broken)

	_, err := col.GetRealTimeQuote(t.Context(), "600519")

	require.ErrorIs(t, err, model.ErrNoDataAvailable)
	assert.Equal(t, int64(3), flaky.Calls())
	assert.Equal(t, int64(1), broken.Calls())
}

func TestProviderTimeout_SlowProviderDoesNotBlock(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.ProviderTimeout = 20 * time.Millisecond
	cfg.Retry.MaxAttempts = 1
	slow := &MockFetcher{ID: "slow", Delay: time.Second}
	fast := &MockFetcher{ID: "fast", Price: 12}
	col := newCollector(t, cfg, slow, fast)

	started := time.Now()
	res, err := col.GetRealTimeQuote(t.Context(), "600519")

	require.NoError(t, err)
	assert.Less(t, time.Since(started), 500*time.Millisecond)
	assert.Equal(t, "fast", res.Quote.Primary)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, model.KindTimeout, res.Failures[0].Kind)
}

func TestCancellation_DiscardsPartialResults(t *testing.T) {
	fast := &MockFetcher{ID: "fast"}
	slow := &MockFetcher{ID: "slow", Delay: time.Second}
	col := newCollector(t, testConfig(t), fast, slow)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err := col.GetRealTimeQuote(ctx, "600519")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, model.ErrNoDataAvailable)
	assert.Less(t, time.Since(started), 500*time.Millisecond)
}

func TestConcurrentQueries_DoNotAlias(t *testing.T) {
	symbols := []model.Symbol{"SH600519", "SZ000001", "SZ300750", "SH601318", "BJ830799"}
	prices := make(map[model.Symbol]float64, len(symbols))
	for i, s := range symbols {
		prices[s] = float64(10 * (i + 1))
	}
	col := newCollector(t, testConfig(t),
		&MockFetcher{ID: "a", Prices: prices},
		&MockFetcher{ID: "b", Prices: prices},
	)

	var wg sync.WaitGroup
	errs := make(chan error, len(symbols)*10)
	for i := 0; i < 10; i++ {
		for _, s := range symbols {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := col.GetRealTimeQuote(t.Context(), s.String())
				if err != nil {
					errs <- err
					return
				}
				if res.Quote.Symbol != s || res.Quote.Current != prices[s] {
					errs <- fmt.Errorf("%s answered %s at %v", s, res.Quote.Symbol, res.Quote.Current)
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestGetTechnicalIndicators_CachesSeries(t *testing.T) {
	store := cache.NewMemoryCache(time.Minute)
	defer store.Close()
	a := &MockFetcher{ID: "a"}
	col, err := New(testConfig(t), []Fetcher{a}, WithSeriesCache(store, time.Minute))
	require.NoError(t, err)

	first, err := col.GetTechnicalIndicators(t.Context(), "600519")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "a", first.SeriesSource)
	require.NotNil(t, first.Indicators.RSI)
	require.NotNil(t, first.Indicators.MACD)
	require.NotNil(t, first.Indicators.TurnoverRate)
	assert.Empty(t, first.Indicators.Omitted)
	calls := a.Calls()

	second, err := col.GetTechnicalIndicators(t.Context(), "sh600519")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, calls, a.Calls())
	assert.Equal(t, *first.Indicators.RSI, *second.Indicators.RSI)
}

func TestGetTechnicalIndicators_FallsBackAndOmits(t *testing.T) {
	short := generateMockBars(50, 10, time.Now())
	a := &MockFetcher{ID: "a", Errors: failing(model.KindNotFound, OpSeries, OpShares)}
	b := &MockFetcher{ID: "b", DailyData: short}
	col := newCollector(t, testConfig(t), a, b)

	res, err := col.GetTechnicalIndicators(t.Context(), "600519")
	require.NoError(t, err)

	assert.Equal(t, "b", res.SeriesSource)
	assert.Contains(t, res.Sources, "b")
	assert.NotContains(t, res.Sources, "a")
	assert.NotNil(t, res.Indicators.MA5)
	assert.Nil(t, res.Indicators.MA20)
	assert.Nil(t, res.Indicators.MACD)
	assert.Nil(t, res.Indicators.RSI)
	assert.True(t, res.Indicators.IsOmitted(model.IndicatorMACD))
}

func TestGetTechnicalIndicators_NoSeries(t *testing.T) {
	a := &MockFetcher{ID: "a", Errors: failing(model.KindNotFound, OpSeries)}
	col := newCollector(t, testConfig(t), a)

	_, err := col.GetTechnicalIndicators(t.Context(), "600519")
	assert.ErrorIs(t, err, model.ErrNoDataAvailable)
}

func TestGetNews_MergesDedupesAndLimits(t *testing.T) {
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, chinaTZ)
	cfg := testConfig(t)
	cfg.Sentiment.NewsLimit = 2
	a := &MockFetcher{ID: "a", News: []model.NewsItem{
		{Title: "公司发布回购公告", Source: "a", PublishedAt: base.Add(time.Hour)},
		{Title: "二季度业绩预增", Source: "a", PublishedAt: base.Add(3 * time.Hour)},
	}}
	b := &MockFetcher{ID: "b", News: []model.NewsItem{
		{Title: "公司发布 回购公告", Source: "b", PublishedAt: base.Add(2 * time.Hour)},
		{Title: "股东减持计划", Source: "b", PublishedAt: base},
	}}
	c := &MockFetcher{ID: "c", Errors: failing(model.KindStatus, OpNews)}
	col := newCollector(t, cfg, a, b, c)

	res, err := col.GetNews(t.Context(), "600519", "贵州茅台")
	require.NoError(t, err)

	require.Len(t, res.Items, 2)
	assert.Equal(t, "二季度业绩预增", res.Items[0].Title)
	assert.Equal(t, "公司发布回购公告", res.Items[1].Title)
	assert.Equal(t, "a", res.Items[1].Source)
	assert.Equal(t, model.SentimentPositive, res.Items[0].Sentiment)
	assert.Equal(t, model.SentimentPositive, res.Items[1].Sentiment)
	assert.Equal(t, []string{"a", "b"}, res.Sources)
	assert.Equal(t, []string{"a", "b", "c"}, res.Attempted)
}

func TestGetSentimentSummary(t *testing.T) {
	now := time.Now()
	a := &MockFetcher{ID: "a", News: []model.NewsItem{
		{Title: "一季度业绩大增 创新高", PublishedAt: now},
		{Title: "获大股东增持 股价上涨", PublishedAt: now.Add(-time.Minute)},
		{Title: "控股股东拟减持 股价下跌", PublishedAt: now.Add(-2 * time.Minute)},
		{Title: "召开年度股东大会", PublishedAt: now.Add(-3 * time.Minute)},
	}}
	col := newCollector(t, testConfig(t), a)

	res, err := col.GetSentimentSummary(t.Context(), "600519", "")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Summary.Positive)
	assert.Equal(t, 1, res.Summary.Negative)
	assert.Equal(t, 1, res.Summary.Neutral)
	assert.Equal(t, model.SentimentPositive, res.Summary.Overall)
	require.Len(t, res.Items, 4)
	assert.Equal(t, model.SentimentPositive, res.Items[0].Sentiment)
	// The provider's slice is left unlabelled.
	assert.Empty(t, a.News[0].Sentiment)
}

func TestGetMarketOverview_BoardBreadth(t *testing.T) {
	a := &MockFetcher{ID: "a"}
	col := newCollector(t, testConfig(t), a)

	res, err := col.GetMarketOverview(t.Context(), true)
	require.NoError(t, err)

	m := res.Market
	assert.Equal(t, "board", m.Basis)
	assert.Equal(t, 2, m.Rising)
	assert.Equal(t, 1, m.Falling)
	assert.Equal(t, model.MarketBullish, m.Sentiment)
	require.Len(t, m.Indices, 3)
	assert.Equal(t, model.Symbol("SH000001"), m.Indices[0].Symbol)
	require.NotNil(t, m.MoneyFlow)
	assert.Equal(t, 1.5e9, m.MoneyFlow.MainNetInflow)
}

func TestGetMarketOverview_FallsBackToIndices(t *testing.T) {
	a := &MockFetcher{ID: "a", Errors: failing(model.KindStatus, OpBreadth, OpMoneyFlow)}
	col := newCollector(t, testConfig(t), a)

	res, err := col.GetMarketOverview(t.Context(), true)
	require.NoError(t, err)

	m := res.Market
	assert.Equal(t, "index", m.Basis)
	assert.Equal(t, 3, m.Rising+m.Falling+m.Flat)
	assert.Nil(t, m.MoneyFlow)
	assert.NotEmpty(t, res.Failures)
}

func TestGetMarketOverview_NothingAvailable(t *testing.T) {
	a := &MockFetcher{ID: "a", Errors: failing(model.KindStatus, allOps...)}
	col := newCollector(t, testConfig(t), a)

	_, err := col.GetMarketOverview(t.Context(), false)
	assert.ErrorIs(t, err, model.ErrNoDataAvailable)
}

func TestGetStockData_IndicatorFailureKeepsQuote(t *testing.T) {
	a := &MockFetcher{ID: "a", Errors: failing(model.KindNotFound, OpSeries)}
	col := newCollector(t, testConfig(t), a)

	res, err := col.GetStockData(t.Context(), "600519", true)
	require.NoError(t, err)

	assert.Equal(t, "a", res.Quote.Primary)
	assert.Nil(t, res.Indicators)
	assert.Contains(t, res.IndicatorsError, "no data available")

	res, err = col.GetStockData(t.Context(), "600519", false)
	require.NoError(t, err)
	assert.Empty(t, res.IndicatorsError)
}

func TestAnalyze_PartialAndTotalFailure(t *testing.T) {
	partial := &MockFetcher{ID: "a", Errors: failing(model.KindStatus, OpNews)}
	col := newCollector(t, testConfig(t), partial)

	res, err := col.Analyze(t.Context(), "600519", "贵州茅台")
	require.NoError(t, err)
	assert.NotNil(t, res.Quote)
	assert.NotNil(t, res.Indicators)
	assert.NotNil(t, res.Market)
	assert.Nil(t, res.Sentiment)
	assert.Contains(t, res.Errors, "sentiment")

	dead := &MockFetcher{ID: "a", Errors: failing(model.KindStatus, allOps...)}
	col = newCollector(t, testConfig(t), dead)
	_, err = col.Analyze(t.Context(), "600519", "")
	assert.ErrorIs(t, err, model.ErrNoDataAvailable)
}

func TestNewProviders_Order(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers = []string{"eastmoney", "mock", "sina"}

	providers, err := NewProviders(cfg, nil)
	require.NoError(t, err)

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	assert.Equal(t, []string{"eastmoney", "mock", "sina"}, names)
	_, ok := providers[2].(SeriesFetcher)
	assert.False(t, ok, "sina has no daily series")
}
