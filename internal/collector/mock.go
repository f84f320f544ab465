package collector

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"AShareSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// It implements every capability. Zero values yield a plausible default.
type MockFetcher struct {
	ID        string
	Price     float64
	Prices    map[model.Symbol]float64
	Names     map[model.Symbol]string
	DailyData []model.PriceBar
	Shares    float64
	News      []model.NewsItem
	Deltas    []model.Delta
	Flow      *model.MoneyFlow
	Errors    map[string]error // keyed by Op*
	Delay     time.Duration
	Timestamp time.Time
	Now       func() time.Time
	calls     atomic.Int64
}

func (m *MockFetcher) Name() string {
	if m.ID != "" {
		return m.ID
	}
	return "mock"
}

// Calls returns how many fetches have been made.
func (m *MockFetcher) Calls() int64 { return m.calls.Load() }

func (m *MockFetcher) enter(ctx context.Context, op string) error {
	m.calls.Add(1)
	if m.Delay > 0 {
		t := time.NewTimer(m.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return model.NewFetchError(m.Name(), op, model.KindTimeout, ctx.Err())
		case <-t.C:
		}
	}
	if err := m.Errors[op]; err != nil {
		return err
	}
	return nil
}

func (m *MockFetcher) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *MockFetcher) price(symbol model.Symbol) float64 {
	if p, ok := m.Prices[symbol]; ok {
		return p
	}
	if m.Price > 0 {
		return m.Price
	}
	return 100
}

func (m *MockFetcher) FetchQuote(ctx context.Context, symbol model.Symbol) (model.ProviderQuote, error) {
	if err := m.enter(ctx, OpQuote); err != nil {
		return model.ProviderQuote{}, err
	}
	p := m.price(symbol)
	ts := m.Timestamp
	if ts.IsZero() {
		ts = m.now()
	}
	name := m.Names[symbol]
	if name == "" {
		name = "MOCK" + symbol.Code()
	}
	return model.ProviderQuote{
		Provider:  m.Name(),
		Symbol:    symbol,
		Name:      name,
		Current:   p,
		Open:      p * 0.995,
		High:      p * 1.01,
		Low:       p * 0.99,
		PrevClose: p / 1.01,
		Volume:    1_000_000,
		Turnover:  p * 1_000_000,
		Timestamp: ts,
	}, nil
}

func (m *MockFetcher) FetchSeries(ctx context.Context, symbol model.Symbol, lookback int) (model.PriceSeries, error) {
	if err := m.enter(ctx, OpSeries); err != nil {
		return model.PriceSeries{}, err
	}
	bars := m.DailyData
	if bars == nil {
		bars = generateMockBars(m.price(symbol), lookback, m.now())
	}
	series := model.PriceSeries{
		Symbol:    symbol,
		Source:    m.Name(),
		Bars:      append([]model.PriceBar(nil), bars...),
		FetchedAt: m.now(),
	}
	return finishSeries(m.Name(), series, lookback)
}

func (m *MockFetcher) FetchNews(ctx context.Context, symbol model.Symbol, name string) ([]model.NewsItem, error) {
	if err := m.enter(ctx, OpNews); err != nil {
		return nil, err
	}
	if m.News != nil {
		return append([]model.NewsItem(nil), m.News...), nil
	}
	if name == "" {
		name = symbol.Code()
	}
	return []model.NewsItem{
		{Title: fmt.Sprintf("%s 发布年度报告", name), Source: m.Name(), PublishedAt: m.now()},
	}, nil
}

func (m *MockFetcher) FetchFloatShares(ctx context.Context, symbol model.Symbol) (float64, error) {
	if err := m.enter(ctx, OpShares); err != nil {
		return 0, err
	}
	if m.Shares > 0 {
		return m.Shares, nil
	}
	return 100_000_000, nil
}

func (m *MockFetcher) FetchBreadth(ctx context.Context) ([]model.Delta, error) {
	if err := m.enter(ctx, OpBreadth); err != nil {
		return nil, err
	}
	if m.Deltas != nil {
		return append([]model.Delta(nil), m.Deltas...), nil
	}
	return []model.Delta{
		{Symbol: "600000", ChangePercent: 1.2},
		{Symbol: "600519", ChangePercent: 0.8},
		{Symbol: "000001", ChangePercent: -0.4},
	}, nil
}

func (m *MockFetcher) FetchMoneyFlow(ctx context.Context) (model.MoneyFlow, error) {
	if err := m.enter(ctx, OpMoneyFlow); err != nil {
		return model.MoneyFlow{}, err
	}
	if m.Flow != nil {
		return *m.Flow, nil
	}
	return model.MoneyFlow{MainNetInflow: 1.5e9, SuperLargeNet: 1e9, LargeNet: 5e8, MediumNet: -7e8, SmallNet: -8e8, Source: m.Name(), UpdatedAt: m.now()}, nil
}

// generateMockBars builds count daily bars ending the day before end, drifting
// gently upward around basePrice.
func generateMockBars(basePrice float64, count int, end time.Time) []model.PriceBar {
	bars := make([]model.PriceBar, count)
	day := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, chinaTZ)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.PriceBar{
			Time:   day.AddDate(0, 0, -(count - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
