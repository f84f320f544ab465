package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"AShareSentinel/internal/model"
)

const (
	tencentQuoteURL = "https://qt.gtimg.cn/q="
	tencentKlineURL = "https://web.ifzq.gtimg.cn/appstock/app/fqkline/get"
)

// TencentFetcher reads quotes and forward-adjusted daily bars from Tencent.
type TencentFetcher struct {
	source
	QuoteURL string
	KlineURL string
}

// NewTencentFetcher creates a Tencent adapter on the shared client.
func NewTencentFetcher(client HTTPClient, userAgent string) *TencentFetcher {
	return &TencentFetcher{
		source:   newSource("tencent", client, userAgent),
		QuoteURL: tencentQuoteURL,
		KlineURL: tencentKlineURL,
	}
}

// FetchQuote parses the "~"-separated v_ line. Volume (field 6) is in lots,
// amount (field 37) in units of 10k CNY.
func (f *TencentFetcher) FetchQuote(ctx context.Context, symbol model.Symbol) (model.ProviderQuote, error) {
	body, err := f.get(ctx, OpQuote, f.QuoteURL+symbol.Lower(), nil)
	if err != nil {
		return model.ProviderQuote{}, err
	}
	if strings.Contains(string(body), "v_pv_none_match") {
		return model.ProviderQuote{}, notFound(f.name, OpQuote, symbol)
	}
	payload, err := quotedPayload(body)
	if err != nil {
		return model.ProviderQuote{}, model.Malformed(f.name, OpQuote, "%v", err)
	}
	if payload == "" {
		return model.ProviderQuote{}, notFound(f.name, OpQuote, symbol)
	}

	p := newFields(f.name, OpQuote, strings.Split(payload, "~"))
	q := model.ProviderQuote{
		Provider:  f.name,
		Symbol:    symbol,
		Name:      p.str(1, "name"),
		Current:   p.float(3, "current"),
		PrevClose: p.float(4, "prev_close"),
		Open:      p.float(5, "open"),
		Volume:    p.lots(6, "volume"),
		High:      p.float(33, "high"),
		Low:       p.float(34, "low"),
		Turnover:  p.decimal(37, "amount").Mul(tenThousand).InexactFloat64(),
	}
	stamp := p.str(30, "timestamp")
	if p.err != nil {
		return model.ProviderQuote{}, p.err
	}
	ts, err := time.ParseInLocation("20060102150405", stamp, chinaTZ)
	if err != nil {
		return model.ProviderQuote{}, model.Malformed(f.name, OpQuote, "timestamp %q: %v", stamp, err)
	}
	q.Timestamp = ts
	if err := checkQuote(f.name, q); err != nil {
		return model.ProviderQuote{}, err
	}
	return q, nil
}

type tencentKlineResponse struct {
	Code int                        `json:"code"`
	Msg  string                     `json:"msg"`
	Data map[string]json.RawMessage `json:"data"`
}

// tencentKlines holds adjusted bars for equities (qfqday) or raw bars for
// indices (day). Rows are [date, open, close, high, low, volume, ...].
type tencentKlines struct {
	QfqDay [][]any `json:"qfqday"`
	Day    [][]any `json:"day"`
}

// FetchSeries returns forward-adjusted daily bars.
func (f *TencentFetcher) FetchSeries(ctx context.Context, symbol model.Symbol, lookback int) (model.PriceSeries, error) {
	param := fmt.Sprintf("%s,day,,,%d,qfq", symbol.Lower(), lookback)
	body, err := f.get(ctx, OpSeries, f.KlineURL+"?param="+param, nil)
	if err != nil {
		return model.PriceSeries{}, err
	}

	var resp tencentKlineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.PriceSeries{}, model.Malformed(f.name, OpSeries, "decode: %v", err)
	}
	if resp.Code != 0 {
		return model.PriceSeries{}, model.Malformed(f.name, OpSeries, "api code %d: %s", resp.Code, resp.Msg)
	}
	raw, ok := resp.Data[symbol.Lower()]
	if !ok {
		return model.PriceSeries{}, notFound(f.name, OpSeries, symbol)
	}
	var k tencentKlines
	if err := json.Unmarshal(raw, &k); err != nil {
		return model.PriceSeries{}, model.Malformed(f.name, OpSeries, "decode bars: %v", err)
	}
	rows := k.QfqDay
	if len(rows) == 0 {
		rows = k.Day
	}

	series := model.PriceSeries{Symbol: symbol, Source: f.name, FetchedAt: f.now(), Bars: make([]model.PriceBar, 0, len(rows))}
	for i, row := range rows {
		values := make([]string, 0, 6)
		for _, v := range row {
			s, ok := v.(string)
			if !ok {
				// Trailing dividend annotations are objects.
				break
			}
			values = append(values, s)
		}
		p := newFields(f.name, OpSeries, values)
		date := p.str(0, "date")
		bar := model.PriceBar{
			Open:   p.float(1, "open"),
			Close:  p.float(2, "close"),
			High:   p.float(3, "high"),
			Low:    p.float(4, "low"),
			Volume: p.lots(5, "volume"),
		}
		if p.err != nil {
			return model.PriceSeries{}, fmt.Errorf("row %d: %w", i, p.err)
		}
		if bar.Time, err = parseDay(date); err != nil {
			return model.PriceSeries{}, model.Malformed(f.name, OpSeries, "row %d: %v", i, err)
		}
		series.Bars = append(series.Bars, bar)
	}
	return finishSeries(f.name, series, lookback)
}
