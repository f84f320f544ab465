package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"AShareSentinel/internal/model"
)

const (
	eastmoneyQuoteURL   = "https://push2.eastmoney.com/api/qt/stock/get"
	eastmoneyKlineURL   = "https://push2his.eastmoney.com/api/qt/stock/kline/get"
	eastmoneyListURL    = "https://push2.eastmoney.com/api/qt/clist/get"
	eastmoneyFlowURL    = "https://push2.eastmoney.com/api/qt/ulist.np/get"
	eastmoneyNoticeURL  = "https://np-anotice-stock.eastmoney.com/api/security/ann"
	eastmoneyNoticePage = "https://data.eastmoney.com/notices/detail/%s/%s.html"

	// All SH and SZ main boards, ChiNext, STAR and Beijing.
	eastmoneyAShares = "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23,m:0+t:81+s:2048"
	// Shanghai Composite and Shenzhen Component, whose flows sum to the market.
	eastmoneyFlowSecIDs = "1.000001,0.399001"

	// clist serves at most 100 rows per page whatever pz asks for.
	eastmoneyPageSize = 100
	eastmoneyMaxPages = 100
)

// EastmoneyFetcher covers quotes, bars, float shares, announcements, market
// breadth and money flow from the Eastmoney push2 APIs.
type EastmoneyFetcher struct {
	source
	QuoteURL  string
	KlineURL  string
	ListURL   string
	FlowURL   string
	NoticeURL string
	NewsLimit int
}

// NewEastmoneyFetcher creates an Eastmoney adapter on the shared client.
func NewEastmoneyFetcher(client HTTPClient, userAgent string, newsLimit int) *EastmoneyFetcher {
	if newsLimit <= 0 {
		newsLimit = 20
	}
	return &EastmoneyFetcher{
		source:    newSource("eastmoney", client, userAgent),
		QuoteURL:  eastmoneyQuoteURL,
		KlineURL:  eastmoneyKlineURL,
		ListURL:   eastmoneyListURL,
		FlowURL:   eastmoneyFlowURL,
		NoticeURL: eastmoneyNoticeURL,
		NewsLimit: newsLimit,
	}
}

type eastmoneyObject struct {
	RC   int                        `json:"rc"`
	Data map[string]json.RawMessage `json:"data"`
}

func (f *EastmoneyFetcher) getObject(ctx context.Context, op, rawURL string) (map[string]json.RawMessage, error) {
	body, err := f.get(ctx, op, rawURL, nil)
	if err != nil {
		return nil, err
	}
	var resp eastmoneyObject
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, model.Malformed(f.name, op, "decode: %v", err)
	}
	if resp.RC != 0 {
		return nil, model.Malformed(f.name, op, "api rc %d", resp.RC)
	}
	return resp.Data, nil
}

// stock/get fields, fltt=2 so prices are plain decimals:
// f43 current, f44 high, f45 low, f46 open, f47 volume (lots), f48 amount,
// f57 code, f58 name, f60 prev close, f84 total shares, f85 float shares,
// f86 unix timestamp.
const eastmoneyQuoteFields = "f43,f44,f45,f46,f47,f48,f57,f58,f60,f84,f85,f86"

func (f *EastmoneyFetcher) stock(ctx context.Context, op string, symbol model.Symbol) (*jsonFields, error) {
	q := url.Values{}
	q.Set("secid", symbol.SecID())
	q.Set("fltt", "2")
	q.Set("invt", "2")
	q.Set("fields", eastmoneyQuoteFields)
	data, err := f.getObject(ctx, op, f.QuoteURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, notFound(f.name, op, symbol)
	}
	return &jsonFields{provider: f.name, op: op, values: data}, nil
}

func (f *EastmoneyFetcher) FetchQuote(ctx context.Context, symbol model.Symbol) (model.ProviderQuote, error) {
	p, err := f.stock(ctx, OpQuote, symbol)
	if err != nil {
		return model.ProviderQuote{}, err
	}
	q := model.ProviderQuote{
		Provider:  f.name,
		Symbol:    symbol,
		Name:      p.str("f58"),
		Current:   p.float("f43"),
		High:      p.float("f44"),
		Low:       p.float("f45"),
		Open:      p.float("f46"),
		Volume:    p.decimal("f47").Mul(hundred).InexactFloat64(),
		Turnover:  p.float("f48"),
		PrevClose: p.float("f60"),
	}
	ts := p.decimal("f86")
	if p.err != nil {
		return model.ProviderQuote{}, p.err
	}
	q.Timestamp = time.Unix(ts.IntPart(), 0).In(chinaTZ)
	if err := checkQuote(f.name, q); err != nil {
		return model.ProviderQuote{}, err
	}
	return q, nil
}

// FetchFloatShares returns f85, the tradable share count.
func (f *EastmoneyFetcher) FetchFloatShares(ctx context.Context, symbol model.Symbol) (float64, error) {
	p, err := f.stock(ctx, OpShares, symbol)
	if err != nil {
		return 0, err
	}
	shares := p.float("f85")
	if p.err != nil {
		return 0, p.err
	}
	if shares <= 0 {
		return 0, notFound(f.name, OpShares, symbol)
	}
	return shares, nil
}

type eastmoneyKlineData struct {
	Code   string   `json:"code"`
	Name   string   `json:"name"`
	Klines []string `json:"klines"`
}

// FetchSeries returns forward-adjusted daily bars. Each kline row is
// "date,open,close,high,low,volume(lots),amount".
func (f *EastmoneyFetcher) FetchSeries(ctx context.Context, symbol model.Symbol, lookback int) (model.PriceSeries, error) {
	q := url.Values{}
	q.Set("secid", symbol.SecID())
	q.Set("fields1", "f1,f2,f3,f4,f5,f6")
	q.Set("fields2", "f51,f52,f53,f54,f55,f56,f57")
	q.Set("klt", "101")
	q.Set("fqt", "1")
	q.Set("end", "20500101")
	q.Set("lmt", fmt.Sprint(lookback))

	body, err := f.get(ctx, OpSeries, f.KlineURL+"?"+q.Encode(), nil)
	if err != nil {
		return model.PriceSeries{}, err
	}
	var resp struct {
		RC   int                 `json:"rc"`
		Data *eastmoneyKlineData `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.PriceSeries{}, model.Malformed(f.name, OpSeries, "decode: %v", err)
	}
	if resp.Data == nil {
		return model.PriceSeries{}, notFound(f.name, OpSeries, symbol)
	}

	series := model.PriceSeries{Symbol: symbol, Source: f.name, FetchedAt: f.now(), Bars: make([]model.PriceBar, 0, len(resp.Data.Klines))}
	for i, line := range resp.Data.Klines {
		p := newFields(f.name, OpSeries, strings.Split(line, ","))
		date := p.str(0, "date")
		bar := model.PriceBar{
			Open:     p.float(1, "open"),
			Close:    p.float(2, "close"),
			High:     p.float(3, "high"),
			Low:      p.float(4, "low"),
			Volume:   p.lots(5, "volume"),
			Turnover: p.float(6, "amount"),
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

type eastmoneyNotices struct {
	Data *struct {
		List []struct {
			Title      string `json:"title"`
			NoticeDate string `json:"notice_date"`
			ArtCode    string `json:"art_code"`
		} `json:"list"`
	} `json:"data"`
	Success int `json:"success"`
}

// FetchNews returns exchange announcements as news items.
func (f *EastmoneyFetcher) FetchNews(ctx context.Context, symbol model.Symbol, _ string) ([]model.NewsItem, error) {
	q := url.Values{}
	q.Set("sr", "-1")
	q.Set("page_size", fmt.Sprint(f.NewsLimit))
	q.Set("page_index", "1")
	q.Set("ann_type", "A")
	q.Set("client_source", "web")
	q.Set("stock_list", symbol.Code())

	body, err := f.get(ctx, OpNews, f.NoticeURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var resp eastmoneyNotices
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, model.Malformed(f.name, OpNews, "decode: %v", err)
	}
	if resp.Data == nil {
		return nil, notFound(f.name, OpNews, symbol)
	}

	items := make([]model.NewsItem, 0, len(resp.Data.List))
	for _, n := range resp.Data.List {
		title := strings.TrimSpace(n.Title)
		if title == "" {
			continue
		}
		item := model.NewsItem{Title: title, Source: f.name}
		if n.ArtCode != "" {
			item.URL = fmt.Sprintf(eastmoneyNoticePage, symbol.Code(), n.ArtCode)
		}
		if t, err := time.ParseInLocation(time.DateTime, strings.TrimSpace(n.NoticeDate), chinaTZ); err == nil {
			item.PublishedAt = t
		} else if t, err := parseDay(firstN(n.NoticeDate, 10)); err == nil {
			item.PublishedAt = t
		}
		items = append(items, item)
	}
	return items, nil
}

type eastmoneyList struct {
	RC   int `json:"rc"`
	Data *struct {
		Total int                          `json:"total"`
		Diff  []map[string]json.RawMessage `json:"diff"`
	} `json:"data"`
}

// FetchBreadth returns the change percent (f3) of every listed A-share.
// The listing is paged until data.total rows have arrived; a listing that
// ends early is rejected since it is sorted by change and would only hold
// the gainers. Rows without a price today ("-") are skipped rather than
// counted flat.
func (f *EastmoneyFetcher) FetchBreadth(ctx context.Context) ([]model.Delta, error) {
	q := url.Values{}
	q.Set("pz", fmt.Sprint(eastmoneyPageSize))
	q.Set("po", "1")
	q.Set("np", "1")
	q.Set("fltt", "2")
	q.Set("invt", "2")
	q.Set("fid", "f3")
	q.Set("fs", eastmoneyAShares)
	q.Set("fields", "f3,f12")

	var list []map[string]json.RawMessage
	for pn := 1; ; pn++ {
		q.Set("pn", fmt.Sprint(pn))
		page, total, err := f.listPage(ctx, OpBreadth, f.ListURL+"?"+q.Encode())
		var fe *model.FetchError
		if pn > 1 && errors.As(err, &fe) && fe.Kind == model.KindNotFound {
			return nil, model.Malformed(f.name, OpBreadth, "partial listing: page %d empty after %d rows", pn, len(list))
		}
		if err != nil {
			return nil, err
		}
		list = append(list, page...)
		if len(list) >= total {
			break
		}
		if pn >= eastmoneyMaxPages {
			return nil, model.Malformed(f.name, OpBreadth, "partial listing: %d of %d rows after %d pages", len(list), total, pn)
		}
	}

	out := make([]model.Delta, 0, len(list))
	for _, row := range list {
		p := &jsonFields{provider: f.name, op: OpBreadth, values: row}
		code := p.str("f12")
		change, err := parseRaw(row["f3"])
		if p.err != nil || err != nil {
			continue
		}
		out = append(out, model.Delta{Symbol: code, ChangePercent: change.InexactFloat64()})
	}
	if len(out) == 0 {
		return nil, model.Malformed(f.name, OpBreadth, "no usable rows in %d", len(list))
	}
	return out, nil
}

// FetchMoneyFlow sums main (f62), super-large (f66), large (f72), medium
// (f78) and small (f84) net inflow over the two composite indices.
func (f *EastmoneyFetcher) FetchMoneyFlow(ctx context.Context) (model.MoneyFlow, error) {
	q := url.Values{}
	q.Set("fltt", "2")
	q.Set("secids", eastmoneyFlowSecIDs)
	q.Set("fields", "f62,f66,f72,f78,f84,f124")

	list, err := f.list(ctx, OpMoneyFlow, f.FlowURL+"?"+q.Encode())
	if err != nil {
		return model.MoneyFlow{}, err
	}
	flow := model.MoneyFlow{Source: f.name}
	var latest int64
	for _, row := range list {
		p := &jsonFields{provider: f.name, op: OpMoneyFlow, values: row}
		flow.MainNetInflow += p.float("f62")
		flow.SuperLargeNet += p.float("f66")
		flow.LargeNet += p.float("f72")
		flow.MediumNet += p.float("f78")
		flow.SmallNet += p.float("f84")
		if p.err != nil {
			return model.MoneyFlow{}, p.err
		}
		if ts, err := parseRaw(row["f124"]); err == nil && ts.IntPart() > latest {
			latest = ts.IntPart()
		}
	}
	if latest > 0 {
		flow.UpdatedAt = time.Unix(latest, 0).In(chinaTZ)
	} else {
		flow.UpdatedAt = f.now()
	}
	return flow, nil
}

func (f *EastmoneyFetcher) list(ctx context.Context, op, rawURL string) ([]map[string]json.RawMessage, error) {
	rows, _, err := f.listPage(ctx, op, rawURL)
	return rows, err
}

// listPage returns one page of a clist response and the upstream row total.
func (f *EastmoneyFetcher) listPage(ctx context.Context, op, rawURL string) ([]map[string]json.RawMessage, int, error) {
	body, err := f.get(ctx, op, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	var resp eastmoneyList
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, model.Malformed(f.name, op, "decode: %v", err)
	}
	if resp.RC != 0 {
		return nil, 0, model.Malformed(f.name, op, "api rc %d", resp.RC)
	}
	if resp.Data == nil || len(resp.Data.Diff) == 0 {
		return nil, 0, model.NewFetchError(f.name, op, model.KindNotFound, fmt.Errorf("empty list"))
	}
	return resp.Data.Diff, resp.Data.Total, nil
}

func firstN(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
