package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"AShareSentinel/internal/model"
)

const (
	sinaQuoteURL = "https://hq.sinajs.cn/list="
	sinaNewsURL  = "https://feed.mix.sina.com.cn/api/roll/get"
	sinaReferer  = "https://finance.sina.com.cn/"
)

// SinaFetcher reads real-time quotes and rolling news from Sina Finance.
type SinaFetcher struct {
	source
	QuoteURL  string
	NewsURL   string
	NewsLimit int
}

// NewSinaFetcher creates a Sina adapter on the shared client.
func NewSinaFetcher(client HTTPClient, userAgent string, newsLimit int) *SinaFetcher {
	if newsLimit <= 0 {
		newsLimit = 20
	}
	return &SinaFetcher{
		source:    newSource("sina", client, userAgent),
		QuoteURL:  sinaQuoteURL,
		NewsURL:   sinaNewsURL,
		NewsLimit: newsLimit,
	}
}

func (f *SinaFetcher) header() http.Header {
	h := http.Header{}
	h.Set("Referer", sinaReferer)
	return h
}

// FetchQuote parses the hq_str line:
// name,open,prevClose,current,high,low,bid,ask,volume,amount,...,date,time,...
func (f *SinaFetcher) FetchQuote(ctx context.Context, symbol model.Symbol) (model.ProviderQuote, error) {
	body, err := f.get(ctx, OpQuote, f.QuoteURL+symbol.Lower(), f.header())
	if err != nil {
		return model.ProviderQuote{}, err
	}
	payload, err := quotedPayload(body)
	if err != nil {
		return model.ProviderQuote{}, model.Malformed(f.name, OpQuote, "%v", err)
	}
	if payload == "" {
		return model.ProviderQuote{}, notFound(f.name, OpQuote, symbol)
	}

	p := newFields(f.name, OpQuote, strings.Split(payload, ","))
	q := model.ProviderQuote{
		Provider:  f.name,
		Symbol:    symbol,
		Name:      p.str(0, "name"),
		Open:      p.float(1, "open"),
		PrevClose: p.float(2, "prev_close"),
		Current:   p.float(3, "current"),
		High:      p.float(4, "high"),
		Low:       p.float(5, "low"),
		Volume:    p.float(8, "volume"),
		Turnover:  p.float(9, "amount"),
	}
	date, clock := p.str(30, "date"), p.str(31, "time")
	if p.err != nil {
		return model.ProviderQuote{}, p.err
	}
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", date+" "+clock, chinaTZ)
	if err != nil {
		return model.ProviderQuote{}, model.Malformed(f.name, OpQuote, "timestamp %q %q: %v", date, clock, err)
	}
	q.Timestamp = ts
	if err := checkQuote(f.name, q); err != nil {
		return model.ProviderQuote{}, err
	}
	return q, nil
}

// quotedPayload extracts the text between the first pair of double quotes of
// a `var x="...";` response.
func quotedPayload(body []byte) (string, error) {
	start := bytes.IndexByte(body, '"')
	if start < 0 {
		return "", fmt.Errorf("no quoted payload in %q", truncate(body, 64))
	}
	end := bytes.IndexByte(body[start+1:], '"')
	if end < 0 {
		return "", fmt.Errorf("unterminated payload")
	}
	return strings.TrimSpace(string(body[start+1 : start+1+end])), nil
}

type sinaNewsResponse struct {
	Result struct {
		Status struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		} `json:"status"`
		Data []struct {
			Title     string          `json:"title"`
			Intro     string          `json:"intro"`
			URL       string          `json:"url"`
			CTime     json.RawMessage `json:"ctime"`
			MediaName string          `json:"media_name"`
		} `json:"data"`
	} `json:"result"`
}

// FetchNews searches the rolling feed by stock name, or by code when the
// name is unknown.
func (f *SinaFetcher) FetchNews(ctx context.Context, symbol model.Symbol, name string) ([]model.NewsItem, error) {
	keyword := strings.TrimSpace(name)
	if keyword == "" {
		keyword = symbol.Code()
	}
	q := url.Values{}
	q.Set("pageid", "153")
	q.Set("lid", "2516")
	q.Set("k", keyword)
	q.Set("num", fmt.Sprint(f.NewsLimit))
	q.Set("page", "1")

	body, err := f.get(ctx, OpNews, f.NewsURL+"?"+q.Encode(), f.header())
	if err != nil {
		return nil, err
	}
	var resp sinaNewsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, model.Malformed(f.name, OpNews, "decode: %v", err)
	}
	if resp.Result.Status.Code != 0 {
		return nil, model.Malformed(f.name, OpNews, "api status %d: %s", resp.Result.Status.Code, resp.Result.Status.Msg)
	}

	items := make([]model.NewsItem, 0, len(resp.Result.Data))
	for _, d := range resp.Result.Data {
		title := strings.TrimSpace(d.Title)
		if title == "" {
			continue
		}
		item := model.NewsItem{
			Title:  title,
			Body:   strings.TrimSpace(d.Intro),
			URL:    d.URL,
			Source: f.name,
		}
		if sec, err := parseRaw(d.CTime); err == nil {
			item.PublishedAt = time.Unix(sec.IntPart(), 0).In(chinaTZ)
		}
		if d.MediaName != "" {
			item.Source = f.name + "/" + d.MediaName
		}
		items = append(items, item)
	}
	return items, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
