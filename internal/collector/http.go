package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"

	"AShareSentinel/internal/model"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=collector -destination=mock_http_client_test.go -source=http.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPOptions configures the shared client.
type HTTPOptions struct {
	Timeout      time.Duration
	Proxy        string
	MaxIdleConns int
}

// NewHTTPClient builds the process-wide client every adapter shares.
// An explicit proxy wins over the environment.
func NewHTTPClient(opts HTTPOptions) (*http.Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 32
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          opts.MaxIdleConns,
		MaxIdleConnsPerHost:   opts.MaxIdleConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	if opts.Proxy != "" {
		u, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return &http.Client{Timeout: opts.Timeout, Transport: transport}, nil
}

const maxBodyBytes = 8 << 20

// source is the plumbing shared by the HTTP adapters.
type source struct {
	name      string
	client    HTTPClient
	userAgent string
	now       func() time.Time
}

func newSource(name string, client HTTPClient, userAgent string) source {
	if client == nil {
		client = http.DefaultClient
	}
	return source{name: name, client: client, userAgent: userAgent, now: time.Now}
}

func (s *source) Name() string { return s.name }

// get issues a GET and returns the body as UTF-8. Transport failures, non-200
// statuses and oversized bodies become FetchErrors.
func (s *source) get(ctx context.Context, op, rawURL string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewFetchError(s.name, op, model.KindUnsupported, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if s.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, model.NewFetchError(s.name, op, model.KindNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, model.NewFetchError(s.name, op, model.KindNetwork, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		fe := model.NewFetchError(s.name, op, model.KindStatus, fmt.Errorf("status %d", resp.StatusCode))
		fe.Status = resp.StatusCode
		return nil, fe
	}
	if len(body) > maxBodyBytes {
		return nil, model.Malformed(s.name, op, "body exceeds %d bytes", maxBodyBytes)
	}
	text, err := toUTF8(body)
	if err != nil {
		return nil, model.Malformed(s.name, op, "%v", err)
	}
	return text, nil
}

// toUTF8 decodes GBK payloads (Sina, Tencent) and passes UTF-8 through.
func toUTF8(body []byte) ([]byte, error) {
	if utf8.Valid(body) {
		return body, nil
	}
	out, err := simplifiedchinese.GBK.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("decode gbk: %w", err)
	}
	return out, nil
}

func notFound(provider, op string, symbol model.Symbol) error {
	return model.NewFetchError(provider, op, model.KindNotFound, fmt.Errorf("no data for %s", symbol))
}

var errSuspended = errors.New("zero price (suspended or not yet traded)")
