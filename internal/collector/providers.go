package collector

import (
	"fmt"

	"AShareSentinel/internal/config"
)

// NewProviders builds the configured adapters on one shared client, in the
// configured priority order.
func NewProviders(cfg *config.Config, client HTTPClient) ([]Fetcher, error) {
	ua := cfg.HTTP.UserAgent
	out := make([]Fetcher, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch name {
		case config.ProviderSina:
			out = append(out, NewSinaFetcher(client, ua, cfg.Sentiment.NewsLimit))
		case config.ProviderTencent:
			out = append(out, NewTencentFetcher(client, ua))
		case config.ProviderEastmoney:
			out = append(out, NewEastmoneyFetcher(client, ua, cfg.Sentiment.NewsLimit))
		case config.ProviderMock:
			out = append(out, &MockFetcher{})
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}
	return out, nil
}
