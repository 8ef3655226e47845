package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/kp-index-aggregation/internal/kp"
)

// DefaultNOAABaseURL hosts both Kp products.
const DefaultNOAABaseURL = "https://services.swpc.noaa.gov/products/"

const (
	forecastProduct = "noaa-planetary-k-index-forecast.json"
	currentProduct  = "noaa-planetary-k-index.json"
)

// NOAAFeed implements the kp.Feed interface for NOAA SWPC.
type NOAAFeed struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewNOAAFeed creates a feed client. An empty baseURL uses DefaultNOAABaseURL.
func NewNOAAFeed(client *http.Client, baseURL string) *NOAAFeed {
	if baseURL == "" {
		baseURL = DefaultNOAABaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &NOAAFeed{
		name:    "noaa-swpc",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newCircuitBreaker("noaa-swpc"),
	}
}

// WithBackoff overrides the retry policy.
func (p *NOAAFeed) WithBackoff(b BackoffConfig) *NOAAFeed {
	p.httpCfg.Backoff = b
	return p
}

func (p *NOAAFeed) Name() string {
	return p.name
}

func (p *NOAAFeed) Forecast(ctx context.Context) kp.FetchResult {
	return p.fetch(ctx, forecastProduct, ParseForecast)
}

func (p *NOAAFeed) Current(ctx context.Context) kp.FetchResult {
	return p.fetch(ctx, currentProduct, ParseCurrent)
}

func (p *NOAAFeed) fetch(ctx context.Context, product string, parse func([]byte) ([]kp.Record, error)) kp.FetchResult {
	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, p.baseURL+product, nil)
	}

	body, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return kp.Failed(classify(err), fmt.Errorf("%s: %w", product, err))
	}

	records, err := parse(body)
	if err != nil {
		return kp.Failed(kp.Permanent, fmt.Errorf("%s: %w", product, err))
	}
	return kp.Succeeded(records)
}
