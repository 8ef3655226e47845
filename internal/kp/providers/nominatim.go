package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/kp-index-aggregation/internal/kp"
)

// DefaultNominatimBaseURL is the public OpenStreetMap geocoder.
const DefaultNominatimBaseURL = "https://nominatim.openstreetmap.org/"

// SearchLimit caps the candidates returned for one query.
const SearchLimit = 8

// Nominatim implements the kp.Geocoder interface for OpenStreetMap Nominatim.
type Nominatim struct {
	name         string
	baseURL      string
	fallbackZone string
	httpCfg      HTTPClientConfig
	circuit      *gobreaker.CircuitBreaker
}

// NewNominatim creates a geocoder. Nominatim's usage policy requires an
// identifying User-Agent. fallbackZone is used for countries missing from the
// zone table.
func NewNominatim(client *http.Client, baseURL, userAgent, fallbackZone string) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultNominatimBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &Nominatim{
		name:         "nominatim",
		baseURL:      baseURL,
		fallbackZone: fallbackZone,
		httpCfg: HTTPClientConfig{
			Client:    client,
			UserAgent: userAgent,
			// Interactive search: one quick retry is enough.
			Backoff: BackoffConfig{
				MaxRetries:      1,
				InitialInterval: 300 * time.Millisecond,
				MaxInterval:     time.Second,
			},
		},
		circuit: newCircuitBreaker("nominatim"),
	}
}

func (p *Nominatim) Name() string {
	return p.name
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
	Address     *struct {
		CountryCode string `json:"country_code"`
		State       string `json:"state"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
	} `json:"address"`
}

func (p *Nominatim) Search(ctx context.Context, query string) ([]kp.Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []kp.Location{}, nil
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("q", query)
		values.Set("format", "json")
		values.Set("limit", strconv.Itoa(SearchLimit))
		values.Set("addressdetails", "1")

		u := fmt.Sprintf("%ssearch?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	body, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("decode nominatim response: %w", err)
	}

	out := make([]kp.Location, 0, len(places))
	for _, place := range places {
		var code string
		if place.Address != nil {
			code = place.Address.CountryCode
		}
		out = append(out, kp.Location{
			DisplayName: place.DisplayName,
			TimeZoneID:  TimeZoneForCountry(code, p.fallbackZone),
		})
	}
	return out, nil
}
