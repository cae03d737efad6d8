package yield

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/curvedesk/internal/order/domain"
)

// DefaultBaseURL points at the FRED observations API.
const DefaultBaseURL = "https://api.stlouisfed.org/fred"

// ProviderError is a tagged failure from the external data provider.
type ProviderError struct {
	Message    string
	StatusCode int
	SeriesID   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider series %s: %s (status %d)", e.SeriesID, e.Message, e.StatusCode)
}

// Observation is a single published yield value.
type Observation struct {
	Date domain.Date
	Rate float64
}

// Client fetches series observations from the data provider.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	tracer  trace.Tracer
}

// NewClient constructs a provider client. A nil httpClient uses a default
// with a 10s timeout.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpClient,
		tracer:  otel.Tracer("curvedesk.yield.provider"),
	}
}

type observationsPayload struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// LatestObservation returns the most recent published value for a series.
// Placeholder values (".") are skipped.
func (c *Client) LatestObservation(ctx context.Context, seriesID string) (Observation, error) {
	ctx, span := c.tracer.Start(ctx, "yield.fetch")
	defer span.End()

	q := url.Values{}
	q.Set("series_id", seriesID)
	q.Set("api_key", c.apiKey)
	q.Set("file_type", "json")
	q.Set("sort_order", "desc")
	q.Set("limit", "5")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/series/observations?"+q.Encode(), nil)
	if err != nil {
		return Observation{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Observation{}, &ProviderError{Message: err.Error(), SeriesID: seriesID}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Observation{}, &ProviderError{Message: "unexpected response", StatusCode: resp.StatusCode, SeriesID: seriesID}
	}

	var payload observationsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Observation{}, &ProviderError{Message: "malformed payload: " + err.Error(), StatusCode: resp.StatusCode, SeriesID: seriesID}
	}

	for _, obs := range payload.Observations {
		if obs.Value == "." {
			continue
		}
		rate, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			continue
		}
		date, err := domain.ParseDate(obs.Date)
		if err != nil {
			continue
		}
		return Observation{Date: date, Rate: rate}, nil
	}

	return Observation{}, &ProviderError{Message: "no published observations", StatusCode: resp.StatusCode, SeriesID: seriesID}
}
