// internal/places/http.go
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/javajoker/venuetrust/internal/retry"
)

// HTTPConfig configures the JSON-over-HTTP place provider.
type HTTPConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             *retry.Config
}

// HTTPClient implements Provider against a JSON API exposing
// /places/search, /places/nearby and /places/{id}/reviews.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	retry   *retry.Config
}

func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = max(1, int(cfg.RequestsPerSecond))
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		retry:   cfg.Retry,
	}
}

type placesResponse struct {
	Places []Place `json:"places"`
}

type reviewsResponse struct {
	Reviews []Review `json:"reviews"`
}

func (c *HTTPClient) TextSearch(ctx context.Context, query, category string) ([]Place, error) {
	params := url.Values{"query": {query}}
	if category != "" {
		params.Set("category", category)
	}
	var resp placesResponse
	if err := c.getJSON(ctx, "/places/search", params, &resp); err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	return resp.Places, nil
}

func (c *HTTPClient) LatestReviews(ctx context.Context, placeID string, limit int) ([]Review, error) {
	params := url.Values{"limit": {strconv.Itoa(limit)}}
	var resp reviewsResponse
	if err := c.getJSON(ctx, "/places/"+url.PathEscape(placeID)+"/reviews", params, &resp); err != nil {
		return nil, fmt.Errorf("latest reviews: %w", err)
	}
	return resp.Reviews, nil
}

func (c *HTTPClient) Nearby(ctx context.Context, q NearbyQuery) ([]Place, error) {
	params := url.Values{
		"lat":    {strconv.FormatFloat(q.Latitude, 'f', 6, 64)},
		"lon":    {strconv.FormatFloat(q.Longitude, 'f', 6, 64)},
		"radius": {strconv.FormatFloat(q.RadiusMeters, 'f', 0, 64)},
	}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	var resp placesResponse
	if err := c.getJSON(ctx, "/places/nearby", params, &resp); err != nil {
		return nil, fmt.Errorf("nearby search: %w", err)
	}
	return resp.Places, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("place provider base URL not configured")
	}
	endpoint := c.baseURL + path + "?" + params.Encode()

	body, err := retry.DoWithResult(ctx, c.retry, func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		return c.do(ctx, endpoint)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	se := &retry.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if seconds, parseErr := strconv.Atoi(ra); parseErr == nil && seconds > 0 {
			se.RetryAfter = time.Duration(seconds) * time.Second
		}
	}
	return nil, se
}
