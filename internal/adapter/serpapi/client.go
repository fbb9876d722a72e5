package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/poi-discovery-service/internal/domain"
	"github.com/couchcryptid/poi-discovery-service/internal/observability"
)

// DefaultURL is the SerpApi search endpoint.
const DefaultURL = "https://serpapi.com/search.json"

const op = "serpapi.search"

// searchZoom is the map zoom sent with a location bias, roughly city-district scale.
const searchZoom = 14

// Client searches Google Maps local listings through SerpApi.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a SerpApi client. An empty apiKey is allowed so the
// service can start; searches then fail with a configuration error.
func NewClient(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Search runs a local-listing search. When near is set the search is
// centred on it. "No results" from the upstream is an empty slice, not an error.
func (c *Client) Search(ctx context.Context, query string, near *domain.GeoPoint) ([]domain.RawPoiRecord, error) {
	if !c.Configured() {
		return nil, domain.Configuration(op, "SERPAPI_KEY is not set")
	}

	params := url.Values{
		"engine":  {"google_maps"},
		"type":    {"search"},
		"q":       {query},
		"api_key": {c.apiKey},
	}
	if near != nil {
		params.Set("ll", fmt.Sprintf("@%.6f,%.6f,%dz", near.Lat, near.Lon, searchZoom))
	}

	start := time.Now()
	records, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	c.metrics.UpstreamDuration.WithLabelValues(domain.SourceSerpAPI).Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Warn("serpapi search failed", "query", query, "status", domain.StatusOf(err), "error", err)
		return nil, err
	}
	c.logger.Debug("serpapi search succeeded", "query", query, "listings", len(records))
	return records, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.RawPoiRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.TransportFailure(op, redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, domain.Upstream(op, resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, errorMessage(body)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.Upstream(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if out.Error != "" {
		if isNoResults(out.Error) {
			return []domain.RawPoiRecord{}, nil
		}
		return nil, domain.Upstream(op, resp.StatusCode, errors.New(out.Error))
	}

	records := domain.DecodeRecords(domain.SourceSerpAPI, out.LocalResults)
	// A query naming one specific place returns it alone under place_results.
	if len(records) == 0 && len(out.PlaceResults) > 0 {
		records = domain.DecodeRecords(domain.SourceSerpAPI, []json.RawMessage{out.PlaceResults})
	}
	return records, nil
}

func isNoResults(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "hasn't returned any results")
}

// errorMessage extracts {"error": "..."} from an error body, falling back to the raw text.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

// redact strips the request URL, which carries the API key, from transport errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{Op: urlErr.Op, URL: "[redacted]", Err: urlErr.Err}
	}
	return err
}

// SerpApi response types.

type response struct {
	LocalResults []json.RawMessage `json:"local_results"`
	PlaceResults json.RawMessage   `json:"place_results"`
	Error        string            `json:"error"`
}
