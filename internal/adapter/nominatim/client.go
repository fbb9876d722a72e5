package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/poi-discovery-service/internal/domain"
	"github.com/couchcryptid/poi-discovery-service/internal/observability"
)

// DefaultURL is the public Nominatim search endpoint.
const DefaultURL = "https://nominatim.openstreetmap.org/search"

const op = "nominatim.resolve"

// Client implements domain.Geocoder using the Nominatim search API.
// Every network call passes through the shared throttle.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	throttle   *Throttle
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim geocoding client. userAgent identifies this
// application to the upstream, which rejects anonymous clients.
func NewClient(baseURL, userAgent string, timeout time.Duration, throttle *Throttle, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		throttle: throttle,
		metrics:  metrics,
		logger:   logger,
	}
}

// Resolve geocodes free text. It returns nil, nil when the place is unknown.
func (c *Client) Resolve(ctx context.Context, query string) (*domain.GeocodeResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.Validation(op, "query must not be blank")
	}

	waited, err := c.throttle.Wait(ctx)
	c.metrics.GeocodeThrottleWait.Observe(waited.Seconds())
	if err != nil {
		return nil, domain.TransportFailure(op, err)
	}

	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}

	start := time.Now()
	result, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		c.logger.Warn("geocode failed", "query", query, "error", err)
	case result == nil:
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		c.logger.Debug("geocode found nothing", "query", query)
	default:
		c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
		c.logger.Debug("geocode resolved", "query", query, "lat", result.Point.Lat, "lon", result.Point.Lon)
	}
	return result, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (*domain.GeocodeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.TransportFailure(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, domain.Upstream(op, resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, domain.Upstream(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if len(places) == 0 {
		return nil, nil
	}

	// Only the first match is used.
	p := places[0]
	lat, errLat := strconv.ParseFloat(p.Lat, 64)
	lon, errLon := strconv.ParseFloat(p.Lon, 64)
	if err := errors.Join(errLat, errLon); err != nil {
		return nil, domain.Upstream(op, resp.StatusCode, fmt.Errorf("parse coordinates: %w", err))
	}
	point, err := domain.NewGeoPoint(lat, lon)
	if err != nil {
		return nil, domain.Upstream(op, resp.StatusCode, err)
	}
	return &domain.GeocodeResult{Point: point, DisplayName: p.DisplayName}, nil
}

// Nominatim API response types. Coordinates arrive as decimal strings.

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
