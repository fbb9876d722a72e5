package overpass

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
	"github.com/jonboulle/clockwork"
)

// DefaultEndpoints are public Overpass API instances in priority order.
var DefaultEndpoints = []string{
	"https://overpass-api.de/api/interpreter",
	"https://overpass.kumi.systems/api/interpreter",
	"https://overpass.private.coffee/api/interpreter",
}

// DefaultBackoff is the per-endpoint attempt schedule. Its length is the
// attempt count.
var DefaultBackoff = []time.Duration{0, 600 * time.Millisecond, 1200 * time.Millisecond}

const (
	op        = "overpass.query"
	userAgent = "poi-discovery-service/1.0"
)

// Pool queries interchangeable Overpass endpoints in order, retrying
// transient failures on the same endpoint before failing over.
type Pool struct {
	endpoints  []string
	backoff    []time.Duration
	timeout    time.Duration
	httpClient *http.Client
	clock      clockwork.Clock
	cooldown   time.Duration
	health     *EndpointHealth
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithClock sets the clock used for backoff delays and endpoint health.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pool) { p.clock = c }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pool) { p.httpClient = c }
}

// WithCooldown enables endpoint health ordering with the given window.
func WithCooldown(d time.Duration) Option {
	return func(p *Pool) { p.cooldown = d }
}

// NewPool creates an endpoint pool. An empty backoff means one attempt per endpoint.
func NewPool(endpoints []string, backoff []time.Duration, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Pool {
	if len(backoff) == 0 {
		backoff = []time.Duration{0}
	}
	p := &Pool{
		endpoints:  append([]string(nil), endpoints...),
		backoff:    append([]time.Duration(nil), backoff...),
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		clock:      clockwork.NewRealClock(),
		metrics:    metrics,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.health = NewEndpointHealth(p.cooldown, p.clock)
	return p
}

// Endpoints returns the configured endpoints in priority order.
func (p *Pool) Endpoints() []string {
	return append([]string(nil), p.endpoints...)
}

// Query runs a radius search. It fails only when every endpoint has failed,
// surfacing the last error observed.
func (p *Pool) Query(ctx context.Context, filter domain.TagFilter, origin domain.GeoPoint, radiusM float64) ([]domain.RawPoiRecord, error) {
	if len(p.endpoints) == 0 {
		return nil, domain.Configuration(op, "no Overpass endpoints configured")
	}

	body := url.Values{"data": {BuildQuery(filter, origin, radiusM, int(p.timeout.Seconds()))}}.Encode()

	start := p.clock.Now()
	defer func() {
		p.metrics.UpstreamDuration.WithLabelValues(domain.SourceOverpass).Observe(p.clock.Since(start).Seconds())
	}()

	f := &failover{endpoints: p.health.Order(p.endpoints), backoff: p.backoff}
	var lastErr error
	for {
		endpoint, delay, ok := f.current()
		if !ok {
			return nil, lastErr
		}

		if delay > 0 {
			select {
			case <-ctx.Done():
				return nil, domain.TransportFailure(op, ctx.Err())
			case <-p.clock.After(delay):
			}
		}

		records, err := p.attempt(ctx, endpoint, body)
		if err == nil {
			p.metrics.EndpointAttempts.WithLabelValues(endpoint, "success").Inc()
			p.health.MarkHealthy(endpoint)
			p.logger.Debug("overpass query succeeded", "endpoint", endpoint, "attempt", f.attempt+1, "elements", len(records))
			return records, nil
		}
		if ctx.Err() != nil {
			return nil, domain.TransportFailure(op, ctx.Err())
		}

		lastErr = err
		transient := isTransient(err)
		if transient {
			p.metrics.EndpointAttempts.WithLabelValues(endpoint, "transient").Inc()
		} else {
			p.metrics.EndpointAttempts.WithLabelValues(endpoint, "failure").Inc()
		}
		p.logger.Warn("overpass attempt failed",
			"endpoint", endpoint, "attempt", f.attempt+1, "status", domain.StatusOf(err), "transient", transient, "error", err)

		if f.record(err) {
			p.health.MarkFailed(endpoint)
		}
	}
}

func (p *Pool) attempt(ctx context.Context, endpoint, body string) ([]domain.RawPoiRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, domain.TransportFailure(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, domain.Upstream(op, resp.StatusCode,
			fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.Upstream(op, resp.StatusCode, fmt.Errorf("decode response from %s: %w", endpoint, err))
	}
	// Overpass reports server-side timeouts inside a 200 response.
	if strings.Contains(strings.ToLower(out.Remark), "timed out") {
		return nil, domain.Upstream(op, http.StatusGatewayTimeout, errors.New(out.Remark))
	}
	return domain.DecodeRecords(domain.SourceOverpass, out.Elements), nil
}

// isTransient reports whether a failed attempt may succeed on retry.
func isTransient(err error) bool {
	switch domain.StatusOf(err) {
	case http.StatusTooManyRequests, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// failover walks (endpoint, attempt) pairs. Transient failures advance the
// attempt on the same endpoint; anything else moves to the next endpoint.
type failover struct {
	endpoints []string
	backoff   []time.Duration
	ep        int
	attempt   int
}

func (f *failover) current() (endpoint string, delay time.Duration, ok bool) {
	if f.ep >= len(f.endpoints) {
		return "", 0, false
	}
	return f.endpoints[f.ep], f.backoff[f.attempt], true
}

// record advances past a failed attempt and reports whether the endpoint
// was abandoned.
func (f *failover) record(err error) bool {
	if isTransient(err) && f.attempt+1 < len(f.backoff) {
		f.attempt++
		return false
	}
	f.ep++
	f.attempt = 0
	return true
}

// Overpass API response types.

type response struct {
	Elements []json.RawMessage `json:"elements"`
	Remark   string            `json:"remark"`
}
