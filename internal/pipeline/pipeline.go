package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/poi-discovery-service/internal/domain"
	"github.com/couchcryptid/poi-discovery-service/internal/observability"
)

// Attribution strings returned with every result, per data source licence.
const (
	AttributionOverpass = "Map data © OpenStreetMap contributors (ODbL), via the Overpass API"
	AttributionListings = "Listings from Google Maps via SerpApi; geocoding © OpenStreetMap contributors (Nominatim)"
)

// POISource runs tag-filtered radius queries against the POI database.
type POISource interface {
	Query(ctx context.Context, filter domain.TagFilter, origin domain.GeoPoint, radiusM float64) ([]domain.RawPoiRecord, error)
}

// ListingSearcher runs free-text brand searches, optionally biased toward a point.
type ListingSearcher interface {
	Configured() bool
	Search(ctx context.Context, query string, near *domain.GeoPoint) ([]domain.RawPoiRecord, error)
}

// EventPublisher receives a summary of every finished discovery. Implementations
// must not block the caller.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.DiscoveryEvent)
}

// Settings holds the brand, category, and size policy applied to every request.
type Settings struct {
	BrandName      string
	CategoryName   string
	Rule           domain.BrandRule
	Filter         domain.TagFilter
	DefaultRadiusM float64
	MaxRadiusM     float64
	DefaultLimit   int
}

// Pipeline orchestrates geocode, search, brand filter, and distance ranking.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	geocoder  domain.Geocoder
	pois      POISource
	listings  ListingSearcher
	publisher EventPublisher
	matcher   domain.BrandMatcher
	settings  Settings
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// Option configures optional Pipeline collaborators.
type Option func(*Pipeline)

// WithPublisher emits a discovery event after every request.
func WithPublisher(pub EventPublisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// New creates a Pipeline with the given upstreams and observability.
func New(geocoder domain.Geocoder, pois POISource, listings ListingSearcher, settings Settings, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		geocoder: geocoder,
		pois:     pois,
		listings: listings,
		matcher:  domain.NewBrandMatcher(settings.Rule),
		settings: settings,
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil when both upstream paths are wired.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.geocoder == nil {
		return errors.New("geocoder is not configured")
	}
	if p.pois == nil {
		return errors.New("POI endpoint pool is not configured")
	}
	if lister, ok := p.pois.(interface{ Endpoints() []string }); ok && len(lister.Endpoints()) == 0 {
		return errors.New("POI endpoint pool has no endpoints")
	}
	return nil
}

// Discover serves one request in a single pass. Failures propagate; an empty
// result is a success with count 0.
func (p *Pipeline) Discover(ctx context.Context, req domain.DiscoveryRequest) (domain.DiscoveryResult, error) {
	start := time.Now()

	mode, err := req.Mode()
	var result domain.DiscoveryResult
	if err == nil {
		switch mode {
		case domain.ModeTextQuery:
			result, err = p.discoverText(ctx, req)
		case domain.ModeCoordinate:
			result, err = p.discoverCoordinate(ctx, req)
		}
	}

	p.observe(ctx, mode, req, result, err, time.Since(start))
	if err != nil {
		return domain.DiscoveryResult{}, err
	}
	return result, nil
}

func (p *Pipeline) discoverText(ctx context.Context, req domain.DiscoveryRequest) (domain.DiscoveryResult, error) {
	if p.listings == nil || !p.listings.Configured() {
		return domain.DiscoveryResult{}, domain.Configuration("discover", "brand search is not configured: set SERPAPI_KEY")
	}
	limit := req.ResolveLimit(p.settings.DefaultLimit)
	rewritten := domain.RewriteQuery(p.settings.BrandName, p.settings.CategoryName, req.Query)

	var origin *domain.GeocodeResult
	if p.geocoder != nil {
		var err error
		origin, err = p.geocoder.Resolve(ctx, req.Query)
		if err != nil {
			return domain.DiscoveryResult{}, err
		}
	}
	if origin == nil {
		p.logger.Info("location not geocoded, results will not be distance ranked", "query", req.Query)
	}

	var near *domain.GeoPoint
	if origin != nil {
		near = &origin.Point
	}
	records, err := p.listings.Search(ctx, rewritten, near)
	if err != nil {
		return domain.DiscoveryResult{}, err
	}

	candidates := make([]domain.PoiCandidate, 0, len(records))
	for _, r := range records {
		if !p.matcher.Matches(domain.MatchFieldsFromListing(r)) {
			continue
		}
		candidates = append(candidates, domain.NormalizeListing(r))
	}
	p.logger.Debug("brand filter applied", "listings", len(records), "matched", len(candidates))

	var items []domain.PoiCandidate
	if origin != nil {
		items = domain.Rank(origin.Point, candidates, limit)
	} else {
		items = domain.Truncate(candidates, limit)
	}

	result := domain.NewDiscoveryResult(domain.ModeTextQuery, rewritten, items)
	result.Attribution = AttributionListings
	if origin != nil {
		result.Origin = &origin.Point
		result.OriginName = origin.DisplayName
	}
	return result, nil
}

func (p *Pipeline) discoverCoordinate(ctx context.Context, req domain.DiscoveryRequest) (domain.DiscoveryResult, error) {
	if p.pois == nil {
		return domain.DiscoveryResult{}, domain.Configuration("discover", "no POI endpoints configured")
	}
	radius, err := req.ResolveRadius(p.settings.DefaultRadiusM, p.settings.MaxRadiusM)
	if err != nil {
		return domain.DiscoveryResult{}, err
	}
	limit := req.ResolveLimit(p.settings.DefaultLimit)
	origin := req.Origin()

	records, err := p.pois.Query(ctx, p.settings.Filter, origin, radius)
	if err != nil {
		return domain.DiscoveryResult{}, err
	}

	candidates := make([]domain.PoiCandidate, 0, len(records))
	for _, r := range records {
		candidates = append(candidates, domain.NormalizeElement(r, p.settings.CategoryName))
	}

	rewritten := domain.DescribeCoordinateQuery(p.settings.BrandName, p.settings.CategoryName, origin, radius)
	result := domain.NewDiscoveryResult(domain.ModeCoordinate, rewritten, domain.Rank(origin, candidates, limit))
	result.Attribution = AttributionOverpass
	result.Origin = &origin
	return result, nil
}

func (p *Pipeline) observe(ctx context.Context, mode domain.Mode, req domain.DiscoveryRequest, result domain.DiscoveryResult, err error, elapsed time.Duration) {
	modeLabel := string(mode)
	if modeLabel == "" {
		modeLabel = "invalid"
	}
	outcome := domain.Outcome(result, err)

	p.metrics.DiscoveryRequests.WithLabelValues(modeLabel, outcome).Inc()
	p.metrics.DiscoveryDuration.WithLabelValues(modeLabel).Observe(elapsed.Seconds())

	if err != nil {
		level := slog.LevelError
		if errors.Is(err, domain.ErrValidation) {
			level = slog.LevelInfo
		}
		p.logger.Log(ctx, level, "discovery failed",
			"mode", modeLabel, "kind", domain.KindOf(err), "error", err, "duration", elapsed)
	} else {
		p.metrics.DiscoveryResultSize.Observe(float64(result.Count))
		p.logger.Info("discovery completed",
			"mode", modeLabel, "count", result.Count, "rewritten_query", result.RewrittenQuery, "duration", elapsed)
	}

	if p.publisher != nil {
		p.publisher.Publish(ctx, domain.NewDiscoveryEvent(mode, req, result, err, elapsed))
	}
}
