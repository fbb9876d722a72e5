package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/poi-discovery-service/internal/adapter/overpass"
	"github.com/couchcryptid/poi-discovery-service/internal/domain"
	"github.com/couchcryptid/poi-discovery-service/internal/observability"
	"github.com/couchcryptid/poi-discovery-service/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockGeocoder struct {
	result *domain.GeocodeResult
	err    error
	calls  int
}

func (m *mockGeocoder) Resolve(_ context.Context, _ string) (*domain.GeocodeResult, error) {
	m.calls++
	return m.result, m.err
}

type mockPOISource struct {
	records   []domain.RawPoiRecord
	err       error
	endpoints []string

	filter domain.TagFilter
	origin domain.GeoPoint
	radius float64
}

func (m *mockPOISource) Query(_ context.Context, filter domain.TagFilter, origin domain.GeoPoint, radiusM float64) ([]domain.RawPoiRecord, error) {
	m.filter, m.origin, m.radius = filter, origin, radiusM
	return m.records, m.err
}

func (m *mockPOISource) Endpoints() []string { return m.endpoints }

type mockSearcher struct {
	records    []domain.RawPoiRecord
	err        error
	configured bool

	query string
	near  *domain.GeoPoint
	calls int
}

func (m *mockSearcher) Configured() bool { return m.configured }

func (m *mockSearcher) Search(_ context.Context, query string, near *domain.GeoPoint) ([]domain.RawPoiRecord, error) {
	m.calls++
	m.query, m.near = query, near
	return m.records, m.err
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.DiscoveryEvent
}

func (m *mockPublisher) Publish(_ context.Context, event domain.DiscoveryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func testSettings() pipeline.Settings {
	return pipeline.Settings{
		BrandName:    "Bank of America",
		CategoryName: "ATM",
		Rule: domain.BrandRule{
			Aliases:          []string{"bank of america", "bofa", "bankofamerica"},
			CategoryKeywords: []string{"atm"},
			ContextKeywords:  []string{"drive", "cash"},
			UseContext:       true,
		},
		Filter:         domain.TagFilter{Key: "amenity", Value: "atm", BrandPattern: "Bank of America|BofA", MaxResults: 100},
		DefaultRadiusM: 3000,
		MaxRadiusM:     10000,
		DefaultLimit:   10,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(g domain.Geocoder, pois pipeline.POISource, s pipeline.ListingSearcher, opts ...pipeline.Option) *pipeline.Pipeline {
	return pipeline.New(g, pois, s, testSettings(), discardLogger(), observability.NewMetricsForTesting(), opts...)
}

func ptr[T any](v T) *T { return &v }

func itemNames(r domain.DiscoveryResult) []string {
	out := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, it.Name)
	}
	return out
}

// --- coordinate mode ---

func TestDiscover_Coordinate_EndToEndThroughPool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(overpassBody()))
	}))
	defer srv.Close()

	pool := overpass.NewPool([]string{srv.URL}, []time.Duration{0}, 5*time.Second,
		observability.NewMetricsForTesting(), discardLogger())
	p := newPipeline(&mockGeocoder{}, pool, &mockSearcher{})

	result, err := p.Discover(context.Background(), domain.DiscoveryRequest{
		Lat: ptr(37.7749), Lon: ptr(-122.4194), RadiusM: ptr(3000.0), Limit: ptr(5),
	})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Count)
	require.Len(t, result.Items, 5)
	expected := []string{"ATM One", "ATM Two", "ATM Three", "ATM Five", "ATM Eight"}
	if diff := cmp.Diff(expected, itemNames(result)); diff != "" {
		t.Errorf("ranked names mismatch (-want +got):\n%s", diff)
	}
	for i := 1; i < len(result.Items); i++ {
		assert.LessOrEqual(t, *result.Items[i-1].DistanceM, *result.Items[i].DistanceM)
	}
	assert.Equal(t, 111.0, *result.Items[0].DistanceM)
	assert.Equal(t, domain.ModeCoordinate, result.Mode)
	assert.Equal(t, "Bank of America ATM within 3000m of 37.774900,-122.419400", result.RewrittenQuery)
	assert.Equal(t, pipeline.AttributionOverpass, result.Attribution)
}

func TestDiscover_Coordinate_DistancesMatchHaversine(t *testing.T) {
	pois := &mockPOISource{records: overpassRecords(t)}
	p := newPipeline(&mockGeocoder{}, pois, &mockSearcher{})

	result, err := p.Discover(context.Background(), domain.DiscoveryRequest{
		Lat: ptr(sanFrancisco.Lat), Lon: ptr(sanFrancisco.Lon), Limit: ptr(25),
	})
	require.NoError(t, err)
	require.Len(t, result.Items, len(atmOffsets))

	want := map[string]float64{}
	for _, a := range atmOffsets {
		want[a.name] = a.expect
	}
	for _, item := range result.Items {
		assert.InDelta(t, want[item.Name], *item.DistanceM, 1, item.Name)
	}
}

func TestDiscover_Coordinate_PassesFilterAndRadius(t *testing.T) {
	pois := &mockPOISource{}
	p := newPipeline(&mockGeocoder{}, pois, &mockSearcher{})

	result, err := p.Discover(context.Background(), domain.DiscoveryRequest{
		Lat: ptr(40.0), Lon: ptr(-74.0), RadiusM: ptr(50000.0),
	})
	require.NoError(t, err)

	assert.Equal(t, testSettings().Filter, pois.filter)
	assert.Equal(t, domain.GeoPoint{Lat: 40, Lon: -74}, pois.origin)
	assert.Equal(t, 10000.0, pois.radius, "radius is capped at the maximum")
	assert.Equal(t, 0, result.Count)
	assert.NotNil(t, result.Items)
}

func TestDiscover_Coordinate_DefaultRadius(t *testing.T) {
	pois := &mockPOISource{}
	p := newPipeline(&mockGeocoder{}, pois, &mockSearcher{})

	_, err := p.Discover(context.Background(), domain.DiscoveryRequest{Lat: ptr(0.0), Lon: ptr(0.0)})
	require.NoError(t, err)
	assert.Equal(t, 3000.0, pois.radius)
}

func TestDiscover_Coordinate_UpstreamFailurePropagates(t *testing.T) {
	upstream := domain.Upstream("overpass.query", 504, errors.New("gateway timeout"))
	p := newPipeline(&mockGeocoder{}, &mockPOISource{err: upstream}, &mockSearcher{})

	result, err := p.Discover(context.Background(), domain.DiscoveryRequest{Lat: ptr(1.0), Lon: ptr(1.0)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Zero(t, result.Count)
	assert.Nil(t, result.Items)
}

func TestDiscover_Coordinate_InvalidRadius(t *testing.T) {
	p := newPipeline(&mockGeocoder{}, &mockPOISource{}, &mockSearcher{})

	_, err := p.Discover(context.Background(), domain.DiscoveryRequest{Lat: ptr(1.0), Lon: ptr(1.0), RadiusM: ptr(-1.0)})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// --- text mode ---

func TestDiscover_Text_GeocodedAndRanked(t *testing.T) {
	geo := &mockGeocoder{result: &domain.GeocodeResult{
		Point:       domain.GeoPoint{Lat: 40.758, Lon: -73.9855},
		DisplayName: "Times Square, New York",
	}}
	searcher := &mockSearcher{configured: true, records: []domain.RawPoiRecord{
		listing(t, `{"title": "Bank of America ATM", "type": "ATM", "gps_coordinates": {"latitude": 40.768, "longitude": -73.9855}}`),
		listing(t, `{"title": "Chase ATM", "type": "ATM", "gps_coordinates": {"latitude": 40.7581, "longitude": -73.9855}}`),
		listing(t, `{"title": "Bank of America Financial Center", "type": "Bank", "description": "Drive-up service", "gps_coordinates": {"latitude": 40.759, "longitude": -73.9855}}`),
		listing(t, `{"title": "Bank of America", "type": "Bank", "gps_coordinates": {"latitude": 40.7585, "longitude": -73.9855}}`),
		listing(t, `{"title": "BofA ATM (no coordinates)", "type": "ATM"}`),
	}}
	p := newPipeline(geo, &mockPOISource{}, searcher)

	result, err := p.Discover(context.Background(), domain.DiscoveryRequest{Query: "times square new york"})
	require.NoError(t, err)

	assert.Equal(t, "Bank of America ATM near times square new york", searcher.query)
	require.NotNil(t, searcher.near)
	assert.Equal(t, geo.result.Point, *searcher.near)

	assert.Equal(t, []string{"Bank of America Financial Center", "Bank of America ATM"}, itemNames(result))
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, domain.ModeTextQuery, result.Mode)
	assert.Equal(t, "Times Square, New York", result.OriginName)
	assert.Equal(t, pipeline.AttributionListings, result.Attribution)
}

func TestDiscover_Text_GeocoderAbsentStillSearches(t *testing.T) {
	geo := &mockGeocoder{}
	searcher := &mockSearcher{configured: true, records: []domain.RawPoiRecord{
		listing(t, `{"title": "Bank of America ATM", "type": "ATM"}`),
		listing(t, `{"title": "Bank of America ATM Lobby", "type": "ATM", "gps_coordinates": {"latitude": 40.7, "longitude": -74}}`),
	}}
	p := newPipeline(geo, &mockPOISource{}, searcher)

	result, err := p.Discover(context.Background(), domain.DiscoveryRequest{Query: "times square new york"})
	require.NoError(t, err)
	assert.NotErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, 1, geo.calls)
	assert.Equal(t, 1, searcher.calls)
	assert.Nil(t, searcher.near)
	assert.Equal(t, []string{"Bank of America ATM", "Bank of America ATM Lobby"}, itemNames(result))
	for _, item := range result.Items {
		assert.Nil(t, item.DistanceM)
	}
	assert.Nil(t, result.Origin)
}

func TestDiscover_Text_EmptySearchIsNotAnError(t *testing.T) {
	p := newPipeline(&mockGeocoder{}, &mockPOISource{}, &mockSearcher{configured: true})

	result, err := p.Discover(context.Background(), domain.DiscoveryRequest{Query: "middle of nowhere"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)
	assert.Empty(t, result.Items)
}

func TestDiscover_Text_TruncatesToLimit(t *testing.T) {
	var records []domain.RawPoiRecord
	for range 30 {
		records = append(records, listing(t, `{"title": "Bank of America ATM", "type": "ATM"}`))
	}
	p := newPipeline(&mockGeocoder{}, &mockPOISource{}, &mockSearcher{configured: true, records: records})

	result, err := p.Discover(context.Background(), domain.DiscoveryRequest{Query: "boston", Limit: ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count)
}

func TestDiscover_Text_NotConfigured(t *testing.T) {
	geo := &mockGeocoder{}
	p := newPipeline(geo, &mockPOISource{}, &mockSearcher{configured: false})

	_, err := p.Discover(context.Background(), domain.DiscoveryRequest{Query: "boston"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Zero(t, geo.calls, "configuration is checked before any upstream call")
}

func TestDiscover_Text_GeocoderErrorPropagates(t *testing.T) {
	geo := &mockGeocoder{err: domain.Timeout("nominatim.resolve", context.DeadlineExceeded)}
	searcher := &mockSearcher{configured: true}
	p := newPipeline(geo, &mockPOISource{}, searcher)

	_, err := p.Discover(context.Background(), domain.DiscoveryRequest{Query: "boston"})
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Zero(t, searcher.calls)
}

// --- validation and observation ---

func TestDiscover_ValidationErrors(t *testing.T) {
	p := newPipeline(&mockGeocoder{}, &mockPOISource{}, &mockSearcher{configured: true})

	for _, req := range []domain.DiscoveryRequest{
		{},
		{Query: "  "},
		{Lat: ptr(1.0)},
		{Lat: ptr(100.0), Lon: ptr(0.0)},
		{Query: "boston", Lat: ptr(1.0), Lon: ptr(1.0)},
	} {
		_, err := p.Discover(context.Background(), req)
		assert.ErrorIs(t, err, domain.ErrValidation, "request %+v", req)
	}
}

func TestDiscover_PublishesEvents(t *testing.T) {
	pub := &mockPublisher{}
	pois := &mockPOISource{records: overpassRecords(t)}
	p := newPipeline(&mockGeocoder{}, pois, &mockSearcher{}, pipeline.WithPublisher(pub))

	_, err := p.Discover(context.Background(), domain.DiscoveryRequest{Lat: ptr(sanFrancisco.Lat), Lon: ptr(sanFrancisco.Lon), Limit: ptr(2)})
	require.NoError(t, err)
	_, err = p.Discover(context.Background(), domain.DiscoveryRequest{})
	require.Error(t, err)

	require.Len(t, pub.events, 2)
	assert.Equal(t, domain.OutcomeSuccess, pub.events[0].Outcome)
	assert.Equal(t, 2, pub.events[0].Count)
	assert.Equal(t, domain.ModeCoordinate, pub.events[0].Mode)
	assert.Equal(t, domain.OutcomeError, pub.events[1].Outcome)
	assert.Equal(t, domain.KindValidation, pub.events[1].ErrorKind)
}

func TestCheckReadiness(t *testing.T) {
	ready := newPipeline(&mockGeocoder{}, &mockPOISource{endpoints: []string{"http://a"}}, &mockSearcher{})
	require.NoError(t, ready.CheckReadiness(context.Background()))

	noEndpoints := newPipeline(&mockGeocoder{}, &mockPOISource{}, &mockSearcher{})
	assert.Error(t, noEndpoints.CheckReadiness(context.Background()))

	noGeocoder := newPipeline(nil, &mockPOISource{endpoints: []string{"http://a"}}, &mockSearcher{})
	assert.Error(t, noGeocoder.CheckReadiness(context.Background()))
}
