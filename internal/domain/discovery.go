package domain

import (
	"math"
	"strings"
)

// Mode selects how a discovery request is served.
type Mode string

const (
	// ModeTextQuery geocodes free text and runs a brand search.
	ModeTextQuery Mode = "text_query"
	// ModeCoordinate runs a tag query around a caller-supplied point.
	ModeCoordinate Mode = "coordinate"
)

// Result size bounds.
const (
	MinLimit = 1
	MaxLimit = 25

	maxQueryLength = 200
)

// DiscoveryRequest carries either free text or a coordinate pair.
type DiscoveryRequest struct {
	Query   string   `json:"query,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
	RadiusM *float64 `json:"radius_m,omitempty"`
	Limit   *int     `json:"limit,omitempty"`
}

// Mode validates the request shape and returns the mode it selects.
func (r DiscoveryRequest) Mode() (Mode, error) {
	query := strings.TrimSpace(r.Query)
	hasCoords := r.Lat != nil || r.Lon != nil

	switch {
	case query != "" && hasCoords:
		return "", Validation("request", "provide either query or lat/lon, not both")
	case query != "":
		if len(query) > maxQueryLength {
			return "", Validation("request", "query must be at most %d characters", maxQueryLength)
		}
		return ModeTextQuery, nil
	case r.Lat != nil && r.Lon != nil:
		if _, err := NewGeoPoint(*r.Lat, *r.Lon); err != nil {
			return "", err
		}
		return ModeCoordinate, nil
	case hasCoords:
		return "", Validation("request", "lat and lon must be provided together")
	case r.Query != "":
		return "", Validation("request", "query must not be blank")
	default:
		return "", Validation("request", "query or lat/lon is required")
	}
}

// Origin returns the request coordinate. Only meaningful in ModeCoordinate.
func (r DiscoveryRequest) Origin() GeoPoint {
	if r.Lat == nil || r.Lon == nil {
		return GeoPoint{}
	}
	return GeoPoint{Lat: *r.Lat, Lon: *r.Lon}
}

// ResolveLimit applies the default and clamps the requested size into [MinLimit, MaxLimit].
func (r DiscoveryRequest) ResolveLimit(def int) int {
	if r.Limit == nil {
		return ClampLimit(def)
	}
	return ClampLimit(*r.Limit)
}

// ResolveRadius applies the default and caps the radius at maxRadius.
func (r DiscoveryRequest) ResolveRadius(def, maxRadius float64) (float64, error) {
	radius := def
	if r.RadiusM != nil {
		radius = *r.RadiusM
	}
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius <= 0 {
		return 0, Validation("request", "radius_m must be a positive number of metres")
	}
	if maxRadius > 0 && radius > maxRadius {
		radius = maxRadius
	}
	return radius, nil
}

// ClampLimit bounds n into [MinLimit, MaxLimit].
func ClampLimit(n int) int {
	if n < MinLimit {
		return MinLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// Address holds structured parts when the upstream provides them and always
// a freeform rendering.
type Address struct {
	Freeform string `json:"freeform,omitempty"`
	Street   string `json:"street,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Postcode string `json:"postcode,omitempty"`
}

// PoiCandidate is a normalized record. DistanceM is set only by ranking.
type PoiCandidate struct {
	Name         string    `json:"name"`
	Address      Address   `json:"address"`
	Point        *GeoPoint `json:"point,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Rating       *float64  `json:"rating,omitempty"`
	Reviews      *int      `json:"reviews,omitempty"`
	Hours        string    `json:"hours,omitempty"`
	DriveThrough *bool     `json:"drive_through,omitempty"`
	MapURL       string    `json:"map_url,omitempty"`
	DistanceM    *float64  `json:"distance_m,omitempty"`
	Source       string    `json:"source"`
	RawRef       string    `json:"raw_ref,omitempty"`
}

// DiscoveryResult is the terminal envelope returned to callers.
type DiscoveryResult struct {
	Count          int            `json:"count"`
	Items          []PoiCandidate `json:"items"`
	RewrittenQuery string         `json:"rewritten_query"`
	Mode           Mode           `json:"mode"`
	Origin         *GeoPoint      `json:"origin,omitempty"`
	OriginName     string         `json:"origin_name,omitempty"`
	Attribution    string         `json:"attribution"`
}

// NewDiscoveryResult builds an envelope whose count always matches its items.
func NewDiscoveryResult(mode Mode, rewritten string, items []PoiCandidate) DiscoveryResult {
	if items == nil {
		items = []PoiCandidate{}
	}
	return DiscoveryResult{
		Count:          len(items),
		Items:          items,
		RewrittenQuery: rewritten,
		Mode:           mode,
	}
}

// TagFilter is a key=value category constraint plus an optional
// case-insensitive brand pattern matched against brand/operator/name tags.
type TagFilter struct {
	Key          string
	Value        string
	BrandPattern string
	MaxResults   int
}

// ParseTagFilter parses "key=value".
func ParseTagFilter(s string) (TagFilter, error) {
	key, value, ok := strings.Cut(strings.TrimSpace(s), "=")
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if !ok || key == "" || value == "" {
		return TagFilter{}, Validation("tag_filter", "tag filter %q must have the form key=value", s)
	}
	return TagFilter{Key: key, Value: value}, nil
}
