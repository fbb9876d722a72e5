package domain

import "context"

// GeocodeResult is the first match returned by a geocoding provider.
type GeocodeResult struct {
	Point       GeoPoint `json:"point"`
	DisplayName string   `json:"display_name"`
}

// Geocoder resolves free-text place names to coordinates.
type Geocoder interface {
	// Resolve returns the best match for query, or nil when the place is not found.
	Resolve(ctx context.Context, query string) (*GeocodeResult, error)
}
