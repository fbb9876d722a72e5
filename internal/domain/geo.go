package domain

import (
	"math"
)

// EarthRadiusMeters is the fixed sphere radius used for great-circle distances.
const EarthRadiusMeters = 6_371_000.0

// GeoPoint is a WGS-84 latitude/longitude pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewGeoPoint validates and builds a GeoPoint.
func NewGeoPoint(lat, lon float64) (GeoPoint, error) {
	p := GeoPoint{Lat: lat, Lon: lon}
	if !p.Valid() {
		return GeoPoint{}, Validation("geo", "coordinate (%g, %g) out of range: lat must be within [-90, 90] and lon within [-180, 180]", lat, lon)
	}
	return p, nil
}

// Valid reports whether the point lies within latitude/longitude bounds.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Haversine returns the unrounded great-circle distance between a and b in metres.
func Haversine(a, b GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	// Guard against rounding pushing h slightly above 1 for antipodal points.
	h = math.Min(1, h)
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// DistanceMeters returns the great-circle distance rounded to the nearest metre.
func DistanceMeters(a, b GeoPoint) float64 {
	return math.Round(Haversine(a, b))
}
