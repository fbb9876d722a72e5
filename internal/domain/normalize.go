package domain

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/paulmach/orb"
)

// NormalizeElement maps an Overpass element to a candidate. fallbackName is
// used when the element has no name, brand, or operator tag.
func NormalizeElement(r RawPoiRecord, fallbackName string) PoiCandidate {
	tags := r.Tags()
	point := elementPoint(r)

	c := PoiCandidate{
		Name:    firstNonEmpty(tags["name"], tags["brand"], tags["operator"], fallbackName),
		Address: elementAddress(tags),
		Point:   point,
		Phone:   firstNonEmpty(tags["phone"], tags["contact:phone"]),
		Hours:   tags["opening_hours"],
		Source:  r.Source,
	}

	switch strings.ToLower(tags["drive_through"]) {
	case "yes":
		c.DriveThrough = boolPtr(true)
	case "no":
		c.DriveThrough = boolPtr(false)
	}

	elemType := r.String("type")
	elemID := r.String("id")
	if elemType != "" && elemID != "" {
		c.RawRef = elemType + "/" + elemID
	}

	var placeURL string
	if c.RawRef != "" {
		placeURL = "https://www.openstreetmap.org/" + c.RawRef
	}
	c.MapURL = chooseMapURL(placeURL, point, osmPointURL, "")
	return c
}

// NormalizeListing maps a brand-search local result to a candidate.
func NormalizeListing(r RawPoiRecord) PoiCandidate {
	gps := r.Object("gps_coordinates")
	var point *GeoPoint
	lat, okLat := gps.Float("latitude")
	lon, okLon := gps.Float("longitude")
	if okLat && okLon {
		if p, err := NewGeoPoint(lat, lon); err == nil {
			point = &p
		}
	}

	c := PoiCandidate{
		Name:    r.String("title"),
		Address: Address{Freeform: r.String("address")},
		Point:   point,
		Phone:   r.String("phone"),
		Hours:   firstNonEmpty(r.String("hours"), r.Object("operating_hours").String("hours")),
		Source:  r.Source,
		RawRef:  firstNonEmpty(r.String("place_id"), r.String("data_id")),
	}
	if rating, ok := r.Float("rating"); ok && isFinite(rating) {
		c.Rating = &rating
	}
	if n, ok := reviewCount(r); ok {
		c.Reviews = &n
	}
	if drive, ok := r.Object("service_options").Bool("drive_through"); ok {
		c.DriveThrough = boolPtr(drive)
	}

	var placeURL string
	if id := r.String("place_id"); id != "" {
		placeURL = "https://www.google.com/maps/place/?q=place_id:" + url.QueryEscape(id)
	}
	c.MapURL = chooseMapURL(placeURL, point, googlePointURL, r.Object("links").String("directions"))
	return c
}

// maxReviews caps implausible review counts so the conversion stays in range.
const maxReviews = math.MaxInt32

// reviewCount reads a non-negative, finite review count.
func reviewCount(r RawPoiRecord) (int, bool) {
	reviews, ok := r.Float("reviews")
	if !ok || !isFinite(reviews) || reviews < 0 {
		return 0, false
	}
	if reviews > maxReviews {
		return maxReviews, true
	}
	return int(reviews), true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// chooseMapURL applies the link preference: upstream place identifier,
// then coordinates, then a bare directions link, then nothing.
func chooseMapURL(placeURL string, point *GeoPoint, pointURL func(GeoPoint) string, directions string) string {
	switch {
	case placeURL != "":
		return placeURL
	case point != nil:
		return pointURL(*point)
	default:
		return directions
	}
}

func osmPointURL(p GeoPoint) string {
	return fmt.Sprintf("https://www.openstreetmap.org/?mlat=%.6f&mlon=%.6f#map=18/%.6f/%.6f", p.Lat, p.Lon, p.Lat, p.Lon)
}

func googlePointURL(p GeoPoint) string {
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%.6f,%.6f", p.Lat, p.Lon)
}

// elementPoint resolves coordinates in order: direct lat/lon, "center" for
// ways and relations, then the centre of "bounds".
func elementPoint(r RawPoiRecord) *GeoPoint {
	if p, ok := latLon(r, "lat", "lon"); ok {
		return &p
	}
	if p, ok := latLon(r.Object("center"), "lat", "lon"); ok {
		return &p
	}

	b := r.Object("bounds")
	minLat, ok1 := b.Float("minlat")
	minLon, ok2 := b.Float("minlon")
	maxLat, ok3 := b.Float("maxlat")
	maxLon, ok4 := b.Float("maxlon")
	if !(ok1 && ok2 && ok3 && ok4) {
		return nil
	}
	bound := orb.Bound{Min: orb.Point{minLon, minLat}, Max: orb.Point{maxLon, maxLat}}
	center := bound.Center()
	p, err := NewGeoPoint(center.Lat(), center.Lon())
	if err != nil {
		return nil
	}
	return &p
}

func latLon(r RawPoiRecord, latKey, lonKey string) (GeoPoint, bool) {
	lat, okLat := r.Float(latKey)
	lon, okLon := r.Float(lonKey)
	if !okLat || !okLon {
		return GeoPoint{}, false
	}
	p, err := NewGeoPoint(lat, lon)
	return p, err == nil
}

func elementAddress(tags map[string]string) Address {
	street := strings.TrimSpace(tags["addr:housenumber"] + " " + tags["addr:street"])
	a := Address{
		Street:   street,
		City:     tags["addr:city"],
		State:    tags["addr:state"],
		Postcode: tags["addr:postcode"],
	}
	var parts []string
	for _, p := range []string{a.Street, a.City, strings.TrimSpace(a.State + " " + a.Postcode)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	a.Freeform = firstNonEmpty(tags["addr:full"], strings.Join(parts, ", "))
	return a
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func boolPtr(b bool) *bool { return &b }
