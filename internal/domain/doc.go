// Package domain models brand-filtered point-of-interest discovery: the
// request and result envelopes, the heuristics that decide whether an upstream
// listing belongs to the target brand, and the distance ranking applied to
// every result set.
//
// # Upstream Sources
//
// Two kinds of upstream feed candidates into the pipeline:
//
//   - Tag-based geographic queries (Overpass API over OpenStreetMap). Elements
//     carry a "type" (node, way, relation), an "id", and either direct
//     "lat"/"lon" coordinates, a "center" object for aggregate shapes, or a
//     "bounds" box. Attributes live in a free-form "tags" mapping
//     (amenity=atm, brand=..., operator=..., addr:street=...).
//   - Brand-filtered map search (SerpApi Google Maps engine). Local results
//     carry "title", "address", "gps_coordinates", "rating", "reviews",
//     "type"/"types", "place_id" and a "links" object. Field presence varies by
//     listing.
//
// Both arrive as [RawPoiRecord] values. Accessors return explicit defaults for
// absent or mistyped fields, so a missing field never faults normalization.
//
// # Brand Matching
//
// A listing matches when its lower-cased title, description, type, category
// list and address contain one of the brand aliases and, when category
// keywords are configured, either a category keyword or (optionally) one of
// the context keywords. Context keywords ("drive", "cash") catch listings that
// name the category ambiguously, e.g. "Bank of America (Drive-thru)". Whether
// they help precision is not established; they are switchable via
// CONTEXT_KEYWORDS_ENABLED.
//
// # Distance
//
// Distances are great-circle (haversine) with a fixed Earth radius of
// 6,371,000 m, rounded to the nearest metre. Candidates without coordinates
// are never ranked.
package domain
