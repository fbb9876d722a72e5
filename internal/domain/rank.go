package domain

import "sort"

// Rank computes each candidate's distance from origin and returns the
// closest limit candidates in ascending order. Candidates without a point
// are dropped. Ties keep their input order. The input slice is not modified.
func Rank(origin GeoPoint, candidates []PoiCandidate, limit int) []PoiCandidate {
	limit = ClampLimit(limit)

	ranked := make([]PoiCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Point == nil || !c.Point.Valid() {
			continue
		}
		d := DistanceMeters(origin, *c.Point)
		c.DistanceM = &d
		ranked = append(ranked, c)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].DistanceM < *ranked[j].DistanceM
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Truncate keeps the first limit candidates in upstream order. Used when no
// origin is known and distances cannot be computed.
func Truncate(candidates []PoiCandidate, limit int) []PoiCandidate {
	limit = ClampLimit(limit)
	out := make([]PoiCandidate, 0, min(limit, len(candidates)))
	for _, c := range candidates {
		if len(out) == limit {
			break
		}
		out = append(out, c)
	}
	return out
}
