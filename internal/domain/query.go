package domain

import (
	"fmt"
	"strings"
)

// RewriteQuery injects the brand and category into the caller's text:
// "<brand> <category> near <text>". The terms are added even when the text
// already names them so a generic request never returns a competitor.
func RewriteQuery(brand, category, text string) string {
	text = strings.Join(strings.Fields(text), " ")
	subject := strings.TrimSpace(strings.Join(strings.Fields(brand+" "+category), " "))
	if subject == "" {
		return text
	}
	return fmt.Sprintf("%s near %s", subject, text)
}

// DescribeCoordinateQuery renders the coordinate-mode query for the result envelope.
func DescribeCoordinateQuery(brand, category string, origin GeoPoint, radiusM float64) string {
	subject := strings.TrimSpace(strings.Join(strings.Fields(brand+" "+category), " "))
	return fmt.Sprintf("%s within %.0fm of %.6f,%.6f", subject, radiusM, origin.Lat, origin.Lon)
}
