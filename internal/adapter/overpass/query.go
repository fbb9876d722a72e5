package overpass

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/poi-discovery-service/internal/domain"
)

// brandTags are the tags matched against a brand pattern. A hit on any of
// them admits the element.
var brandTags = []string{"brand", "operator", "name"}

// BuildQuery renders an Overpass QL query for elements carrying the filter's
// tag within radiusM metres of origin. Ways are returned with their centre so
// every element has a single coordinate. timeoutSec is the server-side budget.
func BuildQuery(filter domain.TagFilter, origin domain.GeoPoint, radiusM float64, timeoutSec int) string {
	if timeoutSec < 1 {
		timeoutSec = 1
	}
	around := fmt.Sprintf("(around:%.0f,%.6f,%.6f)", radiusM, origin.Lat, origin.Lon)
	category := fmt.Sprintf("[%s=%s]", quote(filter.Key), quote(filter.Value))

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", timeoutSec)
	for _, kind := range []string{"node", "way"} {
		if filter.BrandPattern == "" {
			fmt.Fprintf(&b, "  %s%s%s;\n", kind, category, around)
			continue
		}
		for _, tag := range brandTags {
			fmt.Fprintf(&b, "  %s%s[%s~%s,i]%s;\n", kind, category, quote(tag), quote(filter.BrandPattern), around)
		}
	}
	b.WriteString(");\nout center")
	if filter.MaxResults > 0 {
		fmt.Fprintf(&b, " %d", filter.MaxResults)
	}
	b.WriteString(";")
	return b.String()
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
