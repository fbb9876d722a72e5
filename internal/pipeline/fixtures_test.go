package pipeline_test

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/couchcryptid/poi-discovery-service/internal/domain"
	"github.com/stretchr/testify/require"
)

var sanFrancisco = domain.GeoPoint{Lat: 37.7749, Lon: -122.4194}

// atmOffsets places eight ATMs due north of sanFrancisco, deliberately out of distance order.
var atmOffsets = []struct {
	name   string
	dLat   float64
	expect float64 // metres, rounded
}{
	{"ATM Ten", 0.010, 1112},
	{"ATM Two", 0.002, 222},
	{"ATM Fifteen", 0.015, 1668},
	{"ATM One", 0.001, 111},
	{"ATM Twenty", 0.020, 2224},
	{"ATM Five", 0.005, 556},
	{"ATM Eight", 0.008, 890},
	{"ATM Three", 0.003, 334},
}

// overpassBody renders atmOffsets as an Overpass JSON response.
func overpassBody() string {
	elems := make([]string, 0, len(atmOffsets))
	for i, a := range atmOffsets {
		elems = append(elems, fmt.Sprintf(
			`{"type":"node","id":%d,"lat":%f,"lon":%f,"tags":{"amenity":"atm","brand":"Bank of America","name":%q}}`,
			i+1, sanFrancisco.Lat+a.dLat, sanFrancisco.Lon, a.name))
	}
	return `{"version":0.6,"elements":[` + strings.Join(elems, ",") + `]}`
}

func overpassRecords(t *testing.T) []domain.RawPoiRecord {
	t.Helper()
	var resp struct {
		Elements []json.RawMessage `json:"elements"`
	}
	require.NoError(t, json.Unmarshal([]byte(overpassBody()), &resp))
	return domain.DecodeRecords(domain.SourceOverpass, resp.Elements)
}

func listing(t *testing.T, raw string) domain.RawPoiRecord {
	t.Helper()
	var fields map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &fields))
	return domain.RawPoiRecord{Source: domain.SourceSerpAPI, Fields: fields}
}
