package render

import (
	"os"
	"path/filepath"
	"testing"

	"cdrlens/domain/analysis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderMapToString(t *testing.T, agg *analysis.Aggregates) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cdr_map.html")
	require.NoError(t, renderMap(nil, agg, path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(raw)
}

func TestMapCentersOnHottestLocation(t *testing.T) {
	agg := &analysis.Aggregates{
		Geo: []analysis.GeoPoint{
			{Lat: 5.6, Lon: -0.18, Azimuth: 90, Count: 10},
			{Lat: 9.4, Lon: -0.85, Azimuth: 180, Count: 1},
		},
		Hottest: &analysis.GeoPoint{Lat: 5.6, Lon: -0.18, Count: 10},
	}

	html := renderMapToString(t, agg)
	assert.Contains(t, html, `"center_lat":5.6,"center_lon":-0.18`,
		"map must open on the most frequent location, not the coordinate mean")
	assert.NotContains(t, html, `"center_lat":7.5`)
	assert.Contains(t, html, `"radius":400`)
}

func TestMapFallsBackToMeanCenterWithoutHotspot(t *testing.T) {
	agg := &analysis.Aggregates{
		Geo: []analysis.GeoPoint{
			{Lat: 5.0, Lon: -1.0, Count: 1},
			{Lat: 7.0, Lon: 1.0, Count: 1},
		},
	}

	html := renderMapToString(t, agg)
	assert.Contains(t, html, `"center_lat":6,"center_lon":0`)
	assert.NotContains(t, html, `"radius":400`)
}

func TestMapDrawsAzimuthSegments(t *testing.T) {
	agg := &analysis.Aggregates{
		Geo:     []analysis.GeoPoint{{Lat: 5.6, Lon: -0.18, Azimuth: 0, Count: 1}},
		Hottest: &analysis.GeoPoint{Lat: 5.6, Lon: -0.18, Count: 1},
	}

	html := renderMapToString(t, agg)
	// azimuth 0 projects the 600m segment due north: latitude grows by
	// 0.6/111.32, longitude is unchanged
	assert.Contains(t, html, `"end_lat":5.605389`)
	assert.Contains(t, html, `"end_lon":-0.18`)
}
