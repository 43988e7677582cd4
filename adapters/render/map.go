package render

import (
	"encoding/json"
	"html/template"
	"math"
	"os"

	"cdrlens/domain/analysis"
	"cdrlens/domain/carrier"
	"cdrlens/domain/core"
)

// Cell tower coverage is drawn as a 600m segment along the antenna azimuth.
const azimuthSegmentKm = 0.6

// hotspotRadiusM is the highlight circle around the most frequent location.
const hotspotRadiusM = 400

type mapMarker struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Count int     `json:"count"`
}

type mapSegment struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	EndLat float64 `json:"end_lat"`
	EndLon float64 `json:"end_lon"`
}

type mapPeriodMarker struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Period  string  `json:"period"`
	Address string  `json:"address"`
	Count   int     `json:"count"`
	Color   string  `json:"color"`
}

type mapHotspot struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Radius int     `json:"radius"`
	Count  int     `json:"count"`
}

type mapPayload struct {
	CenterLat float64           `json:"center_lat"`
	CenterLon float64           `json:"center_lon"`
	Markers   []mapMarker       `json:"markers"`
	Segments  []mapSegment      `json:"segments"`
	Periods   []mapPeriodMarker `json:"periods"`
	Hotspot   *mapHotspot       `json:"hotspot"`
}

var periodColors = map[string]string{
	analysis.PeriodNight:     "darkblue",
	analysis.PeriodMorning:   "green",
	analysis.PeriodAfternoon: "orange",
	analysis.PeriodEvening:   "red",
}

func renderMap(_ *carrier.Profile, agg *analysis.Aggregates, path string) error {
	if len(agg.Geo) == 0 {
		return core.ErrEmptySeries
	}

	payload := mapPayload{}
	var sumLat, sumLon float64
	for _, pt := range agg.Geo {
		sumLat += pt.Lat
		sumLon += pt.Lon
		payload.Markers = append(payload.Markers, mapMarker{Lat: pt.Lat, Lon: pt.Lon, Count: pt.Count})
		endLat, endLon := azimuthEndpoint(pt.Lat, pt.Lon, pt.Azimuth)
		payload.Segments = append(payload.Segments, mapSegment{
			Lat: pt.Lat, Lon: pt.Lon, EndLat: endLat, EndLon: endLon,
		})
	}
	// The map opens on the most frequent location; the coordinate mean is
	// only a fallback when no single point dominates.
	payload.CenterLat = sumLat / float64(len(agg.Geo))
	payload.CenterLon = sumLon / float64(len(agg.Geo))

	if agg.Hottest != nil {
		payload.CenterLat = agg.Hottest.Lat
		payload.CenterLon = agg.Hottest.Lon
		payload.Hotspot = &mapHotspot{
			Lat:    agg.Hottest.Lat,
			Lon:    agg.Hottest.Lon,
			Radius: hotspotRadiusM,
			Count:  agg.Hottest.Count,
		}
	}
	for _, loc := range agg.PeriodLocs {
		payload.Periods = append(payload.Periods, mapPeriodMarker{
			Lat:     loc.Point.Lat,
			Lon:     loc.Point.Lon,
			Period:  loc.Period,
			Address: loc.Address,
			Count:   loc.Point.Count,
			Color:   periodColors[loc.Period],
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := mapTemplate.Execute(f, template.JS(data)); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// azimuthEndpoint projects a 600m segment from the tower along its azimuth.
// One degree of latitude is ~111.32km; longitude degrees shrink by cos(lat).
func azimuthEndpoint(lat, lon, azimuthDeg float64) (float64, float64) {
	az := azimuthDeg * math.Pi / 180
	dLat := (azimuthSegmentKm / 111.32) * math.Cos(az)
	dLon := (azimuthSegmentKm / (111.32 * math.Cos(lat*math.Pi/180))) * math.Sin(az)
	return lat + dLat, lon + dLon
}

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Call Location Map</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css"/>
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>html, body, #map { height: 100%; margin: 0; }</style>
</head>
<body>
<div id="map"></div>
<script>
var data = {{.}};
var map = L.map('map').setView([data.center_lat, data.center_lon], 12);
L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);

data.markers.forEach(function (m) {
  L.marker([m.lat, m.lon])
    .bindPopup('Lat: ' + m.lat.toFixed(5) + '<br>Lon: ' + m.lon.toFixed(5) + '<br>Records: ' + m.count)
    .addTo(map);
});

data.segments.forEach(function (s) {
  L.polyline([[s.lat, s.lon], [s.end_lat, s.end_lon]], {color: 'blue', weight: 2}).addTo(map);
});

if (data.hotspot) {
  L.circle([data.hotspot.lat, data.hotspot.lon], {
    radius: data.hotspot.radius,
    color: 'red',
    fillOpacity: 0.15
  }).bindPopup('Most frequent location: ' + data.hotspot.count + ' records').addTo(map);
}

(data.periods || []).forEach(function (p) {
  L.circleMarker([p.lat, p.lon], {radius: 8, color: p.color, fillOpacity: 0.8})
    .bindPopup(p.period + ': ' + p.count + ' records<br>' + p.address)
    .addTo(map);
});
</script>
</body>
</html>
`))
