package store

import (
	"encoding/json"
	"testing"
)

func TestCentroidOfAveragesFeatureCenters(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "geometry": {"type": "Point", "coordinates": [0, 0]}},
			{"type": "Feature", "geometry": {"type": "Point", "coordinates": [2, 4]}}
		]
	}`)

	p, ok := centroidOf(raw)
	if !ok {
		t.Fatal("expected centroid to be computed")
	}
	if p.Lon != 1 || p.Lat != 2 {
		t.Fatalf("centroid = %+v, want {1 2}", p)
	}
}

func TestCentroidOfEmptyCollection(t *testing.T) {
	raw := json.RawMessage(`{"type": "FeatureCollection", "features": []}`)
	if _, ok := centroidOf(raw); ok {
		t.Fatal("expected no centroid for an empty collection")
	}
}

func TestCentroidOfInvalidJSON(t *testing.T) {
	if _, ok := centroidOf(json.RawMessage(`not json`)); ok {
		t.Fatal("expected no centroid for invalid GeoJSON")
	}
}

func TestBoundingBoxContains(t *testing.T) {
	b := BoundingBox{MinLon: -1, MinLat: -1, MaxLon: 1, MaxLat: 1}

	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"inside", Point{0, 0}, true},
		{"on edge", Point{1, 1}, true},
		{"outside lon", Point{2, 0}, false},
		{"outside lat", Point{0, -2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.contains(tt.p); got != tt.want {
				t.Errorf("contains(%+v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestMakePointSQL(t *testing.T) {
	got := makePointSQL("$1", "$2")
	want := "ST_SetSRID(ST_MakePoint($1, $2), 4326)"
	if got != want {
		t.Errorf("makePointSQL() = %q, want %q", got, want)
	}
}

func TestEnvelopeSQL(t *testing.T) {
	got := envelopeSQL("$1", "$2", "$3", "$4")
	want := "ST_MakeEnvelope($1, $2, $3, $4, 4326)"
	if got != want {
		t.Errorf("envelopeSQL() = %q, want %q", got, want)
	}
}
