package store

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// Point is a lon/lat pair. Columns backing it are PostGIS GEOMETRY(Point,4326);
// Go code never parses WKB itself, it round-trips through ST_X/ST_Y and
// ST_MakePoint. The shared expression helpers live in this file; repository
// queries such as NearestAvailable and WithinBounding write their own
// PostGIS SQL inline.
type Point struct {
	Lon float64
	Lat float64
}

// makePointSQL renders an ST_MakePoint(...) expression for use as an insert
// or update value from the two given bind placeholders (e.g. "$11", "$12").
func makePointSQL(lonArg, latArg string) string {
	return fmt.Sprintf("ST_SetSRID(ST_MakePoint(%s, %s), 4326)", lonArg, latArg)
}

// BoundingBox is a min/max lon/lat rectangle used for challenge geographic scoping.
type BoundingBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// envelopeSQL renders an ST_MakeEnvelope(...) expression from four bind
// placeholders, used to persist a challenge's bounding box.
func envelopeSQL(minLonArg, minLatArg, maxLonArg, maxLatArg string) string {
	return fmt.Sprintf("ST_MakeEnvelope(%s, %s, %s, %s, 4326)", minLonArg, minLatArg, maxLonArg, maxLatArg)
}

func (b BoundingBox) contains(p Point) bool {
	return p.Lon >= b.MinLon && p.Lon <= b.MaxLon && p.Lat >= b.MinLat && p.Lat <= b.MaxLat
}

// centroidOf computes the centroid of a GeoJSON FeatureCollection's geometries
// client-side, used when building a task whose centroid must be known before
// the row exists in the database. Each feature contributes the center of its
// bounding box, and the result is the mean of those centers.
func centroidOf(raw json.RawMessage) (Point, bool) {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil || len(fc.Features) == 0 {
		return Point{}, false
	}

	var sumLon, sumLat float64
	var n int
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		c := f.Geometry.Bound().Center()
		sumLon += c.X()
		sumLat += c.Y()
		n++
	}
	if n == 0 {
		return Point{}, false
	}
	return Point{Lon: sumLon / float64(n), Lat: sumLat / float64(n)}, true
}
