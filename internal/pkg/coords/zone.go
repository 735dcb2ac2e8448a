package coords

import (
	"log/slog"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ZoneInfo is the UTM zone that covers a geometry's centroid.
type ZoneInfo struct {
	Zone     int       `json:"zone"`
	South    bool      `json:"south"`
	EPSG     int       `json:"epsg"`
	Centroid orb.Point `json:"centroid"`
	Fallback bool      `json:"fallback"`
}

// Label renders the zone as e.g. "22S".
func (z ZoneInfo) Label() string { return z.Projection().Label() }

// Projection returns the SIRGAS2000 projection for the zone.
func (z ZoneInfo) Projection() Projection { return SIRGAS2000UTM(z.Zone, z.South) }

var fallbackZone = ZoneInfo{Zone: DefaultZone, South: true, EPSG: 31982, Fallback: true}

// DetectUTMZone derives the SIRGAS2000 UTM zone from the centroid of g,
// which must already be in WGS84 degrees. Degenerate or projected input
// falls back to 22S (EPSG 31982) with a warning.
func DetectUTMZone(g orb.Geometry) ZoneInfo {
	c, ok := centroid(g)
	if !ok {
		slog.Warn("utm zone detection failed, using default", "zone", DefaultZoneLabel)
		return fallbackZone
	}
	lng, lat := c[0], c[1]

	zone := int(math.Floor((lng+180)/6)) + 1
	if zone > 60 {
		zone = 60
	}
	south := lat < 0

	z := ZoneInfo{Zone: zone, South: south, Centroid: c}
	z.EPSG = z.Projection().EPSG()
	return z
}

// ZoneForPoint is DetectUTMZone for a single WGS84 position.
func ZoneForPoint(lng, lat float64) ZoneInfo {
	return DetectUTMZone(orb.Point{lng, lat})
}

func centroid(g orb.Geometry) (orb.Point, bool) {
	if g == nil {
		return orb.Point{}, false
	}
	b := g.Bound()
	if b.Min[0] < -180 || b.Max[0] > 180 || b.Min[1] < -90 || b.Max[1] > 90 {
		return orb.Point{}, false
	}
	if isEmpty(g) {
		return orb.Point{}, false
	}

	c, area := planar.CentroidArea(g)
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon, orb.Ring:
		if area == 0 {
			return orb.Point{}, false
		}
	}
	if !finite(c[0]) || !finite(c[1]) {
		return orb.Point{}, false
	}
	return c, true
}

func isEmpty(g orb.Geometry) bool {
	switch t := g.(type) {
	case orb.Point:
		return false
	case orb.MultiPoint:
		return len(t) == 0
	case orb.LineString:
		return len(t) == 0
	case orb.MultiLineString:
		return len(t) == 0
	case orb.Ring:
		return len(t) == 0
	case orb.Polygon:
		return len(t) == 0 || len(t[0]) == 0
	case orb.MultiPolygon:
		return len(t) == 0
	case orb.Collection:
		return len(t) == 0
	}
	return false
}
