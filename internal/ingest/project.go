package ingest

import (
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/marcosgeo/marcos/internal/pkg/coords"
	"github.com/marcosgeo/marcos/internal/pkg/geospatial"
)

// TransformFunc maps one projected position to another.
type TransformFunc func(x, y float64) (float64, float64, error)

// ProjectCoords walks a GeoJSON coordinates array of any depth, as decoded
// from JSON, and returns a transformed copy. Only positions whose |x|
// exceeds ProjectedThreshold are transformed, so geographic data passes
// through untouched. A failed position keeps its original value.
func ProjectCoords(tree any, fn TransformFunc) any {
	switch v := tree.(type) {
	case []float64:
		return projectLeaf(v, fn)
	case []any:
		if isLeaf(v) {
			x, _ := toFloat(v[0])
			y, _ := toFloat(v[1])
			out := append([]any(nil), v...)
			if nx, ny, ok := projectXY(x, y, fn); ok {
				out[0], out[1] = nx, ny
			}
			return out
		}
		out := make([]any, len(v))
		for i := range v {
			out[i] = ProjectCoords(v[i], fn)
		}
		return out
	case [][]float64:
		out := make([][]float64, len(v))
		for i := range v {
			out[i] = projectLeaf(v[i], fn)
		}
		return out
	}
	return tree
}

func isLeaf(v []any) bool {
	if len(v) < 2 {
		return false
	}
	_, okX := toFloat(v[0])
	_, okY := toFloat(v[1])
	return okX && okY
}

func projectLeaf(v []float64, fn TransformFunc) []float64 {
	out := append([]float64(nil), v...)
	if len(v) < 2 {
		return out
	}
	if nx, ny, ok := projectXY(v[0], v[1], fn); ok {
		out[0], out[1] = nx, ny
	}
	return out
}

func projectXY(x, y float64, fn TransformFunc) (float64, float64, bool) {
	if !geospatial.IsProjectedX(x) {
		return x, y, false
	}
	nx, ny, err := fn(x, y)
	if err != nil {
		return x, y, false
	}
	return nx, ny, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// projector applies a TransformFunc to typed geometries and counts the
// positions it had to leave untouched.
type projector struct {
	fn     TransformFunc
	failed int
}

func (p *projector) point(pt orb.Point) orb.Point {
	if !geospatial.IsProjectedX(pt[0]) {
		return pt
	}
	x, y, err := p.fn(pt[0], pt[1])
	if err != nil {
		p.failed++
		return pt
	}
	return orb.Point{x, y}
}

func (p *projector) points(pts []orb.Point) []orb.Point {
	out := make([]orb.Point, len(pts))
	for i, pt := range pts {
		out[i] = p.point(pt)
	}
	return out
}

func (p *projector) polygon(poly orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, r := range poly {
		out[i] = orb.Ring(p.points(r))
	}
	return out
}

func (p *projector) geometry(g orb.Geometry) orb.Geometry {
	switch t := g.(type) {
	case orb.Point:
		return p.point(t)
	case orb.MultiPoint:
		return orb.MultiPoint(p.points(t))
	case orb.LineString:
		return orb.LineString(p.points(t))
	case orb.Ring:
		return orb.Ring(p.points(t))
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(t))
		for i, ls := range t {
			out[i] = orb.LineString(p.points(ls))
		}
		return out
	case orb.Polygon:
		return p.polygon(t)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(t))
		for i, poly := range t {
			out[i] = p.polygon(poly)
		}
		return out
	case orb.Collection:
		out := make(orb.Collection, len(t))
		for i, child := range t {
			out[i] = p.geometry(child)
		}
		return out
	}
	return g
}

// ProjectGeometry returns a copy of g with every projected position
// transformed by fn.
func ProjectGeometry(g orb.Geometry, fn TransformFunc) orb.Geometry {
	p := &projector{fn: fn}
	return p.geometry(g)
}

// ReprojectCollection converts projected positions of every feature from
// proj's UTM grid to WGS84 degrees.
func ReprojectCollection(fc *geojson.FeatureCollection, proj coords.Projection) (*geojson.FeatureCollection, error) {
	if fc == nil {
		return nil, nil
	}
	t, err := coords.NewTransformer(proj)
	if err != nil {
		return nil, fmt.Errorf("reproject from %s: %w", proj.Label(), err)
	}
	p := &projector{fn: t.Inverse}

	features := make([]*geojson.Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		nf := geojson.NewFeature(p.geometry(f.Geometry))
		nf.ID = f.ID
		nf.Properties = f.Properties.Clone()
		if nf.Properties == nil {
			nf.Properties = geojson.Properties{}
		}
		features = append(features, nf)
	}
	if p.failed > 0 {
		slog.Warn("some positions could not be reprojected and were kept", "count", p.failed, "zone", proj.Label())
	}
	return withFeatures(fc, features), nil
}
