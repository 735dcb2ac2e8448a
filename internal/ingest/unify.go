package ingest

import (
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FilterRelevantFeatures keeps the features that describe a footprint.
// Polygons and multipolygons win; without any, closed line strings are
// promoted to polygons; without those, fc is returned unchanged.
func FilterRelevantFeatures(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	if fc == nil {
		return nil
	}

	var polygons []*geojson.Feature
	for _, f := range fc.Features {
		if isPolygonal(f) {
			polygons = append(polygons, f)
		}
	}
	if len(polygons) > 0 {
		return withFeatures(fc, polygons)
	}

	var promoted []*geojson.Feature
	for _, f := range fc.Features {
		ls, ok := f.Geometry.(orb.LineString)
		if !ok || len(ls) < 4 || ls[0] != ls[len(ls)-1] {
			continue
		}
		pf := geojson.NewFeature(orb.Polygon{orb.Ring(append(orb.LineString(nil), ls...))})
		pf.ID = f.ID
		pf.Properties = f.Properties.Clone()
		if pf.Properties == nil {
			pf.Properties = geojson.Properties{}
		}
		promoted = append(promoted, pf)
	}
	if len(promoted) > 0 {
		return withFeatures(fc, promoted)
	}

	slog.Warn("no polygon or closed line features, keeping collection as is", "features", len(fc.Features))
	return fc
}

// MergePolygons folds every polygonal feature into a single MultiPolygon
// feature. Rings are concatenated without any topological union, and
// properties are merged with later features winning. Collections of zero or
// one feature are returned as is.
func MergePolygons(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	if fc == nil || len(fc.Features) <= 1 {
		return fc
	}

	var (
		multi orb.MultiPolygon
		props = geojson.Properties{}
	)
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			multi = append(multi, g.Clone())
		case orb.MultiPolygon:
			multi = append(multi, g.Clone()...)
		default:
			continue
		}
		for k, v := range f.Properties {
			props[k] = v
		}
	}
	if len(multi) == 0 {
		return fc
	}

	merged := geojson.NewFeature(multi)
	merged.Properties = props
	return withFeatures(fc, []*geojson.Feature{merged})
}

func isPolygonal(f *geojson.Feature) bool {
	if f == nil {
		return false
	}
	switch f.Geometry.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	}
	return false
}

// withFeatures returns a new collection sharing fc's extra members.
func withFeatures(fc *geojson.FeatureCollection, features []*geojson.Feature) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	out.Features = features
	out.ExtraMembers = fc.ExtraMembers.Clone()
	return out
}
