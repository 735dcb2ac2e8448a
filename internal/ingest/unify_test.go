package ingest

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func polyFeature(minX, minY, maxX, maxY float64, props geojson.Properties) *geojson.Feature {
	f := geojson.NewFeature(orb.Polygon{orb.Ring{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}})
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

func lineFeature(pts ...orb.Point) *geojson.Feature {
	return geojson.NewFeature(orb.LineString(pts))
}

func TestFilterRelevantFeaturesPrefersPolygons(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(polyFeature(0, 0, 1, 1, nil))
	fc.Append(lineFeature(orb.Point{0, 0}, orb.Point{1, 1}))
	fc.Append(polyFeature(2, 2, 3, 3, nil))
	fc.Append(lineFeature(orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{1, 1}, orb.Point{0, 0}))
	fc.Append(geojson.NewFeature(orb.Point{5, 5}))

	out := FilterRelevantFeatures(fc)
	if len(out.Features) != 2 {
		t.Fatalf("expected only the 2 polygons, got %d", len(out.Features))
	}
	for _, f := range out.Features {
		if _, ok := f.Geometry.(orb.Polygon); !ok {
			t.Errorf("unexpected geometry %T", f.Geometry)
		}
	}
	if len(fc.Features) != 5 {
		t.Error("input collection must not be modified")
	}
}

func TestFilterRelevantFeaturesPromotesClosedLine(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	closed := lineFeature(orb.Point{0, 0}, orb.Point{4, 0}, orb.Point{4, 4}, orb.Point{0, 0})
	closed.Properties["layer"] = "DIVISA"
	fc.Append(closed)
	fc.Append(lineFeature(orb.Point{0, 0}, orb.Point{4, 0}, orb.Point{4, 4}))

	out := FilterRelevantFeatures(fc)
	if len(out.Features) != 1 {
		t.Fatalf("expected 1 promoted polygon, got %d", len(out.Features))
	}
	poly, ok := out.Features[0].Geometry.(orb.Polygon)
	if !ok || len(poly) != 1 || len(poly[0]) != 4 {
		t.Fatalf("expected a single-ring polygon, got %#v", out.Features[0].Geometry)
	}
	if out.Features[0].Properties["layer"] != "DIVISA" {
		t.Error("properties must carry over to the promoted polygon")
	}
}

func TestFilterRelevantFeaturesFallsBackToInput(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{1, 2}))
	if out := FilterRelevantFeatures(fc); out != fc {
		t.Error("expected the input collection back")
	}
}

func TestMergePolygons(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(polyFeature(0, 0, 1, 1, geojson.Properties{"nome": "A", "matricula": "1"}))
	fc.Append(polyFeature(2, 2, 3, 3, geojson.Properties{"nome": "B", "area": 10.0}))

	out := MergePolygons(fc)
	if len(out.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(out.Features))
	}
	mp, ok := out.Features[0].Geometry.(orb.MultiPolygon)
	if !ok {
		t.Fatalf("expected MultiPolygon, got %T", out.Features[0].Geometry)
	}
	if len(mp) != 2 {
		t.Errorf("expected 2 members, got %d", len(mp))
	}
	props := out.Features[0].Properties
	if props["nome"] != "B" || props["matricula"] != "1" || props["area"] != 10.0 {
		t.Errorf("unexpected merged properties %+v", props)
	}
}

func TestMergePolygonsFlattensMultiPolygons(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(polyFeature(0, 0, 1, 1, nil))
	multi := orb.MultiPolygon{
		polyFeature(2, 2, 3, 3, nil).Geometry.(orb.Polygon),
		polyFeature(4, 4, 5, 5, nil).Geometry.(orb.Polygon),
	}
	fc.Append(geojson.NewFeature(multi))

	out := MergePolygons(fc)
	if mp := out.Features[0].Geometry.(orb.MultiPolygon); len(mp) != 3 {
		t.Errorf("expected 3 members, got %d", len(mp))
	}
}

func TestMergePolygonsSingleFeatureNoop(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(polyFeature(0, 0, 1, 1, nil))
	if out := MergePolygons(fc); out != fc {
		t.Error("single feature collections are returned as is")
	}
}
