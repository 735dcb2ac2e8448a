package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name string
		data string
		want Format
	}{
		{"planta.DXF", "", FormatDXF},
		{"lote.geojson", "", FormatGeoJSON},
		{"export.json", `{"entities": []}`, FormatDXFJSON},
		{"lote.json", `{"type": "FeatureCollection", "features": []}`, FormatGeoJSON},
		{"imovel.kml", "", FormatKML},
		{"marcos.csv", "", FormatCSV},
		{"marcos.xlsx", "", FormatXLSX},
		{"limite.shp", "", FormatSHP},
		{"limite.ZIP", "", FormatSHP},
	}
	for _, tc := range cases {
		got, err := DetectFormat(tc.name, []byte(tc.data))
		if err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}

	if _, err := DetectFormat("notas.txt", nil); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestConvertDXF(t *testing.T) {
	fixedClock(t)
	res, err := Convert(context.Background(), Input{Filename: "fazenda.dxf", Data: squareDXF("Fazenda Boa Vista")})
	if err != nil {
		t.Fatal(err)
	}
	if res.Format != FormatDXF || res.Metadata == nil || res.Metadata.EnrichedPolygons != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	f := res.Collection.Features[0]
	if f.Properties[PropNome] != "Boa Vista" {
		t.Errorf("expected nome Boa Vista, got %v", f.Properties[PropNome])
	}
	ring := f.Geometry.(orb.Polygon)[0]
	for _, p := range ring {
		if p[0] < -50 || p[0] > -48 || p[1] < -26 || p[1] > -25 {
			t.Fatalf("position %v was not reprojected", p)
		}
	}
	if res.Zone.Zone != 22 || !res.Zone.South || res.Zone.Fallback {
		t.Errorf("unexpected zone %+v", res.Zone)
	}
	if _, ok := MetadataOf(res.Collection); !ok {
		t.Error("metadata must survive filtering and reprojection")
	}
}

func TestConvertGeoJSONMerge(t *testing.T) {
	data := []byte(`{"type": "FeatureCollection", "features": [
	  {"type": "Feature", "properties": {"nome": "Gleba A"},
	   "geometry": {"type": "Polygon", "coordinates": [[[-49.3,-25.4],[-49.2,-25.4],[-49.2,-25.5],[-49.3,-25.4]]]}},
	  {"type": "Feature", "properties": {"nome": "Gleba B"},
	   "geometry": {"type": "Polygon", "coordinates": [[[-49.1,-25.4],[-49.0,-25.4],[-49.0,-25.5],[-49.1,-25.4]]]}},
	  {"type": "Feature", "properties": {},
	   "geometry": {"type": "LineString", "coordinates": [[-49.3,-25.4],[-49.0,-25.5]]}}
	]}`)

	res, err := Convert(context.Background(), Input{Filename: "glebas.geojson", Data: data, Merge: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Collection.Features) != 1 {
		t.Fatalf("expected 1 merged feature, got %d", len(res.Collection.Features))
	}
	if mp, ok := res.Collection.Features[0].Geometry.(orb.MultiPolygon); !ok || len(mp) != 2 {
		t.Errorf("expected MultiPolygon of 2, got %#v", res.Collection.Features[0].Geometry)
	}
	if res.Collection.Features[0].Properties["nome"] != "Gleba B" {
		t.Error("later properties must win")
	}
	if mp := res.Collection.Features[0].Geometry.(orb.MultiPolygon); mp[0][0][0] != (orb.Point{-49.3, -25.4}) {
		t.Error("geographic positions must pass through unchanged")
	}
}

func TestConvertGeoJSONBareGeometry(t *testing.T) {
	data := []byte(`{"type": "Point", "coordinates": [680000, 7184000]}`)
	res, err := Convert(context.Background(), Input{Filename: "p.geojson", Data: data, ZoneLabel: "22S"})
	if err != nil {
		t.Fatal(err)
	}
	pt := res.Collection.Features[0].Geometry.(orb.Point)
	if pt[0] > -48 || pt[0] < -50 {
		t.Errorf("expected reprojected point, got %v", pt)
	}
}

func TestConvertKML(t *testing.T) {
	res, err := Convert(context.Background(), Input{Filename: "imovel.kml", Data: []byte(fazendaKML)})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Collection.Features) != 1 {
		t.Errorf("only the polygon placemark should remain, got %d", len(res.Collection.Features))
	}
}

func TestConvertCSVSkipsFiltering(t *testing.T) {
	data := []byte("codigo;e;n\nM-01;680000;7184000\nM-02;680100;7184100\n")
	res, err := Convert(context.Background(), Input{Filename: "marcos.csv", Data: data})
	if err != nil {
		t.Fatal(err)
	}
	if res.Sheet == nil || res.Sheet.Accepted != 2 {
		t.Errorf("unexpected sheet report %+v", res.Sheet)
	}
	if len(res.Collection.Features) != 2 {
		t.Errorf("points must be kept, got %d", len(res.Collection.Features))
	}
	if res.Zone.Fallback {
		t.Errorf("expected zone from points, got fallback %+v", res.Zone)
	}
}

func TestConvertErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := Convert(ctx, Input{Filename: "area.shp"}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := Convert(ctx, Input{Filename: "x.geojson", Data: []byte(`{"coordinates": []}`)}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("missing type: expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := Convert(ctx, Input{Filename: "x.dxf", Data: []byte("garbage")}); err == nil {
		t.Error("expected an error for a non-DXF file")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := Convert(cancelled, Input{Filename: "fazenda.dxf", Data: squareDXF("Lote 1")}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
