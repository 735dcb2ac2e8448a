package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

// shpPolygon encodes a single-record POLYGON shapefile.
func shpPolygon(rings ...[]orb.Point) []byte {
	var parts []int32
	var pts []orb.Point
	for _, r := range rings {
		parts = append(parts, int32(len(pts)))
		pts = append(pts, r...)
	}
	bound := orb.MultiPoint(pts).Bound()
	box := []float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]}

	var content bytes.Buffer
	binary.Write(&content, binary.LittleEndian, int32(shp.POLYGON))
	binary.Write(&content, binary.LittleEndian, box)
	binary.Write(&content, binary.LittleEndian, int32(len(parts)))
	binary.Write(&content, binary.LittleEndian, int32(len(pts)))
	binary.Write(&content, binary.LittleEndian, parts)
	for _, p := range pts {
		binary.Write(&content, binary.LittleEndian, []float64{p[0], p[1]})
	}

	var out bytes.Buffer
	fileWords := int32((100 + 8 + content.Len()) / 2)
	binary.Write(&out, binary.BigEndian, []int32{9994, 0, 0, 0, 0, 0, fileWords})
	binary.Write(&out, binary.LittleEndian, []int32{1000, int32(shp.POLYGON)})
	binary.Write(&out, binary.LittleEndian, box)
	binary.Write(&out, binary.LittleEndian, make([]float64, 4))
	binary.Write(&out, binary.BigEndian, []int32{1, int32(content.Len() / 2)})
	out.Write(content.Bytes())
	return out.Bytes()
}

// dbfOneRow encodes a one-record attribute table of character fields.
func dbfOneRow(names []string, values []string) []byte {
	const size = 20
	var out bytes.Buffer
	out.Write([]byte{3, 126, 1, 1})
	binary.Write(&out, binary.LittleEndian, int32(1))
	binary.Write(&out, binary.LittleEndian, []int16{int16(32*len(names) + 33), int16(1 + size*len(names))})
	out.Write(make([]byte, 20))
	for _, n := range names {
		binary.Write(&out, binary.LittleEndian, shp.StringField(n, size))
	}
	out.WriteByte(0x0d)
	out.WriteByte(' ')
	for _, v := range values {
		cell := make([]byte, size)
		copy(cell, v)
		for i := len(v); i < size; i++ {
			cell[i] = ' '
		}
		out.Write(cell)
	}
	return out.Bytes()
}

func zipFiles(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// loteRings is a 1 km square in zone 23S, wound clockwise, with a
// counter-clockwise hole.
func loteRings() ([]orb.Point, []orb.Point) {
	outer := []orb.Point{{700000, 7400000}, {700000, 7401000}, {701000, 7401000}, {701000, 7400000}, {700000, 7400000}}
	hole := []orb.Point{{700400, 7400400}, {700600, 7400400}, {700600, 7400600}, {700400, 7400600}, {700400, 7400400}}
	return outer, hole
}

const sirgas23SPrj = `PROJCS["SIRGAS_2000_UTM_Zone_23S",GEOGCS["GCS_SIRGAS_2000",DATUM["D_SIRGAS_2000",SPHEROID["GRS_1980",6378137.0,298.257222101]]],PROJECTION["Transverse_Mercator"],UNIT["Meter",1.0]]`

func loteZip(t *testing.T) []byte {
	outer, hole := loteRings()
	return zipFiles(t, map[string][]byte{
		"entrega/lote.shp": shpPolygon(outer, hole),
		"entrega/lote.dbf": dbfOneRow([]string{"MATRICULA", "NOME"}, []string{"4561", "Ch\xe1cara S\xe3o Jo\xe3o"}),
		"entrega/lote.prj": []byte(sirgas23SPrj),
		"entrega/lote.cpg": []byte("ANSI_1252"),
	})
}

func TestParseShapefileZip(t *testing.T) {
	layer, err := ParseShapefile("entrega.zip", loteZip(t))
	if err != nil {
		t.Fatal(err)
	}
	if layer.ZoneLabel != "23S" {
		t.Errorf("expected zone 23S from the .prj, got %q", layer.ZoneLabel)
	}
	if len(layer.Collection.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(layer.Collection.Features))
	}
	f := layer.Collection.Features[0]
	poly, ok := f.Geometry.(orb.Polygon)
	if !ok || len(poly) != 2 {
		t.Fatalf("expected a polygon with one hole, got %#v", f.Geometry)
	}
	if f.Properties[PropLayer] != "lote" || f.Properties["MATRICULA"] != "4561" {
		t.Errorf("unexpected properties %v", f.Properties)
	}
	if f.Properties["NOME"] != "Chácara São João" {
		t.Errorf("attribute should be decoded from the .cpg codepage, got %q", f.Properties["NOME"])
	}
}

func TestParseShapefileBare(t *testing.T) {
	outer, _ := loteRings()
	layer, err := ParseShapefile("lote.shp", shpPolygon(outer))
	if err != nil {
		t.Fatal(err)
	}
	f := layer.Collection.Features[0]
	if _, ok := f.Geometry.(orb.Polygon); !ok {
		t.Fatalf("expected polygon, got %T", f.Geometry)
	}
	if len(f.Properties) != 1 || layer.ZoneLabel != "" {
		t.Errorf("bare .shp should carry only the layer name, got %v (%q)", f.Properties, layer.ZoneLabel)
	}
}

func TestParseShapefileOuterRingsBecomeMultiPolygon(t *testing.T) {
	outer, _ := loteRings()
	second := make([]orb.Point, len(outer))
	for i, p := range outer {
		second[i] = orb.Point{p[0] + 5000, p[1]}
	}
	layer, err := ParseShapefile("glebas.shp", shpPolygon(outer, second))
	if err != nil {
		t.Fatal(err)
	}
	if mp, ok := layer.Collection.Features[0].Geometry.(orb.MultiPolygon); !ok || len(mp) != 2 {
		t.Errorf("two clockwise parts should give two polygons, got %#v", layer.Collection.Features[0].Geometry)
	}
}

func TestParseShapefileErrors(t *testing.T) {
	noShp := zipFiles(t, map[string][]byte{"leia-me.txt": []byte("sem camada")})
	if _, err := ParseShapefile("entrega.zip", noShp); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("archive without .shp: expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := ParseShapefile("entrega.zip", []byte("not a zip")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("corrupt archive: expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := ParseShapefile("vazio.shp", shpPolygon()[:100]); !errors.Is(err, ErrNoShapeFeatures) {
		t.Errorf("header only: expected ErrNoShapeFeatures, got %v", err)
	}
}

func TestConvertShapefileUsesPrjZone(t *testing.T) {
	res, err := Convert(context.Background(), Input{Filename: "entrega.zip", Data: loteZip(t)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Format != FormatSHP || res.Source.Zone != 23 || !res.Source.South {
		t.Errorf("expected shapefile read in zone 23S, got %s %+v", res.Format, res.Source)
	}
	ring := res.Collection.Features[0].Geometry.(orb.Polygon)[0]
	for _, p := range ring {
		if p[0] < -44 || p[0] > -42 || p[1] < -24 || p[1] > -23 {
			t.Fatalf("position %v was not reprojected from zone 23S", p)
		}
	}
}
