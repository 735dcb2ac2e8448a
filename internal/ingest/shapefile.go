package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/marcosgeo/marcos/internal/pkg/textenc"
)

var (
	ErrNoShapefile       = fmt.Errorf("archive has no .shp layer: %w", ErrUnsupportedFormat)
	ErrNoShapeFeatures   = errors.New("shapefile: no shapes with geometry")
	ErrShapefileTooLarge = errors.New("shapefile: archive member too large")
)

// maxArchiveMember caps the decompressed size of one zip member.
const maxArchiveMember = 256 << 20

// shapefileSet holds the sidecar files of one layer.
type shapefileSet struct {
	name string
	shp  []byte
	dbf  []byte
	prj  string
	cpg  string
}

// ShapefileLayer is the content of one shapefile upload.
type ShapefileLayer struct {
	Collection *geojson.FeatureCollection
	// ZoneLabel is the UTM zone the .prj names, e.g. "23S". Empty when there
	// is no .prj or it describes geographic coordinates.
	ZoneLabel string
}

// ParseShapefile reads an ESRI shapefile uploaded either as a zip archive
// holding the .shp with its .dbf, .prj and .cpg sidecars, or as a bare .shp
// without attributes. Polygon parts wound counter-clockwise become holes of
// the preceding outer ring.
func ParseShapefile(filename string, data []byte) (layer *ShapefileLayer, err error) {
	set, err := readShapefileSet(filename, data)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			layer, err = nil, fmt.Errorf("shapefile %s: corrupt record: %v", set.name, r)
		}
	}()

	sr := shp.SequentialReaderFromExt(io.NopCloser(bytes.NewReader(set.shp)), dbfReader(set.dbf))
	defer sr.Close()

	fields := sr.Fields()
	codepage := strings.TrimSpace(set.cpg)
	if codepage == "" {
		codepage = "ANSI_1252"
	}

	fc := geojson.NewFeatureCollection()
	for sr.Next() {
		_, shape := sr.Shape()
		g := shapeGeometry(shape)
		if g == nil {
			continue
		}
		f := geojson.NewFeature(g)
		f.Properties[PropLayer] = set.name
		for i, field := range fields {
			v := sr.Attribute(i)
			if v == "" {
				continue
			}
			decoded, _ := textenc.Decode([]byte(v), codepage)
			f.Properties[field.String()] = string(decoded)
		}
		fc.Append(f)
	}
	if err := sr.Err(); err != nil {
		return nil, fmt.Errorf("shapefile %s: %w", set.name, err)
	}
	if len(fc.Features) == 0 {
		return nil, ErrNoShapeFeatures
	}
	return &ShapefileLayer{Collection: fc, ZoneLabel: prjZoneLabel(set.prj)}, nil
}

func readShapefileSet(filename string, data []byte) (*shapefileSet, error) {
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	if strings.EqualFold(path.Ext(filename), ".shp") {
		return &shapefileSet{name: base, shp: data}, nil
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", ErrUnsupportedFormat)
	}

	var shpFile *zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "__MACOSX/") || !strings.EqualFold(path.Ext(f.Name), ".shp") {
			continue
		}
		shpFile = f
		break
	}
	if shpFile == nil {
		return nil, ErrNoShapefile
	}

	stem := strings.TrimSuffix(shpFile.Name, path.Ext(shpFile.Name))
	set := &shapefileSet{name: path.Base(stem)}
	if set.shp, err = readMember(shpFile); err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if !strings.EqualFold(strings.TrimSuffix(f.Name, path.Ext(f.Name)), stem) {
			continue
		}
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".dbf":
			set.dbf, err = readMember(f)
		case ".prj":
			var b []byte
			b, err = readMember(f)
			set.prj = string(b)
		case ".cpg":
			var b []byte
			b, err = readMember(f)
			set.cpg = string(b)
		}
		if err != nil {
			return nil, err
		}
	}
	return set, nil
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, maxArchiveMember+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if len(b) > maxArchiveMember {
		return nil, fmt.Errorf("%s: %w", f.Name, ErrShapefileTooLarge)
	}
	return b, nil
}

// dbfReader returns the attribute table, or a table with no fields and
// endless blank rows when the upload carried none; go-shp always reads one
// row per shape.
func dbfReader(dbf []byte) io.ReadCloser {
	if len(dbf) > 0 {
		return io.NopCloser(bytes.NewReader(dbf))
	}
	var header bytes.Buffer
	header.Write([]byte{0x03, 0, 0, 0})
	binary.Write(&header, binary.LittleEndian, int32(0))
	binary.Write(&header, binary.LittleEndian, int16(33))
	binary.Write(&header, binary.LittleEndian, int16(1))
	header.Write(make([]byte, 20))
	header.WriteByte(0x0d)
	return io.NopCloser(io.MultiReader(&header, blankRows{}))
}

type blankRows struct{}

func (blankRows) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = ' '
	}
	return len(p), nil
}

var prjZone = regexp.MustCompile(`(?i)UTM[_ ]zone[_ ](\d{1,2})\s*([NS])`)

// prjZoneLabel pulls the zone out of an ESRI WKT name such as
// SIRGAS_2000_UTM_Zone_22S.
func prjZoneLabel(prj string) string {
	m := prjZone.FindStringSubmatch(prj)
	if m == nil {
		return ""
	}
	return m[1] + strings.ToUpper(m[2])
}

func shapeGeometry(s shp.Shape) orb.Geometry {
	switch v := s.(type) {
	case *shp.Point:
		return orb.Point{v.X, v.Y}
	case *shp.PointZ:
		return orb.Point{v.X, v.Y}
	case *shp.PointM:
		return orb.Point{v.X, v.Y}
	case *shp.MultiPoint:
		return multiPoint(v.Points)
	case *shp.MultiPointZ:
		return multiPoint(v.Points)
	case *shp.MultiPointM:
		return multiPoint(v.Points)
	case *shp.PolyLine:
		return lines(v.Parts, v.Points)
	case *shp.PolyLineZ:
		return lines(v.Parts, v.Points)
	case *shp.PolyLineM:
		return lines(v.Parts, v.Points)
	case *shp.Polygon:
		return polygons(v.Parts, v.Points)
	case *shp.PolygonZ:
		return polygons(v.Parts, v.Points)
	case *shp.PolygonM:
		return polygons(v.Parts, v.Points)
	}
	return nil
}

func multiPoint(pts []shp.Point) orb.Geometry {
	if len(pts) == 0 {
		return nil
	}
	mp := make(orb.MultiPoint, len(pts))
	for i, p := range pts {
		mp[i] = orb.Point{p.X, p.Y}
	}
	return mp
}

// splitParts cuts the flat point list at the part offsets.
func splitParts(parts []int32, pts []shp.Point) [][]orb.Point {
	out := make([][]orb.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(pts))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || end > int32(len(pts)) {
			continue
		}
		part := make([]orb.Point, 0, end-start)
		for _, p := range pts[start:end] {
			part = append(part, orb.Point{p.X, p.Y})
		}
		out = append(out, part)
	}
	return out
}

func lines(parts []int32, pts []shp.Point) orb.Geometry {
	var mls orb.MultiLineString
	for _, part := range splitParts(parts, pts) {
		if len(part) >= 2 {
			mls = append(mls, orb.LineString(part))
		}
	}
	switch len(mls) {
	case 0:
		return nil
	case 1:
		return mls[0]
	}
	return mls
}

func polygons(parts []int32, pts []shp.Point) orb.Geometry {
	var mp orb.MultiPolygon
	for _, part := range splitParts(parts, pts) {
		if len(part) < 4 {
			continue
		}
		ring := orb.Ring(part)
		if ring.Orientation() == orb.CCW && len(mp) > 0 {
			mp[len(mp)-1] = append(mp[len(mp)-1], ring)
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}
	switch len(mp) {
	case 0:
		return nil
	case 1:
		return mp[0]
	}
	return mp
}
