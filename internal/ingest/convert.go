package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/marcosgeo/marcos/internal/pkg/coords"
	"github.com/marcosgeo/marcos/internal/pkg/dxf"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Format is the detected source format of an upload.
type Format string

const (
	FormatDXF     Format = "dxf"
	FormatDXFJSON Format = "dxf-json"
	FormatGeoJSON Format = "geojson"
	FormatKML     Format = "kml"
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatSHP     Format = "shapefile"
)

// Input is one file to convert. ZoneLabel is the UTM zone of projected
// coordinates in the file, e.g. "22S"; empty means 22S.
type Input struct {
	Filename    string
	Data        []byte
	ZoneLabel   string
	Merge       bool
	MaxEntities int
}

// Result is a normalised WGS84 collection plus what was learned on the way.
type Result struct {
	Collection *geojson.FeatureCollection
	Format     Format
	Source     coords.Projection
	Zone       coords.ZoneInfo
	Metadata   *Metadata
	Sheet      *SheetReport
}

// DetectFormat picks the reader from the file extension; .json is split
// between parsed-DXF documents and GeoJSON by content. A .zip is taken to
// be a zipped shapefile.
func DetectFormat(filename string, data []byte) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".dxf":
		return FormatDXF, nil
	case ".geojson":
		return FormatGeoJSON, nil
	case ".json":
		if dxf.IsJSONDocument(data) {
			return FormatDXFJSON, nil
		}
		return FormatGeoJSON, nil
	case ".kml":
		return FormatKML, nil
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".shp", ".zip":
		return FormatSHP, nil
	default:
		return "", fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}
}

// Convert runs the pipeline for one file: read, build features (with the
// label heuristic for CAD input), keep the footprint features, optionally
// merge them, and reproject to WGS84.
func Convert(ctx context.Context, in Input) (*Result, error) {
	format, err := DetectFormat(in.Filename, in.Data)
	if err != nil {
		return nil, err
	}
	res := &Result{Format: format, Source: coords.ParseZoneLabel(in.ZoneLabel)}
	opts := dxf.Options{MaxEntities: in.MaxEntities}

	var fc *geojson.FeatureCollection
	switch format {
	case FormatDXF, FormatDXFJSON:
		var doc *dxf.Document
		if format == FormatDXF {
			doc, err = dxf.Parse(in.Data, opts)
		} else {
			doc, err = dxf.ParseJSON(in.Data, opts)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", format, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if fc, err = ProcessWithHeuristic(doc); err != nil {
			return nil, err
		}
		if m, ok := MetadataOf(fc); ok {
			res.Metadata = &m
		}
	case FormatGeoJSON:
		if fc, err = decodeGeoJSON(in.Data); err != nil {
			return nil, err
		}
	case FormatKML:
		if fc, err = ParseKML(in.Data); err != nil {
			return nil, err
		}
	case FormatSHP:
		layer, err := ParseShapefile(in.Filename, in.Data)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(in.ZoneLabel) == "" && layer.ZoneLabel != "" {
			res.Source = coords.ParseZoneLabel(layer.ZoneLabel)
		}
		fc = layer.Collection
	case FormatCSV, FormatXLSX:
		var rep SheetReport
		if format == FormatCSV {
			fc, rep, err = ParseCSVSheet(in.Data, res.Source)
		} else {
			fc, rep, err = ParseXLSXSheet(in.Data, res.Source)
		}
		if err != nil {
			return nil, err
		}
		res.Sheet = &rep
		res.Collection = fc
		res.Zone = coords.DetectUTMZone(footprint(fc))
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fc = FilterRelevantFeatures(fc)
	if in.Merge {
		fc = MergePolygons(fc)
	}

	if fc, err = ReprojectCollection(fc, res.Source); err != nil {
		return nil, err
	}
	res.Collection = fc
	res.Zone = coords.DetectUTMZone(footprint(fc))
	return res, nil
}

// decodeGeoJSON accepts a FeatureCollection, a single Feature or a bare
// geometry.
func decodeGeoJSON(data []byte) (*geojson.FeatureCollection, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(data), &head); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("decode geojson: %w", err)
		}
		return fc, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("decode geojson: %w", err)
		}
		fc := geojson.NewFeatureCollection()
		return fc.Append(f), nil
	case "":
		return nil, fmt.Errorf("decode geojson: missing type: %w", ErrUnsupportedFormat)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("decode geojson: %w", err)
		}
		fc := geojson.NewFeatureCollection()
		return fc.Append(geojson.NewFeature(g.Geometry())), nil
	}
}

// footprint is the geometry used for zone detection: the polygons when
// there are any, otherwise every point.
func footprint(fc *geojson.FeatureCollection) orb.Geometry {
	if fc == nil {
		return nil
	}
	var (
		polys  orb.MultiPolygon
		points orb.MultiPoint
	)
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			polys = append(polys, g)
		case orb.MultiPolygon:
			polys = append(polys, g...)
		case orb.Point:
			points = append(points, g)
		case orb.LineString:
			points = append(points, g...)
		}
	}
	if len(polys) > 0 {
		return polys
	}
	if len(points) > 0 {
		return points
	}
	return nil
}
