package ingest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrNoKMLFeatures = errors.New("kml: no placemarks with geometry")

type kmlData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

type kmlSimpleData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type kmlPoint struct {
	Coordinates string `xml:"coordinates"`
}

type kmlLineString struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	Outer string   `xml:"outerBoundaryIs>LinearRing>coordinates"`
	Inner []string `xml:"innerBoundaryIs>LinearRing>coordinates"`
}

type kmlMultiGeometry struct {
	Points   []kmlPoint      `xml:"Point"`
	Lines    []kmlLineString `xml:"LineString"`
	Polygons []kmlPolygon    `xml:"Polygon"`
}

type kmlPlacemark struct {
	ID          string          `xml:"id,attr"`
	Name        string          `xml:"name"`
	Description string          `xml:"description"`
	Data        []kmlData       `xml:"ExtendedData>Data"`
	SimpleData  []kmlSimpleData `xml:"ExtendedData>SchemaData>SimpleData"`

	Point         *kmlPoint         `xml:"Point"`
	LineString    *kmlLineString    `xml:"LineString"`
	Polygon       *kmlPolygon       `xml:"Polygon"`
	MultiGeometry *kmlMultiGeometry `xml:"MultiGeometry"`
}

// ParseKML converts every Placemark of a KML document, at any folder depth,
// into a GeoJSON feature. Name, description and extended data become
// properties.
func ParseKML(data []byte) (*geojson.FeatureCollection, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	fc := geojson.NewFeatureCollection()

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("kml: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Placemark" {
			continue
		}
		var pm kmlPlacemark
		if err := dec.DecodeElement(&pm, &start); err != nil {
			return nil, fmt.Errorf("kml placemark: %w", err)
		}
		if f := pm.feature(); f != nil {
			fc.Append(f)
		}
	}

	if len(fc.Features) == 0 {
		return nil, ErrNoKMLFeatures
	}
	return fc, nil
}

func (pm kmlPlacemark) feature() *geojson.Feature {
	g := pm.geometry()
	if g == nil {
		return nil
	}
	f := geojson.NewFeature(g)
	if pm.ID != "" {
		f.ID = pm.ID
	}
	if name := strings.TrimSpace(pm.Name); name != "" {
		f.Properties["name"] = name
	}
	if desc := strings.TrimSpace(pm.Description); desc != "" {
		f.Properties["description"] = desc
	}
	for _, d := range pm.Data {
		f.Properties[d.Name] = strings.TrimSpace(d.Value)
	}
	for _, d := range pm.SimpleData {
		f.Properties[d.Name] = strings.TrimSpace(d.Value)
	}
	return f
}

func (pm kmlPlacemark) geometry() orb.Geometry {
	switch {
	case pm.Polygon != nil:
		if p := pm.Polygon.polygon(); p != nil {
			return p
		}
	case pm.LineString != nil:
		if ls := parseKMLCoordinates(pm.LineString.Coordinates); len(ls) >= 2 {
			return orb.LineString(ls)
		}
	case pm.Point != nil:
		if pts := parseKMLCoordinates(pm.Point.Coordinates); len(pts) > 0 {
			return pts[0]
		}
	case pm.MultiGeometry != nil:
		return pm.MultiGeometry.geometry()
	}
	return nil
}

func (mg *kmlMultiGeometry) geometry() orb.Geometry {
	var multi orb.MultiPolygon
	for _, p := range mg.Polygons {
		if poly := p.polygon(); poly != nil {
			multi = append(multi, poly)
		}
	}
	if len(multi) > 0 {
		return multi
	}

	var lines orb.MultiLineString
	for _, l := range mg.Lines {
		if ls := parseKMLCoordinates(l.Coordinates); len(ls) >= 2 {
			lines = append(lines, orb.LineString(ls))
		}
	}
	if len(lines) > 0 {
		return lines
	}

	var points orb.MultiPoint
	for _, p := range mg.Points {
		if pts := parseKMLCoordinates(p.Coordinates); len(pts) > 0 {
			points = append(points, pts[0])
		}
	}
	if len(points) > 0 {
		return points
	}
	return nil
}

func (p kmlPolygon) polygon() orb.Polygon {
	outer := closeRing(parseKMLCoordinates(p.Outer))
	if len(outer) < 4 {
		return nil
	}
	poly := orb.Polygon{outer}
	for _, in := range p.Inner {
		if r := closeRing(parseKMLCoordinates(in)); len(r) >= 4 {
			poly = append(poly, r)
		}
	}
	return poly
}

func closeRing(pts []orb.Point) orb.Ring {
	if len(pts) == 0 {
		return nil
	}
	r := orb.Ring(pts)
	if pts[0] != pts[len(pts)-1] {
		r = append(r, pts[0])
	}
	return r
}

// parseKMLCoordinates reads "lon,lat[,alt]" tuples; altitude is dropped and
// malformed tuples are skipped.
func parseKMLCoordinates(s string) []orb.Point {
	var pts []orb.Point
	for _, tuple := range strings.Fields(s) {
		vals := strings.Split(tuple, ",")
		if len(vals) < 2 {
			continue
		}
		lon, err1 := strconv.ParseFloat(strings.TrimSpace(vals[0]), 64)
		lat, err2 := strconv.ParseFloat(strings.TrimSpace(vals[1]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		pts = append(pts, orb.Point{lon, lat})
	}
	return pts
}
