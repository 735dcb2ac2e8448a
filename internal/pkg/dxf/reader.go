package dxf

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rpaloschi/dxf-go/core"
	"github.com/rpaloschi/dxf-go/entities"
	"github.com/rpaloschi/dxf-go/sections"

	"github.com/marcosgeo/marcos/internal/pkg/textenc"
)

var binarySentinel = []byte("AutoCAD Binary DXF")

var endOfSection = core.NewTag(0, core.NewStringValue("ENDSEC"))

func init() {
	// dxf-go reports every discarded group code; keep that at debug level.
	core.Log.SetOutput(debugWriter{})
	core.Log.SetPrefix("")
}

type debugWriter struct{}

func (debugWriter) Write(p []byte) (int, error) {
	slog.Debug("dxf", "detail", strings.TrimSpace(string(p)))
	return len(p), nil
}

// Parse reads an ASCII DXF file held in memory. Only the ENTITIES section
// is interpreted; entities other than TEXT, MTEXT, LWPOLYLINE and POLYLINE
// are counted in Skipped.
func Parse(data []byte, opts Options) (*Document, error) {
	if bytes.HasPrefix(data, binarySentinel) {
		return nil, ErrBinaryDXF
	}

	text, enc := textenc.Decode(data, headerCodepage(data))
	tags, err := readTags(text)
	if err != nil {
		return nil, err
	}

	doc := &Document{Encoding: enc}
	var (
		section  string
		sawStart bool
		groups   []core.TagSlice
	)
	for _, g := range core.TagGroups(tags, 0) {
		switch name := g[0].Value.ToString(); {
		case name == "SECTION":
			sawStart = true
			section = sectionName(g)
			if section == "HEADER" {
				doc.Version = headerVersion(g)
			}
		case name == "ENDSEC":
			section = ""
		case section == "ENTITIES":
			groups = append(groups, g)
		}
	}
	if !sawStart {
		return nil, ErrNotDXF
	}

	if n := countEntities(groups); opts.MaxEntities > 0 && n > opts.MaxEntities {
		return nil, fmt.Errorf("%d entities, limit %d: %w", n, opts.MaxEntities, ErrTooManyEntities)
	}

	for i := 0; i < len(groups); i++ {
		g := groups[i]
		var e Entity
		switch groupKind(g) {
		case "TEXT":
			e = textFromTags(g)
		case "MTEXT":
			e = mtextFromTags(g)
		case "LWPOLYLINE":
			e = lwpolylineFromTags(g)
		case "POLYLINE":
			j := i + 1
			for j < len(groups) && groupKind(groups[j]) == "VERTEX" {
				j++
			}
			e = polylineFromTags(g, groups[i+1:j])
			if j < len(groups) && groupKind(groups[j]) == "SEQEND" {
				j++
			}
			i = j - 1
		}
		if e == nil {
			doc.Skipped++
			continue
		}
		doc.Entities = append(doc.Entities, e)
	}
	return doc, nil
}

// readTags runs the dxf-go tagger to the end of the input. The tagger
// panics on group codes it has no value type for.
func readTags(text []byte) (tags core.TagSlice, err error) {
	defer func() {
		if r := recover(); r != nil {
			tags, err = nil, fmt.Errorf("tag %d: %v: %w", len(tags)+1, r, ErrMalformed)
		}
	}()
	next := core.Tagger(bytes.NewReader(text))
	for {
		tag, tagErr := next()
		if tagErr != nil {
			return nil, fmt.Errorf("tag %d: %v: %w", len(tags)+1, tagErr, ErrMalformed)
		}
		if *tag == core.NoneTag {
			return tags, nil
		}
		tags = append(tags, tag)
	}
}

func groupKind(g core.TagSlice) string {
	return strings.TrimSpace(g[0].Value.ToString())
}

func sectionName(g core.TagSlice) string {
	if i := g.TagIndex(2, 1, len(g)); i >= 0 {
		return strings.TrimSpace(g[i].Value.ToString())
	}
	return ""
}

func headerVersion(g core.TagSlice) string {
	header := sections.NewHeaderSection(append(g[:len(g):len(g)], endOfSection))
	if v := header.Get("$ACADVER"); len(v) > 0 {
		return v[0].Value.ToString()
	}
	return ""
}

// countEntities counts drawing entities; VERTEX and SEQEND belong to
// their POLYLINE.
func countEntities(groups []core.TagSlice) int {
	n := 0
	for _, g := range groups {
		if k := groupKind(g); k != "VERTEX" && k != "SEQEND" {
			n++
		}
	}
	return n
}

func hasCode(g core.TagSlice, codes ...int) bool {
	for _, c := range codes {
		if g.TagIndex(c, 1, len(g)) < 0 {
			return false
		}
	}
	return true
}

func stringAt(g core.TagSlice, code int) string {
	if i := g.TagIndex(code, 1, len(g)); i >= 0 {
		s, _ := core.AsString(g[i].Value)
		return s
	}
	return ""
}

func floatAt(g core.TagSlice, code int) (float64, bool) {
	if i := g.TagIndex(code, 1, len(g)); i >= 0 {
		return core.AsFloat(g[i].Value)
	}
	return 0, false
}

// textFromTags anchors justified TEXT on its alignment point (11/21);
// left-aligned text only carries the first point.
func textFromTags(g core.TagSlice) Entity {
	src, err := entities.NewText(g)
	if err != nil {
		slog.Debug("dxf: TEXT skipped", "error", err)
		return nil
	}
	t := &Text{Type: KindText, Layer: src.LayerName, Content: decodeTextValue(src.Value), Height: src.Height}

	justified := src.HorizontalJustification != entities.HTEXT_LEFT || src.VerticalJustification != entities.VTEXT_BASELINE
	switch {
	case justified && hasCode(g, 11, 21):
		t.Position = Point{X: src.SecondAlignmentPoint.X, Y: src.SecondAlignmentPoint.Y}
	case hasCode(g, 10, 20):
		t.Position = Point{X: src.FirstAlignmentPoint.X, Y: src.FirstAlignmentPoint.Y}
	default:
		t.PositionMissing = true
	}
	return t
}

// mtextFromTags reads MTEXT straight from its tags; dxf-go has no MTEXT
// entity. The content is split across any number of code 3 chunks
// followed by a final code 1.
func mtextFromTags(g core.TagSlice) Entity {
	var raw strings.Builder
	for _, tag := range g.AllWithCode(3) {
		s, _ := core.AsString(tag.Value)
		raw.WriteString(s)
	}
	raw.WriteString(stringAt(g, 1))

	t := &Text{Type: KindMText, Layer: stringAt(g, 8), Content: StripMText(raw.String())}
	t.Height, _ = floatAt(g, 40)
	x, okX := floatAt(g, 10)
	y, okY := floatAt(g, 20)
	if okX && okY {
		t.Position = Point{X: x, Y: y}
	} else {
		t.PositionMissing = true
	}
	return t
}

// lwpolylineFromTags guards the dxf-go constructor, which indexes its
// point slice by the declared count (90) and panics when the file lies.
func lwpolylineFromTags(g core.TagSlice) (e Entity) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("dxf: LWPOLYLINE skipped", "error", r)
			e = nil
		}
	}()
	src, err := entities.NewLWPolyline(g)
	if err != nil {
		slog.Debug("dxf: LWPOLYLINE skipped", "error", err)
		return nil
	}
	pl := &Polyline{Type: KindLWPolyline, Layer: src.LayerName, ClosedFlag: hasCode(g, 70), Closed: src.Closed}
	points := src.Points
	if n := len(g.AllWithCode(10)); n < len(points) {
		points = points[:n]
	}
	for _, p := range points {
		pl.Vertices = append(pl.Vertices, Point{X: p.Point.X, Y: p.Point.Y})
	}
	return pl
}

// polylineFromTags assembles a heavy POLYLINE from its VERTEX groups.
// Meshes are not outlines and yield nil.
func polylineFromTags(head core.TagSlice, vertexGroups []core.TagSlice) Entity {
	src, err := entities.NewPolyline(head)
	if err != nil || src.Is3dPolygonMesh || src.IsPolyfaceMesh {
		return nil
	}

	nested := make(entities.EntitySlice, 0, len(vertexGroups))
	for _, vg := range vertexGroups {
		if !hasCode(vg, 10, 20) {
			continue
		}
		v, err := entities.NewVertex(vg)
		if err != nil || v.IsPolyfaceMeshVertex {
			continue
		}
		nested = append(nested, v)
	}
	src.AddNestedEntities(nested)

	pl := &Polyline{Type: KindPolyline, Layer: src.LayerName, ClosedFlag: hasCode(head, 70), Closed: src.Closed}
	for _, v := range src.Vertices {
		pl.Vertices = append(pl.Vertices, Point{X: v.Location.X, Y: v.Location.Y})
	}
	return pl
}
