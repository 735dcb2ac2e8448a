package dxf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// jsonPoint is {x, y[, z]} as written by browser DXF parsers.
type jsonPoint struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func (p *jsonPoint) point() (Point, bool) {
	if p == nil || p.X == nil || p.Y == nil {
		return Point{}, false
	}
	return Point{X: *p.X, Y: *p.Y}, true
}

type jsonEntity struct {
	Type       string      `json:"type"`
	Layer      string      `json:"layer"`
	Text       *string     `json:"text"`
	String     *string     `json:"string"`
	StartPoint *jsonPoint  `json:"startPoint"`
	Position   *jsonPoint  `json:"position"`
	X          *float64    `json:"x"`
	Y          *float64    `json:"y"`
	TextHeight float64     `json:"textHeight"`
	Height     float64     `json:"height"`
	Vertices   []jsonPoint `json:"vertices"`
	Closed     *bool       `json:"closed"`
	Shape      *bool       `json:"shape"`
}

type jsonDocument struct {
	Entities []jsonEntity `json:"entities"`
}

// positionSource is one way a JSON entity shape stores its anchor.
type positionSource struct {
	name string
	get  func(e *jsonEntity) (Point, bool)
}

var (
	fromStartPoint = positionSource{"startPoint", func(e *jsonEntity) (Point, bool) { return e.StartPoint.point() }}
	fromPosition   = positionSource{"position", func(e *jsonEntity) (Point, bool) { return e.Position.point() }}
	fromFlatXY     = positionSource{"x/y", func(e *jsonEntity) (Point, bool) {
		if e.X == nil || e.Y == nil {
			return Point{}, false
		}
		return Point{X: *e.X, Y: *e.Y}, true
	}}
)

// anchorSources lists, per entity type, where each supported producer puts
// the anchor: dxf-parser writes startPoint for TEXT and position for MTEXT,
// some exporters use position for both, flattened exports write x/y.
var anchorSources = map[Kind][]positionSource{
	KindText:  {fromStartPoint, fromPosition, fromFlatXY},
	KindMText: {fromPosition, fromFlatXY},
}

// IsJSONDocument reports whether data is a JSON object with an entities array.
func IsJSONDocument(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var head struct {
		Entities json.RawMessage `json:"entities"`
	}
	if err := json.Unmarshal(trimmed, &head); err != nil {
		return false
	}
	return len(head.Entities) > 0 && head.Entities[0] == '['
}

// ParseJSON reads a parsed-DXF JSON document.
func ParseJSON(data []byte, opts Options) (*Document, error) {
	var raw jsonDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode dxf json: %w", ErrMalformed)
	}
	if raw.Entities == nil {
		return nil, ErrNotDXF
	}
	if opts.MaxEntities > 0 && len(raw.Entities) > opts.MaxEntities {
		return nil, fmt.Errorf("%d entities, limit %d: %w", len(raw.Entities), opts.MaxEntities, ErrTooManyEntities)
	}

	doc := &Document{Encoding: "UTF-8"}
	for i := range raw.Entities {
		e := &raw.Entities[i]
		switch kind := Kind(strings.ToUpper(e.Type)); kind {
		case KindText, KindMText:
			doc.Entities = append(doc.Entities, textFromJSON(kind, e))
		case KindLWPolyline, KindPolyline:
			doc.Entities = append(doc.Entities, polylineFromJSON(kind, e))
		default:
			doc.Skipped++
		}
	}
	return doc, nil
}

func textFromJSON(kind Kind, e *jsonEntity) *Text {
	t := &Text{Type: kind, Layer: e.Layer, Height: e.TextHeight}
	if t.Height == 0 {
		t.Height = e.Height
	}

	switch {
	case e.Text != nil:
		t.Content = *e.Text
	case e.String != nil:
		t.Content = *e.String
	}
	if kind == KindMText {
		t.Content = StripMText(t.Content)
	} else {
		t.Content = decodeTextValue(t.Content)
	}

	t.PositionMissing = true
	for _, src := range anchorSources[kind] {
		if p, ok := src.get(e); ok {
			t.Position = p
			t.PositionMissing = false
			break
		}
	}
	return t
}

func polylineFromJSON(kind Kind, e *jsonEntity) *Polyline {
	pl := &Polyline{Type: kind, Layer: e.Layer}
	switch {
	case e.Closed != nil:
		pl.ClosedFlag, pl.Closed = true, *e.Closed
	case e.Shape != nil:
		pl.ClosedFlag, pl.Closed = true, *e.Shape
	}
	for i := range e.Vertices {
		if p, ok := e.Vertices[i].point(); ok {
			pl.Vertices = append(pl.Vertices, p)
		}
	}
	return pl
}
