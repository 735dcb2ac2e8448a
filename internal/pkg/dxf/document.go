// Package dxf reads the parts of a CAD drawing the survey importer needs:
// text annotations and polylines from the ENTITIES section. It accepts
// ASCII DXF and the JSON shape produced by browser-side DXF parsers.
package dxf

import "errors"

var (
	ErrNotDXF          = errors.New("not a DXF document")
	ErrBinaryDXF       = errors.New("binary DXF is not supported")
	ErrMalformed       = errors.New("malformed DXF")
	ErrTooManyEntities = errors.New("too many DXF entities")
)

// Kind is the DXF entity type name.
type Kind string

const (
	KindText       Kind = "TEXT"
	KindMText      Kind = "MTEXT"
	KindLWPolyline Kind = "LWPOLYLINE"
	KindPolyline   Kind = "POLYLINE"
)

// Point is a vertex in the drawing's own coordinate system.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Entity is one of *Text or *Polyline.
type Entity interface {
	Kind() Kind
	LayerName() string
}

// Text is a TEXT or MTEXT annotation. PositionMissing is set when the
// source had no anchor and Position was coerced to the origin.
type Text struct {
	Type            Kind
	Layer           string
	Position        Point
	PositionMissing bool
	Content         string
	Height          float64
}

func (t *Text) Kind() Kind { return t.Type }
func (t *Text) LayerName() string { return t.Layer }

// Polyline is an LWPOLYLINE or POLYLINE. ClosedFlag reports whether the
// source carried a closure flag at all; Closed is its value.
type Polyline struct {
	Type       Kind
	Layer      string
	Vertices   []Point
	Closed     bool
	ClosedFlag bool
}

func (p *Polyline) Kind() Kind { return p.Type }
func (p *Polyline) LayerName() string { return p.Layer }

// Document is the flat entity list of a drawing, in file order.
type Document struct {
	Entities []Entity
	// Encoding names the charset text was decoded from.
	Encoding string
	// Version is the $ACADVER header value when present.
	Version string
	// Skipped counts entities of unsupported types.
	Skipped int
}

// Options bounds parsing of untrusted input.
type Options struct {
	// MaxEntities caps the number of entities read; zero means no cap.
	MaxEntities int
}

// Texts returns the TEXT and MTEXT entities in document order.
func (d *Document) Texts() []*Text {
	var out []*Text
	for _, e := range d.Entities {
		if t, ok := e.(*Text); ok {
			out = append(out, t)
		}
	}
	return out
}

// Polylines returns the LWPOLYLINE and POLYLINE entities in document order.
func (d *Document) Polylines() []*Polyline {
	var out []*Polyline
	for _, e := range d.Entities {
		if p, ok := e.(*Polyline); ok {
			out = append(out, p)
		}
	}
	return out
}
