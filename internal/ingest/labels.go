// Package ingest turns survey files into GeoJSON parcels. For CAD input it
// recovers parcel attributes by joining loose text annotations to the
// closed polylines that contain them.
package ingest

import (
	"log/slog"
	"strings"

	"github.com/paulmach/orb"

	"github.com/marcosgeo/marcos/internal/pkg/dxf"
)

// TextLabel is one CAD annotation in source coordinates. Height is kept
// as metadata only.
type TextLabel struct {
	Position        orb.Point
	Text            string
	Layer           string
	Height          float64
	EntityType      dxf.Kind
	PositionMissing bool
}

// ExtractTextEntities returns the non-blank TEXT and MTEXT annotations in
// document order. Annotations without an anchor sit at the origin.
func ExtractTextEntities(doc *dxf.Document) []TextLabel {
	if doc == nil {
		return nil
	}
	var labels []TextLabel
	for _, t := range doc.Texts() {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		if t.PositionMissing {
			slog.Debug("text without anchor placed at origin", "layer", t.Layer, "text", content)
		}
		labels = append(labels, TextLabel{
			Position:        orb.Point{t.Position.X, t.Position.Y},
			Text:            content,
			Layer:           t.Layer,
			Height:          t.Height,
			EntityType:      t.Type,
			PositionMissing: t.PositionMissing,
		})
	}
	return labels
}
