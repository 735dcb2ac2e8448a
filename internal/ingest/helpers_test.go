package ingest

import (
	"github.com/marcosgeo/marcos/internal/pkg/dxf"
)

func rect(minX, minY, maxX, maxY float64) []dxf.Point {
	return []dxf.Point{{X: minX, Y: minY}, {X: maxX, Y: minY}, {X: maxX, Y: maxY}, {X: minX, Y: maxY}}
}

func closedPolyline(layer string, pts []dxf.Point) *dxf.Polyline {
	return &dxf.Polyline{Type: dxf.KindLWPolyline, Layer: layer, Vertices: pts, Closed: true, ClosedFlag: true}
}

func label(x, y float64, text string) *dxf.Text {
	return &dxf.Text{Type: dxf.KindMText, Layer: "ROTULOS", Position: dxf.Point{X: x, Y: y}, Content: text}
}

func document(entities ...dxf.Entity) *dxf.Document {
	return &dxf.Document{Entities: entities}
}
