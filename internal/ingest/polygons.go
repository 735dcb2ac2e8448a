package ingest

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/marcosgeo/marcos/internal/pkg/dxf"
	"github.com/marcosgeo/marcos/internal/pkg/geospatial"
)

// PolygonCandidate is a closed ring recovered from a polyline. Area is the
// planar Shoelace area in source units and only serves as a ranking signal.
type PolygonCandidate struct {
	Ring       orb.Ring
	Layer      string
	Area       float64
	EntityType dxf.Kind
	Properties geojson.Properties
	// Index is the polyline's position in the document.
	Index int
}

func (c PolygonCandidate) clone() PolygonCandidate {
	c.Ring = append(orb.Ring(nil), c.Ring...)
	c.Properties = c.Properties.Clone()
	return c
}

// RankedPolygons is a candidate list ordered by descending area, ties in
// document order. Only RankByArea builds one, so consumers can rely on
// index 0 being the largest ring.
type RankedPolygons struct {
	items []PolygonCandidate
}

// RankByArea copies and ranks candidates.
func RankByArea(candidates []PolygonCandidate) RankedPolygons {
	items := make([]PolygonCandidate, len(candidates))
	for i := range candidates {
		items[i] = candidates[i].clone()
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Area > items[j].Area })
	return RankedPolygons{items: items}
}

func (r RankedPolygons) Len() int { return len(r.items) }

// At returns a copy of the candidate at rank i.
func (r RankedPolygons) At(i int) PolygonCandidate { return r.items[i].clone() }

// All returns copies of every candidate in rank order.
func (r RankedPolygons) All() []PolygonCandidate {
	out := make([]PolygonCandidate, len(r.items))
	for i := range r.items {
		out[i] = r.items[i].clone()
	}
	return out
}

// ExtractPolygons converts closed LWPOLYLINE and POLYLINE entities into
// ranked polygon candidates. A polyline counts as closed when its closure
// flag is set or its endpoints lie within ClosureTolerance; anything else
// is an open line and is rejected. Rings need three distinct vertices and
// a non-zero area, and are closed exactly by repeating the first vertex.
func ExtractPolygons(doc *dxf.Document) RankedPolygons {
	if doc == nil {
		return RankedPolygons{}
	}
	var candidates []PolygonCandidate
	for i, pl := range doc.Polylines() {
		ring, ok := closedRing(pl)
		if !ok {
			continue
		}
		area := geospatial.ShoelaceArea(ringPairs(ring))
		if area == 0 {
			continue
		}
		candidates = append(candidates, PolygonCandidate{
			Ring:       ring,
			Layer:      pl.Layer,
			Area:       area,
			EntityType: pl.Type,
			Properties: geojson.Properties{},
			Index:      i,
		})
	}
	return RankByArea(candidates)
}

func closedRing(pl *dxf.Polyline) (orb.Ring, bool) {
	n := len(pl.Vertices)
	if n < 3 {
		return nil, false
	}
	first := [2]float64{pl.Vertices[0].X, pl.Vertices[0].Y}
	last := [2]float64{pl.Vertices[n-1].X, pl.Vertices[n-1].Y}

	flagged := pl.ClosedFlag && pl.Closed
	if !flagged && !geospatial.SamePoint(first, last) {
		return nil, false
	}

	ring := make(orb.Ring, 0, n+1)
	for _, v := range pl.Vertices {
		ring = append(ring, orb.Point{v.X, v.Y})
	}
	if first != last {
		ring = append(ring, ring[0])
	}
	if distinctVertices(ring[:len(ring)-1]) < 3 {
		return nil, false
	}
	return ring, true
}

func distinctVertices(pts []orb.Point) int {
	var distinct []orb.Point
outer:
	for _, p := range pts {
		for _, d := range distinct {
			if geospatial.SamePoint(p, d) {
				continue outer
			}
		}
		distinct = append(distinct, p)
		if len(distinct) >= 3 {
			break
		}
	}
	return len(distinct)
}

func ringPairs(r orb.Ring) [][2]float64 {
	out := make([][2]float64, len(r))
	for i, p := range r {
		out[i] = p
	}
	return out
}
