package ingest

import (
	"log/slog"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/marcosgeo/marcos/internal/pkg/geospatial"
)

// rankedRing wraps a candidate's ring for the R-tree.
type rankedRing struct {
	rank  int
	bound orb.Bound
}

// Bounds implements rtreego.Spatial.
func (r *rankedRing) Bounds() rtreego.Rect {
	return boundRect(r.bound)
}

// boundRect converts a bound to an R-tree rectangle grown by the closure
// tolerance on every side. The tree does not report rectangles that only
// touch, and a label on a ring's edge counts as inside.
func boundRect(b orb.Bound) rtreego.Rect {
	const pad = geospatial.ClosureTolerance
	corner := rtreego.Point{b.Min[0] - pad, b.Min[1] - pad}
	lengths := []float64{b.Max[0] - b.Min[0] + 2*pad, b.Max[1] - b.Min[1] + 2*pad}
	rect, _ := rtreego.NewRect(corner, lengths)
	return rect
}

func indexRings(items []PolygonCandidate) *rtreego.Rtree {
	tree := rtreego.NewTree(2, 25, 50)
	for i := range items {
		if !validRing(items[i].Ring) {
			continue
		}
		tree.Insert(&rankedRing{rank: i, bound: items[i].Ring.Bound()})
	}
	return tree
}

// AssociateTextToPolygons assigns every label to the first polygon, in
// rank order, that contains its anchor. The label text is appended to the
// polygon's _rawTexts and its attributes are merged without overwriting
// existing ones. Labels outside every polygon are dropped. The input is
// not modified; a new ranking with enriched properties is returned.
func AssociateTextToPolygons(labels []TextLabel, polygons RankedPolygons) RankedPolygons {
	items := polygons.All()
	if len(items) == 0 || len(labels) == 0 {
		return RankedPolygons{items: items}
	}
	tree := indexRings(items)

	for _, label := range labels {
		pt := label.Position
		hits := tree.SearchIntersect(boundRect(orb.Bound{Min: pt, Max: pt}))
		if len(hits) == 0 {
			continue
		}
		ranks := make([]int, 0, len(hits))
		for _, h := range hits {
			ranks = append(ranks, h.(*rankedRing).rank)
		}
		sort.Ints(ranks)

		for _, rank := range ranks {
			if !ringContains(items[rank].Ring, pt) {
				continue
			}
			items[rank].Properties = appendRawText(items[rank].Properties, label.Text)
			items[rank].Properties = AssignAttributes(label.Text, items[rank].Properties)
			break
		}
	}
	return RankedPolygons{items: items}
}

// ringContains runs the point-in-polygon test. A ring that makes the test
// panic counts as not containing the point.
func ringContains(ring orb.Ring, pt orb.Point) (inside bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("containment test failed, polygon skipped", "error", r)
			inside = false
		}
	}()
	return planar.PolygonContains(orb.Polygon{ring}, pt)
}

func validRing(r orb.Ring) bool {
	if len(r) < 4 {
		return false
	}
	for _, p := range r {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			return false
		}
	}
	return true
}

func appendRawText(props geojson.Properties, text string) geojson.Properties {
	out := make(geojson.Properties, len(props)+1)
	for k, v := range props {
		out[k] = v
	}
	var texts []string
	if prev, ok := out[PropRawTexts].([]string); ok {
		texts = append(texts, prev...)
	}
	out[PropRawTexts] = append(texts, text)
	return out
}
