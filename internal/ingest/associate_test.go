package ingest

import (
	"math"
	"reflect"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func candidate(layer string, minX, minY, maxX, maxY float64) PolygonCandidate {
	ring := orb.Ring{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}
	return PolygonCandidate{Ring: ring, Layer: layer, Area: (maxX - minX) * (maxY - minY), Properties: geojson.Properties{}}
}

func textAt(x, y float64, s string) TextLabel {
	return TextLabel{Position: orb.Point{x, y}, Text: s}
}

func TestAssociateInsideExactlyOne(t *testing.T) {
	polys := RankByArea([]PolygonCandidate{
		candidate("west", 0, 0, 10, 10),
		candidate("east", 20, 0, 30, 10),
	})
	out := AssociateTextToPolygons([]TextLabel{textAt(25, 5, "Lote 7")}, polys)

	for i := 0; i < out.Len(); i++ {
		c := out.At(i)
		texts, _ := c.Properties[PropRawTexts].([]string)
		if c.Layer == "east" {
			if !reflect.DeepEqual(texts, []string{"Lote 7"}) || c.Properties[PropNome] != "7" {
				t.Errorf("east should hold the label, got %+v", c.Properties)
			}
		} else if len(c.Properties) != 0 {
			t.Errorf("west must stay untouched, got %+v", c.Properties)
		}
	}
}

func TestAssociateOutsideAll(t *testing.T) {
	polys := RankByArea([]PolygonCandidate{candidate("a", 0, 0, 10, 10)})
	out := AssociateTextToPolygons([]TextLabel{textAt(50, 50, "Matrícula 12")}, polys)
	if _, ok := out.At(0).Properties[PropRawTexts]; ok {
		t.Error("label outside every polygon must not be assigned")
	}
}

func TestAssociateOverlapLargestWins(t *testing.T) {
	polys := RankByArea([]PolygonCandidate{
		candidate("inner", 4, 4, 6, 6),
		candidate("outer", 0, 0, 10, 10),
	})
	out := AssociateTextToPolygons([]TextLabel{textAt(5, 5, "Fazenda Primavera")}, polys)

	if out.At(0).Layer != "outer" {
		t.Fatalf("expected outer ranked first")
	}
	if out.At(0).Properties[PropNome] != "Primavera" {
		t.Errorf("outer should receive the label, got %+v", out.At(0).Properties)
	}
	if _, ok := out.At(1).Properties[PropRawTexts]; ok {
		t.Error("inner must not receive a label already taken by outer")
	}
}

func TestAssociateFirstWriteWins(t *testing.T) {
	polys := RankByArea([]PolygonCandidate{candidate("a", 0, 0, 10, 10)})
	labels := []TextLabel{
		textAt(1, 1, "Matrícula: 100"),
		textAt(2, 2, "Matrícula: 200 Área: 3 ha"),
	}
	out := AssociateTextToPolygons(labels, polys).At(0)

	if out.Properties[PropMatricula] != "100" {
		t.Errorf("first matricula must win, got %v", out.Properties[PropMatricula])
	}
	if out.Properties[PropArea] != 30000.0 {
		t.Errorf("area from the second label expected, got %v", out.Properties[PropArea])
	}
	texts := out.Properties[PropRawTexts].([]string)
	if len(texts) != 2 || texts[0] != "Matrícula: 100" {
		t.Errorf("raw texts in label order expected, got %v", texts)
	}
}

func TestAssociateDoesNotMutateInput(t *testing.T) {
	polys := RankByArea([]PolygonCandidate{candidate("a", 0, 0, 10, 10)})
	_ = AssociateTextToPolygons([]TextLabel{textAt(5, 5, "Gleba Norte")}, polys)
	if len(polys.At(0).Properties) != 0 {
		t.Errorf("input ranking was mutated: %+v", polys.At(0).Properties)
	}
}

func TestAssociateSkipsBrokenPolygon(t *testing.T) {
	broken := candidate("broken", 0, 0, 10, 10)
	broken.Ring[1] = orb.Point{math.NaN(), 0}
	broken.Area = 1000
	polys := RankByArea([]PolygonCandidate{broken, candidate("ok", 0, 0, 10, 10)})

	out := AssociateTextToPolygons([]TextLabel{textAt(5, 5, "Sítio Alegre")}, polys)
	if out.At(0).Layer != "broken" {
		t.Fatal("expected broken polygon ranked first")
	}
	if _, ok := out.At(0).Properties[PropRawTexts]; ok {
		t.Error("broken polygon must be skipped")
	}
	if out.At(1).Properties[PropNome] != "Alegre" {
		t.Errorf("label should fall through to the next polygon, got %+v", out.At(1).Properties)
	}
}

func TestAssociateMatchesLinearScan(t *testing.T) {
	var cands []PolygonCandidate
	for i := 0; i < 40; i++ {
		x := float64(i%8) * 100
		y := float64(i/8) * 100
		cands = append(cands, candidate("grid", x, y, x+90+float64(i%3)*20, y+90))
	}
	polys := RankByArea(cands)

	var labels []TextLabel
	for i := 0; i < 60; i++ {
		labels = append(labels, textAt(float64(i*13%800)+5, float64(i*7%500)+5, "Lote X"))
	}
	out := AssociateTextToPolygons(labels, polys)

	// Reference: first containing polygon in rank order.
	counts := make([]int, polys.Len())
	for _, l := range labels {
		for i := 0; i < polys.Len(); i++ {
			if ringContains(polys.At(i).Ring, l.Position) {
				counts[i]++
				break
			}
		}
	}
	for i := 0; i < out.Len(); i++ {
		texts, _ := out.At(i).Properties[PropRawTexts].([]string)
		if len(texts) != counts[i] {
			t.Errorf("rank %d: index gave %d labels, linear scan %d", i, len(texts), counts[i])
		}
	}
}

func TestAssociateLabelOnEdge(t *testing.T) {
	for _, pt := range []orb.Point{{10, 5}, {5, 10}, {10, 10}, {0, 5}, {5, 0}} {
		polys := RankByArea([]PolygonCandidate{candidate("a", 0, 0, 10, 10)})
		want := ringContains(polys.At(0).Ring, pt)
		out := AssociateTextToPolygons([]TextLabel{{Position: pt, Text: "Lote 4"}}, polys)
		_, got := out.At(0).Properties[PropRawTexts]
		if got != want {
			t.Errorf("label at %v: assigned=%v, containment test says %v", pt, got, want)
		}
		if pt == (orb.Point{10, 5}) && !got {
			t.Error("label on the maximum-x edge must be assigned")
		}
	}
}
