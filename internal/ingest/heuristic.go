package ingest

import (
	"errors"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/marcosgeo/marcos/internal/pkg/dxf"
)

// ErrNoPolygons means a drawing had no closed polylines to build parcels from.
var ErrNoPolygons = errors.New("no closed polygons found in drawing")

// Metadata summarises a heuristic run. It is stored under the "metadata"
// member of the output collection.
type Metadata struct {
	TotalTexts       int       `json:"totalTexts"`
	TotalPolygons    int       `json:"totalPolygons"`
	EnrichedPolygons int       `json:"enrichedPolygons"`
	ProcessedAt      time.Time `json:"processedAt"`
}

const metadataMember = "metadata"

var now = time.Now

// ProcessWithHeuristic extracts labels and polygons from a drawing, joins
// them and returns one Polygon feature per candidate in rank order.
func ProcessWithHeuristic(doc *dxf.Document) (*geojson.FeatureCollection, error) {
	labels := ExtractTextEntities(doc)
	polygons := ExtractPolygons(doc)
	if polygons.Len() == 0 {
		return nil, ErrNoPolygons
	}

	enriched := AssociateTextToPolygons(labels, polygons)

	fc := geojson.NewFeatureCollection()
	meta := Metadata{TotalTexts: len(labels), TotalPolygons: enriched.Len(), ProcessedAt: now().UTC()}
	for _, c := range enriched.All() {
		if _, ok := c.Properties[PropRawTexts]; ok {
			meta.EnrichedPolygons++
		}
		f := geojson.NewFeature(orb.Polygon{c.Ring})
		for k, v := range c.Properties {
			f.Properties[k] = v
		}
		f.Properties[PropLayer] = c.Layer
		f.Properties[PropEntityType] = string(c.EntityType)
		f.Properties[PropArea2D] = c.Area
		fc.Append(f)
	}
	fc.ExtraMembers = geojson.Properties{metadataMember: meta}
	return fc, nil
}

// MetadataOf returns the heuristic summary attached to fc, if any.
func MetadataOf(fc *geojson.FeatureCollection) (Metadata, bool) {
	if fc == nil || fc.ExtraMembers == nil {
		return Metadata{}, false
	}
	m, ok := fc.ExtraMembers[metadataMember].(Metadata)
	return m, ok
}
