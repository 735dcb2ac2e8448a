package usecases

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/marcosgeo/marcos/internal/core/domain"
	"github.com/marcosgeo/marcos/internal/core/ports"
	"github.com/marcosgeo/marcos/internal/ingest"
	"github.com/marcosgeo/marcos/internal/pkg/geospatial"
)

// ParcelService handles parcel queries.
type ParcelService struct {
	parcels ports.ParcelRepository
}

// NewParcelService creates a new ParcelService.
func NewParcelService(parcels ports.ParcelRepository) *ParcelService {
	return &ParcelService{parcels: parcels}
}

// ListByProperty returns a page of the parcels of a property.
func (s *ParcelService) ListByProperty(ctx context.Context, propertyID string, limit, offset int) ([]domain.Parcel, error) {
	if propertyID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list parcels", errors.New("property id is required"))
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.parcels.ListByProperty(ctx, propertyID, limit, offset)
}

// CountByProperty returns how many parcels a property has.
func (s *ParcelService) CountByProperty(ctx context.Context, propertyID string) (int, error) {
	if propertyID == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "count parcels", errors.New("property id is required"))
	}
	return s.parcels.CountByProperty(ctx, propertyID)
}

// FindContaining returns the parcels whose footprint covers the point.
func (s *ParcelService) FindContaining(ctx context.Context, lat, lon float64) ([]domain.Parcel, error) {
	if !(domain.GeoPoint{Lat: lat, Lon: lon}).Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "find containing", fmt.Errorf("point %.6f,%.6f out of range", lat, lon))
	}
	return s.parcels.FindContaining(ctx, lat, lon)
}

// ParcelsFromCollection maps the polygonal features of fc to parcels.
// Other geometries are skipped.
func ParcelsFromCollection(fc *geojson.FeatureCollection, propertyID, importID string, newID func() string, now time.Time) []domain.Parcel {
	if fc == nil {
		return nil
	}
	var out []domain.Parcel
	for _, f := range fc.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			continue
		}
		geom, err := geojson.NewGeometry(f.Geometry).MarshalJSON()
		if err != nil {
			continue
		}
		props := map[string]any(f.Properties.Clone())
		area, perimeter := measure(f.Geometry)
		out = append(out, domain.Parcel{
			ID:           newID(),
			PropertyID:   propertyID,
			ImportID:     importID,
			Layer:        stringProp(props, ingest.PropLayer),
			Matricula:    stringProp(props, ingest.PropMatricula),
			Nome:         stringProp(props, ingest.PropNome),
			Proprietario: stringProp(props, ingest.PropProprietario),
			AreaM2:       floatProp(props, ingest.PropArea),
			PerimetroM:   floatProp(props, ingest.PropPerimetro),
			Geometry:     geom,
			Properties:   props,
			CreatedAt:    now,

			MeasuredAreaM2:     area,
			MeasuredPerimeterM: perimeter,
		})
	}
	return out
}

// measure returns the geodesic area and outer boundary length of a WGS84
// polygon in square metres and metres. Holes reduce the area but do not
// count towards the perimeter.
func measure(g orb.Geometry) (area, perimeter float64) {
	var polys []orb.Polygon
	switch v := g.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{v}
	case orb.MultiPolygon:
		polys = v
	}
	for _, p := range polys {
		if len(p) == 0 {
			continue
		}
		area += math.Abs(geo.Area(p))
		outer := make([][2]float64, len(p[0]))
		for i, pt := range p[0] {
			outer[i] = [2]float64{pt[0], pt[1]}
		}
		perimeter += geospatial.RingPerimeter(outer)
	}
	return area, perimeter
}

func stringProp(props map[string]any, key string) string {
	switch v := props[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

func floatProp(props map[string]any, key string) *float64 {
	switch v := props[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	}
	return nil
}
