package usecases

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/marcosgeo/marcos/internal/core/domain"
	"github.com/marcosgeo/marcos/internal/core/ports"
	"github.com/marcosgeo/marcos/internal/ingest"
	"github.com/marcosgeo/marcos/internal/pkg/coords"
	"github.com/marcosgeo/marcos/internal/pkg/metrics"
)

// MarcoImport summarises one survey marker sheet import.
type MarcoImport struct {
	Marcos []domain.Marco      `json:"marcos"`
	Report ingest.SheetReport `json:"report"`
}

// MarcoService imports and queries survey markers.
type MarcoService struct {
	marcos      ports.MarcoRepository
	defaultZone string
	now         func() time.Time
	newID       func() string
}

// NewMarcoService creates a new MarcoService.
func NewMarcoService(marcos ports.MarcoRepository, defaultZone string) *MarcoService {
	if defaultZone == "" {
		defaultZone = coords.DefaultZoneLabel
	}
	return &MarcoService{marcos: marcos, defaultZone: defaultZone, now: time.Now, newID: uuid.NewString}
}

// ImportSheet reads a CSV or XLSX marker sheet and upserts every accepted
// row. Markers are keyed by property and code, so re-importing a sheet
// updates positions in place.
func (s *MarcoService) ImportSheet(ctx context.Context, up Upload) (*MarcoImport, error) {
	if err := validateUpload(up, true); err != nil {
		return nil, err
	}
	format, err := ingest.DetectFormat(up.Filename, up.Data)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "import marcos", err)
	}

	zone := s.defaultZone
	if up.Zone != "" {
		zone = up.Zone
	}
	proj := coords.ParseZoneLabel(zone)

	var res *ingest.Result
	switch format {
	case ingest.FormatCSV, ingest.FormatXLSX:
		res, err = ingest.Convert(ctx, ingest.Input{Filename: up.Filename, Data: up.Data, ZoneLabel: proj.Label()})
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "import marcos", fmt.Errorf("%s is not a marker sheet", format))
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnprocessable, "import marcos", err)
	}

	out := &MarcoImport{Report: *res.Sheet}
	now := s.now()
	source := filepath.Base(up.Filename)
	for i, f := range res.Collection.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		code := stringProp(f.Properties, ingest.PropCodigo)
		if code == "" {
			code = fmt.Sprintf("P%03d", i+1)
		}
		out.Marcos = append(out.Marcos, domain.Marco{
			ID:          s.newID(),
			PropertyID:  up.PropertyID,
			Code:        code,
			Description: stringProp(f.Properties, ingest.PropDescricao),
			Location:    domain.GeoPoint{Lat: pt.Lat(), Lon: pt.Lon()},
			Source:      source,
			CreatedAt:   now,
		})
	}
	if len(out.Marcos) == 0 {
		return nil, domain.WrapError(domain.ErrUnprocessable, "import marcos", errors.New("no valid marker rows"))
	}

	if err := s.marcos.UpsertBatch(ctx, out.Marcos); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "upsert marcos", err)
	}
	metrics.MarcosImported.WithLabelValues("accepted").Add(float64(out.Report.Accepted))
	metrics.MarcosImported.WithLabelValues("rejected").Add(float64(len(out.Report.Rejected)))
	return out, nil
}

// FindNearby returns markers within radiusMeters of the point.
func (s *MarcoService) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Marco, error) {
	if !(domain.GeoPoint{Lat: lat, Lon: lon}).Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "find marcos", fmt.Errorf("point %.6f,%.6f out of range", lat, lon))
	}
	if radiusMeters <= 0 || radiusMeters > 50000 {
		radiusMeters = 1000
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.marcos.FindNearby(ctx, lat, lon, radiusMeters, limit)
}
