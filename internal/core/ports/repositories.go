package ports

import (
	"context"

	"github.com/marcosgeo/marcos/internal/core/domain"
)

// ParcelRepository persists parcel footprints.
type ParcelRepository interface {
	InsertBatch(ctx context.Context, parcels []domain.Parcel) error
	ListByProperty(ctx context.Context, propertyID string, limit, offset int) ([]domain.Parcel, error)
	CountByProperty(ctx context.Context, propertyID string) (int, error)
	// DeleteByImport removes every parcel written by one import and returns
	// how many rows went away.
	DeleteByImport(ctx context.Context, importID string) (int64, error)
	FindContaining(ctx context.Context, lat, lon float64) ([]domain.Parcel, error)
}

// MarcoRepository persists survey markers.
type MarcoRepository interface {
	UpsertBatch(ctx context.Context, marcos []domain.Marco) error
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Marco, error)
}

// ImportRepository persists import jobs.
type ImportRepository interface {
	Create(ctx context.Context, job *domain.ImportJob) error
	UpdateStatus(ctx context.Context, job *domain.ImportJob) error
	GetByID(ctx context.Context, id string) (*domain.ImportJob, error)
}
