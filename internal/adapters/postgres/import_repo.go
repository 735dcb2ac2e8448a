package postgres

import (
	"context"
	"fmt"

	"github.com/marcosgeo/marcos/internal/core/domain"
)

// ImportRepo implements ports.ImportRepository.
type ImportRepo struct {
	db *DB
}

func NewImportRepo(db *DB) *ImportRepo {
	return &ImportRepo{db: db}
}

func (r *ImportRepo) Create(ctx context.Context, j *domain.ImportJob) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO imports (id, property_id, filename, format, zone, merge, status,
		                     feature_count, error, storage_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, j.ID, j.PropertyID, j.Filename, j.Format, j.ZoneLabel, j.Merge, string(j.Status),
		j.FeatureCount, j.Error, j.StorageKey, j.CreatedAt, j.UpdatedAt)
	return err
}

// UpdateStatus writes the mutable fields of a job.
func (r *ImportRepo) UpdateStatus(ctx context.Context, j *domain.ImportJob) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE imports
		SET status = $2, format = $3, feature_count = $4, error = $5, updated_at = $6
		WHERE id = $1
	`, j.ID, string(j.Status), j.Format, j.FeatureCount, j.Error, j.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.WrapError(domain.ErrNotFound, "update import", fmt.Errorf("no import %s", j.ID))
	}
	return nil
}

func (r *ImportRepo) GetByID(ctx context.Context, id string) (*domain.ImportJob, error) {
	var (
		j      domain.ImportJob
		status string
	)
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, property_id, filename, format, zone, merge, status,
		       feature_count, error, storage_key, created_at, updated_at
		FROM imports WHERE id = $1
	`, id).Scan(
		&j.ID, &j.PropertyID, &j.Filename, &j.Format, &j.ZoneLabel, &j.Merge, &status,
		&j.FeatureCount, &j.Error, &j.StorageKey, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, notFound("get import", err)
	}
	j.Status = domain.ImportStatus(status)
	return &j, nil
}
