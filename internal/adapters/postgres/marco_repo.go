package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marcosgeo/marcos/internal/core/domain"
)

// MarcoRepo implements ports.MarcoRepository.
type MarcoRepo struct {
	db *DB
}

func NewMarcoRepo(db *DB) *MarcoRepo {
	return &MarcoRepo{db: db}
}

// UpsertBatch writes markers keyed by (property_id, code).
func (r *MarcoRepo) UpsertBatch(ctx context.Context, marcos []domain.Marco) error {
	if len(marcos) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range marcos {
		batch.Queue(`
			INSERT INTO marcos (id, property_id, code, description, location, source, created_at)
			VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography, $7, $8)
			ON CONFLICT (property_id, code) DO UPDATE
			SET description = EXCLUDED.description, location = EXCLUDED.location,
			    source = EXCLUDED.source
		`, m.ID, m.PropertyID, m.Code, m.Description, m.Location.Lon, m.Location.Lat, m.Source, m.CreatedAt)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range marcos {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// FindNearby returns markers within radiusMeters using PostGIS ST_DWithin.
func (r *MarcoRepo) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Marco, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, property_id, code, description,
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lon,
		       source,
		       ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) as distance,
		       created_at
		FROM marcos
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance
		LIMIT $4
	`, lon, lat, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var marcos []domain.Marco
	for rows.Next() {
		var m domain.Marco
		var dist float64
		if err := rows.Scan(
			&m.ID, &m.PropertyID, &m.Code, &m.Description,
			&m.Location.Lat, &m.Location.Lon,
			&m.Source, &dist, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		m.Distance = &dist
		marcos = append(marcos, m)
	}
	return marcos, rows.Err()
}
