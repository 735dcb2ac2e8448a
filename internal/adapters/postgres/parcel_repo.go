package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marcosgeo/marcos/internal/core/domain"
)

// ParcelRepo implements ports.ParcelRepository with pgx and PostGIS.
type ParcelRepo struct {
	db *DB
}

// NewParcelRepo creates a new ParcelRepo.
func NewParcelRepo(db *DB) *ParcelRepo {
	return &ParcelRepo{db: db}
}

const parcelColumns = `
	id, property_id, import_id, layer, matricula, nome, proprietario,
	area_m2, perimetro_m, measured_area_m2, measured_perimeter_m,
	ST_AsGeoJSON(geom)::text, properties, created_at`

// InsertBatch inserts every parcel of an import in one round trip.
func (r *ParcelRepo) InsertBatch(ctx context.Context, parcels []domain.Parcel) error {
	if len(parcels) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range parcels {
		batch.Queue(`
			INSERT INTO parcels (id, property_id, import_id, layer, matricula, nome, proprietario,
			                     area_m2, perimetro_m, measured_area_m2, measured_perimeter_m,
			                     geom, properties, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			        ST_SetSRID(ST_GeomFromGeoJSON($12), 4326), $13, $14)
		`, p.ID, p.PropertyID, p.ImportID, p.Layer, p.Matricula, p.Nome, p.Proprietario,
			p.AreaM2, p.PerimetroM, p.MeasuredAreaM2, p.MeasuredPerimeterM,
			string(p.Geometry), p.Properties, p.CreatedAt)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range parcels {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// ListByProperty returns a page of a property's parcels, largest first.
func (r *ParcelRepo) ListByProperty(ctx context.Context, propertyID string, limit, offset int) ([]domain.Parcel, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+parcelColumns+`
		FROM parcels
		WHERE property_id = $1
		ORDER BY measured_area_m2 DESC, id
		LIMIT $2 OFFSET $3
	`, propertyID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanParcels(rows)
}

// CountByProperty returns the number of parcels stored for a property.
func (r *ParcelRepo) CountByProperty(ctx context.Context, propertyID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM parcels WHERE property_id = $1`, propertyID).Scan(&n)
	return n, err
}

// DeleteByImport removes the parcels written by one import.
func (r *ParcelRepo) DeleteByImport(ctx context.Context, importID string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM parcels WHERE import_id = $1`, importID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// FindContaining returns the parcels covering a WGS84 point.
func (r *ParcelRepo) FindContaining(ctx context.Context, lat, lon float64) ([]domain.Parcel, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+parcelColumns+`
		FROM parcels
		WHERE ST_Covers(geom, ST_SetSRID(ST_MakePoint($1, $2), 4326))
		ORDER BY ST_Area(geom::geography)
		LIMIT 50
	`, lon, lat)
	if err != nil {
		return nil, err
	}
	return scanParcels(rows)
}

func scanParcels(rows pgx.Rows) ([]domain.Parcel, error) {
	defer rows.Close()

	var parcels []domain.Parcel
	for rows.Next() {
		var (
			p    domain.Parcel
			geom string
		)
		if err := rows.Scan(
			&p.ID, &p.PropertyID, &p.ImportID, &p.Layer, &p.Matricula, &p.Nome, &p.Proprietario,
			&p.AreaM2, &p.PerimetroM, &p.MeasuredAreaM2, &p.MeasuredPerimeterM,
			&geom, &p.Properties, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		p.Geometry = []byte(geom)
		parcels = append(parcels, p)
	}
	return parcels, rows.Err()
}
