package http

import (
	"github.com/nats-io/nats.go"

	"github.com/marcosgeo/marcos/internal/adapters/postgres"
	"github.com/marcosgeo/marcos/internal/adapters/valkey"
	"github.com/marcosgeo/marcos/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Imports *usecases.ImportService
	Parcels *usecases.ParcelService
	Marcos  *usecases.MarcoService
	NATS    *nats.Conn
	DB      *postgres.DB
	Cache   *valkey.Cache

	// MaxUploadBytes caps multipart file size; 0 leaves only fiber's
	// BodyLimit in place.
	MaxUploadBytes int
	DefaultZone    string
}
