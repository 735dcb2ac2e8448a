package ports

import (
	"context"

	"github.com/marcosgeo/marcos/internal/core/domain"
	"github.com/marcosgeo/marcos/internal/ingest"
)

// EventPublisher publishes import events to a message broker.
type EventPublisher interface {
	PublishImportRequested(ctx context.Context, job *domain.ImportJob) error
	PublishImportCompleted(ctx context.Context, event *domain.ImportEvent) error
	PublishImportFailed(ctx context.Context, event *domain.ImportEvent) error
}

// EventSubscriber subscribes to import events from a message broker.
type EventSubscriber interface {
	SubscribeImportRequests(ctx context.Context, handler func(ctx context.Context, job *domain.ImportJob) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// ObjectStorage keeps uploaded files until a worker picks them up.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data []byte) error
	Open(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// GeometryConverter turns a survey file into a WGS84 feature collection.
type GeometryConverter interface {
	Convert(ctx context.Context, in ingest.Input) (*ingest.Result, error)
}

// GeometryConverterFunc adapts a plain function to GeometryConverter.
type GeometryConverterFunc func(ctx context.Context, in ingest.Input) (*ingest.Result, error)

func (f GeometryConverterFunc) Convert(ctx context.Context, in ingest.Input) (*ingest.Result, error) {
	return f(ctx, in)
}
