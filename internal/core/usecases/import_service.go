package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/marcosgeo/marcos/internal/core/domain"
	"github.com/marcosgeo/marcos/internal/core/ports"
	"github.com/marcosgeo/marcos/internal/ingest"
	"github.com/marcosgeo/marcos/internal/pkg/coords"
	"github.com/marcosgeo/marcos/internal/pkg/metrics"
	"github.com/marcosgeo/marcos/internal/pkg/telemetry"
)

// Upload is a survey file as received from a client.
type Upload struct {
	PropertyID string
	Filename   string
	Data       []byte
	Zone       string // UTM zone label of projected coordinates, e.g. "22S"
	Merge      bool
}

// Preview is the converted collection plus what the pipeline learned.
type Preview struct {
	Format     ingest.Format               `json:"format"`
	Source     string                      `json:"source_zone"`
	Zone       coords.ZoneInfo             `json:"zone"`
	Metadata   *ingest.Metadata            `json:"metadata,omitempty"`
	Sheet      *ingest.SheetReport         `json:"sheet,omitempty"`
	Collection *geojson.FeatureCollection `json:"collection"`
}

// ImportOptions tunes ImportService.
type ImportOptions struct {
	DefaultZone    string
	MaxEntities    int
	PreviewTTL     int // seconds; 0 disables the preview cache
	ConvertTimeout time.Duration
}

// ImportService converts survey files and stores their parcels.
type ImportService struct {
	parcels   ports.ParcelRepository
	imports   ports.ImportRepository
	publisher ports.EventPublisher
	storage   ports.ObjectStorage
	cache     ports.CacheService
	converter ports.GeometryConverter
	opts      ImportOptions

	now   func() time.Time
	newID func() string
}

// NewImportService creates a new ImportService. A nil converter means
// ingest.Convert.
func NewImportService(
	parcels ports.ParcelRepository,
	imports ports.ImportRepository,
	publisher ports.EventPublisher,
	storage ports.ObjectStorage,
	cache ports.CacheService,
	converter ports.GeometryConverter,
	opts ImportOptions,
) *ImportService {
	if converter == nil {
		converter = ports.GeometryConverterFunc(ingest.Convert)
	}
	if opts.DefaultZone == "" {
		opts.DefaultZone = coords.DefaultZoneLabel
	}
	return &ImportService{
		parcels:   parcels,
		imports:   imports,
		publisher: publisher,
		storage:   storage,
		cache:     cache,
		converter: converter,
		opts:      opts,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Preview converts an upload without storing anything. Results are cached
// by file content and options.
func (s *ImportService) Preview(ctx context.Context, up Upload) (*Preview, error) {
	if err := validateUpload(up, false); err != nil {
		return nil, err
	}
	zone := s.zoneOf(up)

	cacheKey := previewKey(up.Data, zone, up.Merge)
	if s.cache != nil && s.opts.PreviewTTL > 0 {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var p Preview
			if err := json.Unmarshal(data, &p); err == nil {
				metrics.CacheHits.WithLabelValues("preview").Inc()
				return &p, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("preview").Inc()
	}

	res, err := s.convert(ctx, up)
	if err != nil {
		return nil, err
	}
	p := &Preview{
		Format:     res.Format,
		Source:     res.Source.Label(),
		Zone:       res.Zone,
		Metadata:   res.Metadata,
		Sheet:      res.Sheet,
		Collection: res.Collection,
	}

	if s.cache != nil && s.opts.PreviewTTL > 0 {
		if data, err := json.Marshal(p); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.opts.PreviewTTL)
		}
	}
	return p, nil
}

// Commit converts an upload and stores its parcels synchronously.
func (s *ImportService) Commit(ctx context.Context, up Upload) (*domain.ImportJob, error) {
	if err := validateUpload(up, true); err != nil {
		return nil, err
	}
	job := s.newJob(up, domain.ImportProcessing)
	if err := s.imports.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create import: %w", err)
	}

	n, err := s.persist(ctx, job, up.Data)
	if err != nil {
		s.fail(ctx, job, err)
		return job, err
	}
	if err := s.complete(ctx, job, n); err != nil {
		return job, err
	}
	return job, nil
}

// Enqueue stores the upload and asks a worker to process it.
func (s *ImportService) Enqueue(ctx context.Context, up Upload) (*domain.ImportJob, error) {
	if err := validateUpload(up, true); err != nil {
		return nil, err
	}
	if s.storage == nil || s.publisher == nil {
		return nil, domain.WrapError(domain.ErrTemporary, "enqueue import", errors.New("queue not configured"))
	}

	job := s.newJob(up, domain.ImportQueued)
	job.StorageKey = "imports/" + job.ID + "/" + filepath.Base(up.Filename)

	if err := s.storage.Save(ctx, job.StorageKey, up.Data); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "store upload", err)
	}
	if err := s.imports.Create(ctx, job); err != nil {
		_ = s.storage.Delete(ctx, job.StorageKey)
		return nil, fmt.Errorf("create import: %w", err)
	}
	if err := s.publisher.PublishImportRequested(ctx, job); err != nil {
		s.fail(ctx, job, err)
		return job, domain.WrapError(domain.ErrTemporary, "publish import request", err)
	}
	return job, nil
}

// ProcessJob runs a queued import end to end. Jobs already in a terminal
// state are skipped so redelivered messages are harmless.
func (s *ImportService) ProcessJob(ctx context.Context, jobID string) error {
	job, err := s.StartJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		slog.Info("import already finished, skipping", "job_id", jobID, "status", job.Status)
		return nil
	}

	n, err := s.StoreParcels(ctx, jobID)
	if err != nil {
		if _, rbErr := s.RollbackParcels(ctx, jobID); rbErr != nil {
			slog.Error("rollback parcels", "job_id", jobID, "error", rbErr)
		}
		_ = s.FailJob(ctx, jobID, err.Error())
		return err
	}
	return s.CompleteJob(ctx, jobID, n)
}

// StartJob moves a queued job to processing and returns it.
func (s *ImportService) StartJob(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	job, err := s.imports.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get import %s: %w", jobID, err)
	}
	if job.Status.Terminal() {
		return job, nil
	}
	job.Status = domain.ImportProcessing
	job.UpdatedAt = s.now()
	if err := s.imports.UpdateStatus(ctx, job); err != nil {
		return nil, fmt.Errorf("update import %s: %w", jobID, err)
	}
	return job, nil
}

// StoreParcels converts the stored upload of a job and inserts its parcels.
func (s *ImportService) StoreParcels(ctx context.Context, jobID string) (int, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "import.store_parcels")
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrJobID, jobID))

	job, err := s.imports.GetByID(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("get import %s: %w", jobID, err)
	}
	data, err := s.storage.Open(ctx, job.StorageKey)
	if err != nil {
		return 0, domain.WrapError(domain.ErrTemporary, "open upload", err)
	}
	n, err := s.persist(ctx, job, data)
	if err != nil {
		return 0, err
	}
	job.FeatureCount = n
	job.UpdatedAt = s.now()
	if err := s.imports.UpdateStatus(ctx, job); err != nil {
		return n, fmt.Errorf("update import %s: %w", jobID, err)
	}
	return n, nil
}

// CompleteJob marks a job completed and announces it.
func (s *ImportService) CompleteJob(ctx context.Context, jobID string, features int) error {
	job, err := s.imports.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get import %s: %w", jobID, err)
	}
	if err := s.complete(ctx, job, features); err != nil {
		return err
	}
	if s.storage != nil && job.StorageKey != "" {
		if err := s.storage.Delete(ctx, job.StorageKey); err != nil {
			slog.Warn("delete upload", "key", job.StorageKey, "error", err)
		}
	}
	return nil
}

// FailJob marks a job failed with reason and announces it.
func (s *ImportService) FailJob(ctx context.Context, jobID, reason string) error {
	job, err := s.imports.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get import %s: %w", jobID, err)
	}
	s.fail(ctx, job, errors.New(reason))
	return nil
}

// RollbackParcels deletes every parcel a job wrote.
func (s *ImportService) RollbackParcels(ctx context.Context, jobID string) (int64, error) {
	n, err := s.parcels.DeleteByImport(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("delete parcels of %s: %w", jobID, err)
	}
	return n, nil
}

// Get returns one import job.
func (s *ImportService) Get(ctx context.Context, id string) (*domain.ImportJob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get import", err)
	}
	return s.imports.GetByID(ctx, id)
}

func (s *ImportService) persist(ctx context.Context, job *domain.ImportJob, data []byte) (int, error) {
	res, err := s.convert(ctx, Upload{
		PropertyID: job.PropertyID,
		Filename:   job.Filename,
		Data:       data,
		Zone:       job.ZoneLabel,
		Merge:      job.Merge,
	})
	if err != nil {
		return 0, err
	}
	job.Format = string(res.Format)

	parcels := ParcelsFromCollection(res.Collection, job.PropertyID, job.ID, s.newID, s.now())
	if len(parcels) == 0 {
		return 0, domain.WrapError(domain.ErrUnprocessable, "store parcels", errors.New("no polygon features in file"))
	}
	if err := s.parcels.InsertBatch(ctx, parcels); err != nil {
		return 0, domain.WrapError(domain.ErrTemporary, "insert parcels", err)
	}
	return len(parcels), nil
}

func (s *ImportService) convert(ctx context.Context, up Upload) (*ingest.Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "ingest.convert")
	defer span.End()

	if s.opts.ConvertTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ConvertTimeout)
		defer cancel()
	}

	start := s.now()
	res, err := s.converter.Convert(ctx, ingest.Input{
		Filename:    up.Filename,
		Data:        up.Data,
		ZoneLabel:   s.zoneOf(up),
		Merge:       up.Merge,
		MaxEntities: s.opts.MaxEntities,
	})
	took := s.now().Sub(start)

	if err != nil {
		format, _ := ingest.DetectFormat(up.Filename, up.Data)
		metrics.ObserveImport(string(format), "failed", 0, 0, took)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, classifyConvertError(err)
	}

	features, enriched := len(res.Collection.Features), 0
	if res.Metadata != nil {
		enriched = res.Metadata.EnrichedPolygons
	}
	metrics.ObserveImport(string(res.Format), "completed", features, enriched, took)
	span.SetAttributes(
		attribute.String(telemetry.AttrFormat, string(res.Format)),
		attribute.String(telemetry.AttrZone, res.Zone.Label()),
		attribute.Int(telemetry.AttrFeatures, features),
	)
	return res, nil
}

func classifyConvertError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return domain.WrapError(domain.ErrInvalidInput, "convert", err)
	default:
		// Deadline overruns land here too: the file is too heavy to
		// convert within the configured budget.
		return domain.WrapError(domain.ErrUnprocessable, "convert", err)
	}
}

func (s *ImportService) complete(ctx context.Context, job *domain.ImportJob, features int) error {
	job.Status = domain.ImportCompleted
	job.FeatureCount = features
	job.Error = ""
	job.UpdatedAt = s.now()
	if err := s.imports.UpdateStatus(ctx, job); err != nil {
		return fmt.Errorf("update import %s: %w", job.ID, err)
	}
	if s.publisher != nil {
		ev := domain.EventFor(job, job.UpdatedAt)
		if err := s.publisher.PublishImportCompleted(ctx, &ev); err != nil {
			slog.Warn("publish import completed", "job_id", job.ID, "error", err)
		}
	}
	return nil
}

func (s *ImportService) fail(ctx context.Context, job *domain.ImportJob, cause error) {
	job.Status = domain.ImportFailed
	job.Error = cause.Error()
	job.UpdatedAt = s.now()
	if err := s.imports.UpdateStatus(ctx, job); err != nil {
		slog.Error("mark import failed", "job_id", job.ID, "error", err)
	}
	if s.publisher != nil {
		ev := domain.EventFor(job, job.UpdatedAt)
		if err := s.publisher.PublishImportFailed(ctx, &ev); err != nil {
			slog.Warn("publish import failed", "job_id", job.ID, "error", err)
		}
	}
}

func (s *ImportService) newJob(up Upload, status domain.ImportStatus) *domain.ImportJob {
	now := s.now()
	return &domain.ImportJob{
		ID:         s.newID(),
		PropertyID: up.PropertyID,
		Filename:   filepath.Base(up.Filename),
		ZoneLabel:  s.zoneOf(up),
		Merge:      up.Merge,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *ImportService) zoneOf(up Upload) string {
	if z := strings.TrimSpace(up.Zone); z != "" {
		return coords.ParseZoneLabel(z).Label()
	}
	return s.opts.DefaultZone
}

func validateUpload(up Upload, needProperty bool) error {
	switch {
	case strings.TrimSpace(up.Filename) == "":
		return domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("filename is required"))
	case len(up.Data) == 0:
		return domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("file is empty"))
	case needProperty && strings.TrimSpace(up.PropertyID) == "":
		return domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("property_id is required"))
	}
	return nil
}

func previewKey(data []byte, zone string, merge bool) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("imports:preview:%s:%s:%t", hex.EncodeToString(sum[:]), zone, merge)
}
