package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/marcosgeo/marcos/internal/core/domain"
)

// --- Mock ParcelRepository ---

type mockParcelRepo struct {
	insertBatchFn    func(ctx context.Context, parcels []domain.Parcel) error
	listByPropertyFn func(ctx context.Context, propertyID string, limit, offset int) ([]domain.Parcel, error)
	countFn          func(ctx context.Context, propertyID string) (int, error)
	deleteByImportFn func(ctx context.Context, importID string) (int64, error)
	findContainingFn func(ctx context.Context, lat, lon float64) ([]domain.Parcel, error)

	inserted []domain.Parcel
}

func (m *mockParcelRepo) InsertBatch(ctx context.Context, parcels []domain.Parcel) error {
	if m.insertBatchFn != nil {
		return m.insertBatchFn(ctx, parcels)
	}
	m.inserted = append(m.inserted, parcels...)
	return nil
}

func (m *mockParcelRepo) ListByProperty(ctx context.Context, propertyID string, limit, offset int) ([]domain.Parcel, error) {
	if m.listByPropertyFn != nil {
		return m.listByPropertyFn(ctx, propertyID, limit, offset)
	}
	return nil, nil
}

func (m *mockParcelRepo) CountByProperty(ctx context.Context, propertyID string) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, propertyID)
	}
	return len(m.inserted), nil
}

func (m *mockParcelRepo) DeleteByImport(ctx context.Context, importID string) (int64, error) {
	if m.deleteByImportFn != nil {
		return m.deleteByImportFn(ctx, importID)
	}
	return 0, nil
}

func (m *mockParcelRepo) FindContaining(ctx context.Context, lat, lon float64) ([]domain.Parcel, error) {
	if m.findContainingFn != nil {
		return m.findContainingFn(ctx, lat, lon)
	}
	return nil, nil
}

// --- In-memory ImportRepository ---

type memImportRepo struct {
	mu       sync.Mutex
	jobs     map[string]domain.ImportJob
	updateFn func(ctx context.Context, job *domain.ImportJob) error
}

func newMemImportRepo() *memImportRepo {
	return &memImportRepo{jobs: map[string]domain.ImportJob{}}
}

func (m *memImportRepo) Create(ctx context.Context, job *domain.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memImportRepo) UpdateStatus(ctx context.Context, job *domain.ImportJob) error {
	if m.updateFn != nil {
		if err := m.updateFn(ctx, job); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memImportRepo) GetByID(ctx context.Context, id string) (*domain.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get import", errors.New(id))
	}
	return &job, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	requestedFn func(ctx context.Context, job *domain.ImportJob) error

	requested []string
	completed []domain.ImportEvent
	failed    []domain.ImportEvent
}

func (m *mockPublisher) PublishImportRequested(ctx context.Context, job *domain.ImportJob) error {
	if m.requestedFn != nil {
		return m.requestedFn(ctx, job)
	}
	m.requested = append(m.requested, job.ID)
	return nil
}

func (m *mockPublisher) PublishImportCompleted(ctx context.Context, event *domain.ImportEvent) error {
	m.completed = append(m.completed, *event)
	return nil
}

func (m *mockPublisher) PublishImportFailed(ctx context.Context, event *domain.ImportEvent) error {
	m.failed = append(m.failed, *event)
	return nil
}

// --- In-memory ObjectStorage ---

type memStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStorage() *memStorage { return &memStorage{files: map[string][]byte{}} }

func (m *memStorage) Save(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStorage) Open(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (m *memStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

// --- In-memory CacheService ---

type memCache struct {
	data map[string][]byte
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (m *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.sets++
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

// --- Mock MarcoRepository ---

type mockMarcoRepo struct {
	upsertBatchFn func(ctx context.Context, marcos []domain.Marco) error
	findNearbyFn  func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Marco, error)

	upserted []domain.Marco
}

func (m *mockMarcoRepo) UpsertBatch(ctx context.Context, marcos []domain.Marco) error {
	if m.upsertBatchFn != nil {
		return m.upsertBatchFn(ctx, marcos)
	}
	m.upserted = append(m.upserted, marcos...)
	return nil
}

func (m *mockMarcoRepo) FindNearby(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Marco, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, lat, lon, radius, limit)
	}
	return nil, nil
}

// squareDXF is one closed 100 m square in UTM 22S with a name label inside.
const squareDXF = "0\nSECTION\n2\nENTITIES\n" +
	"0\nLWPOLYLINE\n8\nLIMITE\n90\n4\n70\n1\n" +
	"10\n680000\n20\n7184000\n10\n680100\n20\n7184000\n" +
	"10\n680100\n20\n7184100\n10\n680000\n20\n7184100\n" +
	"0\nTEXT\n8\nROTULOS\n10\n680050\n20\n7184050\n1\nFazenda Boa Vista\n" +
	"0\nENDSEC\n0\nEOF\n"
