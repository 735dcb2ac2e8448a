package workflows

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.temporal.io/sdk/testsuite"

	"github.com/marcosgeo/marcos/internal/core/domain"
	"github.com/marcosgeo/marcos/internal/core/usecases"
)

const squareDXF = "0\nSECTION\n2\nENTITIES\n" +
	"0\nLWPOLYLINE\n8\nLIMITE\n90\n4\n70\n1\n" +
	"10\n680000\n20\n7184000\n10\n680100\n20\n7184000\n" +
	"10\n680100\n20\n7184100\n10\n680000\n20\n7184100\n" +
	"0\nTEXT\n8\nROTULOS\n10\n680050\n20\n7184050\n1\nFazenda Boa Vista\n" +
	"0\nENDSEC\n0\nEOF\n"

// ---- In-memory adapters ----

type memParcels struct {
	mu        sync.Mutex
	rows      []domain.Parcel
	insertErr error
	deletes   int
}

func (m *memParcels) InsertBatch(_ context.Context, parcels []domain.Parcel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.rows = append(m.rows, parcels...)
	return nil
}
func (m *memParcels) ListByProperty(context.Context, string, int, int) ([]domain.Parcel, error) {
	return nil, nil
}
func (m *memParcels) CountByProperty(context.Context, string) (int, error) { return 0, nil }
func (m *memParcels) DeleteByImport(_ context.Context, importID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	kept := m.rows[:0]
	var n int64
	for _, p := range m.rows {
		if p.ImportID == importID {
			n++
			continue
		}
		kept = append(kept, p)
	}
	m.rows = kept
	return n, nil
}
func (m *memParcels) FindContaining(context.Context, float64, float64) ([]domain.Parcel, error) {
	return nil, nil
}

type memImports struct {
	mu   sync.Mutex
	jobs map[string]domain.ImportJob
}

func (m *memImports) Create(_ context.Context, job *domain.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}
func (m *memImports) UpdateStatus(_ context.Context, job *domain.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}
func (m *memImports) GetByID(_ context.Context, id string) (*domain.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get import", errors.New(id))
	}
	return &job, nil
}

type memStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memStorage) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = data
	return nil
}
func (m *memStorage) Open(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}
func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ImportStatus
}

func (p *recordingPublisher) PublishImportRequested(context.Context, *domain.ImportJob) error {
	return nil
}
func (p *recordingPublisher) PublishImportCompleted(_ context.Context, ev *domain.ImportEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev.Status)
	return nil
}
func (p *recordingPublisher) PublishImportFailed(_ context.Context, ev *domain.ImportEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev.Status)
	return nil
}

type fixture struct {
	parcels   *memParcels
	imports   *memImports
	storage   *memStorage
	publisher *recordingPublisher
	service   *usecases.ImportService
}

func newFixture() *fixture {
	f := &fixture{
		parcels:   &memParcels{},
		imports:   &memImports{jobs: map[string]domain.ImportJob{}},
		storage:   &memStorage{files: map[string][]byte{}},
		publisher: &recordingPublisher{},
	}
	f.service = usecases.NewImportService(f.parcels, f.imports, f.publisher, f.storage, nil, nil, usecases.ImportOptions{})
	return f
}

func (f *fixture) enqueue(t *testing.T) *domain.ImportJob {
	t.Helper()
	job, err := f.service.Enqueue(context.Background(), usecases.Upload{
		PropertyID: "2b1f3c9e-0a4d-4f6e-9a57-1c2d3e4f5a6b",
		Filename:   "fazenda.dxf",
		Data:       []byte(squareDXF),
		Zone:       "22S",
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return job
}

func newEnv(f *fixture) *testsuite.TestWorkflowEnvironment {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ImportWorkflow)
	env.RegisterActivity(&ImportActivities{Imports: f.service})
	return env
}

// ---- Tests ----

func TestImportWorkflow_Success(t *testing.T) {
	f := newFixture()
	job := f.enqueue(t)
	env := newEnv(f)

	env.ExecuteWorkflow(ImportWorkflow, ImportInput{JobID: job.ID})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out ImportOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatal(err)
	}
	if out.Features != 1 || out.Skipped {
		t.Errorf("unexpected output %+v", out)
	}

	stored, _ := f.imports.GetByID(context.Background(), job.ID)
	if stored.Status != domain.ImportCompleted || stored.FeatureCount != 1 {
		t.Errorf("unexpected job %+v", stored)
	}
	if len(f.parcels.rows) != 1 {
		t.Errorf("expected 1 parcel, got %d", len(f.parcels.rows))
	}
	if len(f.storage.files) != 0 {
		t.Error("expected the upload to be removed after completion")
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0] != domain.ImportCompleted {
		t.Errorf("unexpected events %v", f.publisher.events)
	}
}

func TestImportWorkflow_StoreFailureCompensates(t *testing.T) {
	f := newFixture()
	job := f.enqueue(t)
	f.parcels.insertErr = errors.New("connection reset")
	env := newEnv(f)

	env.ExecuteWorkflow(ImportWorkflow, ImportInput{JobID: job.ID})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if env.GetWorkflowError() == nil {
		t.Fatal("expected workflow error")
	}

	stored, _ := f.imports.GetByID(context.Background(), job.ID)
	if stored.Status != domain.ImportFailed {
		t.Errorf("expected failed, got %s", stored.Status)
	}
	if !strings.Contains(stored.Error, "connection reset") {
		t.Errorf("expected the cause in the job error, got %q", stored.Error)
	}
	// One cleanup per store attempt plus the compensation itself.
	if f.parcels.deletes < 2 {
		t.Errorf("expected rollback to run, got %d deletes", f.parcels.deletes)
	}
	if len(f.parcels.rows) != 0 {
		t.Errorf("expected no parcels left, got %d", len(f.parcels.rows))
	}
	if got := f.publisher.events; len(got) != 1 || got[0] != domain.ImportFailed {
		t.Errorf("unexpected events %v", got)
	}
}

func TestImportWorkflow_BadFileIsNotRetried(t *testing.T) {
	f := newFixture()
	job := f.enqueue(t)
	f.storage.files[job.StorageKey] = []byte("not a drawing")
	env := newEnv(f)

	env.ExecuteWorkflow(ImportWorkflow, ImportInput{JobID: job.ID})

	if env.GetWorkflowError() == nil {
		t.Fatal("expected workflow error")
	}
	// Rollback before the only store attempt plus the compensation.
	if f.parcels.deletes != 2 {
		t.Errorf("expected a single store attempt, got %d deletes", f.parcels.deletes)
	}
	stored, _ := f.imports.GetByID(context.Background(), job.ID)
	if stored.Status != domain.ImportFailed {
		t.Errorf("expected failed, got %s", stored.Status)
	}
}

func TestImportWorkflow_FinishedJobIsSkipped(t *testing.T) {
	f := newFixture()
	job := f.enqueue(t)
	if err := f.service.FailJob(context.Background(), job.ID, "cancelled"); err != nil {
		t.Fatal(err)
	}
	env := newEnv(f)

	env.ExecuteWorkflow(ImportWorkflow, ImportInput{JobID: job.ID})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out ImportOutput
	_ = env.GetWorkflowResult(&out)
	if !out.Skipped {
		t.Error("expected the finished job to be skipped")
	}
	if f.parcels.deletes != 0 {
		t.Errorf("expected no activity past StartImport, got %d deletes", f.parcels.deletes)
	}
}

func TestClassify(t *testing.T) {
	if classify(nil) != nil {
		t.Error("nil stays nil")
	}
	plain := errors.New("timeout")
	if classify(plain) != plain {
		t.Error("plain errors stay retryable")
	}
	bad := domain.WrapError(domain.ErrUnprocessable, "convert", errors.New("no entities"))
	if got := classify(bad); got == bad || !strings.Contains(got.Error(), "no entities") {
		t.Errorf("expected a non-retryable wrapper, got %v", got)
	}
}
