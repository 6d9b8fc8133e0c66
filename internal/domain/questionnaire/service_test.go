package questionnaire

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockRepo is an in-memory Repository with the same version-check semantics
// as the Postgres implementation.
type mockRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[uuid.UUID]*Record)}
}

func (m *mockRepo) Create(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec.Clone()
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *mockRepo) GetByExamination(_ context.Context, patientID, examinationID uuid.UUID) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.PatientID == patientID && rec.ExaminationID == examinationID {
			return rec.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.records[rec.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != rec.Version {
		return ErrVersionConflict
	}
	next := rec.Clone()
	next.Version++
	m.records[rec.ID] = next
	rec.Version = next.Version
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Record, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Record
	for _, rec := range m.records {
		out = append(out, rec.Clone())
	}
	return out, len(out), nil
}

func newTestService(t *testing.T) (*Service, *mockRepo) {
	t.Helper()
	repo := newMockRepo()
	svc := NewService(repo)
	svc.SetClock(func() time.Time { return testNow })
	return svc, repo
}

func TestService_Create(t *testing.T) {
	svc, _ := newTestService(t)

	rec, err := svc.Create(context.Background(), uuid.New(), uuid.New(), ExamPreEmployment)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if rec.Version != 1 {
		t.Errorf("expected version 1, got %d", rec.Version)
	}
	if len(rec.Audit) != 1 || rec.Audit[0].Action != "created" {
		t.Errorf("expected created audit entry, got %v", rec.Audit)
	}
}

func TestService_Create_UnknownExamType(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Create(context.Background(), uuid.New(), uuid.New(), ExamType("annual")); err == nil {
		t.Fatal("expected error for unknown exam type")
	}
}

func TestService_SaveSection(t *testing.T) {
	svc, _ := newTestService(t)
	rec, _ := svc.Create(context.Background(), uuid.New(), uuid.New(), ExamPeriodical)

	updated, res, err := svc.SaveSection(context.Background(), rec.ID, SectionDemographics, completeDemographics(), "kiosk-1", rec.Version)
	if err != nil {
		t.Fatalf("SaveSection() error: %v", err)
	}
	if !res.Complete {
		t.Fatalf("expected section complete, got %v", res)
	}
	if !updated.SectionComplete[SectionDemographics] {
		t.Error("expected completion flag persisted")
	}
	if updated.Version != rec.Version+1 {
		t.Errorf("expected version bump to %d, got %d", rec.Version+1, updated.Version)
	}
	if updated.Completion <= 0 {
		t.Errorf("expected completion score above zero, got %d", updated.Completion)
	}
}

func TestService_SaveSection_VersionConflict(t *testing.T) {
	svc, _ := newTestService(t)
	rec, _ := svc.Create(context.Background(), uuid.New(), uuid.New(), ExamPeriodical)

	if _, _, err := svc.SaveSection(context.Background(), rec.ID, SectionDemographics, completeDemographics(), "kiosk-1", rec.Version); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	// Second writer still holds the old version.
	_, _, err := svc.SaveSection(context.Background(), rec.ID, SectionDemographics, completeDemographics(), "kiosk-2", rec.Version)
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestService_SaveSection_InvalidatingEditClearsFlag(t *testing.T) {
	svc, _ := newTestService(t)
	rec, _ := svc.Create(context.Background(), uuid.New(), uuid.New(), ExamPeriodical)

	updated, _, err := svc.SaveSection(context.Background(), rec.ID, SectionDemographics, completeDemographics(), "kiosk-1", rec.Version)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	broken := completeDemographics()
	broken["surname"] = ""
	updated, res, err := svc.SaveSection(context.Background(), rec.ID, SectionDemographics, broken, "kiosk-1", updated.Version)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if res.Complete || updated.SectionComplete[SectionDemographics] {
		t.Error("edit that removed a required field must clear the completion flag")
	}
}

func TestService_SaveSection_CompletedRecordIsImmutable(t *testing.T) {
	svc, repo := newTestService(t)
	rec, _ := svc.Create(context.Background(), uuid.New(), uuid.New(), ExamPeriodical)

	stored, _ := repo.GetByID(context.Background(), rec.ID)
	stored.MarkCompleted(testNow)
	repo.mu.Lock()
	repo.records[rec.ID] = stored
	repo.mu.Unlock()

	_, _, err := svc.SaveSection(context.Background(), rec.ID, SectionDemographics, completeDemographics(), "kiosk-1", stored.Version)
	if !errors.Is(err, ErrRecordCompleted) {
		t.Fatalf("expected ErrRecordCompleted, got %v", err)
	}
}

func TestService_SaveSection_LiftsSignature(t *testing.T) {
	svc, _ := newTestService(t)
	rec, _ := svc.Create(context.Background(), uuid.New(), uuid.New(), ExamPeriodical)

	updated, _, err := svc.SaveSection(context.Background(), rec.ID, SectionDeclarations,
		completeDeclarations(testNow.Add(-time.Hour)), "kiosk-1", rec.Version)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if updated.Signature == "" {
		t.Error("expected signature lifted onto the record")
	}
}

func TestService_SaveSection_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, _, err := svc.SaveSection(context.Background(), uuid.New(), SectionDemographics, nil, "kiosk-1", 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecord_CanComplete(t *testing.T) {
	rec := NewRecord(uuid.New(), uuid.New(), ExamExit, testNow)
	if err := rec.CanComplete(); err == nil {
		t.Fatal("empty record must not be completable")
	}

	for _, sec := range TemplateFor(ExamExit).RequiredSections {
		rec.SectionComplete[sec] = true
	}
	if err := rec.CanComplete(); err == nil {
		t.Fatal("record without signature must not be completable")
	}

	rec.Signature = "sig"
	if err := rec.CanComplete(); err != nil {
		t.Fatalf("expected completable, got %v", err)
	}
}

func TestRecord_CloneIsDeep(t *testing.T) {
	rec := NewRecord(uuid.New(), uuid.New(), ExamPeriodical, testNow)
	rec.Sections[SectionVitals] = SectionData{
		"urinalysis": map[string]interface{}{"blood": "negative"},
	}

	cp := rec.Clone()
	sub := cp.Sections[SectionVitals]["urinalysis"].(map[string]interface{})
	sub["blood"] = "positive"

	orig := rec.Sections[SectionVitals]["urinalysis"].(map[string]interface{})
	if orig["blood"] != "negative" {
		t.Error("mutating the clone leaked into the original")
	}
}
