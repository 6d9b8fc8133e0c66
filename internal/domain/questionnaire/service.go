package questionnaire

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service owns questionnaire record lifecycle: creation, section autosave
// with optimistic concurrency, validation and scoring. All mutations are
// staged on a clone and persisted atomically, so a failed write never leaves
// a half-updated record behind.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock overrides the service clock. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) Create(ctx context.Context, patientID, examinationID uuid.UUID, examType ExamType) (*Record, error) {
	if !ValidExamType(examType) {
		return nil, fmt.Errorf("unknown examination type %q", examType)
	}
	rec := NewRecord(patientID, examinationID, examType, s.now())
	rec.AppendAudit("system", "created", string(examType), s.now())
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByExamination(ctx context.Context, patientID, examinationID uuid.UUID) (*Record, error) {
	return s.repo.GetByExamination(ctx, patientID, examinationID)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// SaveSection applies an autosave or explicit save of one section's data.
// version is the caller's last-seen record version; a concurrent write in
// between surfaces as ErrVersionConflict rather than silently overwriting
// (explicit conflict instead of last-write-wins).
//
// The section is re-validated and the record re-scored on every save; the
// completion flag tracks the validation outcome, so an edit that invalidates
// a previously-complete section clears its flag.
func (s *Service) SaveSection(ctx context.Context, id uuid.UUID, sec Section, data SectionData, actor string, version int) (*Record, SectionResult, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, SectionResult{}, err
	}
	if rec.Completed {
		return nil, SectionResult{}, ErrRecordCompleted
	}
	if rec.Version != version {
		return nil, SectionResult{}, ErrVersionConflict
	}

	now := s.now()
	next := rec.Clone()
	next.Sections[sec] = cloneData(data)

	res := ValidateSection(sec, next.Sections[sec], next.ExamType, now)
	next.SectionComplete[sec] = res.Complete
	next.Completion = ScoreCompletion(next, TemplateFor(next.ExamType))
	if sec == SectionDeclarations {
		next.Signature = str(next.Sections[sec], "signature")
	}
	next.AppendAudit(actor, "section_saved", string(sec), now)
	next.UpdatedAt = now

	if err := s.repo.Update(ctx, next); err != nil {
		return nil, SectionResult{}, err
	}
	return next, res, nil
}

// Validate runs the section rule against the stored data without persisting
// anything.
func (s *Service) Validate(ctx context.Context, id uuid.UUID, sec Section) (SectionResult, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return SectionResult{}, err
	}
	return ValidateSection(sec, rec.Sections[sec], rec.ExamType, s.now()), nil
}

// Score recomputes the completion percentage from stored data.
func (s *Service) Score(ctx context.Context, id uuid.UUID) (int, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return ScoreCompletion(rec, TemplateFor(rec.ExamType)), nil
}
