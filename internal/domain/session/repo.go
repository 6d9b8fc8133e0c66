package session

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists workflow sessions. Update is version-checked the same
// way as questionnaire records: a stale Version fails with
// ErrVersionConflict and a successful write bumps it.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	GetByExamination(ctx context.Context, patientID, examinationID uuid.UUID) (*Session, error)
	Update(ctx context.Context, s *Session) error
	List(ctx context.Context, limit, offset int) ([]*Session, int, error)
}
