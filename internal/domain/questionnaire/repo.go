package questionnaire

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists questionnaire records. Update is version-checked:
// implementations must reject a write whose Version no longer matches the
// stored row with ErrVersionConflict, and bump Version on success.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	GetByExamination(ctx context.Context, patientID, examinationID uuid.UUID) (*Record, error)
	Update(ctx context.Context, rec *Record) error
	List(ctx context.Context, limit, offset int) ([]*Record, int, error)
}
