package questionnaire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a PostgreSQL-backed Repository. Section data, completion
// flags and the audit log are stored as JSONB.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const recordCols = `id, patient_id, examination_id, exam_type, sections,
	section_complete, completion, completed, signature, completed_at,
	audit, version, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Record, error) {
	var (
		rec             Record
		sections        []byte
		sectionComplete []byte
		audit           []byte
	)
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.ExaminationID, &rec.ExamType,
		&sections, &sectionComplete, &rec.Completion, &rec.Completed,
		&rec.Signature, &rec.CompletedAt, &audit, &rec.Version,
		&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sections, &rec.Sections); err != nil {
		return nil, fmt.Errorf("decode sections: %w", err)
	}
	if err := json.Unmarshal(sectionComplete, &rec.SectionComplete); err != nil {
		return nil, fmt.Errorf("decode section flags: %w", err)
	}
	if err := json.Unmarshal(audit, &rec.Audit); err != nil {
		return nil, fmt.Errorf("decode audit log: %w", err)
	}
	return &rec, nil
}

func encodeRecord(rec *Record) (sections, flags, audit []byte, err error) {
	if sections, err = json.Marshal(rec.Sections); err != nil {
		return nil, nil, nil, fmt.Errorf("encode sections: %w", err)
	}
	if flags, err = json.Marshal(rec.SectionComplete); err != nil {
		return nil, nil, nil, fmt.Errorf("encode section flags: %w", err)
	}
	if rec.Audit == nil {
		audit = []byte("[]")
	} else if audit, err = json.Marshal(rec.Audit); err != nil {
		return nil, nil, nil, fmt.Errorf("encode audit log: %w", err)
	}
	return sections, flags, audit, nil
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	sections, flags, audit, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO questionnaire_record (id, patient_id, examination_id,
			exam_type, sections, section_complete, completion, completed,
			signature, completed_at, audit, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		rec.ID, rec.PatientID, rec.ExaminationID, rec.ExamType, sections,
		flags, rec.Completion, rec.Completed, rec.Signature, rec.CompletedAt,
		audit, rec.Version, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+recordCols+` FROM questionnaire_record WHERE id = $1`, id))
}

func (r *repoPG) GetByExamination(ctx context.Context, patientID, examinationID uuid.UUID) (*Record, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+recordCols+` FROM questionnaire_record
		 WHERE patient_id = $1 AND examination_id = $2`, patientID, examinationID))
}

// Update writes the record only if the stored version still matches
// rec.Version, then increments it. A mismatch means a concurrent writer got
// there first and the caller must reload and retry.
func (r *repoPG) Update(ctx context.Context, rec *Record) error {
	sections, flags, audit, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE questionnaire_record
		SET sections=$2, section_complete=$3, completion=$4, completed=$5,
			signature=$6, completed_at=$7, audit=$8, version=version+1,
			updated_at=$9
		WHERE id = $1 AND version = $10`,
		rec.ID, sections, flags, rec.Completion, rec.Completed, rec.Signature,
		rec.CompletedAt, audit, rec.UpdatedAt, rec.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	rec.Version++
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questionnaire_record`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+recordCols+` FROM questionnaire_record
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}
