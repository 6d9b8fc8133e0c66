package session

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

// NewRepoPG returns a PostgreSQL-backed Repository. Visits, completed
// stations and metrics are stored as JSONB.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const sessionCols = `id, patient_id, examination_id, exam_type, phase,
	current_station, visits, completed_stations, questionnaire_complete,
	progress, cancel_reason, checked_in_at, journey_end_at, metrics,
	version, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Session, error) {
	var (
		s       Session
		visits  []byte
		done    []byte
		metrics []byte
	)
	err := row.Scan(&s.ID, &s.PatientID, &s.ExaminationID, &s.ExamType,
		&s.Phase, &s.CurrentStation, &visits, &done,
		&s.QuestionnaireComplete, &s.Progress, &s.CancelReason,
		&s.CheckedInAt, &s.JourneyEndAt, &metrics, &s.Version,
		&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(visits, &s.Visits); err != nil {
		return nil, fmt.Errorf("decode visits: %w", err)
	}
	if err := json.Unmarshal(done, &s.CompletedStations); err != nil {
		return nil, fmt.Errorf("decode completed stations: %w", err)
	}
	if err := json.Unmarshal(metrics, &s.Metrics); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}
	return &s, nil
}

func encodeSession(s *Session) (visits, done, metrics []byte, err error) {
	if s.Visits == nil {
		visits = []byte("[]")
	} else if visits, err = json.Marshal(s.Visits); err != nil {
		return nil, nil, nil, fmt.Errorf("encode visits: %w", err)
	}
	if s.CompletedStations == nil {
		done = []byte("[]")
	} else if done, err = json.Marshal(s.CompletedStations); err != nil {
		return nil, nil, nil, fmt.Errorf("encode completed stations: %w", err)
	}
	if metrics, err = json.Marshal(s.Metrics); err != nil {
		return nil, nil, nil, fmt.Errorf("encode metrics: %w", err)
	}
	return visits, done, metrics, nil
}

func (r *repoPG) Create(ctx context.Context, s *Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	visits, done, metrics, err := encodeSession(s)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO workflow_session (id, patient_id, examination_id,
			exam_type, phase, current_station, visits, completed_stations,
			questionnaire_complete, progress, cancel_reason, checked_in_at,
			journey_end_at, metrics, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		s.ID, s.PatientID, s.ExaminationID, s.ExamType, s.Phase,
		s.CurrentStation, visits, done, s.QuestionnaireComplete, s.Progress,
		s.CancelReason, s.CheckedInAt, s.JourneyEndAt, metrics, s.Version,
		s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+sessionCols+` FROM workflow_session WHERE id = $1`, id))
}

func (r *repoPG) GetByExamination(ctx context.Context, patientID, examinationID uuid.UUID) (*Session, error) {
	return r.scan(r.pool.QueryRow(ctx,
		`SELECT `+sessionCols+` FROM workflow_session
		 WHERE patient_id = $1 AND examination_id = $2`, patientID, examinationID))
}

func (r *repoPG) Update(ctx context.Context, s *Session) error {
	visits, done, metrics, err := encodeSession(s)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE workflow_session
		SET phase=$2, current_station=$3, visits=$4, completed_stations=$5,
			questionnaire_complete=$6, progress=$7, cancel_reason=$8,
			journey_end_at=$9, metrics=$10, version=version+1, updated_at=$11
		WHERE id = $1 AND version = $12`,
		s.ID, s.Phase, s.CurrentStation, visits, done,
		s.QuestionnaireComplete, s.Progress, s.CancelReason, s.JourneyEndAt,
		metrics, s.UpdatedAt, s.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	s.Version++
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Session, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM workflow_session`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionCols+` FROM workflow_session
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Session
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}
