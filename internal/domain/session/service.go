package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/surgiscan/occhealth/internal/domain/questionnaire"
	"github.com/surgiscan/occhealth/internal/domain/routing"
)

// keyedMutex serializes mutations per session id. Concurrent writers to
// different sessions never contend; writers to the same session queue up,
// so the at-most-one-active-station invariant holds under concurrency in
// this process. The version-checked repository update covers multi-instance
// deployments. Entries are refcounted and dropped when the last holder
// releases, so the map is bounded by in-flight transitions, not by every
// session the process has ever touched.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uuid.UUID]*sessionLock)}
}

func (k *keyedMutex) lock(id uuid.UUID) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &sessionLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}

// Service applies state machine transitions to persisted sessions.
type Service struct {
	repo   Repository
	locks  *keyedMutex
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locks:  newKeyedMutex(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the service clock. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// CheckIn creates a session at the reception phase.
func (s *Service) CheckIn(ctx context.Context, patientID, examinationID uuid.UUID, examType questionnaire.ExamType) (*Session, error) {
	if !questionnaire.ValidExamType(examType) {
		return nil, errors.New("unknown examination type " + string(examType))
	}
	sess := New(patientID, examinationID, examType, s.now())
	if err := s.repo.Create(ctx, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByExamination(ctx context.Context, patientID, examinationID uuid.UUID) (*Session, error) {
	return s.repo.GetByExamination(ctx, patientID, examinationID)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Session, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// apply loads the session under its per-id lock, runs the transition, and
// persists the result. The loaded version rides along into the update, so a
// concurrent writer on another instance surfaces as ErrVersionConflict.
func (s *Service) apply(ctx context.Context, id uuid.UUID, transition func(Session) (Session, error)) (*Session, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := transition(*cur)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *Service) BeginQuestionnaire(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.apply(ctx, id, func(cur Session) (Session, error) {
		return cur.BeginQuestionnaire(s.now())
	})
}

func (s *Service) CompleteQuestionnaire(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.apply(ctx, id, func(cur Session) (Session, error) {
		return cur.CompleteQuestionnaire(s.now())
	})
}

func (s *Service) EnterStation(ctx context.Context, id uuid.UUID, st routing.Station) (*Session, error) {
	sess, err := s.apply(ctx, id, func(cur Session) (Session, error) {
		return cur.EnterStation(st, s.now())
	})
	if errors.Is(err, ErrStationAlreadyActive) {
		// Two unexited visits would corrupt the journey record. This is a
		// caller bug, not a user mistake, so it is logged loudly.
		s.logger.Error().
			Str("session_id", id.String()).
			Str("station", string(st)).
			Msg("invariant violation: enter with an active station visit")
	}
	return sess, err
}

func (s *Service) ExitStation(ctx context.Context, id uuid.UUID, st routing.Station, results map[string]interface{}, notes string) (*Session, error) {
	return s.apply(ctx, id, func(cur Session) (Session, error) {
		return cur.ExitStation(st, results, notes, s.now())
	})
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Session, error) {
	return s.apply(ctx, id, func(cur Session) (Session, error) {
		return cur.Cancel(reason, s.now())
	})
}
