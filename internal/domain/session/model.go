// Package session tracks a patient's journey through the clinic as a state
// machine over phases and station visits. All transitions are pure functions
// on value copies; persistence and locking live in the service layer.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/surgiscan/occhealth/internal/domain/questionnaire"
	"github.com/surgiscan/occhealth/internal/domain/routing"
)

// Phase is the top-level stage of a patient's journey.
type Phase string

const (
	PhaseReception      Phase = "reception"
	PhaseQuestionnaire  Phase = "questionnaire"
	PhaseStationRouting Phase = "station_routing"
	PhaseExamination    Phase = "examination"
	PhaseCompleted      Phase = "completed"
	PhaseCancelled      Phase = "cancelled"
)

// Terminal reports whether no further transitions are accepted.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseCancelled
}

var (
	ErrNotFound             = errors.New("workflow session not found")
	ErrSessionTerminated    = errors.New("workflow session is completed or cancelled")
	ErrStationAlreadyActive = errors.New("another station visit is still active")
	ErrNoActiveVisit        = errors.New("no active visit for that station")
	ErrVersionConflict      = errors.New("workflow session version conflict")
)

// StationVisit is one stay at a physical station. ExitedAt nil means the
// visit is still active; at most one visit per session may be active.
type StationVisit struct {
	Station        routing.Station        `json:"station"`
	EnteredAt      time.Time              `json:"entered_at"`
	ExitedAt       *time.Time             `json:"exited_at,omitempty"`
	WaitSeconds    int                    `json:"wait_seconds"`
	ServiceSeconds int                    `json:"service_seconds"`
	Results        map[string]interface{} `json:"results,omitempty"`
	Notes          string                 `json:"notes,omitempty"`
}

// Metrics summarises a journey for reporting.
type Metrics struct {
	TotalWaitSeconds    int `json:"total_wait_seconds"`
	TotalServiceSeconds int `json:"total_service_seconds"`
	EfficiencyScore     int `json:"efficiency_score"`
}

// Session is one patient journey. CompletedStations only ever grows until
// the session reaches a terminal phase.
type Session struct {
	ID                    uuid.UUID              `json:"id"`
	PatientID             uuid.UUID              `json:"patient_id"`
	ExaminationID         uuid.UUID              `json:"examination_id"`
	ExamType              questionnaire.ExamType `json:"exam_type"`
	Phase                 Phase                  `json:"phase"`
	CurrentStation        *routing.Station       `json:"current_station,omitempty"`
	Visits                []StationVisit         `json:"visits"`
	CompletedStations     []routing.Station      `json:"completed_stations"`
	QuestionnaireComplete bool                   `json:"questionnaire_complete"`
	Progress              int                    `json:"progress"`
	CancelReason          string                 `json:"cancel_reason,omitempty"`
	CheckedInAt           time.Time              `json:"checked_in_at"`
	JourneyEndAt          *time.Time             `json:"journey_end_at,omitempty"`
	Metrics               Metrics                `json:"metrics"`
	Version               int                    `json:"version"`
	CreatedAt             time.Time              `json:"created_at"`
	UpdatedAt             time.Time              `json:"updated_at"`
}

// New checks a patient in at reception.
func New(patientID, examinationID uuid.UUID, examType questionnaire.ExamType, now time.Time) Session {
	s := Session{
		ID:            uuid.New(),
		PatientID:     patientID,
		ExaminationID: examinationID,
		ExamType:      examType,
		Phase:         PhaseReception,
		CheckedInAt:   now,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.Progress = s.progress()
	return s
}

// clone deep-copies the session so transitions never alias the caller's
// slices or pointers.
func (s Session) clone() Session {
	cp := s
	cp.Visits = make([]StationVisit, len(s.Visits))
	for i, v := range s.Visits {
		cp.Visits[i] = v
		if v.ExitedAt != nil {
			at := *v.ExitedAt
			cp.Visits[i].ExitedAt = &at
		}
		if v.Results != nil {
			res := make(map[string]interface{}, len(v.Results))
			for k, e := range v.Results {
				res[k] = e
			}
			cp.Visits[i].Results = res
		}
	}
	cp.CompletedStations = make([]routing.Station, len(s.CompletedStations))
	copy(cp.CompletedStations, s.CompletedStations)
	if s.CurrentStation != nil {
		st := *s.CurrentStation
		cp.CurrentStation = &st
	}
	if s.JourneyEndAt != nil {
		at := *s.JourneyEndAt
		cp.JourneyEndAt = &at
	}
	return cp
}

// ActiveVisit returns a copy of the unexited visit, if any.
func (s Session) ActiveVisit() (StationVisit, bool) {
	for _, v := range s.Visits {
		if v.ExitedAt == nil {
			return v, true
		}
	}
	return StationVisit{}, false
}

// StationCompleted reports whether st is in the completed set.
func (s Session) StationCompleted(st routing.Station) bool {
	for _, c := range s.CompletedStations {
		if c == st {
			return true
		}
	}
	return false
}
