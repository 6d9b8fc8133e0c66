package session

import (
	"math"
	"time"

	"github.com/surgiscan/occhealth/internal/domain/routing"
)

// Progress weighting: reception check-in is worth 15%, finishing the
// questionnaire 50%, and station completion the remaining 35% pro rata.
// These weights match historical reporting data and must not be changed
// without renegotiating comparability.
const (
	progressReception     = 15
	progressQuestionnaire = 50
	progressStations      = 35
)

func (s Session) progress() int {
	p := progressReception
	if s.QuestionnaireComplete {
		p += progressQuestionnaire
	}
	recommended := routing.RequiredStations(s.ExamType)
	if len(recommended) > 0 {
		p += int(math.Round(progressStations *
			float64(len(s.CompletedStations)) / float64(len(recommended))))
	}
	if p > 100 {
		p = 100
	}
	return p
}

// BeginQuestionnaire moves the patient from reception to the questionnaire
// phase.
func (s Session) BeginQuestionnaire(now time.Time) (Session, error) {
	if s.Phase.Terminal() {
		return s, ErrSessionTerminated
	}
	next := s.clone()
	next.Phase = PhaseQuestionnaire
	next.UpdatedAt = now
	return next, nil
}

// CompleteQuestionnaire records questionnaire completion and moves the
// session into station routing.
func (s Session) CompleteQuestionnaire(now time.Time) (Session, error) {
	if s.Phase.Terminal() {
		return s, ErrSessionTerminated
	}
	next := s.clone()
	next.QuestionnaireComplete = true
	next.Phase = PhaseStationRouting
	next.Progress = next.progress()
	next.UpdatedAt = now
	return next, nil
}

// EnterStation starts a visit at st. At most one visit may be active at a
// time; a second enter without an exit is a caller bug and is rejected with
// ErrStationAlreadyActive.
func (s Session) EnterStation(st routing.Station, now time.Time) (Session, error) {
	if s.Phase.Terminal() {
		return s, ErrSessionTerminated
	}
	if _, active := s.ActiveVisit(); active {
		return s, ErrStationAlreadyActive
	}

	next := s.clone()
	next.Phase = PhaseExamination
	station := st
	next.CurrentStation = &station

	// Waiting time runs from check-in, or from the previous station's exit.
	readyAt := next.CheckedInAt
	for _, v := range next.Visits {
		if v.ExitedAt != nil && v.ExitedAt.After(readyAt) {
			readyAt = *v.ExitedAt
		}
	}
	wait := int(now.Sub(readyAt).Seconds())
	if wait < 0 {
		wait = 0
	}

	next.Visits = append(next.Visits, StationVisit{
		Station:     st,
		EnteredAt:   now,
		WaitSeconds: wait,
	})
	next.UpdatedAt = now
	return next, nil
}

// ExitStation closes the active visit for st, recording results and notes,
// and adds the station to the completed set. When every station required for
// the examination type is complete, the journey auto-completes.
func (s Session) ExitStation(st routing.Station, results map[string]interface{}, notes string, now time.Time) (Session, error) {
	if s.Phase.Terminal() {
		return s, ErrSessionTerminated
	}

	next := s.clone()
	var visit *StationVisit
	for i := range next.Visits {
		if next.Visits[i].Station == st && next.Visits[i].ExitedAt == nil {
			visit = &next.Visits[i]
			break
		}
	}
	if visit == nil {
		return s, ErrNoActiveVisit
	}

	exitedAt := now
	visit.ExitedAt = &exitedAt
	service := int(now.Sub(visit.EnteredAt).Seconds())
	if service < 0 {
		service = 0
	}
	visit.ServiceSeconds = service
	visit.Results = results
	visit.Notes = notes

	if !next.StationCompleted(st) {
		next.CompletedStations = append(next.CompletedStations, st)
	}
	next.CurrentStation = nil
	next.Progress = next.progress()
	next.Metrics = next.computeMetrics()
	next.UpdatedAt = now

	if next.allRequiredComplete() {
		next = next.completeJourney(now)
	}
	return next, nil
}

// Cancel moves the session to its cancelled terminal phase. Accepted from
// any non-terminal phase; a late-arriving autosave afterwards is rejected by
// the terminal guard on every transition.
func (s Session) Cancel(reason string, now time.Time) (Session, error) {
	if s.Phase.Terminal() {
		return s, ErrSessionTerminated
	}
	next := s.clone()
	next.Phase = PhaseCancelled
	next.CancelReason = reason
	next.CurrentStation = nil
	endAt := now
	next.JourneyEndAt = &endAt
	next.Metrics = next.computeMetrics()
	next.UpdatedAt = now
	return next, nil
}

func (s Session) allRequiredComplete() bool {
	for _, st := range routing.RequiredStations(s.ExamType) {
		if !s.StationCompleted(st) {
			return false
		}
	}
	return true
}

// completeJourney stamps the terminal completed phase and final metrics.
func (s Session) completeJourney(now time.Time) Session {
	s.Phase = PhaseCompleted
	endAt := now
	s.JourneyEndAt = &endAt
	s.Progress = 100
	s.Metrics = s.computeMetrics()
	return s
}

func (s Session) computeMetrics() Metrics {
	var m Metrics
	for _, v := range s.Visits {
		m.TotalWaitSeconds += v.WaitSeconds
		if v.ExitedAt != nil {
			m.TotalServiceSeconds += v.ServiceSeconds
		}
	}
	if s.JourneyEndAt != nil {
		journey := s.JourneyEndAt.Sub(s.CheckedInAt).Seconds()
		if journey > 0 {
			score := int(math.Round(100 * float64(m.TotalServiceSeconds) / journey))
			if score > 100 {
				score = 100
			}
			m.EfficiencyScore = score
		}
	}
	return m
}
