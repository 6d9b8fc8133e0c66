// Package handoff gates the transfer of a patient from one station to the
// next: the questionnaire must be fully complete, signed and validated
// before the session may move on.
package handoff

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/surgiscan/occhealth/internal/domain/questionnaire"
	"github.com/surgiscan/occhealth/internal/domain/routing"
	"github.com/surgiscan/occhealth/internal/domain/session"
	"github.com/surgiscan/occhealth/internal/domain/triage"
	"github.com/surgiscan/occhealth/internal/platform/notification"
)

// Blocker names a failed handoff precondition.
type Blocker string

const (
	BlockerIncompleteRecord       Blocker = "incomplete_record"
	BlockerDeclarationsIncomplete Blocker = "declarations_incomplete"
	BlockerMissingSignature       Blocker = "missing_signature"
)

// BlockedError reports every precondition that failed, so the caller can
// show the patient exactly what still needs doing.
type BlockedError struct {
	Blockers []Blocker
}

func (e *BlockedError) Error() string {
	parts := make([]string, len(e.Blockers))
	for i, b := range e.Blockers {
		parts[i] = string(b)
	}
	return "handoff blocked: " + strings.Join(parts, ", ")
}

// Payload is the result of a successful handoff.
type Payload struct {
	PatientID            uuid.UUID        `json:"patient_id"`
	Alerts               []triage.Alert   `json:"alerts"`
	NextStation          routing.Station  `json:"next_station"`
	RoutingReason        string           `json:"routing_reason"`
	EstimatedWaitSeconds int              `json:"estimated_wait_seconds"`
	Session              *session.Session `json:"session"`
}

// Coordinator orchestrates the completeness gate, record completion, session
// exit, routing and the staff notification for one handoff.
type Coordinator struct {
	records    questionnaire.Repository
	sessions   *session.Service
	dispatcher *notification.Dispatcher
	recipients []notification.Recipient
	logger     zerolog.Logger
	now        func() time.Time
}

func NewCoordinator(records questionnaire.Repository, sessions *session.Service, dispatcher *notification.Dispatcher, recipients []notification.Recipient, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		records:    records,
		sessions:   sessions,
		dispatcher: dispatcher,
		recipients: recipients,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the coordinator clock. Tests only.
func (c *Coordinator) SetClock(now func() time.Time) { c.now = now }

// Attempt gates and executes a station handoff. The three preconditions are
// checked on the loaded record before anything is written: a blocked handoff
// leaves both the record and the session exactly as they were.
func (c *Coordinator) Attempt(ctx context.Context, recordID, sessionID uuid.UUID) (*Payload, error) {
	rec, err := c.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	now := c.now()

	if err := c.gate(rec, now); err != nil {
		return nil, err
	}

	sess, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	current := routing.StationQuestionnaire
	if sess.CurrentStation != nil {
		current = *sess.CurrentStation
	}

	// Dry-run the session transition first so a terminated session or a
	// missing active visit is caught before the record is touched.
	if _, err := sess.ExitStation(current, nil, "", now); err != nil {
		return nil, err
	}

	alerts := triage.Evaluate(rec)
	decision := routing.Next(alerts, rec.ExamType, current)

	if !rec.Completed {
		next := rec.Clone()
		next.MarkCompleted(now)
		next.AppendAudit("system", "completed", "handoff gate passed", now)
		if err := c.records.Update(ctx, next); err != nil {
			return nil, fmt.Errorf("complete record: %w", err)
		}
	}

	results := map[string]interface{}{
		"handoff":      true,
		"next_station": string(decision.Next),
	}
	updated, err := c.sessions.ExitStation(ctx, sessionID, current, results, "")
	if err != nil {
		// The record is already completed; surface the session failure
		// loudly so staff can reconcile.
		c.logger.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Str("record_id", recordID.String()).
			Msg("handoff: session exit failed after record completion")
		return nil, err
	}

	c.notify(rec, decision, alerts)

	return &Payload{
		PatientID:            rec.PatientID,
		Alerts:               alerts,
		NextStation:          decision.Next,
		RoutingReason:        decision.Reason,
		EstimatedWaitSeconds: int(routing.EstimatedWait(decision.Next).Seconds()),
		Session:              updated,
	}, nil
}

// gate checks the handoff preconditions and collects every failure. A
// record counts as complete only when every answer is present AND every
// required section passed validation: a fully filled section whose values
// failed validation (a bad id number, an out-of-range reading) carries a
// false completion flag and must still block the handoff.
func (c *Coordinator) gate(rec *questionnaire.Record, now time.Time) error {
	var blockers []Blocker
	sectionsValid := true
	for _, sec := range questionnaire.TemplateFor(rec.ExamType).RequiredSections {
		if !rec.SectionComplete[sec] {
			sectionsValid = false
			break
		}
	}
	if !sectionsValid || questionnaire.ScoreCompletion(rec, questionnaire.TemplateFor(rec.ExamType)) < 100 {
		blockers = append(blockers, BlockerIncompleteRecord)
	}
	decl := questionnaire.ValidateSection(questionnaire.SectionDeclarations,
		rec.Sections[questionnaire.SectionDeclarations], rec.ExamType, now)
	if !decl.Complete {
		blockers = append(blockers, BlockerDeclarationsIncomplete)
	}
	if rec.Signature == "" {
		blockers = append(blockers, BlockerMissingSignature)
	}
	if len(blockers) > 0 {
		return &BlockedError{Blockers: blockers}
	}
	return nil
}

// notify fires the staff notifications for a completed handoff. Delivery is
// asynchronous and can never fail the handoff.
func (c *Coordinator) notify(rec *questionnaire.Record, decision routing.Decision, alerts []triage.Alert) {
	if c.dispatcher == nil || len(c.recipients) == 0 {
		return
	}
	c.dispatcher.DispatchAsync("station-handoff", map[string]string{
		"patient_id":     rec.PatientID.String(),
		"from_station":   string(routing.StationQuestionnaire),
		"next_station":   string(decision.Next),
		"estimated_wait": routing.EstimatedWait(decision.Next).String(),
	}, c.recipients)

	for _, a := range alerts {
		if a.Severity.Immediate() {
			c.dispatcher.DispatchAsync("critical-alert", map[string]string{
				"patient_id":       rec.PatientID.String(),
				"alert_message":    a.Message,
				"suggested_action": a.SuggestedAction,
			}, c.recipients)
		}
	}
}
