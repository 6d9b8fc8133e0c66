// Package questionnaire holds the intake questionnaire record, the
// per-section validation rules, and the completion scorer that gates a
// patient's progression through the examination workflow.
package questionnaire

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Section identifies an independently-completable group of questionnaire
// fields. The validation rules are keyed by these constants; adding a section
// means adding a constant and a rule, never touching the evaluation loop.
type Section string

const (
	SectionDemographics     Section = "demographics"
	SectionMedicalHistory   Section = "medical_history"
	SectionVitals           Section = "vitals"
	SectionWorkingAtHeights Section = "working_at_heights"
	SectionDeclarations     Section = "declarations"
)

// ExamType is the kind of occupational health examination being performed.
type ExamType string

const (
	ExamPreEmployment    ExamType = "pre_employment"
	ExamPeriodical       ExamType = "periodical"
	ExamExit             ExamType = "exit"
	ExamWorkingAtHeights ExamType = "working_at_heights"
)

var validExamTypes = map[ExamType]bool{
	ExamPreEmployment:    true,
	ExamPeriodical:       true,
	ExamExit:             true,
	ExamWorkingAtHeights: true,
}

// ValidExamType reports whether t is a known examination type.
func ValidExamType(t ExamType) bool { return validExamTypes[t] }

// SectionData is the raw answer tree for one section. Values are JSON-shaped:
// strings, numbers, booleans, nested maps and slices. A nil value means the
// question was shown but not answered.
type SectionData map[string]interface{}

// AuditEntry is one append-only audit log line on a record.
type AuditEntry struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Detail string    `json:"detail,omitempty"`
}

var (
	ErrNotFound        = errors.New("questionnaire record not found")
	ErrRecordCompleted = errors.New("questionnaire record is completed and immutable")
	ErrVersionConflict = errors.New("questionnaire record version conflict")
)

// Record is one questionnaire per patient per examination. Once Completed is
// set the record is immutable apart from audit appends; completion requires
// every section flag true and a non-empty signature (see CanComplete).
type Record struct {
	ID              uuid.UUID               `json:"id"`
	PatientID       uuid.UUID               `json:"patient_id"`
	ExaminationID   uuid.UUID               `json:"examination_id"`
	ExamType        ExamType                `json:"exam_type"`
	Sections        map[Section]SectionData `json:"sections"`
	SectionComplete map[Section]bool        `json:"section_complete"`
	Completion      int                     `json:"completion"`
	Completed       bool                    `json:"completed"`
	Signature       string                  `json:"signature,omitempty"`
	CompletedAt     *time.Time              `json:"completed_at,omitempty"`
	Audit           []AuditEntry            `json:"audit"`
	Version         int                     `json:"version"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// NewRecord creates an empty questionnaire for a patient examination.
func NewRecord(patientID, examinationID uuid.UUID, examType ExamType, now time.Time) *Record {
	return &Record{
		ID:              uuid.New(),
		PatientID:       patientID,
		ExaminationID:   examinationID,
		ExamType:        examType,
		Sections:        make(map[Section]SectionData),
		SectionComplete: make(map[Section]bool),
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Clone returns a deep copy. Mutating helpers operate on clones so a failed
// multi-step operation leaves the original untouched.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Sections = make(map[Section]SectionData, len(r.Sections))
	for sec, data := range r.Sections {
		cp.Sections[sec] = cloneData(data)
	}
	cp.SectionComplete = make(map[Section]bool, len(r.SectionComplete))
	for sec, ok := range r.SectionComplete {
		cp.SectionComplete[sec] = ok
	}
	cp.Audit = make([]AuditEntry, len(r.Audit))
	copy(cp.Audit, r.Audit)
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}

func cloneData(data SectionData) SectionData {
	return SectionData(cloneValue(map[string]interface{}(data)).(map[string]interface{}))
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case SectionData:
		return cloneValue(map[string]interface{}(t))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// AppendAudit records an audit line. Allowed even on completed records.
func (r *Record) AppendAudit(actor, action, detail string, now time.Time) {
	r.Audit = append(r.Audit, AuditEntry{At: now, Actor: actor, Action: action, Detail: detail})
}

// CanComplete checks the completion invariant: every section required by the
// examination template must be flagged complete and a signature must be set.
func (r *Record) CanComplete() error {
	for _, sec := range TemplateFor(r.ExamType).RequiredSections {
		if !r.SectionComplete[sec] {
			return errors.New("section not complete: " + string(sec))
		}
	}
	if r.Signature == "" {
		return errors.New("digital signature missing")
	}
	return nil
}

// MarkCompleted flips the record to its terminal, immutable state.
// Callers must have verified CanComplete first.
func (r *Record) MarkCompleted(now time.Time) {
	r.Completed = true
	at := now
	r.CompletedAt = &at
	r.UpdatedAt = now
}
