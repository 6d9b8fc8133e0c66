package questionnaire

import (
	"fmt"
	"time"

	"github.com/surgiscan/occhealth/internal/domain/identity"
)

// SectionResult is the outcome of validating one section. It is purely
// informational; callers decide whether to persist the completion flag.
type SectionResult struct {
	Section       Section  `json:"section"`
	Complete      bool     `json:"complete"`
	MissingFields []string `json:"missing_fields,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

type sectionRule func(data SectionData, examType ExamType, now time.Time) SectionResult

// sectionRules is the dispatch table for section validation. Each section has
// exactly one rule; ValidateSection never branches on section names itself.
var sectionRules = map[Section]sectionRule{
	SectionDemographics:     validateDemographics,
	SectionMedicalHistory:   validateMedicalHistory,
	SectionVitals:           validateVitals,
	SectionWorkingAtHeights: validateWorkingAtHeights,
	SectionDeclarations:     validateDeclarations,
}

// ValidateSection runs the rule for one section against its answer data.
// It always returns a result, never an error: incomplete or malformed input
// is reported through MissingFields and Errors.
func ValidateSection(sec Section, data SectionData, examType ExamType, now time.Time) SectionResult {
	rule, ok := sectionRules[sec]
	if !ok {
		return SectionResult{
			Section: sec,
			Errors:  []string{fmt.Sprintf("unknown section %q", sec)},
		}
	}
	res := rule(data, examType, now)
	res.Section = sec
	return res
}

// Sections returns every known section, in template order.
func Sections() []Section {
	return []Section{
		SectionDemographics, SectionMedicalHistory, SectionVitals,
		SectionWorkingAtHeights, SectionDeclarations,
	}
}

func validateDemographics(data SectionData, _ ExamType, now time.Time) SectionResult {
	var res SectionResult
	for _, field := range []string{
		"first_name", "surname", "id_number", "marital_status",
		"position", "department", "company_name",
	} {
		if str(data, field) == "" {
			res.MissingFields = append(res.MissingFields, field)
		}
	}
	if id := str(data, "id_number"); id != "" {
		if _, err := identity.Parse(id, now); err != nil {
			res.Errors = append(res.Errors, "id_number: "+err.Error())
		}
	}
	res.Complete = len(res.MissingFields) == 0 && len(res.Errors) == 0
	return res
}

const (
	minCurrentConditionsAnswered     = 3
	minRespiratoryConditionsAnswered = 2
)

// Medical history deliberately allows partial completion: the clinic only
// needs a minimum number of answered condition screens, not every field.
func validateMedicalHistory(data SectionData, _ ExamType, _ time.Time) SectionResult {
	var res SectionResult
	current := answeredCount(sub(data, "current_conditions"))
	respiratory := answeredCount(sub(data, "respiratory_conditions"))
	if current < minCurrentConditionsAnswered {
		res.MissingFields = append(res.MissingFields, "current_conditions")
		res.Errors = append(res.Errors, fmt.Sprintf(
			"current_conditions: %d of at least %d questions answered", current, minCurrentConditionsAnswered))
	}
	if respiratory < minRespiratoryConditionsAnswered {
		res.MissingFields = append(res.MissingFields, "respiratory_conditions")
		res.Errors = append(res.Errors, fmt.Sprintf(
			"respiratory_conditions: %d of at least %d questions answered", respiratory, minRespiratoryConditionsAnswered))
	}
	res.Complete = len(res.Errors) == 0
	return res
}

type vitalRange struct {
	field    string
	min, max float64
	unit     string
}

var vitalRanges = []vitalRange{
	{"height_cm", 100, 250, "cm"},
	{"weight_kg", 30, 300, "kg"},
	{"pulse_bpm", 40, 200, "bpm"},
	{"bp_systolic", 70, 250, "mmHg"},
	{"bp_diastolic", 40, 150, "mmHg"},
}

var urinalysisValues = map[string]bool{"positive": true, "negative": true, "trace": true}

func validateVitals(data SectionData, _ ExamType, _ time.Time) SectionResult {
	var res SectionResult
	for _, vr := range vitalRanges {
		v, ok := num(data, vr.field)
		if !ok {
			res.MissingFields = append(res.MissingFields, vr.field)
			continue
		}
		if v < vr.min || v > vr.max {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"%s: %g outside [%g, %g] %s", vr.field, v, vr.min, vr.max, vr.unit))
		}
	}
	urinalysis := sub(data, "urinalysis")
	for _, field := range []string{"blood", "protein", "glucose"} {
		v := str(urinalysis, field)
		if v == "" {
			res.MissingFields = append(res.MissingFields, "urinalysis."+field)
			continue
		}
		if !urinalysisValues[v] {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"urinalysis.%s: %q is not one of positive/negative/trace", field, v))
		}
	}
	res.Complete = len(res.MissingFields) == 0 && len(res.Errors) == 0
	return res
}

// heightsSafetyQuestions must all be answered when the examination type
// involves working at heights.
var heightsSafetyQuestions = []string{
	"fear_of_heights",
	"vertigo_or_dizziness",
	"balance_disorder",
	"previous_fall_injury",
	"comfortable_with_harness",
}

func validateWorkingAtHeights(data SectionData, examType ExamType, _ time.Time) SectionResult {
	var res SectionResult
	if !RequiresSection(examType, SectionWorkingAtHeights) {
		res.Complete = true
		return res
	}
	for _, q := range heightsSafetyQuestions {
		if !answered(data, q) {
			res.MissingFields = append(res.MissingFields, q)
		}
	}
	res.Complete = len(res.MissingFields) == 0
	return res
}

var requiredDeclarations = []string{
	"information_true_and_complete",
	"consent_to_examination",
	"aware_of_right_to_decline",
}

const signatureMaxAge = 24 * time.Hour

func validateDeclarations(data SectionData, _ ExamType, now time.Time) SectionResult {
	var res SectionResult
	for _, field := range requiredDeclarations {
		v, ok := boolVal(data, field)
		if !ok {
			res.MissingFields = append(res.MissingFields, field)
			continue
		}
		if !v {
			res.Errors = append(res.Errors, field+": must be accepted")
		}
	}
	if name := str(data, "name"); len(name) < 3 {
		if name == "" {
			res.MissingFields = append(res.MissingFields, "name")
		} else {
			res.Errors = append(res.Errors, "name: must be at least 3 characters")
		}
	}
	sig := str(data, "signature")
	if sig == "" {
		res.MissingFields = append(res.MissingFields, "signature")
	}
	ts := str(data, "signature_timestamp")
	if ts == "" {
		res.MissingFields = append(res.MissingFields, "signature_timestamp")
	} else if signedAt, err := time.Parse(time.RFC3339, ts); err != nil {
		res.Errors = append(res.Errors, "signature_timestamp: not a valid RFC3339 timestamp")
	} else if signedAt.After(now) {
		res.Errors = append(res.Errors, "signature_timestamp: in the future")
	} else if now.Sub(signedAt) > signatureMaxAge {
		res.Errors = append(res.Errors, "signature_timestamp: older than 24 hours, please sign again")
	}
	res.Complete = len(res.MissingFields) == 0 && len(res.Errors) == 0
	return res
}

// -- SectionData accessors --

func str(data SectionData, field string) string {
	if data == nil {
		return ""
	}
	s, _ := data[field].(string)
	return s
}

func num(data SectionData, field string) (float64, bool) {
	if data == nil {
		return 0, false
	}
	switch v := data[field].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	default:
		return 0, false
	}
}

func boolVal(data SectionData, field string) (bool, bool) {
	if data == nil {
		return false, false
	}
	b, ok := data[field].(bool)
	return b, ok
}

func sub(data SectionData, field string) SectionData {
	if data == nil {
		return nil
	}
	switch v := data[field].(type) {
	case map[string]interface{}:
		return SectionData(v)
	case SectionData:
		return v
	default:
		return nil
	}
}

// answered reports whether a question holds any non-nil value. An explicit
// false or zero still counts as answered.
func answered(data SectionData, field string) bool {
	if data == nil {
		return false
	}
	v, ok := data[field]
	return ok && v != nil
}

func answeredCount(data SectionData) int {
	n := 0
	for _, v := range data {
		if v != nil {
			n++
		}
	}
	return n
}
