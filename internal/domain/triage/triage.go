// Package triage inspects answered questionnaire fields and derives
// severity-tagged medical risk alerts that drive station routing.
package triage

import (
	"github.com/surgiscan/occhealth/internal/domain/questionnaire"
)

// Severity classifies how urgently an alert needs clinical attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
	SeverityUrgent   Severity = "urgent"
)

// Immediate reports whether the severity forces an immediate routing
// shortcut to the doctor.
func (s Severity) Immediate() bool {
	return s == SeverityCritical || s == SeverityUrgent
}

// Alert is an ephemeral triage finding. Alerts are recomputed from record
// data on demand and never persisted as their own entity.
type Alert struct {
	Type            string   `json:"type"`
	Severity        Severity `json:"severity"`
	Message         string   `json:"message"`
	SuggestedAction string   `json:"suggested_action"`
}

// condition decides whether a rule fires given the raw answer value.
type condition func(v interface{}) bool

func isTrue(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

func nonEmptyList(v interface{}) bool {
	l, ok := v.([]interface{})
	return ok && len(l) > 0
}

// rule maps one questionnaire answer to an alert. The table below is data:
// extending triage coverage means appending a rule, the evaluation loop
// never changes.
type rule struct {
	section questionnaire.Section
	path    []string // key path inside the section data
	fires   condition
	alert   Alert
}

var rules = []rule{
	{
		section: questionnaire.SectionMedicalHistory,
		path:    []string{"current_conditions", "epilepsy_or_seizures"},
		fires:   isTrue,
		alert: Alert{
			Type:            "seizure_history",
			Severity:        SeverityCritical,
			Message:         "Patient reports a history of epilepsy or seizures",
			SuggestedAction: "Immediate doctor review before any machinery or heights clearance",
		},
	},
	{
		section: questionnaire.SectionMedicalHistory,
		path:    []string{"mental_health", "suicidal_thoughts"},
		fires:   isTrue,
		alert: Alert{
			Type:            "suicidal_ideation",
			Severity:        SeverityUrgent,
			Message:         "Patient reports prior suicidal ideation",
			SuggestedAction: "Escalate to doctor immediately and arrange confidential counselling referral",
		},
	},
	{
		section: questionnaire.SectionMedicalHistory,
		path:    []string{"current_conditions", "chest_pain_on_exertion"},
		fires:   isTrue,
		alert: Alert{
			Type:            "cardiac_symptom",
			Severity:        SeverityHigh,
			Message:         "Patient reports chest pain on exertion",
			SuggestedAction: "Prioritise cardiovascular assessment at the vitals station",
		},
	},
	{
		section: questionnaire.SectionMedicalHistory,
		path:    []string{"current_conditions", "high_blood_pressure"},
		fires:   isTrue,
		alert: Alert{
			Type:            "hypertension_history",
			Severity:        SeverityMedium,
			Message:         "Patient reports high blood pressure",
			SuggestedAction: "Repeat blood pressure measurement after a rest period",
		},
	},
	{
		section: questionnaire.SectionMedicalHistory,
		path:    []string{"respiratory_conditions", "tuberculosis"},
		fires:   isTrue,
		alert: Alert{
			Type:            "tb_history",
			Severity:        SeverityHigh,
			Message:         "Patient reports a tuberculosis history",
			SuggestedAction: "Include chest X-ray and sputum screen in the tests station",
		},
	},
	{
		section: questionnaire.SectionWorkingAtHeights,
		path:    []string{"fear_of_heights"},
		fires:   isTrue,
		alert: Alert{
			Type:            "fear_of_heights",
			Severity:        SeverityMedium,
			Message:         "Patient reports fear of heights",
			SuggestedAction: "Functional heights assessment before certification for elevated work",
		},
	},
	{
		section: questionnaire.SectionWorkingAtHeights,
		path:    []string{"vertigo_or_dizziness"},
		fires:   isTrue,
		alert: Alert{
			Type:            "vertigo",
			Severity:        SeverityHigh,
			Message:         "Patient reports vertigo or dizziness episodes",
			SuggestedAction: "Doctor to assess vestibular function before heights clearance",
		},
	},
	{
		section: questionnaire.SectionMedicalHistory,
		path:    []string{"medications"},
		fires:   nonEmptyList,
		alert: Alert{
			Type:            "active_medication",
			Severity:        SeverityLow,
			Message:         "Patient is on active medication",
			SuggestedAction: "Review medication list for occupational interactions",
		},
	},
}

// Evaluate walks the rule table against a record's answers and returns every
// alert that fires. Callers must not rely on the slice order beyond severity
// grouping for display.
func Evaluate(rec *questionnaire.Record) []Alert {
	var alerts []Alert
	for _, rl := range rules {
		v, ok := lookup(rec.Sections[rl.section], rl.path)
		if ok && rl.fires(v) {
			alerts = append(alerts, rl.alert)
		}
	}
	return alerts
}

// HasImmediate reports whether any alert carries a shortcut-forcing severity.
func HasImmediate(alerts []Alert) bool {
	for _, a := range alerts {
		if a.Severity.Immediate() {
			return true
		}
	}
	return false
}

func lookup(data questionnaire.SectionData, path []string) (interface{}, bool) {
	var v interface{} = map[string]interface{}(data)
	for _, key := range path {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if v, ok = m[key]; !ok {
			return nil, false
		}
	}
	return v, true
}
