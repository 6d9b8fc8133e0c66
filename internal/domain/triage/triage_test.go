package triage

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/surgiscan/occhealth/internal/domain/questionnaire"
)

var testNow = time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

func record(sections map[questionnaire.Section]questionnaire.SectionData) *questionnaire.Record {
	rec := questionnaire.NewRecord(uuid.New(), uuid.New(), questionnaire.ExamPeriodical, testNow)
	for sec, data := range sections {
		rec.Sections[sec] = data
	}
	return rec
}

func alertTypes(alerts []Alert) map[string]Severity {
	out := make(map[string]Severity, len(alerts))
	for _, a := range alerts {
		out[a.Type] = a.Severity
	}
	return out
}

func TestEvaluate_NoAnswersNoAlerts(t *testing.T) {
	if alerts := Evaluate(record(nil)); len(alerts) != 0 {
		t.Errorf("expected no alerts for an empty record, got %v", alerts)
	}
}

func TestEvaluate_SeizureHistoryIsCritical(t *testing.T) {
	rec := record(map[questionnaire.Section]questionnaire.SectionData{
		questionnaire.SectionMedicalHistory: {
			"current_conditions": map[string]interface{}{"epilepsy_or_seizures": true},
		},
	})

	alerts := Evaluate(rec)
	got := alertTypes(alerts)
	if got["seizure_history"] != SeverityCritical {
		t.Fatalf("expected critical seizure_history alert, got %v", alerts)
	}
	if !HasImmediate(alerts) {
		t.Error("critical alert must be immediate")
	}
}

func TestEvaluate_SuicidalIdeationIsUrgent(t *testing.T) {
	rec := record(map[questionnaire.Section]questionnaire.SectionData{
		questionnaire.SectionMedicalHistory: {
			"mental_health": map[string]interface{}{"suicidal_thoughts": true},
		},
	})

	alerts := Evaluate(rec)
	if alertTypes(alerts)["suicidal_ideation"] != SeverityUrgent {
		t.Fatalf("expected urgent suicidal_ideation alert, got %v", alerts)
	}
	if !HasImmediate(alerts) {
		t.Error("urgent alert must be immediate")
	}
}

func TestEvaluate_FalseAnswersDoNotFire(t *testing.T) {
	rec := record(map[questionnaire.Section]questionnaire.SectionData{
		questionnaire.SectionMedicalHistory: {
			"current_conditions": map[string]interface{}{
				"epilepsy_or_seizures":   false,
				"chest_pain_on_exertion": false,
				"high_blood_pressure":    false,
			},
			"respiratory_conditions": map[string]interface{}{"tuberculosis": false},
			"medications":            []interface{}{},
		},
	})

	if alerts := Evaluate(rec); len(alerts) != 0 {
		t.Errorf("negative answers must not fire, got %v", alerts)
	}
}

func TestEvaluate_MultipleAlerts(t *testing.T) {
	rec := record(map[questionnaire.Section]questionnaire.SectionData{
		questionnaire.SectionMedicalHistory: {
			"current_conditions": map[string]interface{}{
				"chest_pain_on_exertion": true,
				"high_blood_pressure":    true,
			},
			"medications": []interface{}{"amlodipine"},
		},
		questionnaire.SectionWorkingAtHeights: {
			"vertigo_or_dizziness": true,
		},
	})

	got := alertTypes(Evaluate(rec))
	want := map[string]Severity{
		"cardiac_symptom":      SeverityHigh,
		"hypertension_history": SeverityMedium,
		"active_medication":    SeverityLow,
		"vertigo":              SeverityHigh,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d alerts, got %v", len(want), got)
	}
	for typ, sev := range want {
		if got[typ] != sev {
			t.Errorf("alert %s: severity %q, want %q", typ, got[typ], sev)
		}
	}
	if HasImmediate(Evaluate(rec)) {
		t.Error("none of these severities should be immediate")
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	rec := record(map[questionnaire.Section]questionnaire.SectionData{
		questionnaire.SectionMedicalHistory: {
			"current_conditions": map[string]interface{}{"high_blood_pressure": true},
		},
	})

	first := Evaluate(rec)
	for i := 0; i < 5; i++ {
		next := Evaluate(rec)
		if len(next) != len(first) {
			t.Fatalf("alert count changed between identical calls")
		}
		for j := range next {
			if next[j] != first[j] {
				t.Fatalf("alert %d changed: %v vs %v", j, next[j], first[j])
			}
		}
	}
}

func TestSeverity_Immediate(t *testing.T) {
	for sev, want := range map[Severity]bool{
		SeverityLow:      false,
		SeverityMedium:   false,
		SeverityHigh:     false,
		SeverityCritical: true,
		SeverityUrgent:   true,
	} {
		if sev.Immediate() != want {
			t.Errorf("%s.Immediate() = %v, want %v", sev, sev.Immediate(), want)
		}
	}
}
