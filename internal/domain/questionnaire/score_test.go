package questionnaire

import (
	"testing"

	"github.com/google/uuid"
)

func scoredRecord(examType ExamType) *Record {
	return NewRecord(uuid.New(), uuid.New(), examType, testNow)
}

func TestScoreCompletion_Empty(t *testing.T) {
	rec := scoredRecord(ExamPreEmployment)
	if got := ScoreCompletion(rec, TemplateFor(rec.ExamType)); got != 0 {
		t.Errorf("empty record: expected 0, got %d", got)
	}
}

func TestScoreCompletion_CountsLeaves(t *testing.T) {
	rec := scoredRecord(ExamExit)
	rec.Sections[SectionDemographics] = SectionData{
		"first_name": "Thabo", // completed
		"surname":    "",      // empty string: counted, not completed
		"id_number":  nil,     // unanswered: counted, not completed
		"employer": map[string]interface{}{
			"name": "Acme", // nested leaves count individually
			"site": "",
		},
	}

	// 6 leaves, 2 completed -> 33%.
	if got := ScoreCompletion(rec, TemplateFor(rec.ExamType)); got != 33 {
		t.Errorf("expected 33, got %d", got)
	}
}

func TestScoreCompletion_SlicesAreInterior(t *testing.T) {
	rec := scoredRecord(ExamExit)
	rec.Sections[SectionMedicalHistory] = SectionData{
		"medications": []interface{}{"aspirin", "", "insulin"},
	}

	// 3 leaves in the slice, 2 completed -> 67%.
	if got := ScoreCompletion(rec, TemplateFor(rec.ExamType)); got != 67 {
		t.Errorf("expected 67, got %d", got)
	}
}

func TestScoreCompletion_IgnoresSectionsOutsideTemplate(t *testing.T) {
	rec := scoredRecord(ExamExit)
	rec.Sections[SectionDemographics] = SectionData{"first_name": "Thabo"}
	// Vitals are not part of the exit template; they must not affect the score.
	rec.Sections[SectionVitals] = SectionData{"height_cm": nil, "weight_kg": nil}

	if got := ScoreCompletion(rec, TemplateFor(rec.ExamType)); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}
}

func TestScoreCompletion_Monotonic(t *testing.T) {
	rec := scoredRecord(ExamPeriodical)
	rec.Sections[SectionDemographics] = SectionData{
		"first_name": "",
		"surname":    "",
		"id_number":  "",
	}

	prev := ScoreCompletion(rec, TemplateFor(rec.ExamType))
	for _, field := range []string{"first_name", "surname", "id_number"} {
		rec.Sections[SectionDemographics][field] = "filled"
		got := ScoreCompletion(rec, TemplateFor(rec.ExamType))
		if got < prev {
			t.Fatalf("filling %s dropped score from %d to %d", field, prev, got)
		}
		prev = got
	}
	if prev != 100 {
		t.Errorf("expected 100 after filling all leaves, got %d", prev)
	}
}

func TestScoreCompletion_Deterministic(t *testing.T) {
	rec := scoredRecord(ExamPeriodical)
	rec.Sections[SectionVitals] = completeVitals()
	rec.Sections[SectionDemographics] = completeDemographics()

	first := ScoreCompletion(rec, TemplateFor(rec.ExamType))
	for i := 0; i < 10; i++ {
		if got := ScoreCompletion(rec, TemplateFor(rec.ExamType)); got != first {
			t.Fatalf("score changed between identical calls: %d then %d", first, got)
		}
	}
}
