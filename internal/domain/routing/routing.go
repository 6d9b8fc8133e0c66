// Package routing decides which physical station a patient visits next.
// Routing is pure: given the same alerts, examination type and current
// station it always returns the same decision.
package routing

import (
	"time"

	"github.com/surgiscan/occhealth/internal/domain/questionnaire"
	"github.com/surgiscan/occhealth/internal/domain/triage"
)

// Station is a physical service point in the clinic.
type Station string

const (
	StationQuestionnaire Station = "questionnaire"
	StationVitals        Station = "vitals"      // nurse
	StationTests         Station = "tests"       // technician
	StationReview        Station = "review"      // doctor
	StationCertificate   Station = "certificate" // certificate issue desk
	StationNone          Station = ""            // journey finished
)

// defaultChain is the standard station order for every examination type.
var defaultChain = []Station{
	StationQuestionnaire, StationVitals, StationTests, StationReview, StationCertificate,
}

// requiredStations lists which stations must be completed before a session
// auto-completes, per examination type. Exit examinations skip the tests
// station; everything else follows the full chain.
var requiredStations = map[questionnaire.ExamType][]Station{
	questionnaire.ExamPreEmployment:    {StationQuestionnaire, StationVitals, StationTests, StationReview, StationCertificate},
	questionnaire.ExamPeriodical:       {StationQuestionnaire, StationVitals, StationTests, StationReview, StationCertificate},
	questionnaire.ExamExit:             {StationQuestionnaire, StationVitals, StationReview, StationCertificate},
	questionnaire.ExamWorkingAtHeights: {StationQuestionnaire, StationVitals, StationTests, StationReview, StationCertificate},
}

// RequiredStations returns the stations an examination type must complete.
func RequiredStations(examType questionnaire.ExamType) []Station {
	if st, ok := requiredStations[examType]; ok {
		return st
	}
	return defaultChain
}

// Decision is a routing outcome with the reason it was taken, so staff UIs
// can explain a shortcut instead of showing a bare station name.
type Decision struct {
	Next   Station `json:"next"`
	Reason string  `json:"reason"`
	Bypass bool    `json:"bypass"` // vitals/tests skipped due to severity
}

// Next picks the station after current. Any critical or urgent alert
// short-circuits straight to the doctor's review station, bypassing vitals
// and tests; the tail of the chain (review, certificate) is unaffected.
func Next(alerts []triage.Alert, examType questionnaire.ExamType, current Station) Decision {
	chain := RequiredStations(examType)
	idx := indexOf(chain, current)

	if triage.HasImmediate(alerts) && idx < indexOf(chain, StationReview) {
		return Decision{
			Next:   StationReview,
			Reason: "critical alert: routed directly to doctor",
			Bypass: true,
		}
	}

	if idx < 0 {
		return Decision{Next: chain[0], Reason: "start of chain"}
	}
	if idx+1 >= len(chain) {
		return Decision{Next: StationNone, Reason: "end of chain"}
	}
	return Decision{Next: chain[idx+1], Reason: "next station in chain"}
}

func indexOf(chain []Station, st Station) int {
	for i, s := range chain {
		if s == st {
			return i
		}
	}
	return -1
}

// estimatedWaits are static planning figures used in handoff payloads.
var estimatedWaits = map[Station]time.Duration{
	StationQuestionnaire: 5 * time.Minute,
	StationVitals:        10 * time.Minute,
	StationTests:         20 * time.Minute,
	StationReview:        15 * time.Minute,
	StationCertificate:   5 * time.Minute,
}

// EstimatedWait returns the planning wait estimate for a station.
func EstimatedWait(st Station) time.Duration {
	return estimatedWaits[st]
}

// Valid reports whether st names a real station.
func Valid(st Station) bool {
	_, ok := estimatedWaits[st]
	return ok
}
