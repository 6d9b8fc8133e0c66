package questionnaire

// Template is the static per-examination-type configuration: which sections
// a record must contain before it can be considered complete. Templates are
// read-only; they are never mutated at runtime.
type Template struct {
	ExamType         ExamType
	RequiredSections []Section
}

var templates = map[ExamType]Template{
	ExamPreEmployment: {
		ExamType: ExamPreEmployment,
		RequiredSections: []Section{
			SectionDemographics, SectionMedicalHistory, SectionVitals, SectionDeclarations,
		},
	},
	ExamPeriodical: {
		ExamType: ExamPeriodical,
		RequiredSections: []Section{
			SectionDemographics, SectionMedicalHistory, SectionVitals, SectionDeclarations,
		},
	},
	ExamExit: {
		ExamType: ExamExit,
		RequiredSections: []Section{
			SectionDemographics, SectionMedicalHistory, SectionDeclarations,
		},
	},
	ExamWorkingAtHeights: {
		ExamType: ExamWorkingAtHeights,
		RequiredSections: []Section{
			SectionDemographics, SectionMedicalHistory, SectionVitals,
			SectionWorkingAtHeights, SectionDeclarations,
		},
	},
}

// TemplateFor returns the template for an examination type. Unknown types get
// the pre-employment template, the broadest of the standard three.
func TemplateFor(t ExamType) Template {
	if tmpl, ok := templates[t]; ok {
		return tmpl
	}
	return templates[ExamPreEmployment]
}

// RequiresSection reports whether the examination type requires the section.
func RequiresSection(t ExamType, sec Section) bool {
	for _, s := range TemplateFor(t).RequiredSections {
		if s == sec {
			return true
		}
	}
	return false
}
