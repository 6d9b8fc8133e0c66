package questionnaire

import "math"

// ScoreCompletion computes the 0-100 completion percentage of a record
// against its examination template. Every leaf value under a required
// section counts toward the total; a leaf is completed when it is neither
// nil nor an empty string. A record with no leaves at all scores 0.
//
// The function is pure: identical input always yields the identical
// percentage, and filling a previously-empty leaf can only raise it.
func ScoreCompletion(rec *Record, tmpl Template) int {
	var total, completed int
	for _, sec := range tmpl.RequiredSections {
		t, c := countLeaves(map[string]interface{}(rec.Sections[sec]))
		total += t
		completed += c
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// countLeaves walks a JSON-shaped value tree and tallies (total, completed)
// leaves. Maps and slices are interior nodes; everything else is a leaf.
func countLeaves(v interface{}) (total, completed int) {
	switch t := v.(type) {
	case nil:
		return 1, 0
	case map[string]interface{}:
		for _, e := range t {
			et, ec := countLeaves(e)
			total += et
			completed += ec
		}
		return total, completed
	case SectionData:
		return countLeaves(map[string]interface{}(t))
	case []interface{}:
		for _, e := range t {
			et, ec := countLeaves(e)
			total += et
			completed += ec
		}
		return total, completed
	case string:
		if t == "" {
			return 1, 0
		}
		return 1, 1
	default:
		return 1, 1
	}
}
