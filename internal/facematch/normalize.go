package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeLabel normalizes a display label for comparison (lowercase, no diacritics, spaces for dashes).
func NormalizeLabel(label string) string {
	label = RemoveDiacritics(label)
	label = strings.ToLower(label)
	label = strings.ReplaceAll(label, "-", " ")
	return strings.TrimSpace(label)
}

// FilterByLabel keeps enrollments whose normalized label contains the normalized filter.
func FilterByLabel(enrollments []Enrollment, filter string) []Enrollment {
	needle := NormalizeLabel(filter)
	if needle == "" {
		return enrollments
	}
	var out []Enrollment
	for _, e := range enrollments {
		if strings.Contains(NormalizeLabel(e.Label), needle) {
			out = append(out, e)
		}
	}
	return out
}
