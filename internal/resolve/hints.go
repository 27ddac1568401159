// internal/resolve/hints.go
package resolve

import (
	"strconv"
	"strings"

	"github.com/xkilldash9x/docent/api/schemas"
)

// Hints is the loose bag of resolution inputs drawn from an action's
// arguments. Empty fields mean the corresponding strategy is skipped.
type Hints struct {
	// Section feeds the section-hint strategy (sectionId / section /
	// targetSection argument keys).
	Section string
	// Selector feeds the explicit structural query strategy.
	Selector string
	// Text feeds the free-text strategies (text / label / target /
	// projectName argument keys).
	Text string
}

func (h Hints) empty() bool {
	return h.Section == "" && h.Selector == "" && h.Text == ""
}

// Describe renders the hints for not-found messages, preferring the most
// specific input the caller supplied.
func (h Hints) Describe() string {
	switch {
	case h.Text != "":
		return h.Text
	case h.Selector != "":
		return h.Selector
	case h.Section != "":
		return h.Section
	default:
		return "(no target)"
	}
}

// normalizeHint lowercases, collapses whitespace, and strips a leading '#'
// so fragment-style section references compare equal to bare identifiers.
func normalizeHint(s string) string {
	return strings.TrimPrefix(schemas.CollapseSpace(strings.ToLower(s)), "#")
}

// superlatives pick the freshest card regardless of phrasing.
var superlatives = []string{"most recent", "latest", "newest"}

func hasSuperlative(norm string) bool {
	for _, term := range superlatives {
		if strings.Contains(norm, term) {
			return true
		}
	}
	return false
}

// ordinalWords covers the spoken ordinals users actually type; anything
// larger arrives as a digit.
var ordinalWords = map[string]int{
	"first":  1,
	"second": 2,
	"third":  3,
	"fourth": 4,
	"fifth":  5,
}

// parseOrdinal extracts a 1-based position from the hint: an ordinal word
// first, else the first standalone integer literal. Suffixed forms like
// "2nd" count as integer literals.
func parseOrdinal(norm string) (int, bool) {
	for _, field := range strings.Fields(norm) {
		word := strings.Trim(field, ".,!?:;")
		if k, ok := ordinalWords[word]; ok {
			return k, true
		}
	}
	for _, field := range strings.Fields(norm) {
		word := trimOrdinalSuffix(strings.Trim(field, ".,!?:;"))
		if word == "" {
			continue
		}
		if k, err := strconv.Atoi(word); err == nil && k > 0 {
			return k, true
		}
	}
	return 0, false
}

func trimOrdinalSuffix(word string) string {
	for _, suffix := range []string{"st", "nd", "rd", "th"} {
		digits := strings.TrimSuffix(word, suffix)
		if digits == word || digits == "" {
			continue
		}
		if _, err := strconv.Atoi(digits); err == nil {
			return digits
		}
	}
	return word
}
