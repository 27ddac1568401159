package schemas

import "strings"

// Ellipsis marks truncated text fields throughout the snapshot contract.
const Ellipsis = "…"

// CollapseSpace trims the string and collapses interior whitespace runs to a
// single space. All snapshot text fields are normalized with it.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateText caps s at max runes, appending the ellipsis marker when it had
// to cut. Rune-based so multi-byte text never splits mid-character.
func TruncateText(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + Ellipsis
}
