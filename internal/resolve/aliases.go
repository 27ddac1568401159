// internal/resolve/aliases.go
package resolve

import (
	"sort"
	"strings"
)

// aliasEntry maps a canonical section name to the synonyms users reach for.
type aliasEntry struct {
	canonical string
	aliases   []string
}

var sectionAliases = []aliasEntry{
	{"projects", []string{"project", "portfolio", "work", "works", "case studies", "case study", "showcase"}},
	{"about", []string{"about me", "bio", "biography", "profile", "who i am"}},
	{"skills", []string{"skill", "expertise", "technologies", "tech stack", "stack", "tooling"}},
	{"experience", []string{"work history", "career", "employment", "resume", "cv"}},
	{"contact", []string{"get in touch", "reach out", "email", "message me", "hire"}},
	{"home", []string{"hero", "top", "start", "landing", "intro", "introduction"}},
}

// matchesHint reports a direct reference: the normalized hint equals or is
// contained in the canonical name or one of its aliases.
func (e aliasEntry) matchesHint(norm string) bool {
	if norm == "" {
		return false
	}
	if norm == e.canonical || strings.Contains(e.canonical, norm) {
		return true
	}
	for _, alias := range e.aliases {
		if strings.Contains(alias, norm) {
			return true
		}
	}
	return false
}

// phraseMatchLen returns the length of the longest alias (or the canonical
// name) contained within the hint, 0 when none is.
func (e aliasEntry) phraseMatchLen(norm string) int {
	best := 0
	if strings.Contains(norm, e.canonical) {
		best = len(e.canonical)
	}
	for _, alias := range e.aliases {
		if len(alias) > best && strings.Contains(norm, alias) {
			best = len(alias)
		}
	}
	return best
}

// aliasCanonicals lists every canonical section the hint could name, most
// plausible first: direct references in table order, then phrase matches
// ranked by the length of the matched alias, so "work history" reaches
// experience before projects' shorter "work" can claim it.
func aliasCanonicals(norm string) []string {
	if norm == "" {
		return nil
	}

	var out []string
	direct := make(map[string]bool, len(sectionAliases))
	for _, e := range sectionAliases {
		if e.matchesHint(norm) {
			out = append(out, e.canonical)
			direct[e.canonical] = true
		}
	}

	type phraseMatch struct {
		canonical string
		strength  int
	}
	var phrases []phraseMatch
	for _, e := range sectionAliases {
		if direct[e.canonical] {
			continue
		}
		if n := e.phraseMatchLen(norm); n > 0 {
			phrases = append(phrases, phraseMatch{e.canonical, n})
		}
	}
	sort.SliceStable(phrases, func(i, j int) bool { return phrases[i].strength > phrases[j].strength })
	for _, p := range phrases {
		out = append(out, p.canonical)
	}
	return out
}
