package dom

import "time"

// EventKind names an observable mutation recorded in the event journal.
type EventKind string

const (
	EventScroll    EventKind = "scroll"
	EventFocus     EventKind = "focus"
	EventInput     EventKind = "input"
	EventChange    EventKind = "change"
	EventClick     EventKind = "click"
	EventFragment  EventKind = "fragment"
	EventHighlight EventKind = "highlight"
	EventSubmit    EventKind = "submit"
)

// Event is one journal entry. Selector is the stable selector of the target
// element, empty for document-level events (scroll, fragment). Detail carries
// the event-specific payload: the scroll behavior, the committed value, the
// new fragment.
type Event struct {
	Kind     EventKind
	Selector string
	Detail   string
	At       time.Time
}

// journal is an append-only event list owned by the Document. Bounded so a
// long-lived host can't grow without limit; the oldest entries are dropped.
type journal struct {
	entries []Event
	max     int
}

func newJournal(max int) *journal {
	if max <= 0 {
		max = 512
	}
	return &journal{max: max}
}

func (j *journal) record(kind EventKind, selector, detail string) {
	j.entries = append(j.entries, Event{
		Kind:     kind,
		Selector: selector,
		Detail:   detail,
		At:       time.Now().UTC(),
	})
	if len(j.entries) > j.max {
		j.entries = j.entries[len(j.entries)-j.max:]
	}
}

func (j *journal) snapshot() []Event {
	out := make([]Event, len(j.entries))
	copy(out, j.entries)
	return out
}
