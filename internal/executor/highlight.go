// internal/executor/highlight.go
package executor

import (
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/docent/internal/dom"
)

// DefaultHighlightTTL is how long the transient highlight stays on an
// element before it is removed again.
const DefaultHighlightTTL = 2600 * time.Millisecond

// Highlighter applies the transient highlight marker and schedules its
// removal. Flashing an already-lit element resets its timer instead of
// stacking a second one, so overlapping highlights expire cleanly.
type Highlighter struct {
	doc *dom.Document
	ttl time.Duration

	mu     sync.Mutex
	timers map[*html.Node]*time.Timer
}

func NewHighlighter(doc *dom.Document, ttl time.Duration) *Highlighter {
	if ttl <= 0 {
		ttl = DefaultHighlightTTL
	}
	return &Highlighter{
		doc:    doc,
		ttl:    ttl,
		timers: map[*html.Node]*time.Timer{},
	}
}

// Flash highlights n now and removes the highlight after the TTL.
func (h *Highlighter) Flash(n *html.Node) {
	if n == nil {
		return
	}
	h.doc.Highlight(n)

	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.timers[n]; ok {
		t.Stop()
	}

	// The callback only acts if it is still the current timer for n; a
	// stale callback that lost the race to a re-flash must not strip the
	// fresh highlight.
	var t *time.Timer
	t = time.AfterFunc(h.ttl, func() {
		h.mu.Lock()
		current := h.timers[n] == t
		if current {
			delete(h.timers, n)
		}
		h.mu.Unlock()
		if current {
			h.doc.Unhighlight(n)
		}
	})
	h.timers[n] = t
}

// Stop cancels every pending removal and clears the marks immediately.
func (h *Highlighter) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for n, t := range h.timers {
		t.Stop()
		h.doc.Unhighlight(n)
		delete(h.timers, n)
	}
}
