package schemas

import "time"

// Bounds of the structural summary handed to the planning service. A snapshot
// is built fresh for every planning and every finalizing call and discarded
// afterwards; it is never reused or diffed.
const (
	MaxSnapshotSections = 12
	MaxSnapshotElements = 160

	// MaxPreviewRunes bounds element text and section previews; MaxHeadingRunes
	// bounds section headings. Truncation appends Ellipsis.
	MaxPreviewRunes = 260
	MaxHeadingRunes = 80
)

// PageSnapshot is the bounded, normalized summary of the live document tree.
type PageSnapshot struct {
	URL        string              `json:"url"`
	Title      string              `json:"title"`
	CapturedAt time.Time           `json:"capturedAt"`
	Sections   []SectionDescriptor `json:"sections"`
	Elements   []ElementDescriptor `json:"elements"`
}

// SectionDescriptor summarizes one visible section-like container that carries
// a stable identifier.
type SectionDescriptor struct {
	ID          string `json:"id"`
	Heading     string `json:"heading"`
	TextPreview string `json:"textPreview"`
}

// ElementDescriptor summarizes one visible interactive element. Selector must
// re-locate the element in the live tree at the time it is used; it is
// advisory, not a cached handle.
type ElementDescriptor struct {
	Selector  string `json:"selector"`
	Tag       string `json:"tag"`
	Text      string `json:"text,omitempty"`
	AriaLabel string `json:"ariaLabel,omitempty"`
	Href      string `json:"href,omitempty"`
	InputName string `json:"inputName,omitempty"`
	InputType string `json:"inputType,omitempty"`
	SectionID string `json:"sectionId,omitempty"`
}
