// internal/snapshot/capture.go
// Package snapshot turns the live document tree into the bounded, normalized
// summary the planning service grounds itself on. A snapshot is captured
// fresh for every planning call and discarded afterwards; it never mutates
// the tree and is never diffed against a previous capture.
package snapshot

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/docent/api/schemas"
	"github.com/xkilldash9x/docent/internal/dom"
)

// sectionTags are the container tags that count as sections when they carry
// an id.
var sectionTags = map[string]bool{
	"section": true,
	"article": true,
	"main":    true,
	"header":  true,
	"footer":  true,
	"nav":     true,
	"aside":   true,
}

// interactiveRoles are the explicit ARIA roles that make an otherwise plain
// element worth describing.
var interactiveRoles = map[string]bool{
	"button":    true,
	"link":      true,
	"tab":       true,
	"menuitem":  true,
	"checkbox":  true,
	"radio":     true,
	"switch":    true,
	"textbox":   true,
	"searchbox": true,
	"combobox":  true,
	"option":    true,
	"slider":    true,
}

// headingXPath finds the first heading-level descendant in document order.
const headingXPath = ".//*[self::h1 or self::h2 or self::h3 or self::h4 or self::h5 or self::h6]"

// Extractor captures snapshots of one hosted document.
type Extractor struct {
	doc    *dom.Document
	logger *zap.Logger
}

// NewExtractor binds an extractor to the document it summarizes.
func NewExtractor(doc *dom.Document, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{doc: doc, logger: logger.Named("snapshot")}
}

// Capture walks the tree once in document order and builds the summary:
// up to 12 identified visible sections and up to 160 visible interactive
// elements, the control surface excluded from both.
func (e *Extractor) Capture() schemas.PageSnapshot {
	snap := schemas.PageSnapshot{
		URL:        e.doc.URL(),
		Title:      e.doc.Title(),
		CapturedAt: time.Now().UTC(),
		Sections:   []schemas.SectionDescriptor{},
		Elements:   []schemas.ElementDescriptor{},
	}

	// Collect first, describe after: describing a node takes its own read
	// locks (visibility, selector synthesis), so it cannot run inside Walk.
	var nodes []*html.Node
	e.doc.Walk(func(n *html.Node) bool {
		nodes = append(nodes, n)
		return true
	})

	for _, n := range nodes {
		sectionsFull := len(snap.Sections) >= schemas.MaxSnapshotSections
		elementsFull := len(snap.Elements) >= schemas.MaxSnapshotElements
		if sectionsFull && elementsFull {
			break
		}
		if e.doc.InControlSurface(n) || !e.doc.Visible(n) {
			continue
		}

		tag := dom.Tag(n)
		id := dom.Attr(n, "id")

		if !sectionsFull && sectionTags[tag] && id != "" {
			snap.Sections = append(snap.Sections, e.describeSection(n, id))
		}
		if !elementsFull && isInteractive(n, tag, id) {
			snap.Elements = append(snap.Elements, e.describeElement(n, tag))
		}
	}

	e.logger.Debug("Captured page snapshot",
		zap.String("url", snap.URL),
		zap.Int("sections", len(snap.Sections)),
		zap.Int("elements", len(snap.Elements)))
	return snap
}

// isInteractive reports whether the element earns a descriptor: identified
// sections, card containers, anchors with a destination, form controls, and
// anything with an explicit interactive role.
func isInteractive(n *html.Node, tag, id string) bool {
	if sectionTags[tag] && id != "" {
		return true
	}
	if dom.HasAttr(n, "data-card") {
		return true
	}
	switch tag {
	case "a":
		return dom.Attr(n, "href") != ""
	case "button", "input", "textarea", "select":
		return true
	}
	return interactiveRoles[strings.ToLower(dom.Attr(n, "role"))]
}

func (e *Extractor) describeSection(n *html.Node, id string) schemas.SectionDescriptor {
	heading := id
	if h, err := e.doc.XPathFirst(n, headingXPath); err == nil && h != nil {
		if text := dom.Text(h); text != "" {
			heading = text
		}
	}

	preview := dom.Attr(n, "data-summary")
	if preview == "" {
		preview = dom.Text(n)
	}

	return schemas.SectionDescriptor{
		ID:          id,
		Heading:     schemas.TruncateText(schemas.CollapseSpace(heading), schemas.MaxHeadingRunes),
		TextPreview: schemas.TruncateText(schemas.CollapseSpace(preview), schemas.MaxPreviewRunes),
	}
}

func (e *Extractor) describeElement(n *html.Node, tag string) schemas.ElementDescriptor {
	desc := schemas.ElementDescriptor{
		Selector:  e.doc.StableSelector(n),
		Tag:       tag,
		Text:      schemas.TruncateText(Label(n), schemas.MaxPreviewRunes),
		AriaLabel: schemas.CollapseSpace(dom.Attr(n, "aria-label")),
		SectionID: enclosingSectionID(n),
	}

	switch tag {
	case "a":
		desc.Href = dom.Attr(n, "href")
	case "input":
		desc.InputName = dom.Attr(n, "name")
		desc.InputType = strings.ToLower(dom.Attr(n, "type"))
	case "textarea", "select":
		desc.InputName = dom.Attr(n, "name")
	}
	return desc
}

// Label picks the element's display text by priority: text content, then
// aria-label, placeholder, title, and the data-section hint. The first
// non-empty source wins; everything is whitespace-normalized.
func Label(n *html.Node) string {
	for _, candidate := range []string{
		dom.Text(n),
		dom.Attr(n, "aria-label"),
		dom.Attr(n, "placeholder"),
		dom.Attr(n, "title"),
		dom.Attr(n, "data-section"),
	} {
		if text := schemas.CollapseSpace(candidate); text != "" {
			return text
		}
	}
	return ""
}

// enclosingSectionID climbs to the nearest identified section-like ancestor.
func enclosingSectionID(n *html.Node) string {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if id := dom.Attr(p, "id"); id != "" && sectionTags[dom.Tag(p)] {
			return id
		}
	}
	return ""
}
