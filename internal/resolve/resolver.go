// internal/resolve/resolver.go
// Package resolve maps planner-supplied hints onto live document elements.
// The strategy chain runs in a fixed order and the first hit wins; every
// strategy refuses elements inside the system's own control surface, so the
// assistant can never be steered into acting on its own chat widget.
package resolve

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/docent/api/schemas"
	"github.com/xkilldash9x/docent/internal/dom"
)

// searchXPath is the fixed candidate set for ranked full-corpus search.
const searchXPath = "//section[@id] | //article[@id] | //main[@id] | //header[@id] | //footer[@id] | //nav[@id] | //aside[@id]" +
	" | //*[@data-card] | //a[@href] | //button | //input | //textarea | //select" +
	" | //h1 | //h2 | //h3 | //h4 | //h5 | //h6 | //p | //li"

// fieldXPath collects fillable controls for name-based field matching.
const fieldXPath = "//input | //textarea"

// Resolver resolves hints against one hosted document. It never mutates the
// tree; results are live nodes valid until the next mutation.
type Resolver struct {
	doc    *dom.Document
	logger *zap.Logger
}

func NewResolver(doc *dom.Document, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{doc: doc, logger: logger.Named("resolver")}
}

// Resolve runs the full chain: section hint, explicit selector, free-text
// strategies. A nil result means no strategy produced a usable element.
func (r *Resolver) Resolve(h Hints) *html.Node {
	if h.empty() {
		return nil
	}

	if h.Section != "" {
		if n := r.ResolveSection(h.Section); n != nil {
			return n
		}
	}
	if h.Selector != "" {
		if n := r.resolveSelector(h.Selector); n != nil {
			return n
		}
	}
	if h.Text != "" {
		if n := r.resolveText(h.Text); n != nil {
			return n
		}
	}

	r.logger.Debug("Resolution failed", zap.String("hint", h.Describe()))
	return nil
}

// ResolveSection resolves a section hint only: direct identifier match,
// then the alias table, then an identifier-plus-heading text scan.
func (r *Resolver) ResolveSection(hint string) *html.Node {
	norm := normalizeHint(hint)
	if norm == "" {
		return nil
	}

	sections := r.visibleSections()

	for _, sec := range sections {
		if strings.ToLower(dom.Attr(sec.node, "id")) == norm {
			return sec.node
		}
	}

	for _, canonical := range aliasCanonicals(norm) {
		for _, sec := range sections {
			if strings.Contains(strings.ToLower(dom.Attr(sec.node, "id")), canonical) {
				return sec.node
			}
		}
	}

	for _, sec := range sections {
		if strings.Contains(sec.label, norm) {
			return sec.node
		}
	}
	return nil
}

// resolveSelector runs the explicit structural query. Parse failures are
// planner mistakes, not system errors: they count as a miss.
func (r *Resolver) resolveSelector(selector string) *html.Node {
	n, err := r.doc.Query(selector)
	if err != nil {
		r.logger.Debug("Planner selector did not parse; treating as a miss.",
			zap.String("selector", selector), zap.Error(err))
		return nil
	}
	if n == nil || r.doc.InControlSurface(n) {
		return nil
	}
	return n
}

// resolveText runs the free-text sub-strategies: card resolution, section
// aliases, then ranked search over the whole candidate corpus.
func (r *Resolver) resolveText(hint string) *html.Node {
	norm := normalizeHint(hint)
	if norm == "" {
		return nil
	}

	if n := r.resolveCard(norm); n != nil {
		return n
	}
	if n := r.ResolveSection(hint); n != nil {
		return n
	}
	return r.searchRanked(norm)
}

// resolveCard picks among data-card containers: superlatives favor the card
// ranked freshest by data-order, ordinals address cards by rank or position,
// and anything else matches on data-title or card text.
func (r *Resolver) resolveCard(norm string) *html.Node {
	cards := r.visibleCards()
	if len(cards) == 0 {
		return nil
	}

	if hasSuperlative(norm) {
		if n := cardByOrder(cards, 1); n != nil {
			return n
		}
		return cards[0]
	}

	if k, ok := parseOrdinal(norm); ok {
		if n := cardByOrder(cards, k); n != nil {
			return n
		}
		if k >= 1 && k <= len(cards) {
			return cards[k-1]
		}
		return nil
	}

	for _, card := range cards {
		title := strings.ToLower(dom.Attr(card, "data-title"))
		if title != "" && strings.Contains(title, norm) {
			return card
		}
		if strings.Contains(strings.ToLower(dom.Text(card)), norm) {
			return card
		}
	}
	return nil
}

func cardByOrder(cards []*html.Node, k int) *html.Node {
	want := strconv.Itoa(k)
	for _, card := range cards {
		if dom.Attr(card, "data-order") == want {
			return card
		}
	}
	return nil
}

// searchRanked scores every candidate whose composite text contains the
// hint. Score = first-occurrence index + composite length, lowest wins, so
// an early mention in short, specific text beats an incidental mention
// buried in a long paragraph.
func (r *Resolver) searchRanked(norm string) *html.Node {
	nodes, err := r.doc.XPathAllIn(nil, searchXPath)
	if err != nil {
		r.logger.Error("Search candidate scan failed", zap.Error(err))
		return nil
	}

	var best *html.Node
	bestScore := -1
	for _, n := range nodes {
		if r.doc.InControlSurface(n) || !r.doc.Visible(n) {
			continue
		}
		composite := compositeText(n)
		idx := strings.Index(composite, norm)
		if idx < 0 {
			continue
		}
		score := idx + len(composite)
		if best == nil || score < bestScore {
			best, bestScore = n, score
		}
	}
	return best
}

// compositeText is the searchable surface of a candidate: text content plus
// the label-bearing attributes, normalized to lowercase.
func compositeText(n *html.Node) string {
	parts := []string{
		dom.Text(n),
		dom.Attr(n, "aria-label"),
		dom.Attr(n, "placeholder"),
		dom.Attr(n, "title"),
	}
	return strings.ToLower(schemas.CollapseSpace(strings.Join(parts, " ")))
}

// ResolveField matches a fill target by field name against the normalized
// name, id, placeholder, and aria-label of every fillable control outside
// the control surface. Exact matches win over substring matches.
func (r *Resolver) ResolveField(name string) *html.Node {
	norm := normalizeHint(name)
	if norm == "" {
		return nil
	}

	fields := r.visibleFields()

	for _, f := range fields {
		for _, attr := range fieldAttrs(f) {
			if attr == norm {
				return f
			}
		}
	}
	for _, f := range fields {
		for _, attr := range fieldAttrs(f) {
			if attr == "" {
				continue
			}
			if strings.Contains(attr, norm) || strings.Contains(norm, attr) {
				return f
			}
		}
	}
	return nil
}

func fieldAttrs(n *html.Node) [4]string {
	return [4]string{
		normalizeHint(dom.Attr(n, "name")),
		normalizeHint(dom.Attr(n, "id")),
		normalizeHint(dom.Attr(n, "placeholder")),
		normalizeHint(dom.Attr(n, "aria-label")),
	}
}

// -- Candidate collection --

type sectionCandidate struct {
	node *html.Node
	// label is the lowercased identifier-plus-heading scan text.
	label string
}

var sectionTags = map[string]bool{
	"section": true,
	"article": true,
	"main":    true,
	"header":  true,
	"footer":  true,
	"nav":     true,
	"aside":   true,
}

func (r *Resolver) visibleSections() []sectionCandidate {
	var out []sectionCandidate
	for _, n := range r.collect() {
		id := dom.Attr(n, "id")
		if id == "" || !sectionTags[dom.Tag(n)] {
			continue
		}
		label := id + " " + headingText(r.doc, n)
		out = append(out, sectionCandidate{node: n, label: strings.ToLower(schemas.CollapseSpace(label))})
	}
	return out
}

func (r *Resolver) visibleCards() []*html.Node {
	var out []*html.Node
	for _, n := range r.collect() {
		if dom.HasAttr(n, "data-card") {
			out = append(out, n)
		}
	}
	return out
}

func (r *Resolver) visibleFields() []*html.Node {
	nodes, err := r.doc.XPathAllIn(nil, fieldXPath)
	if err != nil {
		r.logger.Error("Field scan failed", zap.Error(err))
		return nil
	}
	var out []*html.Node
	for _, n := range nodes {
		if r.doc.InControlSurface(n) || !r.doc.Visible(n) {
			continue
		}
		if dom.Tag(n) == "input" {
			switch strings.ToLower(dom.Attr(n, "type")) {
			case "submit", "button", "checkbox", "radio", "hidden", "file":
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

// collect gathers every visible element outside the control surface in
// document order.
func (r *Resolver) collect() []*html.Node {
	var nodes []*html.Node
	r.doc.Walk(func(n *html.Node) bool {
		nodes = append(nodes, n)
		return true
	})
	var out []*html.Node
	for _, n := range nodes {
		if r.doc.InControlSurface(n) || !r.doc.Visible(n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func headingText(doc *dom.Document, section *html.Node) string {
	h, err := doc.XPathFirst(section, ".//*[self::h1 or self::h2 or self::h3 or self::h4 or self::h5 or self::h6]")
	if err != nil || h == nil {
		return ""
	}
	return dom.Text(h)
}
