// internal/executor/actions.go
package executor

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/docent/api/schemas"
	"github.com/xkilldash9x/docent/internal/dom"
	"github.com/xkilldash9x/docent/internal/resolve"
	"github.com/xkilldash9x/docent/internal/snapshot"
)

func (reg *Registry) handleScrollBy(args map[string]any) (string, error) {
	delta, ok := argNumber(args, "delta", "amount")
	if !ok {
		return "", fmt.Errorf("scroll_by requires a numeric delta")
	}

	offset := reg.doc.ScrollBy(delta)
	direction := "down"
	if delta < 0 {
		direction = "up"
	}
	return fmt.Sprintf("Scrolled %s %.0f pixels (now at offset %.0f).",
		direction, math.Abs(delta), offset), nil
}

func (reg *Registry) handleNavigateToSection(args map[string]any) (string, error) {
	hint, ok := argString(args, "sectionId", "section", "targetSection")
	if !ok {
		hint, ok = argString(args, "text", "label", "target")
	}
	if !ok {
		return "", fmt.Errorf("navigate_to_section requires a section hint")
	}

	section := reg.resolver.ResolveSection(hint)
	if section == nil {
		return "", fmt.Errorf("no section matched %q", hint)
	}

	id := dom.Attr(section, "id")
	if err := reg.doc.ScrollToNode(section, dom.AlignTop); err != nil {
		return "", fmt.Errorf("could not scroll to section %q: %w", id, err)
	}
	reg.doc.ReplaceFragment(id)
	reg.highlight.Flash(section)
	return fmt.Sprintf("Navigated to the %q section.", id), nil
}

func (reg *Registry) handleClickElement(args map[string]any) (string, error) {
	hints := hintsFromArgs(args)
	if hints == (resolve.Hints{}) {
		return "", fmt.Errorf("click_element requires a target hint")
	}

	target := reg.resolver.Resolve(hints)
	if target == nil {
		return "", fmt.Errorf("no element matched %q", hints.Describe())
	}

	// A click on a card lands on one of its links, chosen by keyword.
	if dom.HasAttr(target, "data-card") {
		target = reg.cardLink(target, keywordCorpus(args))
	}

	if dom.HasAttr(target, "disabled") {
		return "", fmt.Errorf("the %s is disabled", describeTarget(target))
	}

	// In-page fragment anchors become an internal navigation; there is no
	// outer browser whose default we could rely on.
	if dom.Tag(target) == "a" {
		if href := dom.Attr(target, "href"); len(href) > 1 && strings.HasPrefix(href, "#") {
			return reg.followFragment(href)
		}
	}

	if err := reg.doc.ScrollToNode(target, dom.AlignCenter); err != nil {
		reg.logger.Debug("Click target has no layout box; skipping scroll",
			zap.String("target", describeTarget(target)))
	}
	reg.highlight.Flash(target)
	if err := reg.doc.Click(target); err != nil {
		return "", fmt.Errorf("click failed: %w", err)
	}
	return fmt.Sprintf("Clicked the %s.", describeTarget(target)), nil
}

func (reg *Registry) handleHighlightElement(args map[string]any) (string, error) {
	hints := hintsFromArgs(args)
	if hints == (resolve.Hints{}) {
		return "", fmt.Errorf("highlight_element requires a target hint")
	}

	target := reg.resolver.Resolve(hints)
	if target == nil {
		return "", fmt.Errorf("no element matched %q", hints.Describe())
	}

	if err := reg.doc.ScrollToNode(target, dom.AlignCenter); err != nil {
		reg.logger.Debug("Highlight target has no layout box; skipping scroll",
			zap.String("target", describeTarget(target)))
	}
	reg.highlight.Flash(target)
	return fmt.Sprintf("Highlighted the %s.", describeTarget(target)), nil
}

func (reg *Registry) handleFillInput(args map[string]any) (string, error) {
	if keys, values, ok := argStringMap(args, "values"); ok {
		return reg.fillMany(keys, values)
	}

	value, ok := argString(args, "value")
	if !ok {
		return "", fmt.Errorf("fill_input requires a value or a values map")
	}
	field, _ := argString(args, "fieldName", "field", "name")
	if field == "" {
		field = "input"
	}

	var target *html.Node
	if selector, ok := argString(args, "selector"); ok {
		target = reg.fieldBySelector(selector)
	}
	if target == nil {
		target = reg.resolver.ResolveField(field)
	}
	if target == nil {
		return "", fmt.Errorf("no fillable field matched %q", field)
	}

	if err := reg.fill(target, value); err != nil {
		return "", err
	}
	return fmt.Sprintf("Filled the %q field.", fieldDisplayName(target, field)), nil
}

// fillMany fills the values map in sorted-key order. A miss aborts the
// remaining entries and reports which fields did land; already-filled
// values stay filled.
func (reg *Registry) fillMany(keys []string, values map[string]string) (string, error) {
	var filled []string
	for _, key := range keys {
		target := reg.fieldByKey(key)
		if target == nil {
			if len(filled) == 0 {
				return "", fmt.Errorf("no fillable field matched %q", key)
			}
			return "", fmt.Errorf("filled %s, but no fillable field matched %q",
				strings.Join(filled, ", "), key)
		}
		if err := reg.fill(target, values[key]); err != nil {
			return "", fmt.Errorf("field %q: %w", key, err)
		}
		filled = append(filled, fmt.Sprintf("%q", fieldDisplayName(target, key)))
	}
	return fmt.Sprintf("Filled %d field(s): %s.", len(filled), strings.Join(filled, ", ")), nil
}

func (reg *Registry) fill(target *html.Node, value string) error {
	if err := reg.doc.SetFieldValue(target, value); err != nil {
		return err
	}
	reg.highlight.Flash(target)
	return nil
}

// fieldByKey resolves one values-map key: keys that look like selectors get
// a structural try first, everything falls back to name matching.
func (reg *Registry) fieldByKey(key string) *html.Node {
	if looksLikeSelector(key) {
		if n := reg.fieldBySelector(key); n != nil {
			return n
		}
	}
	return reg.resolver.ResolveField(key)
}

func (reg *Registry) fieldBySelector(selector string) *html.Node {
	n, err := reg.doc.Query(selector)
	if err != nil || n == nil {
		return nil
	}
	if reg.doc.InControlSurface(n) || !isFillable(n) {
		return nil
	}
	return n
}

func looksLikeSelector(s string) bool {
	return strings.ContainsAny(s, "#.[>:*")
}

func isFillable(n *html.Node) bool {
	switch dom.Tag(n) {
	case "textarea":
		return true
	case "input":
		switch strings.ToLower(dom.Attr(n, "type")) {
		case "submit", "button", "checkbox", "radio", "hidden", "file":
			return false
		}
		return true
	}
	return false
}

func fieldDisplayName(n *html.Node, requested string) string {
	if name := dom.Attr(n, "name"); name != "" {
		return name
	}
	return requested
}

// cardLink picks which of a card's links a click should land on: a github
// hint selects the repository link, live/demo/preview hints the demo link,
// anything else the card's first link. Cards without links are clicked
// directly.
func (reg *Registry) cardLink(card *html.Node, hint string) *html.Node {
	links, err := reg.doc.XPathAllIn(card, ".//a[@href]")
	if err != nil || len(links) == 0 {
		return card
	}

	if strings.Contains(hint, "github") {
		for _, link := range links {
			if linkMentions(link, "github") {
				return link
			}
		}
	}
	for _, kw := range []string{"live", "demo", "preview"} {
		if !strings.Contains(hint, kw) {
			continue
		}
		for _, link := range links {
			if linkMentions(link, "live") || linkMentions(link, "demo") || linkMentions(link, "preview") {
				return link
			}
		}
		break
	}
	return links[0]
}

func linkMentions(link *html.Node, kw string) bool {
	if strings.Contains(strings.ToLower(dom.Text(link)), kw) {
		return true
	}
	return strings.Contains(strings.ToLower(dom.Attr(link, "href")), kw)
}

// followFragment turns an in-page anchor activation into a section
// navigation: scroll, fragment update, highlight.
func (reg *Registry) followFragment(href string) (string, error) {
	id := strings.TrimPrefix(href, "#")

	target, err := reg.doc.Query("#" + id)
	if err != nil || target == nil {
		reg.doc.ReplaceFragment(id)
		return fmt.Sprintf("Followed the in-page link to %q.", href), nil
	}

	if err := reg.doc.ScrollToNode(target, dom.AlignTop); err != nil {
		reg.logger.Debug("Fragment target has no layout box; skipping scroll",
			zap.String("id", id))
	}
	reg.doc.ReplaceFragment(id)
	reg.highlight.Flash(target)
	return fmt.Sprintf("Navigated to the %q section.", id), nil
}

func describeTarget(n *html.Node) string {
	label := snapshot.Label(n)
	if label == "" {
		label = dom.Attr(n, "name")
	}
	label = schemas.TruncateText(label, 60)
	if label == "" {
		return fmt.Sprintf("<%s> element", dom.Tag(n))
	}
	return fmt.Sprintf("<%s> element %q", dom.Tag(n), label)
}
