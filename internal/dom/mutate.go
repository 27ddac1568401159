// internal/dom/mutate.go
package dom

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"golang.org/x/net/html"
)

// Align selects where ScrollToNode places the target in the viewport.
type Align int

const (
	AlignTop Align = iota
	AlignCenter
)

// ScrollBy applies a signed vertical scroll clamped to the document bounds
// and returns the resulting offset. The behavior string is journaled; the
// offset itself is applied synchronously; smoothness is presentation.
func (d *Document) ScrollBy(delta float64) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scrollY = clampScroll(d.scrollY+delta, d.maxScrollLocked())
	d.journal.record(EventScroll, "", "smooth")
	return d.scrollY
}

// ScrollToNode scrolls so n sits at the top edge (AlignTop) or vertical
// center (AlignCenter) of the viewport.
func (d *Document) ScrollToNode(n *html.Node, align Align) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	box, ok := d.boxes[n]
	if !ok {
		return fmt.Errorf("element <%s> has no layout box", Tag(n))
	}

	target := box.Y
	if align == AlignCenter {
		target = box.Y - (d.viewportH-box.Height)/2
	}
	d.scrollY = clampScroll(target, d.maxScrollLocked())
	d.journal.record(EventScroll, d.stableSelectorLocked(n), "smooth")
	return nil
}

func clampScroll(y, max float64) float64 {
	return math.Min(math.Max(y, 0), max)
}

// ReplaceFragment rewrites the URL fragment in place. No history entry
// exists to create; this is the host's analogue of history.replaceState.
func (d *Document) ReplaceFragment(frag string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url.Fragment = strings.TrimPrefix(frag, "#")
	d.journal.record(EventFragment, "", d.url.Fragment)
}

// Focus moves focus to n.
func (d *Document) Focus(n *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.focused = n
	d.journal.record(EventFocus, d.stableSelectorLocked(n), "")
}

// SetAttr sets an attribute and recomputes styles and layout, since
// attributes participate in selector matching.
func (d *Document) SetAttr(n *html.Node, key, val string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	setAttr(n, key, val)
	d.reflow()
}

// RemoveAttr removes an attribute and recomputes styles and layout.
func (d *Document) RemoveAttr(n *html.Node, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	removeAttr(n, key)
	d.reflow()
}

// SetFieldValue commits a value through the field's reactive-state protocol:
// the value lands in the input's value attribute or the textarea's child
// text, input and change notifications are journaled, and focus moves to the
// field. This is the single setter every fill goes through.
func (d *Document) SetFieldValue(n *html.Node, value string) error {
	tag := Tag(n)
	if tag != "input" && tag != "textarea" {
		return fmt.Errorf("element <%s> does not accept a field value", tag)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	sel := d.stableSelectorLocked(n)
	if tag == "textarea" {
		// The textarea value is its child text node. Clear and replace.
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: value})
	} else {
		setAttr(n, "value", value)
	}

	d.journal.record(EventInput, sel, value)
	d.journal.record(EventChange, sel, value)
	d.focused = n
	d.journal.record(EventFocus, sel, "")
	d.reflow()
	return nil
}

// Click dispatches an activation on n with its consequences: checkbox
// toggle, radio group selection, submit buttons journal a form submission.
// Anything else is a plain activation; there is no script engine to run
// handlers.
func (d *Document) Click(n *html.Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sel := d.stableSelectorLocked(n)
	d.journal.record(EventClick, sel, "")

	tag := Tag(n)
	inputType := strings.ToLower(Attr(n, "type"))

	if tag == "input" {
		switch inputType {
		case "checkbox":
			if HasAttr(n, "checked") {
				removeAttr(n, "checked")
			} else {
				setAttr(n, "checked", "checked")
			}
			d.journal.record(EventChange, sel, "")
			d.reflow()
			return nil
		case "radio":
			d.selectRadio(n)
			d.journal.record(EventChange, sel, "")
			d.reflow()
			return nil
		}
	}

	isSubmit := (tag == "button" && (inputType == "submit" || inputType == "")) ||
		(tag == "input" && inputType == "submit")
	if isSubmit {
		if form := findParentForm(n); form != nil {
			d.journal.record(EventSubmit, d.stableSelectorLocked(form), "")
		}
	}
	return nil
}

// selectRadio checks n and unchecks the rest of its named group, scoped to
// the containing form when there is one.
func (d *Document) selectRadio(n *html.Node) {
	name := Attr(n, "name")
	if name == "" {
		setAttr(n, "checked", "checked")
		return
	}

	scope := findParentForm(n)
	if scope == nil {
		scope = d.root
	}
	walkElements(scope, func(el *html.Node) bool {
		if Tag(el) == "input" && strings.ToLower(Attr(el, "type")) == "radio" && Attr(el, "name") == name {
			if el == n {
				setAttr(el, "checked", "checked")
			} else {
				removeAttr(el, "checked")
			}
		}
		return true
	})
}

// Highlight adds the transient marker class. Idempotent: a second call on
// an already highlighted element changes nothing but is still journaled.
func (d *Document) Highlight(n *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !hasClass(n, HighlightClass) {
		cls := strings.TrimSpace(Attr(n, "class") + " " + HighlightClass)
		setAttr(n, "class", cls)
	}
	d.journal.record(EventHighlight, d.stableSelectorLocked(n), "")
}

// Unhighlight removes the marker class. Idempotent.
func (d *Document) Unhighlight(n *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !hasClass(n, HighlightClass) {
		return
	}
	var kept []string
	for _, cls := range strings.Fields(Attr(n, "class")) {
		if cls != HighlightClass {
			kept = append(kept, cls)
		}
	}
	if len(kept) == 0 {
		removeAttr(n, "class")
	} else {
		setAttr(n, "class", strings.Join(kept, " "))
	}
}

// HTML renders the current tree back to markup.
func (d *Document) HTML() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return buf.String(), nil
}

// -- Attribute helpers --

func setAttr(n *html.Node, key, val string) {
	for i, attr := range n.Attr {
		if attr.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i, attr := range n.Attr {
		if attr.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func findParentForm(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && strings.ToLower(p.Data) == "form" {
			return p
		}
	}
	return nil
}
