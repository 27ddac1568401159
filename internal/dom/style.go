// internal/dom/style.go
package dom

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// The cascade keeps only what visibility and layout need: user-agent display
// defaults, author <style> blocks, inline style attributes. Specificity is
// (ids, classes+attrs+pseudos, tags) compacted into one integer with source
// order as the tiebreak; inline declarations win over everything.

type computedStyle map[string]string

func (cs computedStyle) get(prop, fallback string) string {
	if v, ok := cs[prop]; ok {
		return v
	}
	return fallback
}

type styleRule struct {
	selector    selectorList // single complex selector wrapped for matchList
	specificity int
	order       int
	decls       map[string]string
}

type stylesheet struct {
	rules []styleRule
}

// collectStyles parses every <style> block in the tree into one sheet.
// Malformed rules are skipped, not fatal; author CSS is page content.
func collectStyles(root *html.Node) *stylesheet {
	sheet := &stylesheet{}
	order := 0
	walkElements(root, func(n *html.Node) bool {
		if Tag(n) != "style" {
			return true
		}
		var css strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				css.WriteString(c.Data)
			}
		}
		order = sheet.parseCSS(css.String(), order)
		return true
	})
	sort.SliceStable(sheet.rules, func(i, j int) bool {
		if sheet.rules[i].specificity != sheet.rules[j].specificity {
			return sheet.rules[i].specificity < sheet.rules[j].specificity
		}
		return sheet.rules[i].order < sheet.rules[j].order
	})
	return sheet
}

// parseCSS consumes rule sets from src, appending to the sheet. At-rules and
// comments are skipped wholesale.
func (s *stylesheet) parseCSS(src string, order int) int {
	pos := 0
	n := len(src)

	skipComment := func() bool {
		if pos+1 < n && src[pos] == '/' && src[pos+1] == '*' {
			end := strings.Index(src[pos+2:], "*/")
			if end < 0 {
				pos = n
			} else {
				pos += 2 + end + 2
			}
			return true
		}
		return false
	}

	skipBlock := func() {
		depth := 0
		for pos < n {
			switch src[pos] {
			case '{':
				depth++
			case '}':
				depth--
				if depth <= 0 {
					pos++
					return
				}
			}
			pos++
		}
	}

	for pos < n {
		switch {
		case src[pos] == ' ' || src[pos] == '\t' || src[pos] == '\n' || src[pos] == '\r':
			pos++
		case skipComment():
		case src[pos] == '@':
			// @media, @keyframes, @import: skip the whole construct.
			for pos < n && src[pos] != '{' && src[pos] != ';' {
				pos++
			}
			if pos < n && src[pos] == '{' {
				skipBlock()
			} else if pos < n {
				pos++
			}
		default:
			openIdx := strings.IndexByte(src[pos:], '{')
			if openIdx < 0 {
				return order
			}
			selectorText := strings.TrimSpace(src[pos : pos+openIdx])
			pos += openIdx + 1
			closeIdx := strings.IndexByte(src[pos:], '}')
			if closeIdx < 0 {
				return order
			}
			declText := src[pos : pos+closeIdx]
			pos += closeIdx + 1

			decls := parseDeclarations(declText)
			if len(decls) == 0 {
				continue
			}
			list, err := parseSelectorList(selectorText)
			if err != nil {
				continue
			}
			for _, cs := range list {
				s.rules = append(s.rules, styleRule{
					selector:    selectorList{cs},
					specificity: specificityOf(cs),
					order:       order,
					decls:       decls,
				})
				order++
			}
		}
	}
	return order
}

// parseDeclarations splits "prop: value; prop: value" into a map. The
// !important marker is stripped; within this subset every matched rule is
// author-origin, so importance adds nothing over specificity.
func parseDeclarations(text string) map[string]string {
	decls := make(map[string]string)
	for _, piece := range strings.Split(text, ";") {
		colon := strings.IndexByte(piece, ':')
		if colon < 0 {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(piece[:colon]))
		val := strings.TrimSpace(piece[colon+1:])
		val = strings.TrimSpace(strings.TrimSuffix(val, "!important"))
		if prop == "" || val == "" {
			continue
		}
		decls[prop] = strings.ToLower(val)
	}
	if len(decls) == 0 {
		return nil
	}
	return decls
}

func specificityOf(cs complexSelector) int {
	ids, classes, tags := 0, 0, 0
	for _, step := range cs {
		if step.sel.id != "" {
			ids++
		}
		classes += len(step.sel.classes) + len(step.sel.attrs)
		if step.sel.nthOfType > 0 {
			classes++
		}
		if step.sel.tag != "" && step.sel.tag != "*" {
			tags++
		}
	}
	return ids*10000 + classes*100 + tags
}

// computeStyles fills d.styles for every element. Called under the write
// lock from reflow.
func (d *Document) computeStyles() {
	d.styles = make(map[*html.Node]computedStyle)
	walkElements(d.root, func(n *html.Node) bool {
		cs := computedStyle{"display": defaultDisplay(n)}
		for _, rule := range d.sheet.rules {
			if !matchList(n, rule.selector) {
				continue
			}
			for prop, val := range rule.decls {
				cs[prop] = val
			}
		}
		for prop, val := range parseDeclarations(Attr(n, "style")) {
			cs[prop] = val
		}
		d.styles[n] = cs
		return true
	})
}

// defaultDisplay is the user-agent default for a tag, following the usual
// block/inline split. Document metadata renders nothing.
func defaultDisplay(n *html.Node) string {
	switch Tag(n) {
	case "html", "body", "div", "p", "h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "form", "header", "footer", "section", "article",
		"nav", "aside", "main", "table", "tr", "td", "th", "blockquote",
		"pre", "fieldset", "hr", "figure", "figcaption", "dl", "dt", "dd":
		return "block"
	case "head", "script", "style", "title", "meta", "link", "template", "noscript":
		return "none"
	case "input", "button", "textarea", "select", "img":
		return "inline-block"
	default:
		return "inline"
	}
}

func (d *Document) styleOf(n *html.Node) computedStyle {
	if cs, ok := d.styles[n]; ok {
		return cs
	}
	return computedStyle{"display": defaultDisplay(n)}
}

// hiddenByStyle reports whether n's own computed style or hidden attribute
// removes it from view. Layout uses only the display:none / hidden-attribute
// part via outOfFlow.
func (d *Document) hiddenByStyle(n *html.Node) bool {
	if HasAttr(n, "hidden") {
		return true
	}
	cs := d.styleOf(n)
	if cs.get("display", "") == "none" {
		return true
	}
	switch cs.get("visibility", "visible") {
	case "hidden", "collapse":
		return true
	}
	if op, err := strconv.ParseFloat(cs.get("opacity", "1"), 64); err == nil && op <= 0 {
		return true
	}
	return false
}

// outOfFlow reports whether n generates no layout box at all.
func (d *Document) outOfFlow(n *html.Node) bool {
	if HasAttr(n, "hidden") {
		return true
	}
	return d.styleOf(n).get("display", "") == "none"
}

// Visible reports whether n renders: no ancestor (n included) may be hidden
// by style, and n's layout box must have positive size. Visibility inherits
// down, so a hidden ancestor hides the subtree.
func (d *Document) Visible(n *html.Node) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.visibleLocked(n)
}

func (d *Document) visibleLocked(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for cur := n; cur != nil; cur = parentElement(cur) {
		if d.hiddenByStyle(cur) {
			return false
		}
	}
	box, ok := d.boxes[n]
	if !ok || box.Width <= 0 || box.Height <= 0 {
		return false
	}
	return true
}
