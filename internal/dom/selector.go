// internal/dom/selector.go
package dom

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// SelectorError is the typed parse failure for the CSS-subset selector
// engine. Callers treat it as a resolution miss rather than propagating it;
// planner-supplied selectors are untrusted input.
type SelectorError struct {
	Input  string
	Reason string
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("invalid selector %q: %s", e.Input, e.Reason)
}

// The supported subset: #id, tag, .class, [attr], [attr="value"], compound
// simple selectors, :nth-of-type(k), child (>) and descendant combinators,
// comma-separated groups. Anything else is a parse error.

type combinator int

const (
	combNone combinator = iota
	combDescendant
	combChild
)

type attrMatcher struct {
	key   string
	value string
	exact bool // [attr="value"] vs bare presence [attr]
}

type simpleSelector struct {
	tag       string // lowercase; "" or "*" matches any element
	id        string
	classes   []string
	attrs     []attrMatcher
	nthOfType int // 0 = unset
}

type selectorStep struct {
	sel simpleSelector
	// comb joins this step to the one on its left; combNone on the first.
	comb combinator
}

type complexSelector []selectorStep

type selectorList []complexSelector

// -- Parsing --

type selectorParser struct {
	input string
	pos   int
}

func parseSelectorList(input string) (selectorList, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, &SelectorError{Input: input, Reason: "empty selector"}
	}

	var list selectorList
	for _, part := range strings.Split(trimmed, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, &SelectorError{Input: input, Reason: "empty selector in group"}
		}
		cs, err := (&selectorParser{input: part}).parseComplex()
		if err != nil {
			return nil, err
		}
		list = append(list, cs)
	}
	return list, nil
}

func (p *selectorParser) parseComplex() (complexSelector, error) {
	var cs complexSelector
	comb := combNone

	for {
		p.skipSpace()
		if p.eof() {
			break
		}

		sel, err := p.parseSimple()
		if err != nil {
			return nil, err
		}
		cs = append(cs, selectorStep{sel: sel, comb: comb})

		// Determine how the next compound (if any) attaches.
		hadSpace := p.skipSpace()
		if p.eof() {
			break
		}
		switch p.peek() {
		case '>':
			p.pos++
			comb = combChild
		case '+', '~':
			return nil, &SelectorError{Input: p.input, Reason: fmt.Sprintf("unsupported combinator %q", string(p.peek()))}
		default:
			if !hadSpace {
				return nil, &SelectorError{Input: p.input, Reason: fmt.Sprintf("unexpected character %q", string(p.peek()))}
			}
			comb = combDescendant
		}
	}

	if len(cs) == 0 {
		return nil, &SelectorError{Input: p.input, Reason: "empty selector"}
	}
	return cs, nil
}

func (p *selectorParser) parseSimple() (simpleSelector, error) {
	var sel simpleSelector
	parsedAny := false

	if !p.eof() && (p.peek() == '*' || isIdentStart(p.peek())) {
		if p.peek() == '*' {
			p.pos++
		} else {
			sel.tag = strings.ToLower(p.parseIdent())
		}
		parsedAny = true
	}

	for !p.eof() {
		switch p.peek() {
		case '#':
			p.pos++
			id := p.parseIdent()
			if id == "" {
				return sel, &SelectorError{Input: p.input, Reason: "missing id after '#'"}
			}
			sel.id = id
		case '.':
			p.pos++
			cls := p.parseIdent()
			if cls == "" {
				return sel, &SelectorError{Input: p.input, Reason: "missing class after '.'"}
			}
			sel.classes = append(sel.classes, cls)
		case '[':
			attr, err := p.parseAttr()
			if err != nil {
				return sel, err
			}
			sel.attrs = append(sel.attrs, attr)
		case ':':
			nth, err := p.parseNthOfType()
			if err != nil {
				return sel, err
			}
			sel.nthOfType = nth
		default:
			if !parsedAny {
				return sel, &SelectorError{Input: p.input, Reason: fmt.Sprintf("unexpected character %q", string(p.peek()))}
			}
			return sel, nil
		}
		parsedAny = true
	}
	if !parsedAny {
		return sel, &SelectorError{Input: p.input, Reason: "empty simple selector"}
	}
	return sel, nil
}

func (p *selectorParser) parseAttr() (attrMatcher, error) {
	p.pos++ // consume '['
	p.skipSpace()

	key := p.parseIdent()
	if key == "" {
		return attrMatcher{}, &SelectorError{Input: p.input, Reason: "missing attribute name"}
	}
	p.skipSpace()

	if p.eof() {
		return attrMatcher{}, &SelectorError{Input: p.input, Reason: "unterminated attribute selector"}
	}

	switch p.peek() {
	case ']':
		p.pos++
		return attrMatcher{key: strings.ToLower(key)}, nil
	case '=':
		p.pos++
	case '~', '^', '$', '*', '|':
		return attrMatcher{}, &SelectorError{Input: p.input, Reason: fmt.Sprintf("unsupported attribute operator %q=", string(p.peek()))}
	default:
		return attrMatcher{}, &SelectorError{Input: p.input, Reason: "malformed attribute selector"}
	}

	p.skipSpace()
	val, err := p.parseAttrValue()
	if err != nil {
		return attrMatcher{}, err
	}
	p.skipSpace()
	if p.eof() || p.peek() != ']' {
		return attrMatcher{}, &SelectorError{Input: p.input, Reason: "unterminated attribute selector"}
	}
	p.pos++
	return attrMatcher{key: strings.ToLower(key), value: val, exact: true}, nil
}

func (p *selectorParser) parseAttrValue() (string, error) {
	if p.eof() {
		return "", &SelectorError{Input: p.input, Reason: "missing attribute value"}
	}
	quote := p.peek()
	if quote == '"' || quote == '\'' {
		p.pos++
		start := p.pos
		for !p.eof() && p.peek() != quote {
			p.pos++
		}
		if p.eof() {
			return "", &SelectorError{Input: p.input, Reason: "unterminated quoted value"}
		}
		val := p.input[start:p.pos]
		p.pos++
		return val, nil
	}
	// Unquoted value runs to ']'.
	start := p.pos
	for !p.eof() && p.peek() != ']' {
		p.pos++
	}
	return strings.TrimSpace(p.input[start:p.pos]), nil
}

func (p *selectorParser) parseNthOfType() (int, error) {
	p.pos++ // consume ':'
	name := p.parseIdent()
	if !strings.EqualFold(name, "nth-of-type") {
		return 0, &SelectorError{Input: p.input, Reason: fmt.Sprintf("unsupported pseudo-class %q", name)}
	}
	if p.eof() || p.peek() != '(' {
		return 0, &SelectorError{Input: p.input, Reason: "nth-of-type requires an argument"}
	}
	p.pos++
	p.skipSpace()
	start := p.pos
	for !p.eof() && p.peek() >= '0' && p.peek() <= '9' {
		p.pos++
	}
	k, err := strconv.Atoi(p.input[start:p.pos])
	if err != nil || k < 1 {
		return 0, &SelectorError{Input: p.input, Reason: "nth-of-type argument must be a positive integer"}
	}
	p.skipSpace()
	if p.eof() || p.peek() != ')' {
		return 0, &SelectorError{Input: p.input, Reason: "unterminated nth-of-type argument"}
	}
	p.pos++
	return k, nil
}

func (p *selectorParser) parseIdent() string {
	start := p.pos
	for !p.eof() && isIdentChar(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *selectorParser) skipSpace() bool {
	skipped := false
	for !p.eof() {
		switch p.peek() {
		case ' ', '\t', '\n', '\r':
			p.pos++
			skipped = true
		default:
			return skipped
		}
	}
	return skipped
}

func (p *selectorParser) eof() bool { return p.pos >= len(p.input) }

func (p *selectorParser) peek() byte { return p.input[p.pos] }

func isIdentStart(ch byte) bool {
	return ch == '_' || ch == '-' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}

// -- Matching --

func matchList(n *html.Node, list selectorList) bool {
	for _, cs := range list {
		if matchComplex(n, cs, len(cs)-1) {
			return true
		}
	}
	return false
}

// matchComplex walks the chain right to left, following each step's
// combinator toward the root.
func matchComplex(n *html.Node, cs complexSelector, idx int) bool {
	if n == nil || idx < 0 || n.Type != html.ElementNode {
		return false
	}
	if !matchSimple(n, cs[idx].sel) {
		return false
	}
	if idx == 0 {
		return true
	}
	switch cs[idx].comb {
	case combChild:
		return matchComplex(parentElement(n), cs, idx-1)
	case combDescendant:
		for p := parentElement(n); p != nil; p = parentElement(p) {
			if matchComplex(p, cs, idx-1) {
				return true
			}
		}
	}
	return false
}

func matchSimple(n *html.Node, sel simpleSelector) bool {
	if sel.tag != "" && sel.tag != "*" && Tag(n) != sel.tag {
		return false
	}
	if sel.id != "" && Attr(n, "id") != sel.id {
		return false
	}
	for _, cls := range sel.classes {
		if !hasClass(n, cls) {
			return false
		}
	}
	for _, am := range sel.attrs {
		if am.exact {
			if !HasAttr(n, am.key) || Attr(n, am.key) != am.value {
				return false
			}
		} else if !HasAttr(n, am.key) {
			return false
		}
	}
	if sel.nthOfType > 0 && nthOfTypeIndex(n) != sel.nthOfType {
		return false
	}
	return true
}

// nthOfTypeIndex is the 1-based position of n among element siblings sharing
// its tag.
func nthOfTypeIndex(n *html.Node) int {
	idx := 1
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode && sib.Data == n.Data {
			idx++
		}
	}
	return idx
}

func parentElement(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}

// queryFirst returns the first element under root matching list in document
// order, skipping nodes for which skip returns true.
func queryFirst(root *html.Node, list selectorList, skip func(*html.Node) bool) *html.Node {
	var found *html.Node
	walkElements(root, func(n *html.Node) bool {
		if skip != nil && skip(n) {
			return true
		}
		if matchList(n, list) {
			found = n
			return false
		}
		return true
	})
	return found
}

func queryAllNodes(root *html.Node, list selectorList, skip func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	walkElements(root, func(n *html.Node) bool {
		if skip != nil && skip(n) {
			return true
		}
		if matchList(n, list) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// -- Document query surface --

// Query returns the first element matching the CSS-subset selector, nil when
// nothing matches. Parse failures return a *SelectorError.
func (d *Document) Query(selector string) (*html.Node, error) {
	list, err := parseSelectorList(selector)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return queryFirst(d.root, list, nil), nil
}

// QueryAll returns every element matching the selector in document order.
func (d *Document) QueryAll(selector string) ([]*html.Node, error) {
	list, err := parseSelectorList(selector)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return queryAllNodes(d.root, list, nil), nil
}
