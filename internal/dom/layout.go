// internal/dom/layout.go
package dom

import (
	"math"
	"strconv"

	"golang.org/x/net/html"
)

// Layout is a single block-flow pass: blocks stack vertically in document
// order, inline text is measured in lines at a nominal character width and
// line height, form controls and images get intrinsic sizes. The result is
// one rectangle per in-flow element, enough for positive-size visibility
// checks, scroll targeting, and the document height that bounds scrolling.

const (
	BaseFontSize      = 16.0
	DefaultLineHeight = 1.2

	// charWidthRatio approximates average glyph width as a fraction of the
	// font size.
	charWidthRatio = 0.5
)

// Rect is the layout rectangle of an element, viewport-relative at scroll 0.
type Rect struct {
	X, Y, Width, Height float64
}

// reflow recomputes styles and boxes. Callers hold the write lock (Load runs
// before the Document escapes).
func (d *Document) reflow() {
	d.computeStyles()
	d.boxes = make(map[*html.Node]Rect)

	body := d.bodyNode()
	if body == nil {
		d.docHeight = 0
		return
	}
	d.docHeight = d.layoutBlock(body, 0, 0, d.viewportW)

	if max := d.maxScrollLocked(); d.scrollY > max {
		d.scrollY = max
	}
}

func (d *Document) bodyNode() *html.Node {
	var body *html.Node
	walkElements(d.root, func(n *html.Node) bool {
		if Tag(n) == "body" {
			body = n
			return false
		}
		return true
	})
	return body
}

func (d *Document) maxScrollLocked() float64 {
	return math.Max(0, d.docHeight-d.viewportH)
}

// layoutBlock lays out n and its subtree at (x, y) with the given content
// width and returns the height consumed. Consecutive inline content is
// accumulated into a run and flushed into whole lines whenever a block-level
// child interrupts it.
func (d *Document) layoutBlock(n *html.Node, x, y, width float64) float64 {
	if n == d.controlRoot {
		// The overlay floats above the page; it takes no space in the flow.
		return 0
	}

	font := fontSizeFor(Tag(n))
	lineH := font * DefaultLineHeight
	cursor := y
	runLen := 0

	flushRun := func() {
		if runLen == 0 {
			return
		}
		lines := math.Ceil(float64(runLen) * font * charWidthRatio / math.Max(width, 1))
		cursor += math.Max(lines, 1) * lineH
		runLen = 0
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			runLen += len([]rune(collapseText(c.Data)))
		case html.ElementNode:
			if c == d.controlRoot || d.outOfFlow(c) {
				continue
			}
			switch d.styleOf(c).get("display", "inline") {
			case "inline":
				d.layoutInline(c, x, cursor, width)
				runLen += len([]rune(Text(c)))
			case "inline-block":
				flushRun()
				w, h := d.intrinsicSize(c, width)
				d.boxes[c] = Rect{X: x, Y: cursor, Width: w, Height: h}
				cursor += h
			default:
				// block, table and friends all stack.
				flushRun()
				cursor += d.layoutBlock(c, x, cursor, width)
			}
		}
	}
	flushRun()

	height := cursor - y
	if Tag(n) == "hr" {
		height = 2
	}
	d.boxes[n] = Rect{X: x, Y: y, Width: width, Height: height}
	return height
}

// layoutInline assigns n a text-extent box on the current line and recurses
// so nested elements get boxes too. Inline boxes share the line's origin;
// only the vertical position needs to be right for scroll targeting.
func (d *Document) layoutInline(n *html.Node, x, y, width float64) {
	font := fontSizeFor(Tag(n))
	textLen := len([]rune(Text(n)))

	w := math.Min(float64(textLen)*font*charWidthRatio, width)
	h := 0.0
	if textLen > 0 {
		lines := math.Ceil(float64(textLen) * font * charWidthRatio / math.Max(width, 1))
		h = math.Max(lines, 1) * font * DefaultLineHeight
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c == d.controlRoot || d.outOfFlow(c) {
			continue
		}
		if d.styleOf(c).get("display", "inline") == "inline-block" {
			cw, ch := d.intrinsicSize(c, width)
			d.boxes[c] = Rect{X: x, Y: y, Width: cw, Height: ch}
			if ch > h {
				h = ch
			}
			if cw > w {
				w = math.Min(cw, width)
			}
		} else {
			d.layoutInline(c, x, y, width)
		}
	}

	d.boxes[n] = Rect{X: x, Y: y, Width: w, Height: h}
}

// intrinsicSize returns the nominal size of a form control or image.
func (d *Document) intrinsicSize(n *html.Node, availWidth float64) (w, h float64) {
	switch Tag(n) {
	case "input":
		switch Attr(n, "type") {
		case "checkbox", "radio":
			return 16, 16
		case "hidden":
			return 0, 0
		}
		return math.Min(180, availWidth), 32
	case "select":
		return math.Min(180, availWidth), 32
	case "textarea":
		return math.Min(300, availWidth), 96
	case "button":
		textW := float64(len([]rune(Text(n))))*BaseFontSize*charWidthRatio + 32
		return math.Min(math.Max(textW, 80), availWidth), 36
	case "img":
		w = attrDimension(n, "width", 120)
		h = attrDimension(n, "height", 90)
		return math.Min(w, availWidth), h
	}
	// Declared inline-block without an intrinsic size: text extent.
	textLen := float64(len([]rune(Text(n))))
	if textLen == 0 {
		return 0, 0
	}
	return math.Min(textLen*BaseFontSize*charWidthRatio, availWidth), BaseFontSize * DefaultLineHeight
}

func attrDimension(n *html.Node, key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(Attr(n, key), 64); err == nil && v > 0 {
		return v
	}
	return fallback
}

// fontSizeFor maps headings to the usual user-agent sizes.
func fontSizeFor(tag string) float64 {
	switch tag {
	case "h1":
		return BaseFontSize * 2.0
	case "h2":
		return BaseFontSize * 1.5
	case "h3":
		return BaseFontSize * 1.17
	case "h5":
		return BaseFontSize * 0.83
	case "h6":
		return BaseFontSize * 0.67
	default:
		return BaseFontSize
	}
}

func collapseText(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			space = true
			continue
		}
		if space && len(out) > 0 {
			out = append(out, ' ')
		}
		space = false
		out = append(out, r)
	}
	return string(out)
}
