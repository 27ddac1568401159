// internal/dom/document.go
// Package dom hosts a live, mutable document tree in-process. It stands in
// for a browser page: parse, style cascade + visibility, block-flow layout,
// a CSS-subset selector engine with stable selector synthesis, mutation with
// click consequences, fragment/scroll state, and an observable event journal.
package dom

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	// DefaultViewportWidth and DefaultViewportHeight are used when Options
	// leaves the viewport unset.
	DefaultViewportWidth  = 1280.0
	DefaultViewportHeight = 800.0

	// DefaultControlSurface is the selector of the system's own overlay.
	// Its subtree is excluded from layout and from every resolution target.
	DefaultControlSurface = "#docent-widget"

	// HighlightClass is the marker class the transient highlight toggles.
	HighlightClass = "docent-highlight"
)

// Options configures a Document at load time.
type Options struct {
	// URL is the display URL the document reports; the fragment part is
	// mutable in place afterwards. Defaults to "file:///" + path for
	// LoadFile, "about:blank" otherwise.
	URL string
	// ViewportWidth / ViewportHeight bound layout and scrolling.
	ViewportWidth  float64
	ViewportHeight float64
	// ControlSurface is the selector of the overlay subtree to exclude.
	ControlSurface string
	// JournalLimit caps the event journal (0 = default).
	JournalLimit int
}

func (o *Options) applyDefaults() {
	if o.ViewportWidth <= 0 {
		o.ViewportWidth = DefaultViewportWidth
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = DefaultViewportHeight
	}
	if o.ControlSurface == "" {
		o.ControlSurface = DefaultControlSurface
	}
	if o.URL == "" {
		o.URL = "about:blank"
	}
}

// Document is the in-process live tree. All reads and writes go through its
// RWMutex; individual operations are atomic, sequencing across operations is
// the caller's concern.
type Document struct {
	logger *zap.Logger

	mu   sync.RWMutex
	root *html.Node
	url  *url.URL

	viewportW float64
	viewportH float64
	scrollY   float64
	docHeight float64
	focused   *html.Node

	controlSelector string
	controlRoot     *html.Node

	sheet  *stylesheet
	styles map[*html.Node]computedStyle
	boxes  map[*html.Node]Rect

	journal *journal
}

// Load parses an HTML document from r and runs the initial style and layout
// pass. The tree is loaded once; every later change is an in-memory mutation.
func Load(r io.Reader, opts Options, logger *zap.Logger) (*Document, error) {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid document URL %q: %w", opts.URL, err)
	}

	d := &Document{
		logger:          logger.Named("dom"),
		root:            root,
		url:             u,
		viewportW:       opts.ViewportWidth,
		viewportH:       opts.ViewportHeight,
		controlSelector: opts.ControlSurface,
		journal:         newJournal(opts.JournalLimit),
	}

	d.sheet = collectStyles(root)
	d.locateControlSurface()
	d.reflow()

	d.logger.Debug("Document loaded",
		zap.String("url", u.String()),
		zap.String("title", d.titleLocked()),
		zap.Float64("height", d.docHeight))
	return d, nil
}

// LoadFile reads path and loads it. The display URL defaults to the file URL
// when opts.URL is empty.
func LoadFile(path string, opts Options, logger *zap.Logger) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open page file: %w", err)
	}
	defer f.Close()

	if opts.URL == "" {
		opts.URL = "file://" + path
	}
	return Load(f, opts, logger)
}

// locateControlSurface resolves the configured overlay selector against the
// freshly parsed tree. A page without the overlay is fine.
func (d *Document) locateControlSurface() {
	sel, err := parseSelectorList(d.controlSelector)
	if err != nil {
		d.logger.Warn("Control surface selector did not parse; overlay exclusion disabled.",
			zap.String("selector", d.controlSelector), zap.Error(err))
		return
	}
	d.controlRoot = queryFirst(d.root, sel, nil)
}

// -- State accessors --

// URL returns the current display URL including the fragment.
func (d *Document) URL() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.url.String()
}

// Fragment returns the current location fragment without the leading '#'.
func (d *Document) Fragment() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.url.Fragment
}

// Title returns the trimmed <title> text, empty when absent.
func (d *Document) Title() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.titleLocked()
}

func (d *Document) titleLocked() string {
	if n := htmlquery.FindOne(d.root, "//title"); n != nil {
		return strings.TrimSpace(htmlquery.InnerText(n))
	}
	return ""
}

// ScrollY returns the current vertical scroll offset.
func (d *Document) ScrollY() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.scrollY
}

// Height returns the laid-out document height.
func (d *Document) Height() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.docHeight
}

// Viewport returns the viewport geometry.
func (d *Document) Viewport() (w, h float64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.viewportW, d.viewportH
}

// Focused returns the currently focused element, nil when none.
func (d *Document) Focused() *html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.focused
}

// Events returns a copy of the journal.
func (d *Document) Events() []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.journal.snapshot()
}

// ControlSurfaceSelector returns the configured overlay selector.
func (d *Document) ControlSurfaceSelector() string {
	return d.controlSelector
}

// -- Tree access --

// Walk runs fn over every element node in document order under a read lock.
// fn must not mutate; returning false stops the walk.
func (d *Document) Walk(fn func(n *html.Node) bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	walkElements(d.root, fn)
}

func walkElements(n *html.Node, fn func(n *html.Node) bool) bool {
	if n.Type == html.ElementNode {
		if !fn(n) {
			return false
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walkElements(c, fn) {
			return false
		}
	}
	return true
}

// XPathAll evaluates a fixed structural XPath expression against the tree.
// Expressions come from this codebase, never from planner input, so an
// evaluation error is a programming error and surfaces as one.
func (d *Document) XPathAll(expr string) ([]*html.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q failed: %w", expr, err)
	}
	return nodes, nil
}

// XPathFirst evaluates expr relative to base (the document root when base is
// nil) and returns the first match, nil when absent.
func (d *Document) XPathFirst(base *html.Node, expr string) (*html.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if base == nil {
		base = d.root
	}
	n, err := htmlquery.Query(base, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q failed: %w", expr, err)
	}
	return n, nil
}

// XPathAllIn evaluates expr relative to base and returns every match in
// document order.
func (d *Document) XPathAllIn(base *html.Node, expr string) ([]*html.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if base == nil {
		base = d.root
	}
	nodes, err := htmlquery.QueryAll(base, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q failed: %w", expr, err)
	}
	return nodes, nil
}

// InControlSurface reports whether n sits inside the overlay subtree.
func (d *Document) InControlSurface(n *html.Node) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.inControlSurfaceLocked(n)
}

func (d *Document) inControlSurfaceLocked(n *html.Node) bool {
	if d.controlRoot == nil {
		return false
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == d.controlRoot {
			return true
		}
	}
	return false
}

// BoxOf returns the layout rectangle of n. ok is false for nodes outside the
// flow (display:none subtrees, the control surface, non-elements).
func (d *Document) BoxOf(n *html.Node) (Rect, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.boxes[n]
	return r, ok
}

// -- Node helpers shared across packages --

// Tag returns the lowercase element name of n, empty for non-elements.
func Tag(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

// Attr returns the value of the named attribute, empty when absent.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether the named attribute is present at all.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}

// Text returns the whitespace-collapsed text content of n's subtree.
func Text(n *html.Node) string {
	return strings.Join(strings.Fields(htmlquery.InnerText(n)), " ")
}

// hasClass reports whether n's class list contains name.
func hasClass(n *html.Node, name string) bool {
	for _, cls := range strings.Fields(Attr(n, "class")) {
		if cls == name {
			return true
		}
	}
	return false
}
