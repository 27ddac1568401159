// internal/dom/synthesize.go
package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// maxAncestorHops bounds the positional-path walk. Beyond this the selector
// stays relative and is matched by descendant semantics from the root.
const maxAncestorHops = 4

// StableSelector synthesizes a selector that re-locates n in the live tree:
// #id when present, a unique [name="…"], a unique a[href="…"] for anchors,
// else a positional tag:nth-of-type path up to maxAncestorHops ancestors,
// stopping early at an identified ancestor or the document root. The
// positional fallback goes stale if sibling order changes, a known
// limitation of advisory selectors.
func (d *Document) StableSelector(n *html.Node) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stableSelectorLocked(n)
}

func (d *Document) stableSelectorLocked(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}

	if id := Attr(n, "id"); id != "" && cssSafeToken(id) {
		return "#" + id
	}

	if name := Attr(n, "name"); name != "" && !strings.ContainsAny(name, `"\`) {
		if d.countAttrValueLocked("name", name) == 1 {
			return fmt.Sprintf("[name=%q]", name)
		}
	}

	if Tag(n) == "a" {
		if href := Attr(n, "href"); href != "" && !strings.ContainsAny(href, `"\`) {
			if d.countAnchorHrefLocked(href) == 1 {
				return fmt.Sprintf("a[href=%q]", href)
			}
		}
	}

	segs := []string{positionalSegment(n)}
	cur := parentElement(n)
	for hops := 0; cur != nil && hops < maxAncestorHops; hops++ {
		if id := Attr(cur, "id"); id != "" && cssSafeToken(id) {
			return strings.Join(append([]string{"#" + id}, segs...), " > ")
		}
		tag := Tag(cur)
		if tag == "body" || tag == "html" {
			return strings.Join(append([]string{"body"}, segs...), " > ")
		}
		segs = append([]string{positionalSegment(cur)}, segs...)
		cur = parentElement(cur)
	}
	return strings.Join(segs, " > ")
}

func positionalSegment(n *html.Node) string {
	return fmt.Sprintf("%s:nth-of-type(%d)", Tag(n), nthOfTypeIndex(n))
}

func (d *Document) countAttrValueLocked(key, val string) int {
	count := 0
	walkElements(d.root, func(n *html.Node) bool {
		if Attr(n, key) == val {
			count++
		}
		return count < 2
	})
	return count
}

func (d *Document) countAnchorHrefLocked(href string) int {
	count := 0
	walkElements(d.root, func(n *html.Node) bool {
		if Tag(n) == "a" && Attr(n, "href") == href {
			count++
		}
		return count < 2
	})
	return count
}

// cssSafeToken reports whether s can appear verbatim in a selector without
// escaping.
func cssSafeToken(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return len(s) > 0
}
