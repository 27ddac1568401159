package dom_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/docent/internal/dom"
)

func TestQuery(t *testing.T) {
	doc := loadTestPage(t)

	tests := []struct {
		name     string
		selector string
		wantNil  bool
		wantTag  string
		wantText string // substring of the match's collapsed text
	}{
		{"id", "#projects", false, "section", "Projects"},
		{"tag picks first in document order", "section", false, "section", "Projects"},
		{"class", ".veiled", false, "span", "Hidden credentials"},
		{"attribute presence", "[data-card]", false, "div", "Difference Engine"},
		{"attribute exact value", `[data-order="1"]`, false, "div", "Analytical Engine"},
		{"compound with nth-of-type", "div[data-card]:nth-of-type(2)", false, "div", "Analytical Engine"},
		{"child combinator", "#projects > div", false, "div", "Difference Engine"},
		{"descendant combinator", "#projects a", false, "a", "View on GitHub"},
		{"selector group falls through", "#missing, #skills", false, "section", "Skills"},
		{"universal", "*", false, "html", ""},
		{"no match", "#missing", true, "", ""},
		{"no match on value", `[data-order="9"]`, true, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := doc.Query(tt.selector)
			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, n)
				return
			}
			require.NotNil(t, n)
			assert.Equal(t, tt.wantTag, dom.Tag(n))
			if tt.wantText != "" {
				assert.Contains(t, dom.Text(n), tt.wantText)
			}
		})
	}
}

func TestQueryAll(t *testing.T) {
	doc := loadTestPage(t)

	tests := []struct {
		name     string
		selector string
		want     int
	}{
		{"cards", "[data-card]", 2},
		{"sections", "section", 3},
		{"anchors under projects", "#projects a", 3},
		{"direct form inputs", "#contact-form > input", 5},
		{"group", "header, nav", 2},
		{"none", ".absent", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, err := doc.QueryAll(tt.selector)
			require.NoError(t, err)
			assert.Len(t, nodes, tt.want)
		})
	}
}

func TestQuery_ParseErrors(t *testing.T) {
	doc := loadTestPage(t)

	tests := []struct {
		name     string
		selector string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"trailing comma", "div p,"},
		{"adjacent sibling combinator", "a + b"},
		{"general sibling combinator", "a ~ b"},
		{"prefix attribute operator", `[href^="https"]`},
		{"contains attribute operator", `[class*="card"]`},
		{"unsupported pseudo-class", "a:hover"},
		{"nth-child", "li:nth-child(2)"},
		{"nth-of-type zero", "div:nth-of-type(0)"},
		{"nth-of-type negative", "div:nth-of-type(-1)"},
		{"nth-of-type formula", "div:nth-of-type(2n)"},
		{"unterminated attribute", "[unterminated"},
		{"attribute without name", `["weird"]`},
		{"bare hash", "#"},
		{"bare dot", "."},
		{"stray character", "!bang"},
		{"doubled combinator", "div > > p"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := doc.Query(tt.selector)
			require.Error(t, err)
			assert.Nil(t, n)

			var selErr *dom.SelectorError
			assert.True(t, errors.As(err, &selErr), "error should be a *SelectorError, got %T", err)
		})
	}
}

// FuzzQuery hammers the selector parser with arbitrary input. Whatever comes
// in, Query must either resolve cleanly or fail with a typed SelectorError;
// it must never panic.
func FuzzQuery(f *testing.F) {
	doc, err := dom.Load(strings.NewReader(testPage), dom.Options{}, nil)
	if err != nil {
		f.Fatal(err)
	}

	seeds := []string{
		"#projects",
		"div[data-card]:nth-of-type(2)",
		`a[href="https://github.com/ada/difference-engine"]`,
		"#contact-form > input",
		"section article, main",
		"[href^=", ":nth-of-type(", "a + b", "..", "#",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, selector string) {
		n, err := doc.Query(selector)
		if err != nil {
			var selErr *dom.SelectorError
			if !errors.As(err, &selErr) {
				t.Fatalf("Query(%q) returned untyped error %T: %v", selector, err, err)
			}
			if n != nil {
				t.Fatalf("Query(%q) returned a node alongside an error", selector)
			}
		}
	})
}
