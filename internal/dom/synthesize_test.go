package dom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStableSelector(t *testing.T) {
	doc := loadTestPage(t)

	tests := []struct {
		name string
		// locate picks the node to synthesize for, via a known-good selector.
		locate string
		want   string
	}{
		{"id wins", "#projects", "#projects"},
		{"unique name attribute", `[name="email"]`, `[name="email"]`},
		{"unique anchor href", `a[href="https://github.com/ada/difference-engine"]`,
			`a[href="https://github.com/ada/difference-engine"]`},
		{"fragment anchor href", `a[href="#projects"]`, `a[href="#projects"]`},
		{"duplicate name falls back to path", `[name="plan"]:nth-of-type(5)`,
			"#contact-form > input:nth-of-type(5)"},
		{"positional path under identified ancestor", "#hero > h1",
			"#hero > h1:nth-of-type(1)"},
		{"two levels deep", "#projects > div > p",
			"#projects > div:nth-of-type(1) > p:nth-of-type(1)"},
		{"list item by position", "#skills li:nth-of-type(2)",
			"#skills > ul:nth-of-type(1) > li:nth-of-type(2)"},
		{"body-rooted path", ".tagline", "body > p:nth-of-type(1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := doc.Query(tt.locate)
			require.NoError(t, err)
			require.NotNil(t, n, "fixture error: %s not found", tt.locate)

			got := doc.StableSelector(n)
			assert.Equal(t, tt.want, got)

			// The synthesized selector must re-resolve to the same node.
			back, err := doc.Query(got)
			require.NoError(t, err)
			assert.Same(t, n, back)
		})
	}
}

func TestStableSelector_NonElement(t *testing.T) {
	doc := loadTestPage(t)
	assert.Empty(t, doc.StableSelector(nil))
}
