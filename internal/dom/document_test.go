package dom_test

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/docent/internal/dom"
)

const testPage = `
<!DOCTYPE html>
<html>
<head>
<title>Ada Lovelace - Portfolio</title>
<style>
  .offscreen { display: none; }
  .veiled { visibility: hidden; }
  .ghost { opacity: 0; }
</style>
</head>
<body>
  <header id="hero">
    <h1>Ada Lovelace</h1>
    <p>Analyst, programmer, pioneer.</p>
  </header>
  <nav id="site-nav">
    <a href="#projects">Projects</a>
    <a href="#contact">Contact</a>
  </nav>
  <section id="projects" data-summary="Selected engineering work.">
    <h2>Projects</h2>
    <div data-card data-order="2" data-title="Difference Engine">
      <h3>Difference Engine</h3>
      <p>Mechanical calculator for polynomial tables.</p>
      <a href="https://github.com/ada/difference-engine">View on GitHub</a>
      <a href="https://difference.example.com">Live demo</a>
    </div>
    <div data-card data-order="1" data-title="Analytical Engine">
      <h3>Analytical Engine</h3>
      <p>General-purpose computing design.</p>
      <a href="https://github.com/ada/analytical-engine">GitHub repository</a>
    </div>
    <div class="offscreen"><span>Unreleased prototype notes.</span></div>
  </section>
  <section id="skills">
    <h2>Skills</h2>
    <ul>
      <li>Mathematics</li>
      <li>Computation</li>
    </ul>
    <span class="veiled">Hidden credentials</span>
    <span class="ghost">Ghost text</span>
    <div></div>
  </section>
  <section id="contact">
    <h2>Contact</h2>
    <form id="contact-form" action="/send" method="post">
      <input type="text" name="name" placeholder="Your name">
      <input type="email" name="email" placeholder="Email address">
      <textarea name="message" placeholder="Your message"></textarea>
      <input type="checkbox" name="subscribe" value="yes">
      <input type="radio" name="plan" value="basic" checked>
      <input type="radio" name="plan" value="pro">
      <button type="submit">Send message</button>
    </form>
  </section>
  <div id="docent-widget">
    <textarea name="docent-input" placeholder="Ask the docent"></textarea>
    <button type="button">Ask</button>
  </div>
  <div hidden id="easter-egg">You found it.</div>
  <p class="tagline">Made by hand.</p>
</body>
</html>
`

func loadTestPage(t *testing.T) *dom.Document {
	t.Helper()
	doc, err := dom.Load(strings.NewReader(testPage), dom.Options{
		URL:            "https://ada.example.com/",
		ViewportWidth:  1280,
		ViewportHeight: 200,
	}, nil)
	require.NoError(t, err)
	return doc
}

func TestLoad_State(t *testing.T) {
	doc := loadTestPage(t)

	assert.Equal(t, "https://ada.example.com/", doc.URL())
	assert.Equal(t, "Ada Lovelace - Portfolio", doc.Title())
	assert.Empty(t, doc.Fragment())
	assert.Zero(t, doc.ScrollY())

	w, h := doc.Viewport()
	assert.Equal(t, 1280.0, w)
	assert.Equal(t, 200.0, h)
	assert.Greater(t, doc.Height(), 0.0)
}

func TestVisible(t *testing.T) {
	doc := loadTestPage(t)

	tests := []struct {
		name     string
		selector string
		visible  bool
	}{
		{"identified section", "#projects", true},
		{"anchor inside card", `a[href="https://difference.example.com"]`, true},
		{"display none", ".offscreen", false},
		{"child of display-none ancestor", ".offscreen > span", false},
		{"visibility hidden", ".veiled", false},
		{"opacity zero", ".ghost", false},
		{"hidden attribute", "#easter-egg", false},
		{"zero-size empty block", "#skills > div", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := doc.Query(tt.selector)
			require.NoError(t, err)
			require.NotNil(t, n, "fixture error: %s not found", tt.selector)
			assert.Equal(t, tt.visible, doc.Visible(n))
		})
	}
}

func TestLayout_SectionsStackInDocumentOrder(t *testing.T) {
	doc := loadTestPage(t)

	var lastY float64 = -1
	for _, sel := range []string{"#hero", "#site-nav", "#projects", "#skills", "#contact"} {
		n, err := doc.Query(sel)
		require.NoError(t, err)
		require.NotNil(t, n)

		box, ok := doc.BoxOf(n)
		require.True(t, ok, "%s has no layout box", sel)
		assert.Greater(t, box.Y, lastY, "%s out of order", sel)
		lastY = box.Y
	}

	hero, _ := doc.Query("#hero")
	box, ok := doc.BoxOf(hero)
	require.True(t, ok)
	assert.Zero(t, box.Y)
}

func TestScrollBy_ClampsToDocumentBounds(t *testing.T) {
	doc := loadTestPage(t)
	maxScroll := doc.Height() - 200
	require.Greater(t, maxScroll, 0.0, "fixture must overflow the test viewport")

	assert.Equal(t, 0.0, doc.ScrollBy(-500), "scrolling above the top clamps to zero")

	got := doc.ScrollBy(1e9)
	assert.InDelta(t, maxScroll, got, 0.001, "scrolling past the bottom clamps to max")

	got = doc.ScrollBy(-120)
	assert.InDelta(t, maxScroll-120, got, 0.001)
}

func TestScrollToNode_Alignment(t *testing.T) {
	doc := loadTestPage(t)

	projects, err := doc.Query("#projects")
	require.NoError(t, err)
	box, ok := doc.BoxOf(projects)
	require.True(t, ok)
	maxScroll := doc.Height() - 200

	require.NoError(t, doc.ScrollToNode(projects, dom.AlignTop))
	wantTop := math.Min(box.Y, maxScroll)
	assert.InDelta(t, wantTop, doc.ScrollY(), 0.001)

	require.NoError(t, doc.ScrollToNode(projects, dom.AlignCenter))
	wantCenter := math.Min(math.Max(box.Y-(200-box.Height)/2, 0), maxScroll)
	assert.InDelta(t, wantCenter, doc.ScrollY(), 0.001)
}

func TestReplaceFragment(t *testing.T) {
	doc := loadTestPage(t)

	doc.ReplaceFragment("#projects")
	assert.Equal(t, "projects", doc.Fragment())
	assert.Equal(t, "https://ada.example.com/#projects", doc.URL())

	// A second replace rewrites in place.
	doc.ReplaceFragment("contact")
	assert.Equal(t, "contact", doc.Fragment())

	events := doc.Events()
	var frags []string
	for _, ev := range events {
		if ev.Kind == dom.EventFragment {
			frags = append(frags, ev.Detail)
		}
	}
	assert.Equal(t, []string{"projects", "contact"}, frags)
}

func TestInControlSurface(t *testing.T) {
	doc := loadTestPage(t)

	inside, err := doc.Query(`[name="docent-input"]`)
	require.NoError(t, err)
	require.NotNil(t, inside)
	assert.True(t, doc.InControlSurface(inside))

	outside, err := doc.Query(`[name="name"]`)
	require.NoError(t, err)
	require.NotNil(t, outside)
	assert.False(t, doc.InControlSurface(outside))
}

func TestControlSurface_TakesNoLayoutSpace(t *testing.T) {
	doc := loadTestPage(t)

	widget, err := doc.Query("#docent-widget")
	require.NoError(t, err)
	require.NotNil(t, widget)

	_, ok := doc.BoxOf(widget)
	assert.False(t, ok, "the overlay floats above the page and is out of flow")
}
