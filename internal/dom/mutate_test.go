package dom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/docent/internal/dom"
)

func eventKinds(events []dom.Event) []dom.EventKind {
	kinds := make([]dom.EventKind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func mustQuery(t *testing.T, doc *dom.Document, selector string) *html.Node {
	t.Helper()
	n, err := doc.Query(selector)
	require.NoError(t, err)
	require.NotNil(t, n, "fixture error: %s not found", selector)
	return n
}

func TestSetFieldValue_Input(t *testing.T) {
	doc := loadTestPage(t)
	field := mustQuery(t, doc, `[name="name"]`)

	require.NoError(t, doc.SetFieldValue(field, "Ada"))

	assert.Equal(t, "Ada", dom.Attr(field, "value"))
	assert.Same(t, field, doc.Focused())

	events := doc.Events()
	require.Len(t, events, 3)
	assert.Equal(t, []dom.EventKind{dom.EventInput, dom.EventChange, dom.EventFocus}, eventKinds(events))
	assert.Equal(t, "Ada", events[0].Detail)
	assert.Equal(t, `[name="name"]`, events[0].Selector)
}

func TestSetFieldValue_Textarea(t *testing.T) {
	doc := loadTestPage(t)
	field := mustQuery(t, doc, `[name="message"]`)

	require.NoError(t, doc.SetFieldValue(field, "Hello there"))
	assert.Equal(t, "Hello there", dom.Text(field))

	// Overwriting replaces the previous value rather than appending.
	require.NoError(t, doc.SetFieldValue(field, "Second draft"))
	assert.Equal(t, "Second draft", dom.Text(field))
}

func TestSetFieldValue_RejectsNonField(t *testing.T) {
	doc := loadTestPage(t)
	button := mustQuery(t, doc, "#contact-form > button")

	err := doc.SetFieldValue(button, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not accept a field value")
	assert.Empty(t, doc.Events(), "a rejected fill must not journal anything")
}

func TestClick_CheckboxToggles(t *testing.T) {
	doc := loadTestPage(t)
	box := mustQuery(t, doc, `[name="subscribe"]`)
	require.False(t, dom.HasAttr(box, "checked"))

	require.NoError(t, doc.Click(box))
	assert.True(t, dom.HasAttr(box, "checked"))

	require.NoError(t, doc.Click(box))
	assert.False(t, dom.HasAttr(box, "checked"))

	kinds := eventKinds(doc.Events())
	assert.Equal(t, []dom.EventKind{
		dom.EventClick, dom.EventChange,
		dom.EventClick, dom.EventChange,
	}, kinds)
}

func TestClick_RadioSelectsWithinGroup(t *testing.T) {
	doc := loadTestPage(t)
	basic := mustQuery(t, doc, "#contact-form > input:nth-of-type(4)")
	pro := mustQuery(t, doc, "#contact-form > input:nth-of-type(5)")
	require.True(t, dom.HasAttr(basic, "checked"), "fixture starts with the basic plan checked")

	require.NoError(t, doc.Click(pro))

	assert.True(t, dom.HasAttr(pro, "checked"))
	assert.False(t, dom.HasAttr(basic, "checked"), "the rest of the group unchecks")
}

func TestClick_SubmitJournalsTheForm(t *testing.T) {
	doc := loadTestPage(t)
	submit := mustQuery(t, doc, "#contact-form > button")

	require.NoError(t, doc.Click(submit))

	events := doc.Events()
	require.Len(t, events, 2)
	assert.Equal(t, dom.EventClick, events[0].Kind)
	assert.Equal(t, dom.EventSubmit, events[1].Kind)
	assert.Equal(t, "#contact-form", events[1].Selector)
}

func TestClick_PlainActivation(t *testing.T) {
	doc := loadTestPage(t)
	link := mustQuery(t, doc, `a[href="#projects"]`)

	require.NoError(t, doc.Click(link))

	events := doc.Events()
	require.Len(t, events, 1, "a plain activation journals the click and nothing else")
	assert.Equal(t, dom.EventClick, events[0].Kind)
	assert.Equal(t, `a[href="#projects"]`, events[0].Selector)
}

func TestHighlight_Idempotent(t *testing.T) {
	doc := loadTestPage(t)
	span := mustQuery(t, doc, ".veiled")

	doc.Highlight(span)
	assert.Equal(t, "veiled "+dom.HighlightClass, dom.Attr(span, "class"))

	// A repeat adds nothing to the class list but is still journaled.
	doc.Highlight(span)
	assert.Equal(t, "veiled "+dom.HighlightClass, dom.Attr(span, "class"))

	highlights := 0
	for _, ev := range doc.Events() {
		if ev.Kind == dom.EventHighlight {
			highlights++
		}
	}
	assert.Equal(t, 2, highlights)

	doc.Unhighlight(span)
	assert.Equal(t, "veiled", dom.Attr(span, "class"))
	doc.Unhighlight(span)
	assert.Equal(t, "veiled", dom.Attr(span, "class"))
}

func TestHighlight_RemovesBareClassAttribute(t *testing.T) {
	doc := loadTestPage(t)
	section := mustQuery(t, doc, "#projects")

	doc.Highlight(section)
	assert.Equal(t, dom.HighlightClass, dom.Attr(section, "class"))

	doc.Unhighlight(section)
	assert.False(t, dom.HasAttr(section, "class"))
}

func TestFocus(t *testing.T) {
	doc := loadTestPage(t)
	field := mustQuery(t, doc, `[name="email"]`)

	doc.Focus(field)

	assert.Same(t, field, doc.Focused())
	events := doc.Events()
	require.Len(t, events, 1)
	assert.Equal(t, dom.EventFocus, events[0].Kind)
	assert.Equal(t, `[name="email"]`, events[0].Selector)
}

func TestHTML_ReflectsMutations(t *testing.T) {
	doc := loadTestPage(t)
	field := mustQuery(t, doc, `[name="name"]`)
	require.NoError(t, doc.SetFieldValue(field, "Ada"))

	rendered, err := doc.HTML()
	require.NoError(t, err)
	assert.Contains(t, rendered, `value="Ada"`)
	assert.Contains(t, rendered, "docent-widget")
}
