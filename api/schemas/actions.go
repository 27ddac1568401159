package schemas

import "github.com/google/uuid"

// ActionName identifies one of the closed set of actions the planning service
// may request. Anything outside this set is rejected with a failed result.
type ActionName string

const (
	ActionScrollBy          ActionName = "scroll_by"
	ActionNavigateToSection ActionName = "navigate_to_section"
	ActionClickElement      ActionName = "click_element"
	ActionHighlightElement  ActionName = "highlight_element"
	ActionFillInput         ActionName = "fill_input"
)

// KnownActions lists the declared action set in a stable order.
func KnownActions() []ActionName {
	return []ActionName{
		ActionScrollBy,
		ActionNavigateToSection,
		ActionClickElement,
		ActionHighlightElement,
		ActionFillInput,
	}
}

// Known reports whether the name belongs to the declared action set.
func (a ActionName) Known() bool {
	switch a {
	case ActionScrollBy, ActionNavigateToSection, ActionClickElement,
		ActionHighlightElement, ActionFillInput:
		return true
	}
	return false
}

// ActionRequest is one tool call issued by the planning service. Args is an
// untrusted loosely-typed bag; no schema is enforced beyond type coercion at
// read time.
type ActionRequest struct {
	ID   string         `json:"id"`
	Name ActionName     `json:"name"`
	Args map[string]any `json:"args"`
}

// EnsureID backfills a correlation id when the planning service omitted one.
func (r *ActionRequest) EnsureID() {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
}

// ActionResult is the single outcome produced for an ActionRequest, correlated
// by id. Output is a short human-readable outcome string, success or failure
// reason.
type ActionResult struct {
	ToolCallID string     `json:"toolCallId"`
	Name       ActionName `json:"name"`
	Success    bool       `json:"success"`
	Output     string     `json:"output"`
}
