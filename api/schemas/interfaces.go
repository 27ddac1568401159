package schemas

import "context"

// PlanningService is the turn-boundary contract. One implementation calls the
// OpenAI chat-completions API in process; another forwards the request to a
// running docent server. The same method serves both calls of a turn: the
// planning call (ToolResults empty) and the finalizing call (ToolResults
// carrying the outcomes of the actions just executed).
type PlanningService interface {
	// Plan submits one turn-boundary request and returns the service's reply.
	// Returned errors carry user-facing text; known provider failures are
	// normalized to fixed messages, everything else passes through verbatim.
	Plan(ctx context.Context, req *PlanRequest) (*PlanResponse, error)
}

// FlowSink observes a turn as it progresses. The orchestration loop calls
// FlowUpdated with a copy of a timeline entry every time its status changes,
// and ReplyReady once per turn with the final assistant message.
// Implementations must not block the caller.
type FlowSink interface {
	FlowUpdated(entry FlowEntry)
	ReplyReady(reply string)
}
