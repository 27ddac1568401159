package schemas

import (
	"strings"
	"time"
)

// PlanRequest is the turn-boundary request submitted to the planning service.
// The same shape serves both the planning call and the finalizing call; the
// finalizing call carries the results of the actions just executed.
type PlanRequest struct {
	Message      string         `json:"message"`
	History      []ChatMessage  `json:"history"`
	PageSnapshot PageSnapshot   `json:"pageSnapshot"`
	ToolResults  []ActionResult `json:"toolResults,omitempty"`
}

// Validate rejects malformed input before any provider call is attempted.
func (r *PlanRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return &ValidationError{Field: "message", Reason: "must not be empty"}
	}
	if r.PageSnapshot.URL == "" {
		return &ValidationError{Field: "pageSnapshot", Reason: "missing or invalid snapshot"}
	}
	return nil
}

// PlanResponse is the planning service's reply. AwaitingToolResults signals
// that the listed tool calls should be executed and fed back in a finalizing
// call.
type PlanResponse struct {
	AssistantMessage    string          `json:"assistantMessage"`
	ToolCalls           []ActionRequest `json:"toolCalls,omitempty"`
	AwaitingToolResults bool            `json:"awaitingToolResults"`
}

// FlowStatus tracks an action's lifecycle on the observational timeline.
type FlowStatus string

const (
	FlowRunning FlowStatus = "running"
	FlowSuccess FlowStatus = "success"
	FlowFailed  FlowStatus = "failed"
)

// FlowEntry is one presentation-facing timeline record. The orchestration
// loop owns the timeline; consumers only observe it.
type FlowEntry struct {
	ID         string     `json:"id"`
	Action     ActionName `json:"action"`
	Label      string     `json:"label"`
	Status     FlowStatus `json:"status"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// TurnRequest starts a hosted-engine turn over HTTP.
type TurnRequest struct {
	Message string `json:"message"`
}

// TurnReply reports the outcome of a hosted-engine turn.
type TurnReply struct {
	Reply    string         `json:"reply"`
	Results  []ActionResult `json:"results,omitempty"`
	Timeline []FlowEntry    `json:"timeline,omitempty"`
}
