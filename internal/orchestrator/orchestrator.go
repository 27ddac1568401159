// internal/orchestrator/orchestrator.go
// Package orchestrator drives one conversational turn: send the user message,
// history window, and a fresh snapshot to the planning service, execute the
// requested actions strictly in order, feed the results back, and append the
// final grounded reply. The loop owns the conversation history and the flow
// timeline; everything else only observes them.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/docent/api/schemas"
	"github.com/xkilldash9x/docent/internal/config"
	"github.com/xkilldash9x/docent/internal/executor"
	"github.com/xkilldash9x/docent/internal/snapshot"
)

// State is the loop's current phase. Transitions are strictly
// Idle -> Planning -> Idle (no actions) or
// Idle -> Planning -> Executing -> Finalizing -> Idle.
type State string

const (
	StateIdle       State = "idle"
	StatePlanning   State = "planning"
	StateExecuting  State = "executing"
	StateFinalizing State = "finalizing"
)

// ErrTurnInFlight rejects a turn request that arrives while another turn holds
// the loop. The new request is dropped, never queued; the in-flight turn is
// never cancelled.
var ErrTurnInFlight = errors.New("a turn is already in flight")

const (
	// FallbackCompleted stands in for an empty finalizing reply.
	FallbackCompleted = "Completed the requested actions."
	// FallbackNoResponse stands in for a planning reply with no text and no
	// actions.
	FallbackNoResponse = "I could not generate a response. Please try rephrasing."
)

// The flow timeline keeps the newest entries only.
const maxTimelineEntries = 100

// Orchestrator runs the bounded planner/executor conversation loop against a
// hosted document. One instance serves one document for its whole lifetime.
type Orchestrator struct {
	cfg       config.EngineConfig
	logger    *zap.Logger
	extractor *snapshot.Extractor
	executor  *executor.Registry
	planner   schemas.PlanningService

	// turnMu is the in-flight guard: held for the full duration of a turn,
	// probed with TryLock so a second caller fails fast instead of queuing.
	turnMu sync.Mutex

	mu       sync.Mutex
	state    State
	history  []schemas.ChatMessage
	timeline []schemas.FlowEntry
	sinks    []schemas.FlowSink
}

// New creates an orchestrator with its dependencies provided explicitly.
func New(
	cfg config.EngineConfig,
	logger *zap.Logger,
	extractor *snapshot.Extractor,
	registry *executor.Registry,
	planner schemas.PlanningService,
) (*Orchestrator, error) {
	if logger == nil || extractor == nil || registry == nil || planner == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}
	return &Orchestrator{
		cfg:       cfg,
		logger:    logger.Named("orchestrator"),
		extractor: extractor,
		executor:  registry,
		planner:   planner,
		state:     StateIdle,
	}, nil
}

// RunTurn drives one full turn for the given user message. Boundary failures
// (empty message, a turn already in flight) return an error and leave no
// trace; once planning starts, every failure is recovered into a user-visible
// reply instead, with partial history retained.
func (o *Orchestrator) RunTurn(ctx context.Context, message string) (*schemas.TurnReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, &schemas.ValidationError{Field: "message", Reason: "must not be empty"}
	}
	if !o.turnMu.TryLock() {
		return nil, ErrTurnInFlight
	}
	defer o.turnMu.Unlock()
	defer o.setState(StateIdle)

	// -- Planning --
	o.setState(StatePlanning)
	prior := o.plannerWindow()
	o.appendHistory(schemas.NewChatMessage(schemas.RoleUser, message))

	plan, err := o.planner.Plan(ctx, &schemas.PlanRequest{
		Message:      message,
		History:      prior,
		PageSnapshot: o.extractor.Capture(),
	})
	if err != nil {
		return o.abort(err, nil, nil), nil
	}

	calls := plan.ToolCalls
	if len(calls) > o.cfg.MaxActionsPerTurn {
		o.logger.Warn("dropping action requests beyond the per-turn cap",
			zap.Int("requested", len(calls)),
			zap.Int("cap", o.cfg.MaxActionsPerTurn))
		calls = calls[:o.cfg.MaxActionsPerTurn]
	}

	// Planning text lands in history before any action runs, so an abort mid
	// execution keeps it.
	planText := strings.TrimSpace(plan.AssistantMessage)
	var planMsg schemas.ChatMessage
	if planText != "" {
		planMsg = schemas.NewChatMessage(schemas.RoleAssistant, planText)
		o.appendHistory(planMsg)
	}

	if len(calls) == 0 {
		reply := planText
		if reply == "" {
			reply = FallbackNoResponse
			o.appendHistory(schemas.NewChatMessage(schemas.RoleAssistant, reply))
		}
		o.notifyReply(reply)
		return &schemas.TurnReply{Reply: reply}, nil
	}

	// -- Executing --
	// Strictly sequential: a later action may depend on tree state changed by
	// an earlier one.
	o.setState(StateExecuting)
	results := make([]schemas.ActionResult, 0, len(calls))
	entries := make([]schemas.FlowEntry, 0, len(calls))
	for i := range calls {
		calls[i].EnsureID()
		entry := o.beginFlow(calls[i])
		result := o.executor.Execute(calls[i])
		entries = append(entries, o.finishFlow(entry, result.Success))
		results = append(results, result)
		o.appendHistory(schemas.NewToolMessage(result))
	}

	// -- Finalizing --
	o.setState(StateFinalizing)
	finalHistory := prior
	if planText != "" {
		finalHistory = appendCopy(prior, planMsg)
	}
	final, err := o.planner.Plan(ctx, &schemas.PlanRequest{
		Message:      message,
		History:      finalHistory,
		PageSnapshot: o.extractor.Capture(),
		ToolResults:  results,
	})
	if err != nil {
		return o.abort(err, results, entries), nil
	}

	reply := strings.TrimSpace(final.AssistantMessage)
	if reply == "" {
		reply = FallbackCompleted
	}
	o.appendHistory(schemas.NewChatMessage(schemas.RoleAssistant, reply))
	o.notifyReply(reply)
	return &schemas.TurnReply{Reply: reply, Results: results, Timeline: entries}, nil
}

// abort ends the turn with a user-visible failure message. History already
// appended (planning text, completed tool results) stays in place.
func (o *Orchestrator) abort(cause error, results []schemas.ActionResult, entries []schemas.FlowEntry) *schemas.TurnReply {
	o.logger.Warn("turn aborted", zap.Error(cause))
	reply := cause.Error()
	o.appendHistory(schemas.NewChatMessage(schemas.RoleAssistant, reply))
	o.notifyReply(reply)
	return &schemas.TurnReply{Reply: reply, Results: results, Timeline: entries}
}

// State reports the loop's current phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// History returns a copy of the transcript window.
func (o *Orchestrator) History() []schemas.ChatMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]schemas.ChatMessage, len(o.history))
	copy(out, o.history)
	return out
}

// Timeline returns a copy of the flow timeline.
func (o *Orchestrator) Timeline() []schemas.FlowEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]schemas.FlowEntry, len(o.timeline))
	copy(out, o.timeline)
	return out
}

// AddSink registers a flow observer for the loop's lifetime.
func (o *Orchestrator) AddSink(sink schemas.FlowSink) {
	if sink == nil {
		return
	}
	o.mu.Lock()
	o.sinks = append(o.sinks, sink)
	o.mu.Unlock()
}

func (o *Orchestrator) setState(next State) {
	o.mu.Lock()
	prev := o.state
	o.state = next
	o.mu.Unlock()
	if prev != next {
		o.logger.Debug("turn state transition",
			zap.String("from", string(prev)), zap.String("to", string(next)))
	}
}

// appendHistory adds one transcript entry and trims to the transcript window.
func (o *Orchestrator) appendHistory(msg schemas.ChatMessage) {
	o.mu.Lock()
	o.history = append(o.history, msg)
	o.history = schemas.TailWindow(o.history, o.cfg.TranscriptWindow)
	o.mu.Unlock()
}

// plannerWindow copies the newest planner-window entries. The copy keeps the
// request payload stable while the turn keeps appending to the transcript.
func (o *Orchestrator) plannerWindow() []schemas.ChatMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	window := schemas.TailWindow(o.history, o.cfg.PlannerWindow)
	out := make([]schemas.ChatMessage, len(window))
	copy(out, window)
	return out
}

// beginFlow appends a running timeline entry and notifies sinks.
func (o *Orchestrator) beginFlow(req schemas.ActionRequest) schemas.FlowEntry {
	entry := schemas.FlowEntry{
		ID:        req.ID,
		Action:    req.Name,
		Label:     flowLabel(req),
		Status:    schemas.FlowRunning,
		StartedAt: time.Now().UTC(),
	}
	o.mu.Lock()
	o.timeline = append(o.timeline, entry)
	if len(o.timeline) > maxTimelineEntries {
		o.timeline = o.timeline[len(o.timeline)-maxTimelineEntries:]
	}
	sinks := o.snapshotSinks()
	o.mu.Unlock()
	for _, s := range sinks {
		s.FlowUpdated(entry)
	}
	return entry
}

// finishFlow settles the entry's status and notifies sinks again.
func (o *Orchestrator) finishFlow(entry schemas.FlowEntry, success bool) schemas.FlowEntry {
	now := time.Now().UTC()
	entry.Status = schemas.FlowSuccess
	if !success {
		entry.Status = schemas.FlowFailed
	}
	entry.FinishedAt = &now

	o.mu.Lock()
	for i := len(o.timeline) - 1; i >= 0; i-- {
		if o.timeline[i].ID == entry.ID {
			o.timeline[i] = entry
			break
		}
	}
	sinks := o.snapshotSinks()
	o.mu.Unlock()
	for _, s := range sinks {
		s.FlowUpdated(entry)
	}
	return entry
}

// notifyReply hands the final assistant message to every sink.
func (o *Orchestrator) notifyReply(reply string) {
	o.mu.Lock()
	sinks := o.snapshotSinks()
	o.mu.Unlock()
	for _, s := range sinks {
		s.ReplyReady(reply)
	}
}

// snapshotSinks copies the sink list; callers invoke sinks outside the lock.
// Must be called with mu held.
func (o *Orchestrator) snapshotSinks() []schemas.FlowSink {
	out := make([]schemas.FlowSink, len(o.sinks))
	copy(out, o.sinks)
	return out
}

// appendCopy appends without sharing the input's backing array.
func appendCopy(history []schemas.ChatMessage, msg schemas.ChatMessage) []schemas.ChatMessage {
	out := make([]schemas.ChatMessage, 0, len(history)+1)
	out = append(out, history...)
	return append(out, msg)
}

// flowLabel renders a short presentation label for a timeline entry from the
// most specific hint the request carries.
func flowLabel(req schemas.ActionRequest) string {
	for _, key := range []string{"projectName", "text", "label", "target", "sectionId", "section", "targetSection", "selector", "fieldName"} {
		if v, ok := req.Args[key].(string); ok && strings.TrimSpace(v) != "" {
			return fmt.Sprintf("%s %q", req.Name, strings.TrimSpace(v))
		}
	}
	for _, key := range []string{"delta", "amount"} {
		if v, ok := req.Args[key]; ok {
			return fmt.Sprintf("%s %v", req.Name, v)
		}
	}
	return string(req.Name)
}
