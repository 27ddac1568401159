// internal/planner/openai.go
package planner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xkilldash9x/docent/api/schemas"
	"github.com/xkilldash9x/docent/internal/config"
)

// systemPrompt grounds the model in the page it is assisting with. The %s
// slot receives the snapshot JSON.
const systemPrompt = `You are a page assistant embedded in the website described below. You answer questions about the page and operate it on the visitor's behalf using the provided tools.

CURRENT PAGE SNAPSHOT (JSON):
%s

RULES:
1. Ground every answer in the snapshot above. If the page does not contain the answer, say so instead of guessing.
2. When you act, prefer the "selector" values listed in the snapshot's elements; fall back to visible text only when no selector fits.
3. Use navigate_to_section with a section id from the snapshot to bring a section into view, and highlight_element to point at things while you explain them.
4. Issue at most 3 tool calls per turn, in execution order. Later calls see the page state left by earlier ones.
5. Never invent links, sections, or form fields that are not in the snapshot, and never direct the visitor away from this page.
6. Keep replies short and conversational.`

// OpenAIPlanner implements schemas.PlanningService on the OpenAI
// chat-completions API with function calling.
type OpenAIPlanner struct {
	client *openai.Client
	cfg    config.PlannerConfig
	logger *zap.Logger
}

// NewOpenAI initializes the in-process planner. A missing credential or model
// is a configuration error carrying the fixed user-facing message, so callers
// can print it and refuse to start instead of crashing mid-turn.
func NewOpenAI(cfg config.PlannerConfig, logger *zap.Logger) (*OpenAIPlanner, error) {
	if !cfg.Configured() {
		return nil, errors.New(MsgNotConfigured)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.APITimeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.APITimeout}
	}

	return &OpenAIPlanner{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger.Named("planner.openai"),
	}, nil
}

// Plan runs one chat-completion round. The same method serves the planning
// call (ToolResults empty, tools declared) and the finalizing call
// (ToolResults set, tools withheld so the model must answer in text).
func (p *OpenAIPlanner) Plan(ctx context.Context, req *schemas.PlanRequest) (*schemas.PlanResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	messages, err := p.buildMessages(req)
	if err != nil {
		return nil, err
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		Messages:    messages,
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	}
	finalizing := len(req.ToolResults) > 0
	if !finalizing {
		// Withholding the declarations on the finalizing call forces a text
		// reply and keeps every turn bounded at two provider calls.
		chatReq.Tools = toolDeclarations()
	}

	startTime := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	duration := time.Since(startTime)

	if err != nil {
		p.logger.Warn("Chat completion failed", zap.Bool("finalizing", finalizing), zap.Error(err))
		return nil, normalizeProviderError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("the model returned no choices")
	}

	choice := resp.Choices[0]
	p.logger.Info("Chat completion round complete",
		zap.Duration("duration", duration),
		zap.Bool("finalizing", finalizing),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("tool_calls", len(choice.Message.ToolCalls)),
	)

	return parseChoice(choice)
}

// buildMessages assembles the wire conversation: a system prompt grounding
// the model in the snapshot, the rolling history window, the user message,
// and on the finalizing call the tool exchange for the actions just executed.
func (p *OpenAIPlanner) buildMessages(req *schemas.PlanRequest) ([]openai.ChatCompletionMessage, error) {
	snapshotJSON, err := json.Marshal(req.PageSnapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal page snapshot: %w", err)
	}

	history := req.History
	// On the finalizing call the trailing assistant entry is the planning
	// text that announced the tool calls. It is re-emitted below as the
	// tool-calling assistant turn, after the user message it answered.
	var planningText string
	if len(req.ToolResults) > 0 && len(history) > 0 && history[len(history)-1].Role == schemas.RoleAssistant {
		planningText = history[len(history)-1].Content
		history = history[:len(history)-1]
	}

	messages := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf(systemPrompt, snapshotJSON),
	}}
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})

	if len(req.ToolResults) > 0 {
		calls := make([]openai.ToolCall, 0, len(req.ToolResults))
		for _, res := range req.ToolResults {
			calls = append(calls, openai.ToolCall{
				ID:       res.ToolCallID,
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: string(res.Name), Arguments: "{}"},
			})
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   planningText,
			ToolCalls: calls,
		})
		for _, res := range req.ToolResults {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    res.Output,
				ToolCallID: res.ToolCallID,
			})
		}
	}

	return messages, nil
}

// historyMessages maps transcript entries onto the OpenAI roles. A tool-role
// entry only makes protocol sense after an assistant message declaring the
// matching tool_call ids, so each run of tool entries attaches its calls to
// the assistant message directly before it, or to a synthesized bare one.
func historyMessages(history []schemas.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history))
	var pending []schemas.ChatMessage

	flush := func() {
		if len(pending) == 0 {
			return
		}
		calls := make([]openai.ToolCall, 0, len(pending))
		for _, m := range pending {
			name := m.ToolName
			if name == "" {
				name = "action"
			}
			calls = append(calls, openai.ToolCall{
				ID:       m.ToolCallID,
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: name, Arguments: "{}"},
			})
		}
		if n := len(out); n > 0 && out[n-1].Role == openai.ChatMessageRoleAssistant && len(out[n-1].ToolCalls) == 0 {
			out[n-1].ToolCalls = calls
		} else {
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, ToolCalls: calls})
		}
		for _, m := range pending {
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		}
		pending = pending[:0]
	}

	for _, m := range history {
		switch m.Role {
		case schemas.RoleTool:
			pending = append(pending, m)
		case schemas.RoleAssistant:
			flush()
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content})
		default:
			flush()
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		}
	}
	flush()

	return out
}

// parseChoice lifts the model's reply into the engine contract. Malformed
// tool arguments abort the round; the orchestration loop surfaces the error
// as a chat-visible failure.
func parseChoice(choice openai.ChatCompletionChoice) (*schemas.PlanResponse, error) {
	resp := &schemas.PlanResponse{
		AssistantMessage: strings.TrimSpace(choice.Message.Content),
	}

	for _, tc := range choice.Message.ToolCalls {
		if tc.Type != openai.ToolTypeFunction {
			continue
		}
		args := map[string]any{}
		if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("the model sent malformed arguments for %s: %w", tc.Function.Name, err)
			}
		}
		resp.ToolCalls = append(resp.ToolCalls, schemas.ActionRequest{
			ID:   tc.ID,
			Name: schemas.ActionName(tc.Function.Name),
			Args: args,
		})
	}
	resp.AwaitingToolResults = len(resp.ToolCalls) > 0

	return resp, nil
}
