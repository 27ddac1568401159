// internal/executor/executor.go
// Package executor carries out planner-issued actions against the hosted
// document: the closed five-action set, loose argument coercion, hint
// resolution, and the transient highlight. Every request produces exactly
// one result; failures are results too, never panics.
package executor

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/docent/api/schemas"
	"github.com/xkilldash9x/docent/internal/dom"
	"github.com/xkilldash9x/docent/internal/resolve"
)

type handlerFunc func(args map[string]any) (string, error)

// Registry maps action names to their handlers and owns the shared
// execution dependencies.
type Registry struct {
	doc       *dom.Document
	resolver  *resolve.Resolver
	highlight *Highlighter
	logger    *zap.Logger

	handlers map[schemas.ActionName]handlerFunc
}

func NewRegistry(doc *dom.Document, resolver *resolve.Resolver, highlight *Highlighter, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := &Registry{
		doc:       doc,
		resolver:  resolver,
		highlight: highlight,
		logger:    logger.Named("executor"),
	}
	reg.registerHandlers()
	return reg
}

func (reg *Registry) registerHandlers() {
	reg.handlers = map[schemas.ActionName]handlerFunc{
		schemas.ActionScrollBy:          reg.handleScrollBy,
		schemas.ActionNavigateToSection: reg.handleNavigateToSection,
		schemas.ActionClickElement:      reg.handleClickElement,
		schemas.ActionHighlightElement:  reg.handleHighlightElement,
		schemas.ActionFillInput:         reg.handleFillInput,
	}
}

// Execute dispatches one action request and returns its result. Unknown
// action names fail the request; they never error out of the loop.
func (reg *Registry) Execute(req schemas.ActionRequest) schemas.ActionResult {
	req.EnsureID()
	result := schemas.ActionResult{ToolCallID: req.ID, Name: req.Name}

	handler, ok := reg.handlers[req.Name]
	if !ok {
		result.Output = fmt.Sprintf("unknown action %q", req.Name)
		reg.logger.Warn("Rejected unknown action", zap.String("action", string(req.Name)))
		return result
	}

	output, err := handler(req.Args)
	if err != nil {
		result.Output = err.Error()
		reg.logger.Warn("Action failed",
			zap.String("action", string(req.Name)),
			zap.Error(err))
		return result
	}

	result.Success = true
	result.Output = output
	reg.logger.Debug("Action completed",
		zap.String("action", string(req.Name)),
		zap.String("output", output))
	return result
}

// Stop cancels pending highlight removals. Called on engine shutdown.
func (reg *Registry) Stop() {
	reg.highlight.Stop()
}

// hintsFromArgs maps the action argument aliases onto resolution hints.
// projectName outranks the generic text keys: when a planner supplies both,
// the project name addresses the card and the text usually carries a link
// keyword for disambiguation.
func hintsFromArgs(args map[string]any) resolve.Hints {
	var h resolve.Hints
	h.Section, _ = argString(args, "sectionId", "section", "targetSection")
	h.Selector, _ = argString(args, "selector")
	h.Text, _ = argString(args, "projectName", "text", "label", "target")
	return h
}

// keywordCorpus joins every text-bearing argument so link disambiguation
// sees keywords regardless of which key carried them.
func keywordCorpus(args map[string]any) string {
	var parts []string
	for _, key := range []string{"projectName", "text", "label", "target", "selector", "sectionId", "section", "targetSection"} {
		if s, ok := argString(args, key); ok {
			parts = append(parts, s)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}
