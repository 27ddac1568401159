// internal/server/handlers.go
package server

import (
	"errors"
	"fmt"
	"net/http"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/docent/api/schemas"
	"github.com/xkilldash9x/docent/internal/orchestrator"
	"github.com/xkilldash9x/docent/internal/snapshot"
)

// Handlers manages the HTTP request handling for the docent server.
type Handlers struct {
	log       *zap.Logger
	engine    *orchestrator.Orchestrator
	extractor *snapshot.Extractor
	planner   schemas.PlanningService
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(logger *zap.Logger, engine *orchestrator.Orchestrator, extractor *snapshot.Extractor, planner schemas.PlanningService) *Handlers {
	return &Handlers{
		log:       logger.Named("server.handlers"),
		engine:    engine,
		extractor: extractor,
		planner:   planner,
	}
}

// HandleHealthCheck is a simple handler to confirm the server is responsive.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleChat exposes the turn-boundary planning contract over HTTP: one
// PlanRequest in, one PlanResponse out. Remote-mode engines point here.
func (h *Handlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req schemas.PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, schemas.ErrCodeBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	resp, err := h.planner.Plan(r.Context(), &req)
	if err != nil {
		var verr *schemas.ValidationError
		if errors.As(err, &verr) {
			h.respondError(w, http.StatusBadRequest, schemas.ErrCodeBadRequest, verr.Error())
			return
		}
		// Already normalized into user-facing text by the planner.
		h.log.Warn("Planning call failed", zap.Error(err))
		h.respondError(w, http.StatusBadGateway, schemas.ErrCodeProviderFailure, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// HandleTurn runs one full orchestrated turn against the hosted document.
func (h *Handlers) HandleTurn(w http.ResponseWriter, r *http.Request) {
	var req schemas.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, schemas.ErrCodeBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	reply, err := h.engine.RunTurn(r.Context(), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrTurnInFlight):
			h.respondError(w, http.StatusConflict, schemas.ErrCodeTurnInFlight, err.Error())
		default:
			var verr *schemas.ValidationError
			if errors.As(err, &verr) {
				h.respondError(w, http.StatusBadRequest, schemas.ErrCodeBadRequest, verr.Error())
				return
			}
			h.log.Error("Turn failed unexpectedly", zap.Error(err))
			h.respondError(w, http.StatusInternalServerError, schemas.ErrCodeInternal, "Internal error running the turn.")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, reply)
}

// HandleSnapshot captures and returns a fresh snapshot of the hosted tree.
func (h *Handlers) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.extractor.Capture())
}

// respondJSON sends a JSON response with the given status code.
func (h *Handlers) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError sends the standardized JSON error envelope.
func (h *Handlers) respondError(w http.ResponseWriter, statusCode int, code schemas.ErrorCode, message string) {
	h.respondJSON(w, statusCode, schemas.ErrorResponse{Code: code, Message: message})
}
