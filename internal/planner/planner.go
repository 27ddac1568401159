// internal/planner/planner.go
// Package planner provides the planning-service implementations behind the
// conversation loop: an in-process OpenAI chat-completions client and an HTTP
// forwarder that targets the chat endpoint of a running docent server. Both
// satisfy schemas.PlanningService, so the loop never knows which one it got.
package planner

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/docent/api/schemas"
	"github.com/xkilldash9x/docent/internal/config"
)

// New is a factory function that creates a PlanningService based on the
// configured mode.
func New(cfg config.PlannerConfig, logger *zap.Logger) (schemas.PlanningService, error) {
	switch cfg.Mode {
	case config.ModeOpenAI:
		return NewOpenAI(cfg, logger)
	case config.ModeRemote:
		return NewRemote(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported planner mode configured: '%s'. Supported: [%s, %s]", cfg.Mode, config.ModeOpenAI, config.ModeRemote)
	}
}
