// File: cmd/engine.go
package cmd

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/docent/api/schemas"
	"github.com/xkilldash9x/docent/internal/config"
	"github.com/xkilldash9x/docent/internal/dom"
	"github.com/xkilldash9x/docent/internal/executor"
	"github.com/xkilldash9x/docent/internal/orchestrator"
	"github.com/xkilldash9x/docent/internal/planner"
	"github.com/xkilldash9x/docent/internal/resolve"
	"github.com/xkilldash9x/docent/internal/snapshot"
)

// demoPage ships inside the binary so serve and chat work with zero setup.
//
//go:embed demo_page.html
var demoPage string

// components is the assembled engine around one hosted document.
type components struct {
	Doc       *dom.Document
	Extractor *snapshot.Extractor
	Registry  *executor.Registry
	Engine    *orchestrator.Orchestrator
	Planner   schemas.PlanningService
}

// Stop releases background resources, currently the pending highlight timers.
func (c *components) Stop() {
	if c.Registry != nil {
		c.Registry.Stop()
	}
}

// buildComponents loads the configured page and wires the full engine around
// it: document host, resolver, executor, snapshot extractor, planning client
// and the conversation loop. An unconfigured openai-mode planner fails here
// with its user-facing message, before anything starts serving.
func buildComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	opts := dom.Options{
		URL:            cfg.Page.URL,
		ViewportWidth:  float64(cfg.Engine.ViewportWidth),
		ViewportHeight: float64(cfg.Engine.ViewportHeight),
		ControlSurface: cfg.Page.ControlSurface,
	}

	var (
		doc *dom.Document
		err error
	)
	if cfg.Page.Path != "" {
		doc, err = dom.LoadFile(cfg.Page.Path, opts, logger)
	} else {
		doc, err = dom.Load(strings.NewReader(demoPage), opts, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}

	planSvc, err := planner.New(cfg.Planner, logger)
	if err != nil {
		return nil, err
	}

	highlightTTL := time.Duration(cfg.Engine.HighlightMs) * time.Millisecond
	registry := executor.NewRegistry(doc, resolve.NewResolver(doc, logger), executor.NewHighlighter(doc, highlightTTL), logger)
	extractor := snapshot.NewExtractor(doc, logger)

	engine, err := orchestrator.New(cfg.Engine, logger, extractor, registry, planSvc)
	if err != nil {
		registry.Stop()
		return nil, err
	}

	return &components{
		Doc:       doc,
		Extractor: extractor,
		Registry:  registry,
		Engine:    engine,
		Planner:   planSvc,
	}, nil
}

// pageLabel names the hosted page for banners and logs.
func pageLabel(cfg *config.Config) string {
	if cfg.Page.Path != "" {
		return cfg.Page.Path
	}
	return "embedded demo page"
}
