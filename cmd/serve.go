// File: cmd/serve.go
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/docent/internal/observability"
	"github.com/xkilldash9x/docent/internal/server"
)

// newServeCmd creates the `serve` command: load the page, build the engine,
// and expose the HTTP API until the process is signaled.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Host the configured page and serve the assistant HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(cmd)
			if err != nil {
				return err
			}

			comps, err := buildComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Stop()

			srv, err := server.New(cfg.Server, logger, comps.Engine, comps.Extractor, comps.Planner)
			if err != nil {
				return err
			}

			logger.Info("Starting docent server",
				zap.String("addr", cfg.Server.Addr()),
				zap.String("page", pageLabel(cfg)),
				zap.String("planner_mode", string(cfg.Planner.Mode)))

			return srv.Start(ctx)
		},
	}

	serveCmd.Flags().String("page", "", "HTML file to host. (Overrides config/env)")
	serveCmd.Flags().String("host", "", "Listen host. (Overrides config/env)")
	serveCmd.Flags().IntP("port", "p", 0, "Listen port. (Overrides config/env)")

	return serveCmd
}
