// File: cmd/chat.go
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/docent/api/schemas"
	"github.com/xkilldash9x/docent/internal/observability"
)

// consoleSink mirrors the flow timeline onto the terminal while a turn runs.
// The final reply is printed by the chat loop itself, so ReplyReady stays
// silent to avoid doubling it.
type consoleSink struct {
	out io.Writer
}

func (s consoleSink) FlowUpdated(entry schemas.FlowEntry) {
	fmt.Fprintf(s.out, "  [%s] %s\n", entry.Status, entry.Label)
}

func (s consoleSink) ReplyReady(string) {}

// newChatCmd creates the `chat` command: an interactive terminal loop running
// turns against the hosted page through the same engine the server uses.
func newChatCmd() *cobra.Command {
	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant about the hosted page from the terminal",
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

			out := cmd.OutOrStdout()
			comps.Engine.AddSink(consoleSink{out: out})

			logger.Info("Starting interactive chat",
				zap.String("page", pageLabel(cfg)),
				zap.String("planner_mode", string(cfg.Planner.Mode)))

			fmt.Fprintf(out, "docent is hosting: %s\n", pageLabel(cfg))
			fmt.Fprintf(out, "Ask about the page or tell me where to go. Type \"exit\" to quit.\n\n")

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for ctx.Err() == nil {
				fmt.Fprint(out, "you > ")
				if !scanner.Scan() {
					break
				}

				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					break
				}

				reply, err := comps.Engine.RunTurn(ctx, line)
				if err != nil {
					fmt.Fprintf(out, "error: %v\n\n", err)
					continue
				}
				fmt.Fprintf(out, "docent > %s\n\n", reply.Reply)
			}

			if err := scanner.Err(); err != nil {
				return fmt.Errorf("error reading input: %w", err)
			}
			fmt.Fprintln(out, "Bye.")
			return nil
		},
	}

	chatCmd.Flags().String("page", "", "HTML file to host. (Overrides config/env)")

	return chatCmd
}
