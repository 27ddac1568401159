// File: cmd/docent/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/docent/cmd"
	"github.com/xkilldash9x/docent/internal/observability"
)

// main wires OS signals into the command tree so an interrupt lands as a
// context cancellation everywhere, then maps the outcome to an exit code.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// A signal-driven shutdown is a clean exit.
			os.Exit(0)
		}
		os.Exit(1)
	}
}
