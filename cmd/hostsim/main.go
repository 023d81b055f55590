// Command hostsim is a standalone demo of the embedded bridge: it runs the
// same registries, dispatcher, and HTTP front-end a real content-editing
// host would embed, populated with a handful of example tools, resources,
// and prompts standing in for the host's own scene/asset APIs.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcphost/bridge/cmd/hostsim/app"
	"github.com/mcphost/bridge/pkg/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if err := app.NewRootCmd().ExecuteContext(ctx); err != nil {
		logger.Errorf("error executing command: %v", err)
		os.Exit(1)
	}
}
