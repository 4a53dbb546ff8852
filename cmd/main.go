// Command tarelay mirrors a tournament server's state and serves it over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Error:"), err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tarelay",
		Short: "Relay and mirror for a tournament server",
		Long: `tarelay keeps an in-memory mirror of a tournament server's state by
consuming its websocket packet stream, re-announces newly created matches,
and serves the mirrored state over a read-only HTTP API.

Configuration is layered: defaults, then the YAML file named by RELAY_CONFIG,
then RELAY_* environment variables (a .env file is loaded first).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		serveCmd(),
		probeCmd(),
		versionCmd(),
	)
	return root
}
