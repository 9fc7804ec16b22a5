package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	remoteURL string
	timeout   time.Duration
	verbose   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "vishctl",
		Short:         "Inspect Vish persona routing, risk assessment and retrieval",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			_ = godotenv.Load()
			if !cmd.Flags().Changed("remote") {
				if v := os.Getenv("MCP_SERVER_URL"); v != "" {
					opts.remoteURL = v
				}
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.remoteURL, "remote", "http://localhost:3001", "knowledge service base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "timeout for remote calls")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline decisions to stderr")

	root.AddCommand(
		newAssessCmd(opts),
		newRouteCmd(opts),
		newRetrieveCmd(opts),
		newToolsCmd(opts),
		newHealthCmd(opts),
	)
	return root
}

// logger writes to stderr when verbose, and nowhere otherwise.
func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	if !o.verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
