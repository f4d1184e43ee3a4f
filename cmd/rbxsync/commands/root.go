// Package commands implements the rbxsync CLI.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rbxsync/rbxsync/pkg/telemetry"
)

var (
	// Global flags
	configPath  string
	apiKeyFlag  string
	verbose     bool
	traceSpans  bool
	metricsFile string
	noHistory   bool

	tracer *telemetry.Tracer
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit string) error {
	rootCmd := newRootCommand(version, commit)
	err := rootCmd.ExecuteContext(ctx)
	if tracer != nil {
		_ = tracer.Shutdown(context.Background())
	}
	return err
}

func newRootCommand(version, commit string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rbxsync",
		Short: "Declaratively manage Roblox game passes, badges, and developer products",
		Long: `rbxsync reconciles a local TOML description of game passes, badges, and
developer products against a Roblox universe.

The desired state lives in rbxsync.toml; the last applied state is tracked in
rbxsync.lock.toml next to it. Resources are created and updated, never
deleted: entries removed from the config only produce warnings.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !traceSpans || tracer != nil {
				return nil
			}
			t, err := telemetry.NewTracer(os.Stderr, version)
			if err != nil {
				return err
			}
			tracer = t
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "rbxsync.toml", "config file path")
	rootCmd.PersistentFlags().StringVar(&apiKeyFlag, "api-key", "", "Roblox Open Cloud API key (or RBXSYNC_API_KEY)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&traceSpans, "trace", false, "emit OpenTelemetry spans to stderr")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
	rootCmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "do not record this run in the local history database")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newSyncCommand())
	rootCmd.AddCommand(newPullCommand())
	rootCmd.AddCommand(newRenameCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newCodegenCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
