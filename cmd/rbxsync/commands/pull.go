package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rbxsync/rbxsync/pkg/config"
	"github.com/rbxsync/rbxsync/pkg/engine"
	"github.com/rbxsync/rbxsync/pkg/history"
	"github.com/rbxsync/rbxsync/pkg/state"
	"github.com/rbxsync/rbxsync/pkg/telemetry"
)

func newPullCommand() *cobra.Command {
	var (
		dryRun       bool
		acceptRemote bool
		acceptLocal  bool
	)

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Pull remote state into config and checkpoint",
		Long: `Fetch live remote state and merge it three ways with the checkpoint and the
local config. Remote-visible fields flow into the config; icon paths, codegen
placement, and regional pricing are preserved.

Icon content changed on both sides is a conflict: the pull fails atomically
and reports every conflict. Resolve with --accept-remote (download remote
icons) or --accept-local (re-upload local icons on the next sync).`,
		Example: `  # Show remote drift without writing anything
  rbxsync pull --dry-run

  # Pull, keeping remote icons
  rbxsync pull --accept-remote`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, span := startSpan(cmd.Context(), "pull")
			defer span.End()

			start := time.Now()
			env, log := loadRuntime()

			project, err := loadProject()
			if err != nil {
				return err
			}
			cp, err := loadCheckpoint()
			if err != nil {
				return err
			}

			apiKey, err := resolveAPIKey(env)
			if err != nil {
				return err
			}

			var hist *history.Store
			var runID string
			if !dryRun {
				if hist = openHistoryStore(ctx, log); hist != nil {
					defer hist.Close()
					if run, err := hist.BeginRun(ctx, "pull", project.Experience.UniverseID); err != nil {
						log.Warn().Err(err).Msg("failed to record run start")
						hist = nil
					} else {
						runID = run.ID
					}
				}
			}

			detector := engine.DriftDetector{
				Provider: newClient(project, apiKey, log),
				Content:  contentStore(),
				BaseDir:  configDir(),
				Log:      log,
			}
			report, pullErr := detector.Pull(ctx, project, cp, engine.PullOptions{
				AcceptRemote: acceptRemote,
				AcceptLocal:  acceptLocal,
				DryRun:       dryRun,
			})

			metrics := telemetry.NewMetrics()
			metrics.RunDuration.WithLabelValues("pull").Observe(time.Since(start).Seconds())
			dumpMetrics(metrics, log)

			if pullErr != nil {
				finishRun(ctx, hist, log, runID, pullErr, history.RunSummary{})
				if conflict, ok := engine.AsConflict(pullErr); ok {
					for _, c := range conflict.Conflicts {
						fmt.Printf("✗ %s %q: local icon %s differs from remote asset %s\n",
							c.Kind, c.Key, c.LocalPath, c.RemoteAssetID)
					}
				}
				return pullErr
			}

			printPullReport(report)

			if dryRun {
				if report.HasDiff() {
					fmt.Println("\nDry run — nothing written. Run `rbxsync pull` to apply.")
				}
				return nil
			}

			if err := config.Save(project, configPath); err != nil {
				finishRun(ctx, hist, log, runID, err, history.RunSummary{})
				return err
			}
			if err := state.Save(report.Checkpoint, checkpointPath()); err != nil {
				finishRun(ctx, hist, log, runID, err, history.RunSummary{})
				return err
			}

			finishRun(ctx, hist, log, runID, nil, history.RunSummary{Warnings: len(report.Warnings)})
			fmt.Printf("✓ Pulled remote state into %s and %s.\n", configPath, checkpointPath())
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report remote drift without writing anything")
	cmd.Flags().BoolVar(&acceptRemote, "accept-remote", false, "resolve icon conflicts by downloading remote icons")
	cmd.Flags().BoolVar(&acceptLocal, "accept-local", false, "resolve icon conflicts by re-uploading local icons on next sync")
	cmd.MarkFlagsMutuallyExclusive("accept-remote", "accept-local")

	return cmd
}

func printPullReport(report *engine.PullReport) {
	for _, warning := range report.Warnings {
		fmt.Printf("! %s\n", warning)
	}

	if !report.HasDiff() {
		fmt.Println("✓ Local state matches remote.")
		return
	}

	for _, diff := range report.Diffs {
		switch {
		case diff.New:
			fmt.Printf("  + new %s %s (id %d)\n", diff.Kind, diff.Key, diff.RemoteID)
		case diff.Removed:
			fmt.Printf("  - removed %s %s (id %d, not deleted locally)\n", diff.Kind, diff.Key, diff.RemoteID)
		default:
			fmt.Printf("  ~ changed %s %s (id %d)\n", diff.Kind, diff.Key, diff.RemoteID)
			for _, change := range diff.Changes {
				fmt.Printf("    · %s\n", change)
			}
		}
	}

	for _, change := range report.ConfigChanges {
		if change.New {
			fmt.Printf("  + config: adopted %s %s\n", change.Kind, change.Key)
			continue
		}
		fmt.Printf("  ~ config: updated %s %s\n", change.Kind, change.Key)
		for _, field := range change.Changes {
			fmt.Printf("    · %s\n", field)
		}
	}

	for _, dl := range report.Downloads {
		fmt.Printf("  ↓ downloaded %s %s icon to %s\n", dl.Kind, dl.Key, dl.Path)
	}
}
