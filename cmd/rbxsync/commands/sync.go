package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rbxsync/rbxsync/pkg/engine"
	"github.com/rbxsync/rbxsync/pkg/history"
	"github.com/rbxsync/rbxsync/pkg/state"
	"github.com/rbxsync/rbxsync/pkg/telemetry"
)

func newSyncCommand() *cobra.Command {
	var (
		dryRun    bool
		only      []string
		badgeCost int64
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile local config with Roblox",
		Long: `Diff the desired state against the checkpoint and apply the differences.

Resources are created or updated strictly in order: passes, then badges, then
products, keys sorted within each kind. The checkpoint is rewritten after
every successful remote mutation, so an interrupted run loses at most the
action that failed. Nothing is ever deleted remotely.`,
		Example: `  # Show what would change
  rbxsync sync --dry-run

  # Sync only passes and products
  rbxsync sync --only passes,products

  # Create badges with an expected Robux cost
  rbxsync sync --badge-cost 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, span := startSpan(cmd.Context(), "sync")
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
			cp.UniverseID = project.Experience.UniverseID
			cp.Version = state.SchemaVersion

			planner := engine.Planner{Content: contentStore(), BaseDir: configDir()}
			plan, err := planner.BuildPlan(project, cp)
			if err != nil {
				return err
			}

			for _, warning := range plan.Warnings {
				fmt.Printf("! %s\n", warning)
			}

			if !plan.HasChanges() {
				fmt.Println("✓ Everything is up to date.")
				return runCodegen(project, cp)
			}

			if err := filterPlan(plan, only); err != nil {
				return err
			}

			for _, kind := range engine.Kinds() {
				for _, action := range plan.ActionsFor(kind) {
					printPlanAction(kind, action)
				}
			}
			fmt.Printf("\n%s\n", plan.Summary())

			if dryRun {
				fmt.Println("\nDry run — no changes applied.")
				return nil
			}

			apiKey, err := resolveAPIKey(env)
			if err != nil {
				return err
			}

			metrics := telemetry.NewMetrics()
			cpPath := checkpointPath()
			sink := engine.CheckpointSinkFunc(func(cp *state.Checkpoint) error {
				metrics.CheckpointWrites.Inc()
				return state.Save(cp, cpPath)
			})

			hist := openHistoryStore(ctx, log)
			var runID string
			if hist != nil {
				defer hist.Close()
				if run, err := hist.BeginRun(ctx, "sync", project.Experience.UniverseID); err != nil {
					log.Warn().Err(err).Msg("failed to record run start")
					hist = nil
				} else {
					runID = run.ID
				}
			}

			reconciler := engine.Reconciler{
				Provider:  newClient(project, apiKey, log),
				Sink:      sink,
				Content:   contentStore(),
				BaseDir:   configDir(),
				BadgeCost: badgeCost,
				Log:       log,
			}
			result, applyErr := reconciler.Apply(ctx, plan, project, cp)

			for _, applied := range result.Applied {
				metrics.SyncActions.WithLabelValues(string(applied.Kind), string(applied.Action)).Inc()
				if hist != nil {
					id := applied.RemoteID
					if err := hist.RecordEvent(ctx, runID, string(applied.Kind), applied.Key, string(applied.Action), &id); err != nil {
						log.Warn().Err(err).Msg("failed to record event")
					}
				}
			}
			finishRun(ctx, hist, log, runID, applyErr, history.RunSummary{
				Created:  result.Created,
				Updated:  result.Updated,
				Skipped:  result.Skipped,
				Warnings: len(plan.Warnings),
			})

			metrics.RunDuration.WithLabelValues("sync").Observe(time.Since(start).Seconds())
			dumpMetrics(metrics, log)

			if applyErr != nil {
				if msg := committedSummary(result); msg != "" {
					fmt.Println(msg)
				}
				return applyErr
			}

			fmt.Printf("✓ Sync complete: %d created, %d updated, %d unchanged.\n",
				result.Created, result.Updated, result.Skipped)
			return runCodegen(project, cp)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would change without applying")
	cmd.Flags().StringSliceVar(&only, "only", nil, "limit sync to resource kinds (passes, badges, products)")
	cmd.Flags().Int64Var(&badgeCost, "badge-cost", 0, "expected Robux cost when creating a badge")

	return cmd
}

// committedSummary accounts for partial progress when a run aborts: every
// listed action was applied remotely and is already durable in the checkpoint.
func committedSummary(result *engine.ApplyResult) string {
	if result == nil || len(result.Applied) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "! %d action(s) committed before the failure:", len(result.Applied))
	for _, applied := range result.Applied {
		fmt.Fprintf(&b, "\n  ✓ %s %s %q (id %d)", applied.Action, applied.Kind, applied.Key, applied.RemoteID)
	}
	return b.String()
}

// filterPlan drops kinds not named in only. An empty filter keeps everything.
func filterPlan(plan *engine.SyncPlan, only []string) error {
	if len(only) == 0 {
		return nil
	}

	keep := map[engine.Kind]bool{}
	for _, arg := range only {
		kind, err := parseKind(arg)
		if err != nil {
			return engine.NewValidationError("invalid --only value", err)
		}
		keep[kind] = true
	}

	if !keep[engine.KindPass] {
		plan.Passes = nil
	}
	if !keep[engine.KindBadge] {
		plan.Badges = nil
	}
	if !keep[engine.KindProduct] {
		plan.Products = nil
	}
	return nil
}
