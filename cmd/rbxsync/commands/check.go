package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rbxsync/rbxsync/pkg/engine"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate config and diff against the checkpoint",
		Long: `Validate the desired-state document (schema and icon paths), then diff it
against the checkpoint without touching the network.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, span := startSpan(cmd.Context(), "check")
			defer span.End()

			project, err := loadProject()
			if err != nil {
				return err
			}
			fmt.Printf("✓ Config is valid (%s)\n", configPath)

			cpPath := checkpointPath()
			if _, err := os.Stat(cpPath); os.IsNotExist(err) {
				fmt.Println("! No checkpoint found. Run `rbxsync sync` to create one.")
				return nil
			}

			cp, err := loadCheckpoint()
			if err != nil {
				return err
			}
			fmt.Printf("✓ Checkpoint is valid (%s)\n", cpPath)

			if cp.UniverseID != project.Experience.UniverseID {
				fmt.Printf("✗ Universe ID mismatch: config=%d, checkpoint=%d\n",
					project.Experience.UniverseID, cp.UniverseID)
			}

			planner := engine.Planner{Content: contentStore(), BaseDir: configDir()}
			plan, err := planner.BuildPlan(project, cp)
			if err != nil {
				return err
			}

			for _, warning := range plan.Warnings {
				fmt.Printf("! %s\n", warning)
			}

			summary := plan.Summary()
			if summary.ToCreate == 0 && summary.ToUpdate == 0 {
				fmt.Println("✓ Everything is in sync.")
				return nil
			}
			fmt.Printf("! Out of sync: %d to create, %d to update. Run `rbxsync sync` for details.\n",
				summary.ToCreate, summary.ToUpdate)
			return nil
		},
	}

	return cmd
}
