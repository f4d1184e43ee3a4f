package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rbxsync/rbxsync/pkg/config"
	"github.com/rbxsync/rbxsync/pkg/engine"
	"github.com/rbxsync/rbxsync/pkg/provider/roblox"
	"github.com/rbxsync/rbxsync/pkg/state"
)

func newInitCommand() *cobra.Command {
	var (
		fromRemote bool
		universeID int64
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter rbxsync.toml",
		Long: `Write a commented starter config, or bootstrap config and checkpoint from an
existing universe with --from-remote. The remote bootstrap adopts every game
pass, badge, and developer product, downloads their icons, and records remote
ids so the first sync is a no-op.`,
		Example: `  # Write a starter config
  rbxsync init

  # Bootstrap from an existing universe
  rbxsync init --from-remote --universe-id 123456789`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, span := startSpan(cmd.Context(), "init")
			defer span.End()

			if !fromRemote {
				if _, err := os.Stat(configPath); err == nil {
					return fmt.Errorf("%s already exists; remove it first or use a different path with --config", configPath)
				}
				if err := os.WriteFile(configPath, []byte(config.DefaultTemplate), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", configPath, err)
				}
				fmt.Printf("✓ Created %s\n", configPath)
				fmt.Println("Edit the file to configure your universe and resources, then run `rbxsync sync`.")
				return nil
			}

			if universeID <= 0 {
				return engine.NewValidationError("--universe-id is required with --from-remote", nil)
			}
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("%s already exists; remove it first or use a different path with --config", configPath)
			}

			env, log := loadRuntime()
			apiKey, err := resolveAPIKey(env)
			if err != nil {
				return err
			}

			project := &config.Project{
				Experience: config.Experience{
					UniverseID: universeID,
					Creator:    config.Creator{Type: config.CreatorUser, ID: 0},
				},
			}

			client := roblox.NewClient(roblox.Options{
				APIKey:     apiKey,
				UniverseID: universeID,
				Bleed:      true,
				Log:        log,
			})
			detector := engine.DriftDetector{
				Provider: client,
				Content:  contentStore(),
				BaseDir:  configDir(),
				Log:      log,
			}

			fmt.Println("Fetching remote resources...")
			// An empty project and checkpoint adopt everything; accept-remote
			// downloads every icon and fingerprints it.
			report, err := detector.Pull(ctx, project, state.New(universeID), engine.PullOptions{AcceptRemote: true})
			if err != nil {
				return err
			}
			for _, warning := range report.Warnings {
				fmt.Printf("! %s\n", warning)
			}
			for _, dl := range report.Downloads {
				fmt.Printf("  ↓ saved %s %s icon to %s\n", dl.Kind, dl.Key, dl.Path)
			}

			if err := config.Save(project, configPath); err != nil {
				return err
			}
			if err := state.Save(report.Checkpoint, checkpointPath()); err != nil {
				return err
			}

			fmt.Printf("✓ Created %s with %d passes, %d badges, %d products\n",
				configPath, len(project.Passes), len(project.Badges), len(project.Products))
			fmt.Printf("✓ Created %s\n", checkpointPath())
			fmt.Println("Set [experience.creator] to your user or group id before syncing.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromRemote, "from-remote", false, "populate config from existing remote resources")
	cmd.Flags().Int64Var(&universeID, "universe-id", 0, "universe ID (required with --from-remote)")

	return cmd
}
