package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rbxsync/rbxsync/pkg/config"
	"github.com/rbxsync/rbxsync/pkg/engine"
	"github.com/rbxsync/rbxsync/pkg/state"
)

func newRenameCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <kind> <old-key> <new-key>",
		Short: "Rename a resource key in config and checkpoint",
		Long: `Relocate a resource to a new key in the config and checkpoint. No remote
call is made; when the entry has no explicit display-name override the old key
is kept as one, so the remote-visible name does not change.`,
		Example: `  rbxsync rename passes vip vip_gold`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, span := startSpan(cmd.Context(), "rename")
			defer span.End()

			kind, err := parseKind(args[0])
			if err != nil {
				return engine.NewIdentityError(err.Error())
			}
			oldKey, newKey := args[1], args[2]

			project, err := loadProject()
			if err != nil {
				return err
			}
			cp, err := loadCheckpoint()
			if err != nil {
				return err
			}

			if err := engine.Rename(project, cp, kind, oldKey, newKey); err != nil {
				return err
			}

			if err := config.Save(project, configPath); err != nil {
				return err
			}
			if err := state.Save(cp, checkpointPath()); err != nil {
				return err
			}

			fmt.Printf("✓ Renamed %s %q to %q.\n", kind, oldKey, newKey)
			return nil
		},
	}

	return cmd
}
