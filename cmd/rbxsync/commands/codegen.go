package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCodegenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codegen",
		Short: "Regenerate the asset-id source module",
		Long: `Generate the Luau module (and optional TypeScript declarations) mapping
resource keys to remote ids, from the checkpoint and config. Runs
automatically after a successful sync; this command regenerates on demand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, span := startSpan(cmd.Context(), "codegen")
			defer span.End()

			project, err := loadProject()
			if err != nil {
				return err
			}
			if project.Codegen.Output == "" {
				fmt.Println("! No [codegen] output configured, nothing to generate.")
				return nil
			}
			cp, err := loadCheckpoint()
			if err != nil {
				return err
			}
			return runCodegen(project, cp)
		},
	}

	return cmd
}
