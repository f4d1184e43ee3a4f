package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rbxsync/rbxsync/pkg/history"
)

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recent sync and pull runs",
		Long: `List runs recorded in the local history database, newest first. With a
run id, show the actions applied during that run.`,
		Example: `  rbxsync history
  rbxsync history --limit 50
  rbxsync history 2f1a9c3e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, span := startSpan(cmd.Context(), "history")
			defer span.End()

			path := filepath.Join(configDir(), historyFileName)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Println("No history recorded yet.")
				return nil
			}

			store, err := history.Open(ctx, path)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				return printRunEvents(cmd, store, args[0])
			}

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No history recorded yet.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCOMMAND\tSTATUS\tSTARTED\tCREATED\tUPDATED\tSKIPPED")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
					run.ID, run.Command, run.Status,
					run.StartedAt.Local().Format(time.DateTime),
					run.Created, run.Updated, run.Skipped)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")

	return cmd
}

func printRunEvents(cmd *cobra.Command, store *history.Store, runID string) error {
	ctx := cmd.Context()

	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s: %s, %s, started %s\n", run.ID, run.Command, run.Status,
		run.StartedAt.Local().Format(time.DateTime))
	if run.Error != nil {
		fmt.Printf("Error: %s\n", *run.Error)
	}

	events, err := store.ListEvents(ctx, runID)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No actions applied.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACTION\tKIND\tKEY\tREMOTE ID")
	for _, event := range events {
		remoteID := "-"
		if event.RemoteID != nil {
			remoteID = fmt.Sprintf("%d", *event.RemoteID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", event.Action, event.Kind, event.Key, remoteID)
	}
	w.Flush()
	return nil
}
