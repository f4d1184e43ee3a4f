package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rbxsync/rbxsync/pkg/engine"
	"github.com/rbxsync/rbxsync/pkg/telemetry"
)

// listRow is one remote resource in list output. Price doubles as the
// enabled flag for badges.
type listRow struct {
	ID          int64  `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Price       *int64 `json:"price,omitempty" yaml:"price,omitempty"`
	Enabled     *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	ForSale     *bool  `json:"for_sale,omitempty" yaml:"for_sale,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

func newListCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List remote resources",
		Long:  `List the universe's game passes, badges, or developer products as the remote reports them.`,
		Example: `  rbxsync list passes
  rbxsync list badges --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, span := startSpan(cmd.Context(), "list")
			defer span.End()

			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			if format != "table" && format != "json" && format != "yaml" {
				return fmt.Errorf("unknown format %q (expected table, json, or yaml)", format)
			}

			env, log := loadRuntime()
			project, err := loadProject()
			if err != nil {
				return err
			}
			apiKey, err := resolveAPIKey(env)
			if err != nil {
				return err
			}
			client := newClient(project, apiKey, log)
			metrics := telemetry.NewMetrics()

			var rows []listRow
			var title, listOp string
			switch kind {
			case engine.KindPass:
				title, listOp = "Game Passes", "ListPasses"
				passes, err := client.ListPasses(ctx)
				if err != nil {
					metrics.ProviderCalls.WithLabelValues(listOp, "error").Inc()
					return engine.NewProviderError("failed to list passes", false, err)
				}
				for _, p := range passes {
					rows = append(rows, listRow{ID: p.ID, Name: p.Name, Price: p.Price, ForSale: &p.ForSale, Description: p.Description})
				}
			case engine.KindBadge:
				title, listOp = "Badges", "ListBadges"
				badges, err := client.ListBadges(ctx)
				if err != nil {
					metrics.ProviderCalls.WithLabelValues(listOp, "error").Inc()
					return engine.NewProviderError("failed to list badges", false, err)
				}
				for _, b := range badges {
					rows = append(rows, listRow{ID: b.ID, Name: b.Name, Enabled: &b.Enabled, Description: b.Description})
				}
			case engine.KindProduct:
				title, listOp = "Developer Products", "ListProducts"
				products, err := client.ListProducts(ctx)
				if err != nil {
					metrics.ProviderCalls.WithLabelValues(listOp, "error").Inc()
					return engine.NewProviderError("failed to list products", false, err)
				}
				for _, p := range products {
					rows = append(rows, listRow{ID: p.ID, Name: p.Name, Price: p.Price, ForSale: &p.ForSale, Description: p.Description})
				}
			}
			metrics.ProviderCalls.WithLabelValues(listOp, "ok").Inc()
			dumpMetrics(metrics, log)

			switch format {
			case "json":
				out, err := json.MarshalIndent(rows, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
			case "yaml":
				out, err := yaml.Marshal(rows)
				if err != nil {
					return err
				}
				fmt.Print(string(out))
			default:
				printListTable(title, kind, rows)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format (table, json, yaml)")

	return cmd
}

func printListTable(title string, kind engine.Kind, rows []listRow) {
	fmt.Println(title)
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	if kind == engine.KindBadge {
		fmt.Fprintln(w, "ID\tNAME\tENABLED\tDESCRIPTION")
		for _, r := range rows {
			enabled := "-"
			if r.Enabled != nil {
				if *r.Enabled {
					enabled = "yes"
				} else {
					enabled = "no"
				}
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Name, enabled, r.Description)
		}
	} else {
		fmt.Fprintln(w, "ID\tNAME\tPRICE\tDESCRIPTION")
		for _, r := range rows {
			price := "free"
			if r.Price != nil {
				price = fmt.Sprintf("R$%d", *r.Price)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Name, price, r.Description)
		}
	}
	w.Flush()
	fmt.Printf("\nTotal: %d\n", len(rows))
}
