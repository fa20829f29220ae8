package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/gridconsole/internal/grid"
)

func newTablesCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List registered tables and their column rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := env.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			tw := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
			headColor.Fprintln(tw, "TABLE\tDISPLAY\tWRITABLE\tPROTECTED")
			for _, name := range app.Registry.Names() {
				s, _ := app.Registry.Lookup(name)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name,
					strings.Join(s.Display, ","),
					strings.Join(s.EffectiveWritable(), ","),
					strings.Join(s.Protected, ","))
			}
			return tw.Flush()
		},
	}
}

func newListCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "list <table>",
		Short: "Print the displayed columns of every row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(cmd, env, func(ctx context.Context, ctrl *grid.Controller) error {
				if err := ctrl.SwitchTable(ctx, args[0]); err != nil {
					return err
				}
				printRows(env.Out, ctrl.Snapshot())
				return nil
			})
		},
	}
}

func printRows(w io.Writer, st grid.State) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	headColor.Fprintln(tw, strings.ToUpper(strings.Join(st.Display, "\t")))
	for _, row := range st.Rows {
		cells := make([]string, len(st.Display))
		for i, col := range st.Display {
			cells[i] = grid.DisplayValue(row[col])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
	fmt.Fprintf(w, "(%d rows)\n", len(st.Rows))
}

func newSetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <table> <identity> <column> <value>",
		Short: "Write one cell",
		Long: `Write one cell. The value is coerced the way the grid does it:
"true"/"false" become booleans, numeric text becomes a number, anything
else is sent as text.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, identity, column, value := args[0], args[1], args[2], args[3]
			return withController(cmd, env, func(ctx context.Context, ctrl *grid.Controller) error {
				if err := ctrl.SwitchTable(ctx, table); err != nil {
					return err
				}
				if err := ctrl.CommitCell(ctx, table, identity, column, value); err != nil {
					return err
				}
				okColor.Fprintf(env.Out, "✓ %s.%s of %s saved\n", table, column, identity)
				return nil
			})
		},
	}
}

func newCreateCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:     "create <table> <column=value>...",
		Short:   "Create a row from column=value pairs",
		Example: "  gridctl create followups subject='Call back' status=open",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return saveRow(cmd, env, args[0], "", args[1:])
		},
	}
}

func newUpdateCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "update <table> <identity> <column=value>...",
		Short: "Update a row from column=value pairs",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return saveRow(cmd, env, args[0], args[1], args[2:])
		},
	}
}

func saveRow(cmd *cobra.Command, env *Env, table, identity string, pairs []string) error {
	fields, err := parseAssignments(pairs)
	if err != nil {
		return err
	}
	return withController(cmd, env, func(ctx context.Context, ctrl *grid.Controller) error {
		if err := ctrl.SwitchTable(ctx, table); err != nil {
			return err
		}
		row, err := ctrl.CreateOrUpdateRow(ctx, table, identity, fields)
		if err != nil {
			return err
		}
		schema, _ := ctrl.Registry().Lookup(table)
		id, _ := schema.IdentityOf(row)
		verb := "updated"
		if identity == "" {
			verb = "created"
		}
		okColor.Fprintf(env.Out, "✓ %s row %s %s\n", table, id, verb)
		return nil
	})
}

// parseAssignments turns column=value arguments into form fields.
func parseAssignments(pairs []string) (map[string]string, error) {
	fields := make(map[string]string, len(pairs))
	for _, p := range pairs {
		col, value, ok := strings.Cut(p, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("expected column=value, got %q", p)
		}
		fields[col] = value
	}
	return fields, nil
}

func newDeleteCmd(env *Env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <table> <identity>",
		Short: "Delete a row after confirmation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, identity := args[0], args[1]
			return withController(cmd, env, func(ctx context.Context, ctrl *grid.Controller) error {
				if err := ctrl.SwitchTable(ctx, table); err != nil {
					return err
				}
				err := ctrl.DeleteRow(ctx, table, identity, grid.ConfirmFunc(func(ctx context.Context, c grid.DeleteConfirmation) (bool, error) {
					if yes {
						return true, nil
					}
					return promptDelete(env, c)
				}))
				if err != nil {
					return err
				}
				okColor.Fprintf(env.Out, "✓ %s row %s deleted\n", table, identity)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// promptDelete shows the deletion warning and accepts only "yes".
func promptDelete(env *Env, c grid.DeleteConfirmation) (bool, error) {
	warnColor.Fprintln(env.Out, c.Prompt)
	fmt.Fprint(env.Out, "Type 'yes' to delete: ")
	answer, err := readLine(env.In)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(answer), "yes"), nil
}

func newAuditCmd(env *Env) *cobra.Command {
	audit := &cobra.Command{
		Use:   "audit",
		Short: "Manage the mutation audit log",
	}

	var days int
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete audit entries older than --days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}
			app, err := env.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.PurgeAudit(cmd.Context(), days)
			if err != nil {
				return err
			}
			okColor.Fprintf(env.Out, "✓ purged %d audit entries\n", n)
			return nil
		},
	}
	purge.Flags().IntVar(&days, "days", 90, "retention window in days")
	audit.AddCommand(purge)
	return audit
}
