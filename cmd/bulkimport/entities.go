package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ledgerimport/internal/commands"
	"github.com/JonMunkholm/ledgerimport/internal/core"
	"github.com/JonMunkholm/ledgerimport/internal/core/entities"
)

// layoutRegistry builds a registry for describing layouts; its executor is
// never called.
func layoutRegistry() *core.Registry {
	return entities.NewRegistry(core.NewDispatcher(commands.NewDryRunExecutor(nil)))
}

func newEntitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List importable entity types and their sheet layouts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENTITY\tSHEET\tCOLUMNS")
			for _, l := range layoutRegistry().Layouts() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Entity, l.Sheet, strings.Join(l.Columns, ", "))
			}
			return tw.Flush()
		},
	}
}

func newTemplateCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "template ENTITY",
		Short: "Write an empty workbook with the entity's columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := core.ParseEntityType(args[0])
			if err != nil {
				return err
			}
			h, err := layoutRegistry().Lookup(entity)
			if err != nil {
				return err
			}
			data, err := core.Template(h.Layout())
			if err != nil {
				return err
			}
			if out == "" {
				out = string(entity) + ".xlsx"
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write template: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: ENTITY.xlsx)")
	return cmd
}
