package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ledgerimport/internal/commands"
	"github.com/JonMunkholm/ledgerimport/internal/config"
	"github.com/JonMunkholm/ledgerimport/internal/core"
	"github.com/JonMunkholm/ledgerimport/internal/core/entities"
	"github.com/JonMunkholm/ledgerimport/internal/logging"
	"github.com/JonMunkholm/ledgerimport/internal/store"
)

type runOptions struct {
	file        string
	entity      string
	locale      string
	dateFormat  string
	attributes  map[string]string
	out         string
	databaseURL string
	strict      bool
	logLevel    string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Import one workbook and write the annotated copy",
		Long: `Run imports every row of FILE whose status cell is empty and writes the
workbook back with each row's outcome in its status column.

Without --database-url commands are only logged (dry run).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.file = args[0]
			return runImport(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.entity, "entity", "e", "", "Entity type (required, see the entities command)")
	cmd.Flags().StringVar(&opts.locale, "locale", "en", "Locale of numbers and month names")
	cmd.Flags().StringVar(&opts.dateFormat, "date-format", "dd MMMM yyyy", "Date pattern of text dates")
	cmd.Flags().StringToStringVar(&opts.attributes, "attr", nil, "Job attribute key=value, e.g. legalForm=entity")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Annotated output file (default: FILE with .imported.xlsx)")
	cmd.Flags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres URL; commands go to the journal")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit non-zero when any row fails")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	_ = cmd.MarkFlagRequired("entity")

	return cmd
}

func runImport(ctx context.Context, opts runOptions, stdout, stderr io.Writer) error {
	logger := logging.NewWithWriters(stderr, "text", nil, opts.logLevel)

	data, err := os.ReadFile(opts.file)
	if err != nil {
		return fmt.Errorf("read workbook: %w", err)
	}

	var exec core.CommandExecutor = commands.NewDryRunExecutor(logger)
	if opts.databaseURL != "" {
		pool, err := store.Connect(ctx, config.DatabaseConfig{URL: opts.databaseURL, MaxConns: 4})
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := store.Migrate(ctx, pool); err != nil {
			return err
		}
		exec = commands.NewPostgresExecutor(pool)
	}

	mem := store.NewMemory()
	svc := core.NewService(mem, mem.Documents(), entities.NewRegistry(core.NewDispatcher(exec)))

	job, err := svc.Submit(ctx, core.SubmitRequest{
		FileName:   filepath.Base(opts.file),
		EntityType: opts.entity,
		Locale:     opts.locale,
		DateFormat: opts.dateFormat,
		Attributes: opts.attributes,
		Data:       data,
	})
	if err != nil {
		return err
	}
	// Once started the run finishes, so every attempted row is annotated.
	outcome, err := svc.RunImport(context.WithoutCancel(ctx), job.ID)
	if err != nil {
		return err
	}
	_, annotated, err := svc.Document(ctx, job.ID)
	if err != nil {
		return err
	}

	out := opts.out
	if out == "" {
		out = strings.TrimSuffix(opts.file, filepath.Ext(opts.file)) + ".imported.xlsx"
	}
	if err := os.WriteFile(out, annotated, 0o644); err != nil {
		return fmt.Errorf("write annotated workbook: %w", err)
	}

	fmt.Fprintf(stdout, "%s: %d imported, %d failed, written to %s\n",
		job.EntityType, outcome.SuccessCount, outcome.ErrorCount, out)
	if fails := outcome.Failures(); len(fails) > 0 {
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ROW\tERROR")
		for _, f := range fails {
			fmt.Fprintf(tw, "%d\t%s\n", f.RowIndex+1, f.Message)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if opts.strict && outcome.ErrorCount > 0 {
		return fmt.Errorf("%d rows failed", outcome.ErrorCount)
	}
	return nil
}
