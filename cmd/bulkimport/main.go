// Command bulkimport runs spreadsheet imports from the command line,
// without the HTTP server or a queue.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bulkimport",
		Short:         "Import core banking records from Excel workbooks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newEntitiesCmd(), newTemplateCmd(), newRunCmd())
	return cmd
}
