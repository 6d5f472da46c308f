package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mythforge/internal/pipeline"
)

var ingestFull bool

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Scan content directories and queue changed files for import",
		RunE:  runIngest,
	}
	cmd.Flags().BoolVar(&ingestFull, "full", false, "Queue every file (ignore incremental hashes)")
	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, schema, err := loadProject()
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg, schema)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	result, err := pipeline.Scan(ctx, cfg, db, pipeline.ScanOptions{Full: ingestFull})
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "Scan complete.")
	fmt.Fprintf(os.Stdout, "  Files queued:  %d\n", result.Queued)
	fmt.Fprintf(os.Stdout, "  Files skipped: %d\n", result.Skipped)

	if len(result.Errors) > 0 {
		fmt.Fprintf(os.Stdout, "\nErrors (%d):\n", len(result.Errors))
		for _, item := range result.Errors {
			fmt.Fprintf(os.Stdout, "  - %v\n", item)
		}
		return fmt.Errorf("scan completed with errors")
	}

	return nil
}
