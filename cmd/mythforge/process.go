package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mythforge/internal/pipeline"
)

func processCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Import pending queue items into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(workers)
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker count (default from config)")
	return cmd
}

func runProcess(workers int) error {
	ctx := context.Background()

	cfg, schema, err := loadProject()
	if err != nil {
		return err
	}
	if workers == 0 {
		workers = cfg.Pipeline.Workers
	}

	db, err := openDB(ctx, cfg, schema)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	result, err := pipeline.Process(ctx, schema, db, workers)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "Processing complete.")
	fmt.Fprintf(os.Stdout, "  Imported: %d\n", result.Imported)
	fmt.Fprintf(os.Stdout, "  Failed:   %d\n", result.Failed)
	fmt.Fprintf(os.Stdout, "  Skipped:  %d\n", result.Skipped)

	if len(result.Errors) > 0 {
		fmt.Fprintf(os.Stdout, "\nErrors (%d):\n", len(result.Errors))
		for _, item := range result.Errors {
			fmt.Fprintf(os.Stdout, "  - %v\n", item)
		}
	}

	return nil
}
