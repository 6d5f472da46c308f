package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func queryListCmd() *cobra.Command {
	var kind, status, tag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entities with optional filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryList(kind, status, tag)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Entity kind filter")
	cmd.Flags().StringVar(&status, "status", "", "Status filter")
	cmd.Flags().StringVar(&tag, "tag", "", "Tag filter")
	return cmd
}

func runQueryList(kind, status, tag string) error {
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

	items, err := db.ListEntities(ctx, kind, status, tag)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		fmt.Fprintln(os.Stdout, "No entities found.")
		return nil
	}

	for _, item := range items {
		fmt.Fprintf(os.Stdout, "%6d  %-10s  %-10s  %s\n", item.ID, item.Kind, item.Status, item.Title)
	}
	return nil
}
