package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func queryTagsCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List tags with usage counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryTags(category)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Tag category filter")
	return cmd
}

func runQueryTags(category string) error {
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

	tags, err := db.ListTags(ctx, category)
	if err != nil {
		return err
	}

	if len(tags) == 0 {
		fmt.Fprintln(os.Stdout, "No tags found.")
		return nil
	}

	for _, tag := range tags {
		fmt.Fprintf(os.Stdout, "%-30s  %-12s  %d\n", tag.Name, tag.Category, tag.UsageCount)
	}
	return nil
}
