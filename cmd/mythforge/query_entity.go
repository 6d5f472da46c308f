package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

func queryEntityCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "entity <title>",
		Short: "Display an entity and its attributes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryEntity(args[0], kind)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "character", "Entity kind")
	return cmd
}

func runQueryEntity(title, kind string) error {
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

	entity, err := db.FindEntity(ctx, kind, title)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Title:  %s\n", entity.Title)
	fmt.Fprintf(os.Stdout, "Kind:   %s\n", entity.Kind)
	fmt.Fprintf(os.Stdout, "Status: %s\n", entity.Status)

	tags, err := db.TagsFor(ctx, entity.ID, entity.Kind)
	if err != nil {
		return err
	}
	if len(tags) > 0 {
		fmt.Fprintln(os.Stdout, "Tags:")
		for _, tag := range tags {
			fmt.Fprintf(os.Stdout, "  %s (%s, %.2f)\n", tag.Name, tag.Category, tag.Relevance)
		}
	}

	if len(entity.Attrs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(entity.Attrs))
	for key := range entity.Attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Fprintln(os.Stdout, "Attributes:")
	for _, key := range keys {
		fmt.Fprintf(os.Stdout, "  %s: %v\n", key, entity.Attrs[key])
	}
	return nil
}
