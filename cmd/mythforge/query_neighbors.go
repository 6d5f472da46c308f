package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func queryNeighborsCmd() *cobra.Command {
	var kind string
	var depth int
	cmd := &cobra.Command{
		Use:   "neighbors <title>",
		Short: "Walk the relationship graph outward from an entity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryNeighbors(args[0], kind, depth)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "character", "Entity kind")
	cmd.Flags().IntVar(&depth, "depth", 1, "Maximum traversal depth")
	return cmd
}

func runQueryNeighbors(title, kind string, depth int) error {
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

	refs, err := db.Neighbors(ctx, entity.ID, entity.Kind, depth)
	if err != nil {
		return err
	}

	for _, ref := range refs {
		indent := strings.Repeat("  ", ref.Depth)
		fmt.Fprintf(os.Stdout, "%s%s (%s)\n", indent, ref.Title, ref.Kind)
	}
	return nil
}
