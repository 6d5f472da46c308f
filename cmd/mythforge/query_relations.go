package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func queryRelationsCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "relations <title>",
		Short: "List relationships touching an entity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryRelations(args[0], kind)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "character", "Entity kind")
	return cmd
}

func runQueryRelations(title, kind string) error {
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

	rels, err := db.RelationshipsOf(ctx, entity.ID, entity.Kind)
	if err != nil {
		return err
	}

	if len(rels) == 0 {
		fmt.Fprintf(os.Stdout, "No relationships for %q.\n", entity.Title)
		return nil
	}

	for _, rel := range rels {
		label := rel.Type
		if rel.Subtype != "" {
			label += "/" + rel.Subtype
		}
		fmt.Fprintf(os.Stdout, "%s -[%s %d]-> %s\n", rel.SourceName, label, rel.Strength, rel.TargetName)
	}
	return nil
}
