package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func querySearchCmd() *cobra.Command {
	var facetFlags []string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuerySearch(strings.Join(args, " "), facetFlags)
		},
	}
	cmd.Flags().StringArrayVar(&facetFlags, "facet", nil, "Facet filter as key=value (repeatable)")
	return cmd
}

func runQuerySearch(query string, facetFlags []string) error {
	ctx := context.Background()

	facets := map[string]string{}
	for _, flag := range facetFlags {
		key, value, ok := strings.Cut(flag, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid facet %q, expected key=value", flag)
		}
		facets[key] = value
	}

	cfg, schema, err := loadProject()
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg, schema)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	results, err := db.Search(ctx, query, facets)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Fprintln(os.Stdout, "No results.")
		return nil
	}

	for _, result := range results {
		fmt.Fprintf(os.Stdout, "%5.1f  %-10s  %s\n", result.Score, result.ContentKind, result.Title)
	}
	return nil
}
