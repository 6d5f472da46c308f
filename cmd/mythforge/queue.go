package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the import queue",
	}
	cmd.AddCommand(queueListCmd())
	cmd.AddCommand(queueShowCmd())
	cmd.AddCommand(queueArchiveCmd())
	return cmd
}

func queueListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueList(status)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	return cmd
}

func runQueueList(status string) error {
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

	items, err := db.ListQueueItems(ctx, status)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		fmt.Fprintln(os.Stdout, "Queue is empty.")
		return nil
	}

	for _, item := range items {
		fmt.Fprintf(os.Stdout, "%6d  %-10s  %s\n", item.ID, item.Status, item.FilePath)
		if item.ErrorMessage != "" {
			fmt.Fprintf(os.Stdout, "        error: %s\n", item.ErrorMessage)
		}
	}
	return nil
}

func queueShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Display one queue item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			return runQueueShow(id)
		},
	}
}

func runQueueShow(id int64) error {
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

	item, err := db.GetQueueItem(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "ID:       %d\n", item.ID)
	fmt.Fprintf(os.Stdout, "File:     %s\n", item.FilePath)
	fmt.Fprintf(os.Stdout, "Status:   %s\n", item.Status)
	fmt.Fprintf(os.Stdout, "Hash:     %s\n", item.SourceHash)
	fmt.Fprintf(os.Stdout, "Created:  %s\n", item.CreatedAt.Format("2006-01-02 15:04:05"))
	if item.ProcessedAt != nil {
		fmt.Fprintf(os.Stdout, "Claimed:  %s\n", item.ProcessedAt.Format("2006-01-02 15:04:05"))
	}
	if item.CompletedAt != nil {
		fmt.Fprintf(os.Stdout, "Finished: %s\n", item.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if item.ErrorMessage != "" {
		fmt.Fprintf(os.Stdout, "Error:    %s\n", item.ErrorMessage)
	}
	return nil
}

func queueArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a completed or failed queue item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			return runQueueArchive(id)
		},
	}
}

func runQueueArchive(id int64) error {
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

	if err := db.Archive(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Archived item %d.\n", id)
	return nil
}
