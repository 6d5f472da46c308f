package main

import "github.com/spf13/cobra"

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the content store from the CLI",
	}
	cmd.AddCommand(queryEntityCmd())
	cmd.AddCommand(queryRelationsCmd())
	cmd.AddCommand(queryNeighborsCmd())
	cmd.AddCommand(queryListCmd())
	cmd.AddCommand(queryTagsCmd())
	cmd.AddCommand(querySearchCmd())
	return cmd
}
