package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rahul/herodotus/internal/app"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|dir>...",
	Short: "Add documents to the store searched by the rag unit",
	Long:  "Split text, markdown, html, csv and pdf files into chunks and embed them. Directories are walked recursively.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *app.Service) error {
			n, err := svc.Ingest(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d chunks\n", n)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
