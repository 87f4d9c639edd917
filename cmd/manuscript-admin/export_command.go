package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"manuscript-workflow-api/services"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var flags listingFlags
	var outDir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a stage listing to an .xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := flags.parsedStage()
			if err != nil {
				return err
			}
			if stage == nil {
				return fmt.Errorf("--stage is required")
			}
			query, err := ctx.queryService()
			if err != nil {
				return err
			}

			export := services.NewExportService(query, ctx.logger)
			buf, name, err := export.ExportListing(cmd.Context(), *stage, flags.parsedYear())
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			path := filepath.Join(outDir, name)
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write workbook: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory to write the workbook into")
	return cmd
}
