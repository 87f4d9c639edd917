package main

import (
	"fmt"
	"iter"

	"github.com/spf13/cobra"

	"manuscript-workflow-api/models"
)

type listingFlags struct {
	stage string
	year  int
	limit int
}

func (f *listingFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.stage, "stage", "", "Stage to list (e.g. \"Pre-Review\", published)")
	cmd.Flags().IntVar(&f.year, "year", 0, "Only include manuscripts from this year")
	cmd.Flags().IntVar(&f.limit, "limit", 50, "Maximum number of rows to print (0 for all)")
}

func (f *listingFlags) parsedStage() (*models.Stage, error) {
	if f.stage == "" {
		return nil, nil
	}
	stage, err := models.ParseStage(f.stage)
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

func (f *listingFlags) parsedYear() *int {
	if f.year <= 0 {
		return nil
	}
	year := f.year
	return &year
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var flags listingFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List manuscripts in a stage",
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
			return printListing(cmd, query.ListByStage(cmd.Context(), *stage, flags.parsedYear()), flags.limit)
		},
	}
	flags.register(cmd)
	return cmd
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var flags listingFlags
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search manuscripts by title, scope, file code or author",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := flags.parsedStage()
			if err != nil {
				return err
			}
			query, err := ctx.queryService()
			if err != nil {
				return err
			}
			return printListing(cmd, query.Search(cmd.Context(), args[0], stage, flags.parsedYear()), flags.limit)
		},
	}
	flags.register(cmd)
	return cmd
}

func printListing(cmd *cobra.Command, seq iter.Seq2[models.ManuscriptSummary, error], limit int) error {
	var rows []models.ManuscriptSummary
	for row, err := range seq {
		if err != nil {
			return err
		}
		rows = append(rows, row)
		if limit > 0 && len(rows) >= limit {
			break
		}
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No manuscripts found")
		return nil
	}
	writeListing(cmd.OutOrStdout(), rows)
	return nil
}
