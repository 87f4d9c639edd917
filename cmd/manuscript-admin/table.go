package main

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"manuscript-workflow-api/models"
	"manuscript-workflow-api/utils"
)

var listingHeaders = table.Row{"File Code", "Title", "Scope", "Author", "Stage", "Status", "Submitted"}

// writeListing renders summaries as a table. It returns the row count.
func writeListing(out io.Writer, rows []models.ManuscriptSummary) int {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(listingHeaders)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 48},
	})

	for _, row := range rows {
		tw.AppendRow(table.Row{
			row.FileCode,
			row.Title,
			row.ScopeCode,
			row.FirstAuthor,
			string(row.Stage),
			string(row.ProgressStatus),
			utils.FormatLongDate(row.DateSubmitted),
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "", "Total", len(rows)})
	tw.Render()
	return len(rows)
}
