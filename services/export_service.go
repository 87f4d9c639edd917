package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"manuscript-workflow-api/models"
	"manuscript-workflow-api/utils"
)

var ErrExportGenerateFail = errors.New("failed to generate spreadsheet")

var exportHeaders = []string{
	"File Code", "Journal/Research Title", "Field/Scope", "Scope Code",
	"Author", "Date Submitted", "Stage", "Status", "Date Rejected", "Date Published",
}

// ExportService renders stage listings as .xlsx workbooks for reporting.
type ExportService struct {
	query  *QueryService
	logger *zap.Logger
}

func NewExportService(query *QueryService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{query: query, logger: logger}
}

// ExportListing writes one sheet with the stage listing. It returns the
// workbook bytes and a suggested file name.
func (s *ExportService) ExportListing(ctx context.Context, stage models.Stage, year *int) (*bytes.Buffer, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(stage)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrExportGenerateFail, err)
	}

	if err := f.SetSheetRow(sheet, "A1", &exportHeaders); err != nil {
		s.logger.Error("failed to write export header", zap.Error(err))
		return nil, "", fmt.Errorf("%w: %v", ErrExportGenerateFail, err)
	}
	// Styling is cosmetic; failures are logged and the export continues.
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		s.logger.Warn("failed to create header style", zap.Error(err))
	} else {
		last, err := excelize.CoordinatesToCellName(len(exportHeaders), 1)
		if err == nil {
			err = f.SetCellStyle(sheet, "A1", last, headerStyle)
		}
		if err != nil {
			s.logger.Warn("failed to style export header", zap.Error(err))
		}
	}

	row := 2
	for summary, err := range s.query.ListByStage(ctx, stage, year) {
		if err != nil {
			return nil, "", err
		}
		values := []interface{}{
			summary.FileCode,
			summary.Title,
			summary.Scope,
			summary.ScopeCode,
			summary.FirstAuthor,
			utils.FormatLongDate(summary.DateSubmitted),
			string(summary.Stage),
			string(summary.ProgressStatus),
			utils.FormatLongDatePtr(summary.RejectDate, ""),
			utils.FormatLongDatePtr(summary.DatePublished, ""),
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrExportGenerateFail, err)
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			s.logger.Error("failed to write export row", zap.Int("row", row), zap.Error(err))
			return nil, "", fmt.Errorf("%w: %v", ErrExportGenerateFail, err)
		}
		row++
	}

	for _, w := range []struct {
		from, to string
		width    float64
	}{{"A", "A", 18}, {"B", "B", 50}, {"C", "J", 20}} {
		if err := f.SetColWidth(sheet, w.from, w.to, w.width); err != nil {
			s.logger.Warn("failed to set export column width", zap.String("columns", w.from+":"+w.to), zap.Error(err))
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.logger.Error("failed to serialize workbook", zap.Error(err))
		return nil, "", fmt.Errorf("%w: %v", ErrExportGenerateFail, err)
	}

	name := "manuscripts_" + strings.ToLower(strings.ReplaceAll(string(stage), " ", "_"))
	if year != nil {
		name = fmt.Sprintf("%s_%d", name, *year)
	}
	return buf, name + ".xlsx", nil
}

func sheetName(stage models.Stage) string {
	// Sheet names are capped at 31 characters and may not contain some punctuation.
	name := strings.NewReplacer("/", " ", "\\", " ", "?", "", "*", "", "[", "", "]", "", ":", "").Replace(string(stage))
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
