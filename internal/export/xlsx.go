package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	sheetDetections = "Confirmed Detections"
	sheetSummary    = "Session Summary"
	timeLayout      = "2006-01-02 15:04:05"
)

// WriteXLSX writes the rows and summary to an Excel workbook with one
// sheet of detections and one summary sheet.
func WriteXLSX(path string, rows []Row, sum Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetDetections)
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}

	if err := f.SetSheetRow(sheetDetections, "A1", &columns); err != nil {
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	for i, r := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		values := []interface{}{
			r.ImagePath,
			r.DetectionID,
			r.CellID,
			r.X1, r.Y1, r.X2, r.Y2,
			r.Confidence,
			r.Verified,
			r.ClickOrder,
			r.TimeSinceStart,
			r.Interval,
			sum.DurationSeconds,
			sum.Reviewer,
			sum.SessionID,
			sum.ExportTime.Format(timeLayout),
		}
		if err := f.SetSheetRow(sheetDetections, cell, &values); err != nil {
			return fmt.Errorf("%w: %v", ErrExportFailed, err)
		}
	}

	if err := writeSummarySheet(f, sum); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, sum Summary) error {
	pairs := []struct {
		label string
		value interface{}
	}{
		{"session_id", sum.SessionID},
		{"reviewer_id", sum.Reviewer},
		{"started_at", formatTime(sum.StartedAt)},
		{"stopped_at", formatTime(sum.StoppedAt)},
		{"session_duration_s", sum.DurationSeconds},
		{"export_time", formatTime(sum.ExportTime)},
		{"confirmed_count", sum.ConfirmedCount},
		{"mean_confidence", sum.MeanConfidence},
		{"min_confidence", sum.MinConfidence},
		{"max_confidence", sum.MaxConfidence},
		{"mean_interval_s", sum.MeanInterval},
		{"stddev_interval_s", sum.StdDevInterval},
	}
	for i, p := range pairs {
		row := []interface{}{p.label, p.value}
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return fmt.Errorf("%w: %v", ErrExportFailed, err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}
