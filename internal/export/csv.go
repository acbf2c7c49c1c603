package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// WriteCSV writes the rows to a CSV file with the same columns as the
// spreadsheet export. The summary feeds the per-row session columns; it
// has no sheet of its own in this format.
func WriteCSV(path string, rows []Row, sum Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	for _, r := range rows {
		record := []string{
			r.ImagePath,
			r.DetectionID,
			r.CellID,
			strconv.Itoa(r.X1),
			strconv.Itoa(r.Y1),
			strconv.Itoa(r.X2),
			strconv.Itoa(r.Y2),
			strconv.FormatFloat(r.Confidence, 'f', 4, 64),
			strconv.FormatBool(r.Verified),
			strconv.Itoa(r.ClickOrder),
			strconv.FormatFloat(r.TimeSinceStart, 'f', 3, 64),
			strconv.FormatFloat(r.Interval, 'f', 3, 64),
			strconv.FormatFloat(sum.DurationSeconds, 'f', 3, 64),
			sum.Reviewer,
			sum.SessionID,
			formatTime(sum.ExportTime),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("%w: %v", ErrExportFailed, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	return nil
}
