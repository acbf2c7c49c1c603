// Package export writes the confirmed detections of a finished session to
// spreadsheet files, one row per confirmation in click order, plus a
// summary of the sitting.
package export

import (
	"errors"
	"time"

	"gonum.org/v1/gonum/stat"

	"cell-review/internal/detection"
	"cell-review/internal/session"
)

// ErrExportFailed wraps any failure while writing an export file. The
// in-memory review state is never touched by a failed export.
var ErrExportFailed = errors.New("export failed")

// Row is one confirmed detection as it appears in the export.
type Row struct {
	ImagePath      string
	DetectionID    string
	CellID         string
	X1, Y1, X2, Y2 int
	Confidence     float64
	Verified       bool
	ClickOrder     int     // 1-based confirmation order
	TimeSinceStart float64 // seconds from session start to confirmation
	Interval       float64 // seconds since the previous confirmation
}

// Summary aggregates a finished session for the second sheet.
type Summary struct {
	SessionID       string
	Reviewer        string
	StartedAt       time.Time
	StoppedAt       time.Time
	DurationSeconds float64
	ExportTime      time.Time
	ConfirmedCount  int
	MeanConfidence  float64
	MinConfidence   float64
	MaxConfidence   float64
	MeanInterval    float64 // seconds between consecutive confirmations
	StdDevInterval  float64
}

// BuildRows converts the confirmed detections, already sorted by
// confirmation order, into export rows. Timing columns are derived from
// each detection's confirmation timestamp relative to the session start.
func BuildRows(confirmed []*detection.Detection, rec session.Record) []Row {
	rows := make([]Row, 0, len(confirmed))
	prev := rec.StartedAt
	for i, d := range confirmed {
		since := d.ConfirmedAt.Sub(rec.StartedAt).Seconds()
		if since < 0 {
			since = 0
		}
		interval := d.ConfirmedAt.Sub(prev).Seconds()
		if interval < 0 {
			interval = 0
		}
		prev = d.ConfirmedAt

		rows = append(rows, Row{
			ImagePath:      d.ImagePath,
			DetectionID:    d.ID,
			CellID:         d.CellID,
			X1:             d.Box.XMin,
			Y1:             d.Box.YMin,
			X2:             d.Box.XMax,
			Y2:             d.Box.YMax,
			Confidence:     d.Confidence,
			Verified:       true,
			ClickOrder:     i + 1,
			TimeSinceStart: since,
			Interval:       interval,
		})
	}
	return rows
}

// BuildSummary computes the session sheet from the rows.
func BuildSummary(rows []Row, rec session.Record, exportTime time.Time) Summary {
	sum := Summary{
		SessionID:       rec.SessionID,
		Reviewer:        rec.Reviewer,
		StartedAt:       rec.StartedAt,
		StoppedAt:       rec.StoppedAt,
		DurationSeconds: rec.Duration.Seconds(),
		ExportTime:      exportTime,
		ConfirmedCount:  len(rows),
	}
	if len(rows) == 0 {
		return sum
	}

	confidences := make([]float64, len(rows))
	intervals := make([]float64, len(rows))
	sum.MinConfidence = rows[0].Confidence
	sum.MaxConfidence = rows[0].Confidence
	for i, r := range rows {
		confidences[i] = r.Confidence
		intervals[i] = r.Interval
		if r.Confidence < sum.MinConfidence {
			sum.MinConfidence = r.Confidence
		}
		if r.Confidence > sum.MaxConfidence {
			sum.MaxConfidence = r.Confidence
		}
	}
	sum.MeanConfidence = stat.Mean(confidences, nil)
	sum.MeanInterval = stat.Mean(intervals, nil)
	if len(intervals) > 1 {
		sum.StdDevInterval = stat.StdDev(intervals, nil)
	}
	return sum
}

// columns is the shared header order for every sink.
var columns = []string{
	"image_path",
	"detection_id",
	"cell_id",
	"x1",
	"y1",
	"x2",
	"y2",
	"confidence",
	"verified",
	"click_order",
	"time_since_start_s",
	"interval_s",
	"session_duration_s",
	"reviewer_id",
	"session_id",
	"export_time",
}
