// Command reviewexport converts an annotation file to a review export
// without the UI: every detection at or above the threshold is marked
// confirmed and written out. Useful for spot-checking model output and
// for regenerating spreadsheets from old annotation files.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cell-review/internal/annotation"
	"cell-review/internal/detection"
	"cell-review/internal/export"
	"cell-review/internal/session"
)

func main() {
	annotationPath := flag.String("annotations", "", "Path to annotation JSON file")
	outPath := flag.String("out", "", "Output file (.xlsx or .csv)")
	root := flag.String("root", "", "Data root for resolving image paths (default: annotation file directory)")
	threshold := flag.Float64("threshold", 0, "Minimum confidence; detections below are dropped")
	reviewer := flag.String("reviewer", "batch", "Reviewer identifier stamped onto the export")
	flag.Parse()

	if *annotationPath == "" || *outPath == "" {
		fmt.Println("Usage: reviewexport -annotations <path> -out <path.xlsx|path.csv> [-threshold 0.5] [-root <dir>] [-reviewer <id>]")
		os.Exit(1)
	}

	records, err := annotation.ParseFile(*annotationPath, *root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse annotations: %v\n", err)
		os.Exit(1)
	}

	set := detection.NewSet()
	for _, lerr := range set.Load(records) {
		fmt.Fprintf(os.Stderr, "Skipping: %v\n", lerr)
	}
	fmt.Printf("Loaded %d detections (%d skipped)\n", set.Len(), set.Skipped())

	sess := session.New(*reviewer)
	if err := sess.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Session: %v\n", err)
		os.Exit(1)
	}

	visible := set.Filter(*threshold)
	for _, d := range visible {
		if _, err := set.Toggle(d.ID); err != nil {
			fmt.Fprintf(os.Stderr, "Confirm %s: %v\n", d.ID, err)
			os.Exit(1)
		}
	}
	if err := sess.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Session: %v\n", err)
		os.Exit(1)
	}

	rec, err := sess.Record()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Session record: %v\n", err)
		os.Exit(1)
	}

	rows := export.BuildRows(set.Confirmed(), rec)
	sum := export.BuildSummary(rows, rec, time.Now())

	if strings.EqualFold(filepath.Ext(*outPath), ".csv") {
		err = export.WriteCSV(*outPath, rows, sum)
	} else {
		err = export.WriteXLSX(*outPath, rows, sum)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d confirmed detections (threshold %.2f) to %s\n",
		len(rows), *threshold, *outPath)
}
