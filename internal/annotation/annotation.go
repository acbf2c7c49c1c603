// Package annotation parses detection annotation files produced by the
// upstream inference pipeline and resolves the image paths they reference.
package annotation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cell-review/internal/detection"
)

// imageEntry is one element of the annotation JSON array. Two schemas are
// accepted: the inference output (pred_boxes + pred_scores) and the older
// hand-written format (detections with bbox/confidence/cell_id). Unknown
// fields are ignored.
type imageEntry struct {
	ImagePath  string      `json:"image_path"`
	ImageName  string      `json:"image_name"`
	PredBoxes  [][]float64 `json:"pred_boxes"`
	PredScores []float64   `json:"pred_scores"`
	Detections []struct {
		BBox       []float64 `json:"bbox"`
		Confidence float64   `json:"confidence"`
		CellID     string    `json:"cell_id"`
	} `json:"detections"`
}

// ParseFile reads an annotation JSON file and returns the flat record list
// in file order. Image paths are resolved against the given data root; when
// root is empty the annotation file's directory is used, matching how the
// files are laid out next to their images.
func ParseFile(path, root string) ([]detection.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read annotations: %w", err)
	}

	var entries []imageEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse annotations: %w", err)
	}

	if root == "" {
		root = filepath.Dir(path)
	}
	resolver := NewResolver(root)

	var records []detection.Record
	for _, entry := range entries {
		if entry.ImagePath == "" {
			continue
		}

		resolved := resolver.Resolve(entry.ImagePath)
		name := entry.ImageName
		if name == "" {
			name = filepath.Base(entry.ImagePath)
		}

		if len(entry.Detections) > 0 {
			for i, d := range entry.Detections {
				rec := detection.Record{
					ImagePath:  resolved,
					ImageName:  name,
					Index:      i,
					CellID:     d.CellID,
					Confidence: d.Confidence,
				}
				copyBox(&rec, d.BBox)
				records = append(records, rec)
			}
			continue
		}

		count := len(entry.PredBoxes)
		if len(entry.PredScores) < count {
			count = len(entry.PredScores)
		}
		for i := 0; i < count; i++ {
			rec := detection.Record{
				ImagePath:  resolved,
				ImageName:  name,
				Index:      i,
				Confidence: entry.PredScores[i],
			}
			copyBox(&rec, entry.PredBoxes[i])
			records = append(records, rec)
		}
	}

	return records, nil
}

func copyBox(rec *detection.Record, box []float64) {
	for i := 0; i < len(box) && i < 4; i++ {
		rec.Box[i] = box[i]
	}
}
