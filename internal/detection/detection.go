// Package detection holds the in-memory catalog of bounding-box detections
// under review, with per-detection confirmation state and confidence
// filtering.
package detection

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"cell-review/pkg/geometry"
)

// ErrInvalidRecord indicates an annotation record that failed validation.
// Invalid records are skipped and counted, never merged into the set.
var ErrInvalidRecord = errors.New("invalid annotation record")

// Detection is one candidate object from an upstream model, subject to
// human confirmation. The Confirmed flag is mutated only through
// Set.Toggle; detections are never removed during a session.
type Detection struct {
	ID         string       // Unique within the owning image
	ImagePath  string       // Resolved path of the source image
	CellID     string       // Optional upstream cell identifier
	Box        geometry.Box // Pixel coordinates, xmin<xmax, ymin<ymax
	Confidence float64      // Model confidence in [0,1]

	Confirmed   bool
	ConfirmedAt time.Time // Set on confirmation, zero when unconfirmed

	confirmSeq int // Ordering key: clock resolution can tie ConfirmedAt
}

// Record is a parsed annotation entry before validation.
type Record struct {
	ImagePath  string
	ImageName  string
	Index      int // Position of the detection within its image entry
	CellID     string
	Box        [4]float64 // xmin, ymin, xmax, ymax
	Confidence float64
}

// ImageRecord groups the detections belonging to one source image.
// The Set owns all detections; ImageRecord holds back-references only.
type ImageRecord struct {
	Path   string
	Name   string
	Width  int // Cached decoded dimensions, zero until known
	Height int

	Detections []*Detection
}

// Set is the catalog of all detections across all images, in load order.
type Set struct {
	ordered []*Detection
	byID    map[string]*Detection

	images     map[string]*ImageRecord
	imageOrder []string

	skipped int
	nextSeq int
}

// NewSet creates an empty detection set.
func NewSet() *Set {
	return &Set{
		byID:   make(map[string]*Detection),
		images: make(map[string]*ImageRecord),
	}
}

// Load validates and adds the given records. Records with a degenerate box
// or an out-of-range confidence are skipped and counted; the returned errors
// wrap ErrInvalidRecord and report the offending index. Valid records are
// always loaded, regardless of how many invalid ones surround them.
func (s *Set) Load(records []Record) []error {
	var errs []error

	for i, rec := range records {
		if err := validate(rec); err != nil {
			s.skipped++
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}

		name := rec.ImageName
		if name == "" {
			name = filepath.Base(rec.ImagePath)
		}

		cellID := rec.CellID
		if cellID == "" {
			cellID = fmt.Sprintf("cell_%d", rec.Index)
		}

		d := &Detection{
			ID:         fmt.Sprintf("%s_%d", name, rec.Index),
			ImagePath:  rec.ImagePath,
			CellID:     cellID,
			Box:        geometry.BoxFromFloats(rec.Box[0], rec.Box[1], rec.Box[2], rec.Box[3]),
			Confidence: rec.Confidence,
		}

		s.ordered = append(s.ordered, d)
		s.byID[d.ID] = d

		img, ok := s.images[rec.ImagePath]
		if !ok {
			img = &ImageRecord{Path: rec.ImagePath, Name: name}
			s.images[rec.ImagePath] = img
			s.imageOrder = append(s.imageOrder, rec.ImagePath)
		}
		img.Detections = append(img.Detections, d)
	}

	return errs
}

func validate(rec Record) error {
	b := geometry.BoxFromFloats(rec.Box[0], rec.Box[1], rec.Box[2], rec.Box[3])
	if !b.Valid() {
		return fmt.Errorf("%w: degenerate box %v", ErrInvalidRecord, b)
	}
	if rec.Confidence < 0 || rec.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range", ErrInvalidRecord, rec.Confidence)
	}
	if rec.ImagePath == "" {
		return fmt.Errorf("%w: empty image path", ErrInvalidRecord)
	}
	return nil
}

// Len returns the number of loaded detections.
func (s *Set) Len() int {
	return len(s.ordered)
}

// Skipped returns the number of records rejected during Load.
func (s *Set) Skipped() int {
	return s.skipped
}

// Get returns the detection with the given ID, or nil.
func (s *Set) Get(id string) *Detection {
	return s.byID[id]
}

// Filter returns the detections with confidence >= min, in load order.
// The ordering is stable: equal confidences keep their input-file order.
// Filtering only affects visibility, never the confirmed flags.
func (s *Set) Filter(min float64) []*Detection {
	var out []*Detection
	for _, d := range s.ordered {
		if d.Confidence >= min {
			out = append(out, d)
		}
	}
	return out
}

// Toggle flips the confirmed flag of the detection with the given ID and
// returns the new state. Toggling twice restores the original state.
func (s *Set) Toggle(id string) (bool, error) {
	d, ok := s.byID[id]
	if !ok {
		return false, fmt.Errorf("unknown detection %q", id)
	}

	d.Confirmed = !d.Confirmed
	if d.Confirmed {
		d.ConfirmedAt = time.Now()
		s.nextSeq++
		d.confirmSeq = s.nextSeq
	} else {
		d.ConfirmedAt = time.Time{}
		d.confirmSeq = 0
	}
	return d.Confirmed, nil
}

// Confirmed returns the confirmed detections ordered by confirmation time,
// with load order breaking ties.
func (s *Set) Confirmed() []*Detection {
	var out []*Detection
	for _, d := range s.ordered {
		if d.Confirmed {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].confirmSeq < out[j].confirmSeq
	})
	return out
}

// ConfirmedCount returns the number of confirmed detections.
func (s *Set) ConfirmedCount() int {
	n := 0
	for _, d := range s.ordered {
		if d.Confirmed {
			n++
		}
	}
	return n
}

// Image returns the image record for a path, or nil.
func (s *Set) Image(path string) *ImageRecord {
	return s.images[path]
}

// Images returns the image records in first-appearance order.
func (s *Set) Images() []*ImageRecord {
	out := make([]*ImageRecord, 0, len(s.imageOrder))
	for _, p := range s.imageOrder {
		out = append(out, s.images[p])
	}
	return out
}
