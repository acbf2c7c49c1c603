// Package app provides application state, wiring between the review
// components, and events.
package app

import (
	"context"
	"fmt"
	goimage "image"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cell-review/internal/annotation"
	"cell-review/internal/config"
	"cell-review/internal/crop"
	"cell-review/internal/detection"
	"cell-review/internal/export"
	"cell-review/internal/grid"
	"cell-review/internal/imagestore"
	"cell-review/internal/session"
)

// EventType identifies different application events.
type EventType int

const (
	EventDetectionsLoaded EventType = iota
	EventFilterChanged
	EventPageChanged
	EventSelectionChanged
	EventDetectionToggled
	EventSessionChanged
	EventExportComplete
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// LoadResult summarizes an annotation load for EventDetectionsLoaded.
type LoadResult struct {
	Path    string
	Total   int
	Skipped int
	Visible int
}

// State holds the application state: the detection catalog, the active
// session, the grid position, and the caches feeding the UI.
type State struct {
	mu sync.RWMutex

	cfg config.Config

	set       *detection.Set
	threshold float64

	store *imagestore.Store
	cache *crop.Cache
	fetch *crop.Prefetcher

	grid *grid.Controller
	sess *session.Session

	prefetchCancel context.CancelFunc

	listeners map[EventType][]EventListener
}

// NewState creates the application state for the given configuration.
func NewState(cfg config.Config) (*State, error) {
	s := &State{
		cfg:       cfg,
		set:       detection.NewSet(),
		threshold: cfg.MinConfidence,
		store:     imagestore.New(),
		listeners: make(map[EventType][]EventListener),
	}

	cache, err := crop.NewCache(cfg.CacheEntries, cfg.CacheDir, s.renderCrop)
	if err != nil {
		return nil, fmt.Errorf("create crop cache: %w", err)
	}
	s.cache = cache
	s.fetch = crop.NewPrefetcher(cache, 4)

	s.grid = grid.NewController(cfg.GridRows, cfg.GridCols, func() bool {
		return s.SessionState() == session.StateRunning
	})
	s.grid.OnSelectionChanged(func(index int, d *detection.Detection) {
		s.Emit(EventSelectionChanged, d)
	})
	s.grid.OnPageChanged(func(page int) {
		s.Emit(EventPageChanged, page)
	})

	return s, nil
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Config returns the active configuration.
func (s *State) Config() config.Config { return s.cfg }

// Detections returns the detection catalog.
func (s *State) Detections() *detection.Set { return s.set }

// Grid returns the grid navigation controller.
func (s *State) Grid() *grid.Controller { return s.grid }

// Images returns the source image store.
func (s *State) Images() *imagestore.Store { return s.store }

// LoadAnnotations parses an annotation file, replaces the detection
// catalog, and applies the current threshold. Invalid records are logged
// and skipped; a file with zero valid records is still a successful load.
func (s *State) LoadAnnotations(path string) error {
	records, err := annotation.ParseFile(path, s.cfg.DataRoot)
	if err != nil {
		return fmt.Errorf("load annotations: %w", err)
	}

	set := detection.NewSet()
	for _, lerr := range set.Load(records) {
		log.Printf("skipping %s: %v", filepath.Base(path), lerr)
	}

	s.mu.Lock()
	s.set = set
	threshold := s.threshold
	s.mu.Unlock()

	s.store.Clear()
	s.cache.Clear()

	visible := set.Filter(threshold)
	s.grid.SetItems(visible)

	s.Emit(EventDetectionsLoaded, LoadResult{
		Path:    path,
		Total:   set.Len(),
		Skipped: set.Skipped(),
		Visible: len(visible),
	})
	return nil
}

// Threshold returns the active confidence threshold.
func (s *State) Threshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold
}

// SetThreshold applies a new confidence threshold, clamped to [0,1], and
// refreshes the grid. Confirmed flags are untouched; hidden detections
// stay confirmed.
func (s *State) SetThreshold(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	s.mu.Lock()
	s.threshold = v
	set := s.set
	s.mu.Unlock()

	visible := set.Filter(v)
	s.grid.SetItems(visible)
	s.Emit(EventFilterChanged, v)
}

// Visible returns the detections passing the current threshold.
func (s *State) Visible() []*detection.Detection {
	s.mu.RLock()
	set, threshold := s.set, s.threshold
	s.mu.RUnlock()
	return set.Filter(threshold)
}

// Session returns the current session, nil before the first start.
func (s *State) Session() *session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess
}

// SessionState returns the current session state, idle when none exists.
func (s *State) SessionState() session.State {
	s.mu.RLock()
	sess := s.sess
	s.mu.RUnlock()
	if sess == nil {
		return session.StateIdle
	}
	return sess.State()
}

// StartSession begins a new review session for the named reviewer. A
// stopped session is replaced; a running one is an error.
func (s *State) StartSession(reviewer string) error {
	s.mu.Lock()
	if s.sess != nil {
		switch s.sess.State() {
		case session.StateRunning, session.StatePaused:
			s.mu.Unlock()
			return fmt.Errorf("session already in progress")
		}
	}
	sess := session.New(reviewer)
	s.sess = sess
	s.mu.Unlock()

	if err := sess.Start(); err != nil {
		return err
	}
	s.Emit(EventSessionChanged, session.StateRunning)
	return nil
}

// PauseSession suspends the running session.
func (s *State) PauseSession() error {
	sess := s.Session()
	if sess == nil {
		return fmt.Errorf("no session")
	}
	if err := sess.Pause(); err != nil {
		return err
	}
	s.Emit(EventSessionChanged, session.StatePaused)
	return nil
}

// ResumeSession resumes a paused session.
func (s *State) ResumeSession() error {
	sess := s.Session()
	if sess == nil {
		return fmt.Errorf("no session")
	}
	if err := sess.Resume(); err != nil {
		return err
	}
	s.Emit(EventSessionChanged, session.StateRunning)
	return nil
}

// StopSession ends the session. The confirmed set stays in memory for
// export.
func (s *State) StopSession() error {
	sess := s.Session()
	if sess == nil {
		return fmt.Errorf("no session")
	}
	if err := sess.Stop(); err != nil {
		return err
	}
	s.Emit(EventSessionChanged, session.StateStopped)
	return nil
}

// ToggleSelected flips the confirmed flag of the detection under the
// cursor. Fails with grid.ErrReviewInactive unless the session is running.
func (s *State) ToggleSelected() error {
	d, err := s.grid.Activate()
	if err != nil {
		return err
	}
	if d == nil {
		return nil
	}
	return s.toggle(d.ID)
}

// ToggleDetection flips a detection by ID, for direct cell clicks. The
// same session gate applies.
func (s *State) ToggleDetection(id string) error {
	if s.SessionState() != session.StateRunning {
		return grid.ErrReviewInactive
	}
	return s.toggle(id)
}

func (s *State) toggle(id string) error {
	s.mu.RLock()
	set := s.set
	s.mu.RUnlock()

	if _, err := set.Toggle(id); err != nil {
		return err
	}
	s.Emit(EventDetectionToggled, set.Get(id))
	return nil
}

// renderCrop computes the pixels for a cache miss.
func (s *State) renderCrop(key crop.Key) (*goimage.RGBA, error) {
	s.mu.RLock()
	set := s.set
	s.mu.RUnlock()

	d := set.Get(key.DetectionID)
	if d == nil {
		return nil, fmt.Errorf("unknown detection %q", key.DetectionID)
	}
	src, err := s.store.Get(key.ImagePath)
	if err != nil {
		return nil, err
	}
	return crop.Crop(src, d.Box, key.Padding, key.Size)
}

// CropKey builds the cache key for a detection at the given display size.
func (s *State) CropKey(d *detection.Detection, size int) crop.Key {
	return crop.Key{
		ImagePath:   d.ImagePath,
		DetectionID: d.ID,
		Size:        size,
		Padding:     s.cfg.PaddingFactor,
	}
}

// CropFor returns the rendered crop for a detection, from cache when warm.
func (s *State) CropFor(d *detection.Detection, size int) (*goimage.RGBA, error) {
	return s.cache.Get(s.CropKey(d, size))
}

// PrefetchPage warms the cache for the current page and its neighbors.
// Any previous prefetch still in flight is cancelled first. The returned
// channel streams results for callers that want them; it may be ignored.
func (s *State) PrefetchPage(size int) <-chan crop.Result {
	s.mu.Lock()
	if s.prefetchCancel != nil {
		s.prefetchCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.prefetchCancel = cancel
	s.mu.Unlock()

	visible := s.Visible()
	page := s.grid.CurrentPage()
	pageSize := s.grid.PageSize()

	start := page * pageSize
	end := start + 2*pageSize // current page plus the next
	if start > len(visible) {
		start = len(visible)
	}
	if end > len(visible) {
		end = len(visible)
	}

	keys := make([]crop.Key, 0, end-start)
	for _, d := range visible[start:end] {
		keys = append(keys, s.CropKey(d, size))
	}
	return s.fetch.Fetch(ctx, keys)
}

// Export writes the confirmed detections of the stopped session to the
// given path. The format follows the extension: .csv writes CSV, anything
// else a spreadsheet workbook.
func (s *State) Export(path string) error {
	sess := s.Session()
	if sess == nil {
		return fmt.Errorf("no session to export")
	}
	rec, err := sess.Record()
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	s.mu.RLock()
	set := s.set
	s.mu.RUnlock()

	rows := export.BuildRows(set.Confirmed(), rec)
	sum := export.BuildSummary(rows, rec, time.Now())

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		err = export.WriteCSV(path, rows, sum)
	} else {
		err = export.WriteXLSX(path, rows, sum)
	}
	if err != nil {
		return err
	}

	log.Printf("exported %d confirmed detections to %s", len(rows), path)
	s.Emit(EventExportComplete, path)
	return nil
}

// InvalidateImage drops an image and every crop derived from it, forcing
// a reload on next access.
func (s *State) InvalidateImage(path string) {
	s.store.Evict(path)
	s.cache.Invalidate(path)
}
