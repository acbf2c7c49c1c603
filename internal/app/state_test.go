package app

import (
	"encoding/csv"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"cell-review/internal/config"
	"cell-review/internal/grid"
	"cell-review/internal/session"
)

func writeFixture(t *testing.T) (dir, annotations string) {
	t.Helper()
	dir = t.TempDir()

	if err := os.MkdirAll(filepath.Join(dir, "images"), 0o755); err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 120, B: 120, A: 255})
		}
	}
	f, err := os.Create(filepath.Join(dir, "images", "scan.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	annotations = filepath.Join(dir, "annotations.json")
	content := `[
		{
			"image_path": "./images/scan.png",
			"pred_boxes": [[4, 4, 20, 20], [10, 10, 30, 30], [30, 30, 50, 50]],
			"pred_scores": [0.9, 0.4, 0.95]
		}
	]`
	if err := os.WriteFile(annotations, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, annotations
}

func newTestState(t *testing.T, dir string) *State {
	t.Helper()
	s, err := NewState(config.Config{
		DataRoot:       dir,
		PaddingFactor:  0.5,
		GridRows:       2,
		GridCols:       2,
		ViewfinderSize: 64,
		CacheEntries:   8,
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLoadAnnotations(t *testing.T) {
	dir, annotations := writeFixture(t)
	s := newTestState(t, dir)

	var loaded LoadResult
	s.On(EventDetectionsLoaded, func(data interface{}) {
		loaded = data.(LoadResult)
	})

	if err := s.LoadAnnotations(annotations); err != nil {
		t.Fatalf("LoadAnnotations: %v", err)
	}
	if loaded.Total != 3 || loaded.Visible != 3 || loaded.Skipped != 0 {
		t.Errorf("load result: %+v", loaded)
	}
	if s.Grid().Len() != 3 {
		t.Errorf("grid items: got %d, want 3", s.Grid().Len())
	}
}

func TestSetThreshold_Refilters(t *testing.T) {
	dir, annotations := writeFixture(t)
	s := newTestState(t, dir)
	if err := s.LoadAnnotations(annotations); err != nil {
		t.Fatal(err)
	}

	filterEvents := 0
	s.On(EventFilterChanged, func(interface{}) { filterEvents++ })

	s.SetThreshold(0.5)
	if got := len(s.Visible()); got != 2 {
		t.Errorf("visible after threshold: got %d, want 2", got)
	}
	if s.Grid().Len() != 2 {
		t.Errorf("grid items: got %d, want 2", s.Grid().Len())
	}
	if filterEvents != 1 {
		t.Errorf("filter events: got %d, want 1", filterEvents)
	}

	s.SetThreshold(2)
	if got := s.Threshold(); got != 1 {
		t.Errorf("threshold clamp: got %v, want 1", got)
	}
}

func TestToggle_RequiresRunningSession(t *testing.T) {
	dir, annotations := writeFixture(t)
	s := newTestState(t, dir)
	if err := s.LoadAnnotations(annotations); err != nil {
		t.Fatal(err)
	}

	if err := s.ToggleSelected(); !errors.Is(err, grid.ErrReviewInactive) {
		t.Errorf("toggle without session: got %v, want ErrReviewInactive", err)
	}

	if err := s.StartSession("alice"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := s.ToggleSelected(); err != nil {
		t.Fatalf("ToggleSelected: %v", err)
	}
	if got := s.Detections().ConfirmedCount(); got != 1 {
		t.Errorf("confirmed: got %d, want 1", got)
	}

	if err := s.PauseSession(); err != nil {
		t.Fatal(err)
	}
	if err := s.ToggleSelected(); !errors.Is(err, grid.ErrReviewInactive) {
		t.Errorf("toggle while paused: got %v, want ErrReviewInactive", err)
	}

	if err := s.ResumeSession(); err != nil {
		t.Fatal(err)
	}
	sel := s.Grid().Selected()
	if err := s.ToggleDetection(sel.ID); err != nil {
		t.Fatalf("ToggleDetection: %v", err)
	}
	if got := s.Detections().ConfirmedCount(); got != 0 {
		t.Errorf("confirmed after untoggle: got %d, want 0", got)
	}
}

func TestSessionLifecycleEvents(t *testing.T) {
	dir, _ := writeFixture(t)
	s := newTestState(t, dir)

	var states []session.State
	s.On(EventSessionChanged, func(data interface{}) {
		states = append(states, data.(session.State))
	})

	if err := s.StartSession("alice"); err != nil {
		t.Fatal(err)
	}
	if err := s.StartSession("bob"); err == nil {
		t.Error("second StartSession while running should fail")
	}
	if err := s.PauseSession(); err != nil {
		t.Fatal(err)
	}
	if err := s.ResumeSession(); err != nil {
		t.Fatal(err)
	}
	if err := s.StopSession(); err != nil {
		t.Fatal(err)
	}

	want := []session.State{
		session.StateRunning,
		session.StatePaused,
		session.StateRunning,
		session.StateStopped,
	}
	if len(states) != len(want) {
		t.Fatalf("events: got %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("event %d: got %v, want %v", i, states[i], want[i])
		}
	}

	// A stopped session can be replaced.
	if err := s.StartSession("carol"); err != nil {
		t.Errorf("StartSession after stop: %v", err)
	}
}

func TestExport_EndToEnd(t *testing.T) {
	dir, annotations := writeFixture(t)
	s := newTestState(t, dir)
	if err := s.LoadAnnotations(annotations); err != nil {
		t.Fatal(err)
	}
	s.SetThreshold(0.5)

	if err := s.Export(filepath.Join(dir, "early.csv")); err == nil {
		t.Error("export before session should fail")
	}

	if err := s.StartSession("alice"); err != nil {
		t.Fatal(err)
	}
	for range s.Visible() {
		if err := s.ToggleSelected(); err != nil {
			t.Fatal(err)
		}
		s.Grid().MoveRight()
	}
	if err := s.StopSession(); err != nil {
		t.Fatal(err)
	}

	var exportedTo string
	s.On(EventExportComplete, func(data interface{}) {
		exportedTo = data.(string)
	})

	out := filepath.Join(dir, "session.csv")
	if err := s.Export(out); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if exportedTo != out {
		t.Errorf("export event: got %q, want %q", exportedTo, out)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Errorf("csv rows: got %d, want header + 2", len(records))
	}
}

func TestCropFor(t *testing.T) {
	dir, annotations := writeFixture(t)
	s := newTestState(t, dir)
	if err := s.LoadAnnotations(annotations); err != nil {
		t.Fatal(err)
	}

	d := s.Grid().Selected()
	img, err := s.CropFor(d, 32)
	if err != nil {
		t.Fatalf("CropFor: %v", err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 32 {
		t.Errorf("crop bounds: got %v, want 32x32", img.Bounds())
	}
}

func TestPrefetchPage(t *testing.T) {
	dir, annotations := writeFixture(t)
	s := newTestState(t, dir)
	if err := s.LoadAnnotations(annotations); err != nil {
		t.Fatal(err)
	}

	n := 0
	for res := range s.PrefetchPage(16) {
		if res.Err != nil {
			t.Errorf("prefetch %s: %v", res.Key.DetectionID, res.Err)
		}
		n++
	}
	if n != 3 {
		t.Errorf("prefetched: got %d, want 3", n)
	}
}
