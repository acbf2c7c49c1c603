package detection

import (
	"errors"
	"testing"
)

func makeRecords() []Record {
	return []Record{
		{ImagePath: "a.tif", ImageName: "a.tif", Index: 0, Box: [4]float64{10, 10, 50, 50}, Confidence: 0.9},
		{ImagePath: "a.tif", ImageName: "a.tif", Index: 1, Box: [4]float64{60, 10, 90, 40}, Confidence: 0.4},
		{ImagePath: "b.tif", ImageName: "b.tif", Index: 0, Box: [4]float64{5, 5, 25, 25}, Confidence: 0.95},
	}
}

func TestLoad(t *testing.T) {
	s := NewSet()
	errs := s.Load(makeRecords())
	if len(errs) != 0 {
		t.Fatalf("Load returned errors: %v", errs)
	}
	if s.Len() != 3 {
		t.Errorf("Len: got %d, want 3", s.Len())
	}
	if len(s.Images()) != 2 {
		t.Errorf("Images: got %d, want 2", len(s.Images()))
	}

	d := s.Get("a.tif_1")
	if d == nil {
		t.Fatal("detection a.tif_1 not found")
	}
	if d.CellID != "cell_1" {
		t.Errorf("CellID: got %q, want cell_1", d.CellID)
	}
	if d.Confirmed {
		t.Error("detections must load unconfirmed")
	}
}

func TestLoad_SkipsInvalidRecords(t *testing.T) {
	recs := []Record{
		{ImagePath: "a.tif", Index: 0, Box: [4]float64{0, 0, 10, 10}, Confidence: 0.5},
		{ImagePath: "a.tif", Index: 1, Box: [4]float64{10, 10, 10, 20}, Confidence: 0.5}, // zero width
		{ImagePath: "a.tif", Index: 2, Box: [4]float64{0, 0, 10, 10}, Confidence: 1.5},  // bad confidence
		{ImagePath: "", Index: 3, Box: [4]float64{0, 0, 10, 10}, Confidence: 0.5},       // no path
		{ImagePath: "a.tif", Index: 4, Box: [4]float64{20, 20, 40, 40}, Confidence: 0.5},
	}

	s := NewSet()
	errs := s.Load(recs)

	if len(errs) != 3 {
		t.Fatalf("errors: got %d, want 3: %v", len(errs), errs)
	}
	for _, err := range errs {
		if !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("error %v does not wrap ErrInvalidRecord", err)
		}
	}
	if s.Skipped() != 3 {
		t.Errorf("Skipped: got %d, want 3", s.Skipped())
	}
	if s.Len() != 2 {
		t.Errorf("Len: got %d, want 2 (valid records must survive)", s.Len())
	}
}

func TestFilter_StableLoadOrder(t *testing.T) {
	recs := []Record{
		{ImagePath: "a.tif", Index: 0, Box: [4]float64{0, 0, 10, 10}, Confidence: 0.9},
		{ImagePath: "a.tif", Index: 1, Box: [4]float64{0, 0, 10, 10}, Confidence: 0.4},
		{ImagePath: "a.tif", Index: 2, Box: [4]float64{0, 0, 10, 10}, Confidence: 0.95},
		{ImagePath: "a.tif", Index: 3, Box: [4]float64{0, 0, 10, 10}, Confidence: 0.9}, // tie with index 0
	}

	s := NewSet()
	if errs := s.Load(recs); len(errs) != 0 {
		t.Fatalf("Load: %v", errs)
	}

	got := s.Filter(0.5)
	wantIDs := []string{"a.tif_0", "a.tif_2", "a.tif_3"}
	if len(got) != len(wantIDs) {
		t.Fatalf("filtered count: got %d, want %d", len(got), len(wantIDs))
	}
	for i, d := range got {
		if d.ID != wantIDs[i] {
			t.Errorf("position %d: got %s, want %s", i, d.ID, wantIDs[i])
		}
	}

	// Filtering must not touch confirmation state.
	for _, d := range got {
		if d.Confirmed {
			t.Errorf("filter mutated confirmed flag of %s", d.ID)
		}
	}
}

func TestToggle_Involution(t *testing.T) {
	s := NewSet()
	if errs := s.Load(makeRecords()); len(errs) != 0 {
		t.Fatalf("Load: %v", errs)
	}

	const id = "a.tif_0"
	on, err := s.Toggle(id)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if !on {
		t.Error("first toggle should confirm")
	}
	if s.Get(id).ConfirmedAt.IsZero() {
		t.Error("ConfirmedAt not recorded")
	}

	off, err := s.Toggle(id)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if off {
		t.Error("second toggle should unconfirm")
	}
	if !s.Get(id).ConfirmedAt.IsZero() {
		t.Error("ConfirmedAt must clear on unconfirm")
	}
}

func TestToggle_UnknownID(t *testing.T) {
	s := NewSet()
	if _, err := s.Toggle("nope"); err == nil {
		t.Error("Toggle of unknown ID should fail")
	}
}

func TestConfirmed_OrderedByConfirmationTime(t *testing.T) {
	s := NewSet()
	if errs := s.Load(makeRecords()); len(errs) != 0 {
		t.Fatalf("Load: %v", errs)
	}

	// Confirm out of load order.
	mustToggle(t, s, "b.tif_0")
	mustToggle(t, s, "a.tif_0")

	got := s.Confirmed()
	if len(got) != 2 {
		t.Fatalf("Confirmed: got %d, want 2", len(got))
	}
	if got[0].ID != "b.tif_0" || got[1].ID != "a.tif_0" {
		t.Errorf("order: got [%s %s], want [b.tif_0 a.tif_0]", got[0].ID, got[1].ID)
	}
	if s.ConfirmedCount() != 2 {
		t.Errorf("ConfirmedCount: got %d, want 2", s.ConfirmedCount())
	}
}

func mustToggle(t *testing.T, s *Set, id string) {
	t.Helper()
	if _, err := s.Toggle(id); err != nil {
		t.Fatalf("Toggle(%s): %v", id, err)
	}
}
