package grid

import (
	"errors"
	"fmt"
	"testing"

	"cell-review/internal/detection"
)

func makeItems(n int) []*detection.Detection {
	items := make([]*detection.Detection, n)
	for i := range items {
		items[i] = &detection.Detection{ID: fmt.Sprintf("scan.tif_%d", i)}
	}
	return items
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		items int
		want  int
	}{
		{0, 1},
		{1, 1},
		{10, 1},
		{11, 2},
		{25, 3},
	}
	for _, tt := range tests {
		c := NewController(2, 5, nil)
		c.SetItems(makeItems(tt.items))
		if got := c.PageCount(); got != tt.want {
			t.Errorf("PageCount(%d items): got %d, want %d", tt.items, got, tt.want)
		}
	}
}

func TestGoToPage_Clamps(t *testing.T) {
	c := NewController(2, 5, nil)
	c.SetItems(makeItems(25))

	c.GoToPage(99)
	if got := c.CurrentPage(); got != 2 {
		t.Errorf("page after overshoot: got %d, want 2", got)
	}
	if got := len(c.Page()); got != 5 {
		t.Errorf("last page size: got %d, want 5", got)
	}

	c.GoToPage(-3)
	if got := c.CurrentPage(); got != 0 {
		t.Errorf("page after undershoot: got %d, want 0", got)
	}
}

func TestSetItems_ClampsPageWhenListShrinks(t *testing.T) {
	c := NewController(2, 5, nil)
	c.SetItems(makeItems(25))
	c.GoToPage(2)

	// Tightening the filter leaves only 12 detections; page 2 no longer
	// exists and the view must land on the new last page.
	c.SetItems(makeItems(12))
	if got := c.CurrentPage(); got != 1 {
		t.Errorf("page after shrink: got %d, want 1", got)
	}
	if got := c.PageCount(); got != 2 {
		t.Errorf("PageCount: got %d, want 2", got)
	}
}

func TestCursor_WrapsAcrossPages(t *testing.T) {
	c := NewController(2, 5, nil)
	c.SetItems(makeItems(12))

	pageChanges := 0
	c.OnPageChanged(func(int) { pageChanges++ })

	c.SelectIndex(9)
	c.MoveRight()
	if got := c.Cursor(); got != 10 {
		t.Errorf("cursor: got %d, want 10", got)
	}
	if got := c.CurrentPage(); got != 1 {
		t.Errorf("page: got %d, want 1", got)
	}

	c.SelectIndex(11)
	c.MoveRight()
	if got := c.Cursor(); got != 0 {
		t.Errorf("cursor after wrap: got %d, want 0", got)
	}

	c.MoveLeft()
	if got := c.Cursor(); got != 11 {
		t.Errorf("cursor after reverse wrap: got %d, want 11", got)
	}
	if pageChanges == 0 {
		t.Error("page change callback never fired")
	}
}

func TestMoveDown_RowMajor(t *testing.T) {
	c := NewController(2, 5, nil)
	c.SetItems(makeItems(12))

	c.SelectIndex(3)
	c.MoveDown()
	if got := c.Cursor(); got != 8 {
		t.Errorf("cursor after down: got %d, want 8", got)
	}
	c.MoveUp()
	if got := c.Cursor(); got != 3 {
		t.Errorf("cursor after up: got %d, want 3", got)
	}
}

func TestSelectionCallback(t *testing.T) {
	c := NewController(2, 5, nil)
	c.SetItems(makeItems(5))

	var lastID string
	c.OnSelectionChanged(func(_ int, d *detection.Detection) {
		if d != nil {
			lastID = d.ID
		}
	})

	c.SelectIndex(3)
	if lastID != "scan.tif_3" {
		t.Errorf("selection callback: got %q, want scan.tif_3", lastID)
	}
}

func TestActivate_GatedBySession(t *testing.T) {
	running := false
	c := NewController(2, 5, func() bool { return running })
	c.SetItems(makeItems(3))

	if _, err := c.Activate(); !errors.Is(err, ErrReviewInactive) {
		t.Errorf("Activate while inactive: got %v, want ErrReviewInactive", err)
	}

	running = true
	d, err := c.Activate()
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if d == nil || d.ID != "scan.tif_0" {
		t.Errorf("activated detection: got %v", d)
	}
}

func TestEmptyGrid(t *testing.T) {
	c := NewController(2, 5, nil)
	c.SetItems(nil)

	if got := c.Cursor(); got != -1 {
		t.Errorf("cursor: got %d, want -1", got)
	}
	if c.Selected() != nil {
		t.Error("Selected on empty grid should be nil")
	}
	c.MoveRight()
	d, err := c.Activate()
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if d != nil {
		t.Error("Activate on empty grid should return nil")
	}
}
