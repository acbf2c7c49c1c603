// Package grid drives paginated navigation over the filtered detection
// list: which page is showing, which cell is selected, and whether cell
// activation is currently allowed.
package grid

import (
	"errors"
	"sync"

	"cell-review/internal/detection"
)

// ErrReviewInactive indicates a cell activation while the session is not
// running. Confirmations only count during active review time.
var ErrReviewInactive = errors.New("review session not running")

// Controller holds grid navigation state. The cursor wraps across page
// boundaries so arrow-key review flows through the whole detection list;
// explicit page jumps clamp instead. Safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	rows, cols int
	items      []*detection.Detection
	cursor     int

	gate func() bool // reports whether activation is allowed

	onSelection func(index int, d *detection.Detection)
	onPage      func(page int)
}

// NewController creates a controller for a rows x cols grid. The gate is
// consulted on every activation; nil means always allowed.
func NewController(rows, cols int, gate func() bool) *Controller {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	return &Controller{rows: rows, cols: cols, gate: gate}
}

// OnSelectionChanged registers the callback fired when the cursor moves.
func (c *Controller) OnSelectionChanged(fn func(index int, d *detection.Detection)) {
	c.mu.Lock()
	c.onSelection = fn
	c.mu.Unlock()
}

// OnPageChanged registers the callback fired when the visible page changes.
func (c *Controller) OnPageChanged(fn func(page int)) {
	c.mu.Lock()
	c.onPage = fn
	c.mu.Unlock()
}

// PageSize returns the number of cells per page.
func (c *Controller) PageSize() int { return c.rows * c.cols }

// SetItems replaces the detection list, keeping the cursor on the same
// position where possible and clamping it (and therefore the page) when
// the list shrank.
func (c *Controller) SetItems(items []*detection.Detection) {
	c.mu.Lock()
	prevPage := c.pageLocked()
	c.items = items
	if c.cursor >= len(items) {
		c.cursor = len(items) - 1
	}
	if c.cursor < 0 {
		c.cursor = 0
	}
	c.notifyAndUnlock(prevPage)
}

// Len returns the number of detections under navigation.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// PageCount returns the number of pages, at least 1.
func (c *Controller) PageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageCountLocked()
}

func (c *Controller) pageCountLocked() int {
	n := (len(c.items) + c.PageSize() - 1) / c.PageSize()
	if n < 1 {
		n = 1
	}
	return n
}

// CurrentPage returns the page the cursor is on.
func (c *Controller) CurrentPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageLocked()
}

func (c *Controller) pageLocked() int {
	return c.cursor / c.PageSize()
}

// Page returns the detections on the current page, in grid order.
func (c *Controller) Page() []*detection.Detection {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := c.pageLocked() * c.PageSize()
	end := start + c.PageSize()
	if start > len(c.items) {
		return nil
	}
	if end > len(c.items) {
		end = len(c.items)
	}
	return c.items[start:end]
}

// GoToPage jumps to the given page, clamped to the valid range, and puts
// the cursor on its first cell.
func (c *Controller) GoToPage(page int) {
	c.mu.Lock()
	prevPage := c.pageLocked()
	if page < 0 {
		page = 0
	}
	if max := c.pageCountLocked() - 1; page > max {
		page = max
	}
	c.cursor = page * c.PageSize()
	if c.cursor >= len(c.items) && len(c.items) > 0 {
		c.cursor = len(c.items) - 1
	}
	c.notifyAndUnlock(prevPage)
}

// NextPage advances one page, clamping at the last.
func (c *Controller) NextPage() {
	c.GoToPage(c.CurrentPage() + 1)
}

// PrevPage goes back one page, clamping at the first.
func (c *Controller) PrevPage() {
	c.GoToPage(c.CurrentPage() - 1)
}

// Cursor returns the global index of the selected detection, -1 when empty.
func (c *Controller) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return -1
	}
	return c.cursor
}

// Selected returns the detection under the cursor, nil when empty.
func (c *Controller) Selected() *detection.Detection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedLocked()
}

func (c *Controller) selectedLocked() *detection.Detection {
	if len(c.items) == 0 {
		return nil
	}
	return c.items[c.cursor]
}

// MoveRight advances the cursor one cell, wrapping from the last detection
// to the first.
func (c *Controller) MoveRight() { c.moveBy(1) }

// MoveLeft moves the cursor back one cell, wrapping from the first
// detection to the last.
func (c *Controller) MoveLeft() { c.moveBy(-1) }

// MoveDown moves the cursor one row down, wrapping past the end.
func (c *Controller) MoveDown() { c.moveBy(c.cols) }

// MoveUp moves the cursor one row up, wrapping past the start.
func (c *Controller) MoveUp() { c.moveBy(-c.cols) }

func (c *Controller) moveBy(delta int) {
	c.mu.Lock()
	if len(c.items) == 0 {
		c.mu.Unlock()
		return
	}
	prevPage := c.pageLocked()
	c.cursor = ((c.cursor+delta)%len(c.items) + len(c.items)) % len(c.items)
	c.notifyAndUnlock(prevPage)
}

// SelectIndex puts the cursor on a specific global index, used when a cell
// is clicked directly.
func (c *Controller) SelectIndex(index int) {
	c.mu.Lock()
	if index < 0 || index >= len(c.items) {
		c.mu.Unlock()
		return
	}
	prevPage := c.pageLocked()
	c.cursor = index
	c.notifyAndUnlock(prevPage)
}

// Activate returns the selected detection for toggling. It fails with
// ErrReviewInactive when the gate reports review is not running, and
// returns nil when nothing is selected.
func (c *Controller) Activate() (*detection.Detection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gate != nil && !c.gate() {
		return nil, ErrReviewInactive
	}
	return c.selectedLocked(), nil
}

// notifyAndUnlock releases the lock and fires the registered callbacks.
// It must be the last statement of any method that took the lock itself.
func (c *Controller) notifyAndUnlock(prevPage int) {
	page := c.pageLocked()
	index := c.cursor
	sel := c.selectedLocked()
	onSelection := c.onSelection
	onPage := c.onPage
	c.mu.Unlock()

	if onSelection != nil {
		onSelection(index, sel)
	}
	if onPage != nil && page != prevPage {
		onPage(page)
	}
}
