// Package panels provides the UI panels of the review window.
package panels

import (
	"fmt"
	"image"
	"image/color"
	"log"

	"cell-review/internal/app"
	"cell-review/internal/detection"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

const cellSize = 96

var (
	colorConfirmed = color.NRGBA{R: 0x4C, G: 0xAF, B: 0x50, A: 0xFF}
	colorSelected  = color.NRGBA{R: 0x00, G: 0x83, B: 0x8F, A: 0xFF}
	colorHover     = color.NRGBA{R: 0x90, G: 0x90, B: 0x90, A: 0xFF}
	colorIdle      = color.NRGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xFF}
)

// GridPanel shows one page of detection crops as a clickable grid.
type GridPanel struct {
	state *app.State

	cells     []*gridCell
	pageLabel *widget.Label
	prevBtn   *widget.Button
	nextBtn   *widget.Button
	container *fyne.Container
}

// NewGridPanel creates the grid panel and subscribes it to state events.
func NewGridPanel(state *app.State) *GridPanel {
	gp := &GridPanel{state: state}

	cfg := state.Config()
	total := cfg.GridRows * cfg.GridCols
	gp.cells = make([]*gridCell, total)
	objects := make([]fyne.CanvasObject, total)
	for i := 0; i < total; i++ {
		cell := newGridCell(gp, i)
		gp.cells[i] = cell
		objects[i] = cell
	}

	gp.pageLabel = widget.NewLabel("Page 1 / 1")
	gp.prevBtn = widget.NewButton("< Prev", func() {
		state.Grid().PrevPage()
		gp.Reload()
	})
	gp.nextBtn = widget.NewButton("Next >", func() {
		state.Grid().NextPage()
		gp.Reload()
	})

	grid := container.NewGridWithColumns(cfg.GridCols, objects...)
	nav := container.NewHBox(gp.prevBtn, gp.pageLabel, gp.nextBtn)
	gp.container = container.NewBorder(nil, container.NewCenter(nav), nil, nil, grid)

	state.On(app.EventDetectionsLoaded, func(interface{}) { gp.Reload() })
	state.On(app.EventFilterChanged, func(interface{}) { gp.Reload() })
	state.On(app.EventPageChanged, func(interface{}) { gp.Reload() })
	state.On(app.EventSelectionChanged, func(interface{}) { gp.refreshHighlights() })
	state.On(app.EventDetectionToggled, func(interface{}) { gp.refreshHighlights() })

	return gp
}

// Container returns the panel's root object.
func (gp *GridPanel) Container() fyne.CanvasObject {
	return gp.container
}

// Reload rebinds every cell to the current page and warms the cache for
// the next one.
func (gp *GridPanel) Reload() {
	ctrl := gp.state.Grid()
	page := ctrl.Page()

	for i, cell := range gp.cells {
		if i < len(page) {
			cell.bind(page[i])
		} else {
			cell.bind(nil)
		}
	}

	gp.pageLabel.SetText(fmt.Sprintf("Page %d / %d", ctrl.CurrentPage()+1, ctrl.PageCount()))
	gp.refreshHighlights()

	go func() {
		for res := range gp.state.PrefetchPage(cellSize) {
			if res.Err != nil {
				log.Printf("prefetch %s: %v", res.Key.DetectionID, res.Err)
			}
		}
	}()
}

func (gp *GridPanel) refreshHighlights() {
	for _, cell := range gp.cells {
		cell.Refresh()
	}
}

// cellActivated handles a click on a grid cell.
func (gp *GridPanel) cellActivated(index int) {
	ctrl := gp.state.Grid()
	globalIndex := ctrl.CurrentPage()*ctrl.PageSize() + index
	ctrl.SelectIndex(globalIndex)

	if err := gp.state.ToggleSelected(); err != nil {
		log.Printf("toggle: %v", err)
	}
}

// gridCell is one clickable thumbnail in the grid.
type gridCell struct {
	widget.BaseWidget

	panel *GridPanel
	index int // position within the page

	det     *detection.Detection
	hovered bool

	img    *fynecanvas.Image
	border *fynecanvas.Rectangle
	label  *widget.Label
}

var _ fyne.Tappable = (*gridCell)(nil)
var _ desktop.Hoverable = (*gridCell)(nil)

func newGridCell(panel *GridPanel, index int) *gridCell {
	c := &gridCell{panel: panel, index: index}

	c.img = fynecanvas.NewImageFromImage(nil)
	c.img.FillMode = fynecanvas.ImageFillContain
	c.img.SetMinSize(fyne.NewSize(cellSize, cellSize))

	c.border = fynecanvas.NewRectangle(color.Transparent)
	c.border.StrokeWidth = 3
	c.border.StrokeColor = colorIdle

	c.label = widget.NewLabel("")
	c.label.Alignment = fyne.TextAlignCenter
	c.label.TextStyle = fyne.TextStyle{Monospace: true}

	c.ExtendBaseWidget(c)
	return c
}

// bind points the cell at a detection, or clears it for the page remainder.
func (c *gridCell) bind(d *detection.Detection) {
	c.det = d
	if d == nil {
		c.img.Image = nil
		c.label.SetText("")
		c.Refresh()
		return
	}

	c.label.SetText(fmt.Sprintf("%.2f", d.Confidence))

	crop, err := c.panel.state.CropFor(d, cellSize)
	if err != nil {
		log.Printf("crop %s: %v", d.ID, err)
		c.img.Image = placeholderImage(cellSize)
	} else {
		c.img.Image = crop
	}
	c.Refresh()
}

func (c *gridCell) Tapped(*fyne.PointEvent) {
	if c.det == nil {
		return
	}
	c.panel.cellActivated(c.index)
}

func (c *gridCell) MouseIn(*desktop.MouseEvent)    { c.hovered = true; c.Refresh() }
func (c *gridCell) MouseMoved(*desktop.MouseEvent) {}
func (c *gridCell) MouseOut()                      { c.hovered = false; c.Refresh() }

func (c *gridCell) Refresh() {
	switch {
	case c.det != nil && c.det.Confirmed:
		c.border.StrokeColor = colorConfirmed
	case c.det != nil && c.panel.state.Grid().Selected() == c.det:
		c.border.StrokeColor = colorSelected
	case c.hovered && c.det != nil:
		c.border.StrokeColor = colorHover
	default:
		c.border.StrokeColor = colorIdle
	}
	c.border.Refresh()
	c.img.Refresh()
	c.BaseWidget.Refresh()
}

func (c *gridCell) CreateRenderer() fyne.WidgetRenderer {
	content := container.NewStack(
		c.border,
		container.NewBorder(nil, c.label, nil, nil, c.img),
	)
	return widget.NewSimpleRenderer(content)
}

// placeholderImage is shown for detections whose source image is missing
// or undecodable.
func placeholderImage(size int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	dark := color.RGBA{R: 40, G: 40, B: 40, A: 255}
	cross := color.RGBA{R: 160, G: 60, B: 60, A: 255}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, dark)
		}
	}
	for i := 0; i < size; i++ {
		img.Set(i, i, cross)
		img.Set(size-1-i, i, cross)
	}
	return img
}
