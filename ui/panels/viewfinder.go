package panels

import (
	"fmt"
	"log"

	"cell-review/internal/app"
	"cell-review/internal/detection"

	"github.com/disintegration/imaging"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const (
	minViewZoom  = 0.1
	maxViewZoom  = 3.0
	viewZoomStep = 1.5
)

// ViewfinderPanel shows the selected detection at inspection size with
// zoom controls.
type ViewfinderPanel struct {
	state *app.State

	det  *detection.Detection
	zoom float64

	img       *fynecanvas.Image
	infoLabel *widget.Label
	zoomLabel *widget.Label
	container *fyne.Container
}

// NewViewfinderPanel creates the viewfinder and subscribes it to selection
// changes.
func NewViewfinderPanel(state *app.State) *ViewfinderPanel {
	vp := &ViewfinderPanel{state: state, zoom: 1.0}

	vp.img = fynecanvas.NewImageFromImage(nil)
	vp.img.FillMode = fynecanvas.ImageFillContain
	size := float32(state.Config().ViewfinderSize)
	vp.img.SetMinSize(fyne.NewSize(size/2, size/2))

	vp.infoLabel = widget.NewLabel("No selection")
	vp.infoLabel.Wrapping = fyne.TextWrapWord
	vp.zoomLabel = widget.NewLabel("100%")

	zoomOut := widget.NewButton("-", func() { vp.SetZoom(vp.zoom / viewZoomStep) })
	zoomIn := widget.NewButton("+", func() { vp.SetZoom(vp.zoom * viewZoomStep) })
	reset := widget.NewButton("Fit", func() { vp.SetZoom(1.0) })

	controls := container.NewHBox(
		widget.NewLabel("Zoom:"),
		zoomOut, vp.zoomLabel, zoomIn, reset,
	)

	scroll := container.NewScroll(vp.img)
	vp.container = container.NewBorder(
		controls,
		vp.infoLabel,
		nil, nil,
		scroll,
	)

	state.On(app.EventSelectionChanged, func(data interface{}) {
		d, _ := data.(*detection.Detection)
		vp.Show(d)
	})
	state.On(app.EventDetectionToggled, func(data interface{}) {
		if d, ok := data.(*detection.Detection); ok && d == vp.det {
			vp.updateInfo()
		}
	})
	state.On(app.EventDetectionsLoaded, func(interface{}) {
		vp.Show(state.Grid().Selected())
	})

	return vp
}

// Container returns the panel's root object.
func (vp *ViewfinderPanel) Container() fyne.CanvasObject {
	return vp.container
}

// Show points the viewfinder at a detection. The zoom level is kept
// across selections so stepping through cells stays comparable.
func (vp *ViewfinderPanel) Show(d *detection.Detection) {
	vp.det = d
	vp.render()
	vp.updateInfo()
}

// Zoom returns the current zoom factor.
func (vp *ViewfinderPanel) Zoom() float64 { return vp.zoom }

// SetZoom applies a zoom factor clamped to [0.1, 3.0] and re-renders.
func (vp *ViewfinderPanel) SetZoom(z float64) {
	if z < minViewZoom {
		z = minViewZoom
	}
	if z > maxViewZoom {
		z = maxViewZoom
	}
	vp.zoom = z
	vp.zoomLabel.SetText(fmt.Sprintf("%.0f%%", z*100))
	vp.render()
}

func (vp *ViewfinderPanel) render() {
	if vp.det == nil {
		vp.img.Image = nil
		vp.img.Refresh()
		return
	}

	base := vp.state.Config().ViewfinderSize
	crop, err := vp.state.CropFor(vp.det, base)
	if err != nil {
		log.Printf("viewfinder crop %s: %v", vp.det.ID, err)
		vp.img.Image = placeholderImage(base)
		vp.img.Refresh()
		return
	}

	if vp.zoom != 1.0 {
		scaled := int(float64(base) * vp.zoom)
		if scaled < 1 {
			scaled = 1
		}
		vp.img.Image = imaging.Resize(crop, scaled, scaled, imaging.Linear)
	} else {
		vp.img.Image = crop
	}
	vp.img.Refresh()
}

func (vp *ViewfinderPanel) updateInfo() {
	if vp.det == nil {
		vp.infoLabel.SetText("No selection")
		return
	}
	status := "unconfirmed"
	if vp.det.Confirmed {
		status = "confirmed"
	}
	vp.infoLabel.SetText(fmt.Sprintf("%s\n%s  conf %.3f  box %s  %s",
		vp.det.ID, vp.det.CellID, vp.det.Confidence, vp.det.Box, status))
}
