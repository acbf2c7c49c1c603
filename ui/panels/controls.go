package panels

import (
	"fmt"
	"strconv"

	"cell-review/internal/app"
	"cell-review/internal/session"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// ControlsPanel holds the session and filter controls: reviewer identity,
// confidence threshold, and the start/pause/stop buttons.
type ControlsPanel struct {
	state *app.State

	reviewerEntry  *widget.Entry
	thresholdEntry *widget.Entry

	startBtn  *widget.Button
	pauseBtn  *widget.Button
	stopBtn   *widget.Button
	exportBtn *widget.Button

	// OnLoad and OnExport are set by the window, which owns the dialogs.
	OnLoad   func()
	OnExport func()
	OnError  func(error)

	container *fyne.Container
}

// NewControlsPanel creates the controls panel.
func NewControlsPanel(state *app.State) *ControlsPanel {
	cp := &ControlsPanel{state: state}

	cp.reviewerEntry = widget.NewEntry()
	cp.reviewerEntry.SetPlaceHolder("reviewer id")
	if r := state.Config().Reviewer; r != "" {
		cp.reviewerEntry.SetText(r)
	}

	cp.thresholdEntry = widget.NewEntry()
	cp.thresholdEntry.SetText(fmt.Sprintf("%.2f", state.Threshold()))
	applyBtn := widget.NewButton("Apply", cp.applyThreshold)
	cp.thresholdEntry.OnSubmitted = func(string) { cp.applyThreshold() }

	loadBtn := widget.NewButton("Load Annotations...", func() {
		if cp.OnLoad != nil {
			cp.OnLoad()
		}
	})

	cp.startBtn = widget.NewButton("Start Session", cp.onStart)
	cp.pauseBtn = widget.NewButton("Pause", cp.onPauseResume)
	cp.stopBtn = widget.NewButton("Stop", cp.onStop)
	cp.exportBtn = widget.NewButton("Export...", func() {
		if cp.OnExport != nil {
			cp.OnExport()
		}
	})

	cp.container = container.NewVBox(
		loadBtn,
		widget.NewSeparator(),
		widget.NewLabel("Reviewer"),
		cp.reviewerEntry,
		widget.NewLabel("Min confidence"),
		container.NewBorder(nil, nil, nil, applyBtn, cp.thresholdEntry),
		widget.NewSeparator(),
		cp.startBtn,
		cp.pauseBtn,
		cp.stopBtn,
		cp.exportBtn,
	)

	state.On(app.EventSessionChanged, func(data interface{}) {
		if st, ok := data.(session.State); ok {
			cp.syncButtons(st)
		}
	})
	cp.syncButtons(session.StateIdle)

	return cp
}

// Container returns the panel's root object.
func (cp *ControlsPanel) Container() fyne.CanvasObject {
	return cp.container
}

// Reviewer returns the entered reviewer identifier.
func (cp *ControlsPanel) Reviewer() string {
	return cp.reviewerEntry.Text
}

func (cp *ControlsPanel) applyThreshold() {
	v, err := strconv.ParseFloat(cp.thresholdEntry.Text, 64)
	if err != nil {
		cp.fail(fmt.Errorf("threshold %q is not a number", cp.thresholdEntry.Text))
		return
	}
	cp.state.SetThreshold(v)
	cp.thresholdEntry.SetText(fmt.Sprintf("%.2f", cp.state.Threshold()))
}

func (cp *ControlsPanel) onStart() {
	if err := cp.state.StartSession(cp.Reviewer()); err != nil {
		cp.fail(err)
	}
}

func (cp *ControlsPanel) onPauseResume() {
	var err error
	if cp.state.SessionState() == session.StatePaused {
		err = cp.state.ResumeSession()
	} else {
		err = cp.state.PauseSession()
	}
	if err != nil {
		cp.fail(err)
	}
}

func (cp *ControlsPanel) onStop() {
	if err := cp.state.StopSession(); err != nil {
		cp.fail(err)
	}
}

func (cp *ControlsPanel) syncButtons(st session.State) {
	switch st {
	case session.StateRunning:
		cp.startBtn.Disable()
		cp.pauseBtn.Enable()
		cp.pauseBtn.SetText("Pause")
		cp.stopBtn.Enable()
		cp.exportBtn.Disable()
		cp.reviewerEntry.Disable()
	case session.StatePaused:
		cp.startBtn.Disable()
		cp.pauseBtn.Enable()
		cp.pauseBtn.SetText("Resume")
		cp.stopBtn.Enable()
		cp.exportBtn.Disable()
	case session.StateStopped:
		cp.startBtn.Enable()
		cp.pauseBtn.Disable()
		cp.pauseBtn.SetText("Pause")
		cp.stopBtn.Disable()
		cp.exportBtn.Enable()
		cp.reviewerEntry.Enable()
	default:
		cp.startBtn.Enable()
		cp.pauseBtn.Disable()
		cp.stopBtn.Disable()
		cp.exportBtn.Disable()
		cp.reviewerEntry.Enable()
	}
}

func (cp *ControlsPanel) fail(err error) {
	if cp.OnError != nil {
		cp.OnError(err)
	}
}
