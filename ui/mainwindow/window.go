// Package mainwindow provides the main application window.
package mainwindow

import (
	"fmt"
	"image/color"
	"path/filepath"
	"time"

	"cell-review/internal/app"
	"cell-review/internal/session"
	"cell-review/internal/version"
	"cell-review/ui/panels"
	"cell-review/ui/prefs"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app   fyne.App
	state *app.State
	prefs *prefs.Prefs

	gridPanel  *panels.GridPanel
	viewfinder *panels.ViewfinderPanel
	controls   *panels.ControlsPanel

	statusBar  *widget.Label
	timerLabel *widget.Label

	pauseOverlay *fyne.Container

	stopTimer chan struct{}
}

// New creates the main window.
func New(fyneApp fyne.App, state *app.State, p *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow("Cell Review")

	mw := &MainWindow{
		Window:    win,
		app:       fyneApp,
		state:     state,
		prefs:     p,
		stopTimer: make(chan struct{}),
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()
	mw.setupKeyboard()
	mw.restorePreferences()
	mw.startTimerLoop()

	win.SetOnClosed(func() {
		close(mw.stopTimer)
		mw.SavePreferences()
	})

	return mw
}

// setupUI creates the main layout: grid on the left, viewfinder and
// controls on the right, status bar below, pause overlay on top.
func (mw *MainWindow) setupUI() {
	mw.gridPanel = panels.NewGridPanel(mw.state)
	mw.viewfinder = panels.NewViewfinderPanel(mw.state)
	mw.controls = panels.NewControlsPanel(mw.state)

	mw.controls.OnLoad = mw.onLoadAnnotations
	mw.controls.OnExport = mw.onExport
	mw.controls.OnError = func(err error) { dialog.ShowError(err, mw.Window) }

	mw.statusBar = widget.NewLabel("Load an annotation file to begin")
	mw.timerLabel = widget.NewLabel("00:00:00")
	mw.timerLabel.TextStyle = fyne.TextStyle{Monospace: true}

	right := container.NewBorder(
		nil,
		mw.controls.Container(),
		nil, nil,
		mw.viewfinder.Container(),
	)

	split := container.NewHSplit(mw.gridPanel.Container(), right)
	split.SetOffset(0.65)

	statusRow := container.NewBorder(nil, nil, nil, mw.timerLabel, mw.statusBar)

	main := container.NewBorder(
		nil,
		container.NewPadded(statusRow),
		nil, nil,
		split,
	)

	// Shown while the session is paused so crops are not reviewable
	// off the clock.
	dim := fynecanvas.NewRectangle(color.NRGBA{A: 0xE0})
	pausedLabel := widget.NewLabel("Session paused")
	pausedLabel.TextStyle = fyne.TextStyle{Bold: true}
	resumeBtn := widget.NewButton("Resume", func() {
		if err := mw.state.ResumeSession(); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	})
	mw.pauseOverlay = container.NewStack(dim, container.NewCenter(container.NewVBox(pausedLabel, resumeBtn)))
	mw.pauseOverlay.Hide()

	mw.SetContent(container.NewStack(main, mw.pauseOverlay))
	mw.Resize(fyne.NewSize(1400, 900))
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Load Annotations...", mw.onLoadAnnotations),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export Confirmed...", mw.onExport),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.app.Quit() }),
	)

	sessionMenu := fyne.NewMenu("Session",
		fyne.NewMenuItem("Start", func() { mw.withError(mw.state.StartSession(mw.controls.Reviewer())) }),
		fyne.NewMenuItem("Pause", func() { mw.withError(mw.state.PauseSession()) }),
		fyne.NewMenuItem("Resume", func() { mw.withError(mw.state.ResumeSession()) }),
		fyne.NewMenuItem("Stop", func() { mw.withError(mw.state.StopSession()) }),
	)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", func() { mw.viewfinder.SetZoom(mw.viewfinder.Zoom() * 1.5) }),
		fyne.NewMenuItem("Zoom Out", func() { mw.viewfinder.SetZoom(mw.viewfinder.Zoom() / 1.5) }),
		fyne.NewMenuItem("Reset Zoom", func() { mw.viewfinder.SetZoom(1.0) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Next Page", func() { mw.state.Grid().NextPage() }),
		fyne.NewMenuItem("Previous Page", func() { mw.state.Grid().PrevPage() }),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, sessionMenu, viewMenu, helpMenu))
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventDetectionsLoaded, func(data interface{}) {
		if res, ok := data.(app.LoadResult); ok {
			mw.SetTitle("Cell Review - " + filepath.Base(res.Path))
			mw.updateStatus(fmt.Sprintf("Loaded %d detections (%d skipped), %d visible",
				res.Total, res.Skipped, res.Visible))
		}
	})

	mw.state.On(app.EventFilterChanged, func(data interface{}) {
		if v, ok := data.(float64); ok {
			mw.updateStatus(fmt.Sprintf("Threshold %.2f: %d detections visible",
				v, mw.state.Grid().Len()))
			mw.prefs.SetFloat(prefs.KeyThreshold, v)
		}
	})

	mw.state.On(app.EventDetectionToggled, func(interface{}) {
		mw.updateProgress()
	})

	mw.state.On(app.EventSessionChanged, func(data interface{}) {
		st, ok := data.(session.State)
		if !ok {
			return
		}
		if st == session.StatePaused {
			mw.pauseOverlay.Show()
		} else {
			mw.pauseOverlay.Hide()
		}
		switch st {
		case session.StateRunning:
			mw.updateStatus("Session running")
		case session.StateStopped:
			mw.updateStatus("Session stopped; export when ready")
		}
	})

	mw.state.On(app.EventExportComplete, func(data interface{}) {
		if path, ok := data.(string); ok {
			mw.updateStatus("Exported " + path)
		}
	})
}

// setupKeyboard wires arrow-key navigation and space-to-confirm.
func (mw *MainWindow) setupKeyboard() {
	mw.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		ctrl := mw.state.Grid()
		switch ev.Name {
		case fyne.KeyRight:
			ctrl.MoveRight()
		case fyne.KeyLeft:
			ctrl.MoveLeft()
		case fyne.KeyDown:
			ctrl.MoveDown()
		case fyne.KeyUp:
			ctrl.MoveUp()
		case fyne.KeyPageDown:
			ctrl.NextPage()
		case fyne.KeySpace, fyne.KeyReturn:
			if err := mw.state.ToggleSelected(); err != nil {
				mw.updateStatus(err.Error())
			}
		case fyne.KeyPageUp:
			ctrl.PrevPage()
		}
	})
}

// startTimerLoop keeps the elapsed-time label current while a session
// runs.
func (mw *MainWindow) startTimerLoop() {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-mw.stopTimer:
				return
			case <-ticker.C:
				sess := mw.state.Session()
				if sess == nil {
					continue
				}
				elapsed := sess.Elapsed().Round(time.Second)
				mw.timerLabel.SetText(formatDuration(elapsed))
			}
		}
	}()
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *MainWindow) updateProgress() {
	set := mw.state.Detections()
	mw.updateStatus(fmt.Sprintf("Confirmed %d of %d visible detections",
		set.ConfirmedCount(), mw.state.Grid().Len()))
}

func (mw *MainWindow) withError(err error) {
	if err != nil {
		dialog.ShowError(err, mw.Window)
	}
}

// restorePreferences applies the persisted threshold and reviewer.
func (mw *MainWindow) restorePreferences() {
	if v := mw.prefs.FloatWithFallback(prefs.KeyThreshold, -1); v >= 0 {
		mw.state.SetThreshold(v)
	}
	if z := mw.prefs.FloatWithFallback(prefs.KeyZoom, 0); z > 0 {
		mw.viewfinder.SetZoom(z)
	}
}

// SavePreferences persists window-level preferences to disk.
func (mw *MainWindow) SavePreferences() {
	mw.prefs.SetFloat(prefs.KeyThreshold, mw.state.Threshold())
	mw.prefs.SetFloat(prefs.KeyZoom, mw.viewfinder.Zoom())
	mw.prefs.SetString(prefs.KeyReviewer, mw.controls.Reviewer())
	if err := mw.prefs.Save(); err != nil {
		fmt.Println("save preferences:", err)
	}
}

func (mw *MainWindow) lastDir(key string) fyne.ListableURI {
	path := mw.prefs.String(key)
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

func (mw *MainWindow) onLoadAnnotations() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.prefs.SetString(prefs.KeyLastAnnotationDir, filepath.Dir(path))
		if err := mw.state.LoadAnnotations(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".json"}))
	if loc := mw.lastDir(prefs.KeyLastAnnotationDir); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onExport() {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if filepath.Ext(path) == "" {
			path += ".xlsx"
		}
		mw.prefs.SetString(prefs.KeyLastExportDir, filepath.Dir(path))
		if err := mw.state.Export(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFileName(fmt.Sprintf("review_%s.xlsx", time.Now().Format("20060102_150405")))
	if loc := mw.lastDir(prefs.KeyLastExportDir); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About Cell Review",
		fmt.Sprintf("Cell Review %s\n\n"+
			"Batch verification of model-detected cells\n"+
			"in microscopy images.",
			version.String()),
		mw.Window)
}
