// Package main provides the entry point for the Cell Review application.
package main

import (
	"log"
	"os"
	"time"

	"cell-review/internal/app"
	"cell-review/internal/config"
	"cell-review/internal/version"
	"cell-review/ui/mainwindow"
	"cell-review/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"
)

const appTitle = "Cell Review"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s %s", appTitle, version.String())

	cfg := config.Load()

	state, err := app.NewState(*cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}

	fyneApp := fyneapp.NewWithID("cell-review")
	fyneApp.Settings().SetTheme(&app.ReviewTheme{})

	appPrefs := prefs.Load()
	win := mainwindow.New(fyneApp, state, appPrefs)

	// An annotation file on the command line is loaded immediately.
	if len(os.Args) > 1 {
		if err := state.LoadAnnotations(os.Args[1]); err != nil {
			log.Printf("failed to load %s: %v", os.Args[1], err)
		}
	}

	setupHotReload(win)

	win.ShowAndRun()
}

// setupHotReload offers a restart when the binary is recompiled.
func setupHotReload(win *mainwindow.MainWindow) {
	reloader := app.NewHotReloader(2 * time.Second)
	if reloader == nil {
		log.Println("Hot reload: unable to determine executable path")
		return
	}

	reloader.OnNewBinary(func() {
		log.Println("Hot reload: newer binary detected")
		dialog.ShowConfirm("New Version Available",
			"The application binary has been updated.\nRestart now?",
			func(restart bool) {
				if !restart {
					reloader.ResetBaseline()
					reloader.Start()
					return
				}
				win.SavePreferences()
				log.Println("Hot reload: restarting")
				if err := reloader.Restart(); err != nil {
					log.Printf("Hot reload: restart failed: %v", err)
				}
			}, win.Window)
	})

	reloader.Start()
}
