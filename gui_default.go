//go:build !console

package main

import (
	"fmt"
	"os"
	"runtime"

	webview "github.com/webview/webview_go"
)

// runEmbeddedUI starts the web server and opens an embedded browser window
func runEmbeddedUI(schedules *ScheduleSet, settings Settings) error {
	if runtime.GOOS == "linux" && os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return fmt.Errorf("no display available")
	}

	// The window talks to a private server on a free port
	ws := NewWebServer(schedules, settings, "localhost:0")

	// Start server and get URL
	url, cleanup, err := ws.StartForEmbedded()
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	defer cleanup()

	// Create webview window (devtools only at debug level)
	w := webview.New(settings.LogLevel == "debug")
	defer w.Destroy()

	w.SetTitle("Income Tax Calculator")
	w.SetSize(820, 900, webview.HintNone)
	w.Navigate(url)

	// Run blocks until window is closed
	w.Run()

	return nil
}

// runGUI starts the graphical user interface (uses embedded browser)
func runGUI(schedules *ScheduleSet, settings Settings) error {
	return runEmbeddedUI(schedules, settings)
}
