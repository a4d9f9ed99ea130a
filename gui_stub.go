//go:build console

package main

import "fmt"

// runEmbeddedUI is a stub for console-only builds
func runEmbeddedUI(schedules *ScheduleSet, settings Settings) error {
	return fmt.Errorf("embedded UI not available in console build. Use -web flag for external browser mode")
}

// runGUI is a stub for console-only builds
func runGUI(schedules *ScheduleSet, settings Settings) error {
	return fmt.Errorf("GUI not available in console build. Use -console or -web")
}
