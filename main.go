package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Custom usage message
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Income Tax Calculator

Calculates progressive income tax for an annual taxable income using the
bracket schedule of a financial year (1 July - 30 June, e.g. 2024-25).
Shows the tax payable in each bracket, total tax, net income and the
effective and marginal rates.

MODES:
  GUI (default)        Embedded browser window with a year selector and form
  Console (-console)   Prompts for the income on the terminal
  Web (-web)           Serves the form and JSON API, opens your browser
  One-shot (-income)   Calculates a single income and exits

Usage:
  %s [options]

Options:
`, os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  %s -console                  Interactive prompt
  %s -income 85000             Tax on $85,000 for the current year
  %s -income 85k -year 2023-24 Tax on $85,000 using the 2023-24 rates
  %s -net 68712                Gross income needed to take home $68,712
  %s -income 120000 -pdf tax.pdf -csv tax.csv
  %s -list                     Show the loaded schedules
  %s -web -addr :8080          Web server on a specific port
  %s -config rates.yaml        Use your own bracket schedules

Settings:
  settings.yaml (or TAXCALC_* environment variables, or a .env file)
  may set addr, log_level, stage, default_year, schedules_file,
  currency_symbol and cors_origins.
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
	}

	// Command line flags
	configFile := flag.String("config", "", "Path to YAML tax schedules (default: settings schedules_file, then built-in rates)")
	settingsFile := flag.String("settings", "", "Path to settings YAML (default: ./settings.yaml if present)")
	yearFlag := flag.String("year", "", "Financial year to use, e.g. 2024-25 (default: current year if loaded)")
	incomeFlag := flag.String("income", "", "Annual taxable income to calculate, e.g. 85000, 85,000 or 85k")
	netFlag := flag.String("net", "", "Take-home amount to gross up into the income required")
	listMode := flag.Bool("list", false, "List the loaded financial years and their brackets")
	pdfFile := flag.String("pdf", "", "Write a PDF report of the -income calculation to this file")
	csvFile := flag.String("csv", "", "Write the -income breakdown as CSV to this file")
	consoleMode := flag.Bool("console", false, "Use console interface instead of GUI (default is GUI)")
	webMode := flag.Bool("web", false, "Start web server mode (opens external browser)")
	uiMode := flag.Bool("ui", false, "Start embedded browser mode (webview window)")
	webAddr := flag.String("addr", "", "Web server address (default: settings addr; use :0 for auto port)")
	flag.Parse()

	if err := LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	settings, err := LoadSettings(*settingsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading settings: %v\n", err)
		os.Exit(1)
	}

	if err := InitLogger(settings.LogLevel, settings.Stage); err != nil {
		fmt.Fprintf(os.Stderr, "Error initialising logger: %v\n", err)
		os.Exit(1)
	}
	defer Log.Sync()

	if settings.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	schedulesFile := *configFile
	if schedulesFile == "" {
		schedulesFile = settings.SchedulesFile
	}
	schedules, err := LoadSchedules(schedulesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading schedules: %v\n", err)
		os.Exit(1)
	}
	Log.Debug("Schedules loaded",
		zap.String("file", schedulesFile),
		zap.Strings("years", schedules.Years()),
	)

	addr := *webAddr
	if addr == "" {
		addr = settings.Addr
	}

	// Embedded browser mode
	if *uiMode {
		if err := runEmbeddedUI(schedules, settings); err != nil {
			fmt.Fprintf(os.Stderr, "Embedded UI error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Web server mode (external browser)
	if *webMode {
		server := NewWebServer(schedules, settings, addr)
		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Web server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	presenter := NewConsolePresenter(os.Stdout, settings.CurrencySymbol)

	if *listMode {
		runListMode(presenter, schedules)
		return
	}

	requestedYear := *yearFlag
	if requestedYear == "" {
		requestedYear = settings.DefaultYear
	}
	year, err := ResolveYear(schedules, requestedYear, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if (*pdfFile != "" || *csvFile != "") && *incomeFlag == "" {
		fmt.Fprintln(os.Stderr, "Error: -pdf and -csv need an -income to report on")
		os.Exit(1)
	}

	if *netFlag != "" {
		if err := runGrossUp(presenter, schedules, year, *netFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *incomeFlag != "" {
		exports := reportFiles{pdf: *pdfFile, csv: *csvFile, symbol: settings.CurrencySymbol}
		if err := runOneShot(presenter, schedules, year, *incomeFlag, exports); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// A year flag on its own is a console request
	if *consoleMode || *yearFlag != "" {
		runConsoleMode(presenter, schedules, year, *yearFlag != "")
		return
	}

	// Default: GUI mode
	if err := runGUI(schedules, settings); err != nil {
		fmt.Fprintf(os.Stderr, "GUI error: %v\n", err)
		// Fall back to console mode if GUI fails
		fmt.Println("Falling back to console mode...")
		runConsoleMode(presenter, schedules, year, false)
	}
}

// runConsoleMode runs the prompt loop until the user quits or input ends
func runConsoleMode(presenter *ConsolePresenter, schedules *ScheduleSet, year string, yearFixed bool) {
	presenter.PrintTitle()
	fmt.Println("Enter an amount like 85000, 85,000 or 85k. Type q to quit.")
	fmt.Println()

	prompter := NewPrompter(os.Stdin, os.Stdout)
	if !yearFixed {
		chosen, err := prompter.PromptYear(schedules.Years(), year)
		if err != nil {
			exitPrompt(err)
			return
		}
		year = chosen
	}

	schedule, err := schedules.Get(year)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	presenter.PrintSchedule(schedule)
	fmt.Println()

	for {
		income, err := prompter.PromptIncome()
		if err != nil {
			exitPrompt(err)
			return
		}

		result := Compute(income, schedule)
		Log.Debug("Calculated",
			zap.String("year", year),
			zap.Float64("income", income),
			zap.Float64("total_tax", result.TotalTax),
		)
		presenter.PrintResult(result)
		fmt.Println()

		if !prompter.PromptAgain() {
			return
		}
	}
}

// exitPrompt ends the console session; quitting and end of input are normal exits
func exitPrompt(err error) {
	if errors.Is(err, ErrQuit) || errors.Is(err, io.EOF) {
		fmt.Println()
		return
	}
	fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
	os.Exit(1)
}

// runListMode prints every loaded schedule
func runListMode(presenter *ConsolePresenter, schedules *ScheduleSet) {
	presenter.PrintYears(schedules)
	for _, year := range schedules.Years() {
		schedule, err := schedules.Get(year)
		if err != nil {
			continue
		}
		presenter.PrintSchedule(schedule)
	}
}

// reportFiles names the optional exports of a one-shot calculation
type reportFiles struct {
	pdf    string
	csv    string
	symbol string
}

// runOneShot calculates a single income and writes any requested exports
func runOneShot(presenter *ConsolePresenter, schedules *ScheduleSet, year, rawIncome string, exports reportFiles) error {
	income, err := ParseIncome(rawIncome)
	if err != nil {
		return err
	}
	schedule, err := schedules.Get(year)
	if err != nil {
		return err
	}

	result := Compute(income, schedule)
	presenter.PrintSchedule(schedule)
	presenter.PrintResult(result)

	if exports.pdf != "" {
		pdfBytes, err := GenerateCalculationPDF(schedule, result, exports.symbol, time.Now())
		if err != nil {
			return fmt.Errorf("generate PDF: %w", err)
		}
		if err := os.WriteFile(exports.pdf, pdfBytes, 0644); err != nil {
			return fmt.Errorf("write PDF: %w", err)
		}
		fmt.Printf("\nPDF report written to %s\n", exports.pdf)
	}

	if exports.csv != "" {
		err := writeFileWith(exports.csv, func(w io.Writer) error {
			return WriteBreakdownCSV(w, result, exports.symbol)
		})
		if err != nil {
			return err
		}
		fmt.Printf("CSV breakdown written to %s\n", exports.csv)
	}
	return nil
}

// runGrossUp prints the gross income needed to take home rawNet
func runGrossUp(presenter *ConsolePresenter, schedules *ScheduleSet, year, rawNet string) error {
	net, err := ParseIncome(rawNet)
	if err != nil {
		return err
	}
	schedule, err := schedules.Get(year)
	if err != nil {
		return err
	}

	gross, tax, err := GrossUp(net, schedule)
	if err != nil {
		return err
	}
	presenter.PrintGrossUp(year, net, gross, tax)
	return nil
}

// openBrowser opens a file in the default browser
func openBrowser(filename string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", filename)
	case "darwin":
		cmd = exec.Command("open", filename)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", filename)
	default:
		Log.Warn("Cannot open browser", zap.String("os", runtime.GOOS))
		return
	}

	err := cmd.Start()
	if err != nil {
		Log.Warn("Error opening browser", zap.Error(err))
	}
}
