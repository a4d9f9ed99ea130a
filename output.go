package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// defaultCurrencySymbol is used when settings do not name one
const defaultCurrencySymbol = "$"

// groupThousands inserts commas into the integer part of a plain decimal string
func groupThousands(s string) string {
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}

// formatAmount rounds half away from zero to the given places and groups thousands
func formatAmount(symbol string, amount float64, places int32) string {
	d := decimal.NewFromFloat(amount).Round(places)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	return sign + symbol + groupThousands(d.StringFixed(places))
}

// FormatCurrencyWith formats an amount to cents using the given symbol
func FormatCurrencyWith(symbol string, amount float64) string {
	return formatAmount(symbol, amount, 2)
}

// FormatWhole formats an amount as whole dollars: "$18,201"
func FormatWhole(symbol string, amount float64) string {
	return formatAmount(symbol, amount, 0)
}

// FormatRate formats a marginal rate as a percentage without trailing zeros: "16%", "32.5%"
func FormatRate(rate float64) string {
	return decimal.NewFromFloat(rate * 100).Round(2).String() + "%"
}

// FormatPercent formats an already-scaled percentage to two places: "19.16%"
func FormatPercent(pct float64) string {
	return decimal.NewFromFloat(pct).StringFixed(2) + "%"
}

// FormatBracketRange formats bracket edges using whole-dollar display bounds
func FormatBracketRange(lower, upper float64) string {
	return FormatBracketRangeWith(defaultCurrencySymbol, lower, upper)
}

// FormatBracketRangeWith formats bracket edges with a currency symbol
func FormatBracketRangeWith(symbol string, lower, upper float64) string {
	from := TaxBracket{Lower: lower, Upper: upper}.DisplayLower()
	if math.IsInf(upper, 1) {
		return FormatWhole(symbol, from) + " and above"
	}
	return FormatWhole(symbol, from) + " – " + FormatWhole(symbol, upper)
}

// BracketRateLabel describes a bracket's rate the way published tables do:
// "Nil" for zero, otherwise "30.0%" plus the base amount when there is one
func BracketRateLabel(symbol string, b TaxBracket) string {
	if b.Rate == 0 {
		return "Nil"
	}
	label := fmt.Sprintf("%.1f%%", b.Rate*100)
	if b.BaseTax > 0 {
		label += " + " + FormatCurrencyWith(symbol, b.BaseTax)
	}
	return label
}

// ConsolePresenter prints schedules and results to a terminal
type ConsolePresenter struct {
	out    io.Writer
	symbol string

	title   lipgloss.Style
	heading lipgloss.Style
	muted   lipgloss.Style
	total   lipgloss.Style
	net     lipgloss.Style
}

// NewConsolePresenter creates a presenter writing to out.
// Colours are only emitted when out is a terminal.
func NewConsolePresenter(out io.Writer, symbol string) *ConsolePresenter {
	if symbol == "" {
		symbol = defaultCurrencySymbol
	}
	r := lipgloss.NewRenderer(out)
	return &ConsolePresenter{
		out:     out,
		symbol:  symbol,
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#89b4fa")),
		heading: r.NewStyle().Bold(true),
		muted:   r.NewStyle().Foreground(lipgloss.Color("#6c7086")),
		total:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#f38ba8")),
		net:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("#a6e3a1")),
	}
}

// PrintTitle prints the program banner
func (p *ConsolePresenter) PrintTitle() {
	fmt.Fprintln(p.out, p.title.Render("=== Income Tax Calculator ==="))
}

// PrintSchedule prints the bracket table for one financial year
func (p *ConsolePresenter) PrintSchedule(schedule TaxSchedule) {
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, p.heading.Render("Tax Rates - FY "+schedule.Year))
	fmt.Fprintf(p.out, "  %-32s %s\n", "Taxable Income", "Tax Rate")
	fmt.Fprintln(p.out, p.muted.Render("  "+strings.Repeat("─", 56)))
	for _, b := range schedule.Brackets {
		fmt.Fprintf(p.out, "  %-32s %s\n",
			FormatBracketRangeWith(p.symbol, b.Lower, b.Upper), BracketRateLabel(p.symbol, b))
	}
}

// PrintResult prints the breakdown, totals and rates for a computation
func (p *ConsolePresenter) PrintResult(result TaxResult) {
	fmt.Fprintln(p.out)
	header := fmt.Sprintf("--- Calculation Result for %s", FormatCurrencyWith(p.symbol, result.Income))
	if result.Year != "" {
		header += " (FY " + result.Year + ")"
	}
	fmt.Fprintln(p.out, p.heading.Render(header+" ---"))

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "Tax Breakdown:")
	if len(result.Breakdown) == 0 {
		fmt.Fprintln(p.out, p.muted.Render("  No taxable income."))
	}
	for _, entry := range result.Breakdown {
		fmt.Fprintf(p.out, "  Zone [%s]: Taxable %s @ %s = %s\n",
			FormatBracketRangeWith(p.symbol, entry.Lower, entry.Upper),
			FormatCurrencyWith(p.symbol, entry.TaxableAmount),
			FormatRate(entry.Rate),
			FormatCurrencyWith(p.symbol, entry.Tax))
	}

	rule := p.muted.Render(strings.Repeat("-", 41))
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, rule)
	fmt.Fprintf(p.out, "%-25s %s\n", "Total Tax Payable:", p.total.Render(FormatCurrencyWith(p.symbol, result.TotalTax)))
	fmt.Fprintf(p.out, "%-25s %s\n", "Net Income (After Tax):", p.net.Render(FormatCurrencyWith(p.symbol, result.NetIncome)))
	fmt.Fprintf(p.out, "%-25s %s\n", "Effective Tax Rate:", FormatPercent(result.EffectiveRate()))
	fmt.Fprintf(p.out, "%-25s %s\n", "Marginal Tax Rate:", FormatRate(result.MarginalRate))
	fmt.Fprintln(p.out, rule)
}

// PrintGrossUp prints the gross income needed to take home a net amount
func (p *ConsolePresenter) PrintGrossUp(year string, net, gross, tax float64) {
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, p.heading.Render(fmt.Sprintf("--- Gross Income Needed (FY %s) ---", year)))
	fmt.Fprintf(p.out, "%-25s %s\n", "Take-home Target:", FormatCurrencyWith(p.symbol, net))
	fmt.Fprintf(p.out, "%-25s %s\n", "Gross Income Required:", p.net.Render(FormatCurrencyWith(p.symbol, gross)))
	fmt.Fprintf(p.out, "%-25s %s\n", "Tax On That Income:", p.total.Render(FormatCurrencyWith(p.symbol, tax)))
}

// PrintYears lists the loaded schedules, marking the default
func (p *ConsolePresenter) PrintYears(set *ScheduleSet) {
	fmt.Fprintln(p.out, p.heading.Render("Available financial years:"))
	for _, year := range set.Years() {
		marker := " "
		if year == set.DefaultYear() {
			marker = "*"
		}
		fmt.Fprintf(p.out, "  %s FY %s\n", marker, year)
	}
}
