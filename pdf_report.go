package main

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// pdfFallbacks replaces glyphs that have no cp1252 code point
var pdfFallbacks = strings.NewReplacer("─", "-", "✗", "x")

// PDFCalculationReport renders one tax calculation as a single-page PDF
type PDFCalculationReport struct {
	pdf      *fpdf.Fpdf
	tr       func(string) string
	schedule TaxSchedule
	result   TaxResult
	symbol   string
	created  time.Time
}

const (
	pageWidth    = 210.0
	marginLeft   = 15.0
	marginRight  = 15.0
	marginTop    = 15.0
	marginBottom = 20.0
	contentWidth = pageWidth - marginLeft - marginRight
)

// GenerateCalculationPDF creates a PDF with the schedule, breakdown and totals
func GenerateCalculationPDF(schedule TaxSchedule, result TaxResult, symbol string, created time.Time) ([]byte, error) {
	report := newPDFCalculationReport(schedule, result, symbol, created)

	report.pdf.SetMargins(marginLeft, marginTop, marginRight)
	report.pdf.SetAutoPageBreak(true, marginBottom)
	report.pdf.SetTitle("Income Tax Calculation FY "+schedule.Year, true)
	report.pdf.SetCreationDate(created)

	report.pdf.AddPage()
	report.addTitle()
	report.addSummary()
	report.addBreakdown()
	report.addSchedule()
	report.addFooter()

	// Output to buffer
	var buf bytes.Buffer
	if err := report.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newPDFCalculationReport(schedule TaxSchedule, result TaxResult, symbol string, created time.Time) *PDFCalculationReport {
	if symbol == "" {
		symbol = defaultCurrencySymbol
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	return &PDFCalculationReport{
		pdf: pdf,
		// Core fonts use cp1252: this maps £, € and the en dash to their single-byte codes
		tr:       pdf.UnicodeTranslatorFromDescriptor(""),
		schedule: schedule,
		result:   result,
		symbol:   symbol,
		created:  created,
	}
}

// text converts UTF-8 to the encoding of the core fonts
func (r *PDFCalculationReport) text(s string) string {
	return r.tr(pdfFallbacks.Replace(s))
}

func (r *PDFCalculationReport) money(amount float64) string {
	return FormatCurrencyWith(r.symbol, amount)
}

func (r *PDFCalculationReport) addTitle() {
	r.pdf.SetFont("Arial", "B", 22)
	r.pdf.SetTextColor(0, 51, 102)
	r.pdf.CellFormat(contentWidth, 12, r.text("Income Tax Calculation"), "", 1, "C", false, 0, "")

	r.pdf.SetFont("Arial", "", 12)
	r.pdf.SetTextColor(100, 100, 100)
	r.pdf.CellFormat(contentWidth, 8, r.text("Financial Year "+r.schedule.Year), "", 1, "C", false, 0, "")
	r.pdf.Ln(6)
}

func (r *PDFCalculationReport) addSummary() {
	r.drawSectionHeader("Results")

	rows := [][2]string{
		{"Taxable Income", r.money(r.result.Income)},
		{"Income Tax", r.money(r.result.TotalTax)},
		{"Net Income", r.money(r.result.NetIncome)},
		{"Effective Tax Rate", FormatPercent(r.result.EffectiveRate())},
		{"Marginal Tax Rate", FormatRate(r.result.MarginalRate)},
	}
	widths := []float64{contentWidth * 0.6, contentWidth * 0.4}
	for i, row := range rows {
		r.drawTableRow([]string{row[0], row[1]}, widths, i == 1 || i == 2)
	}
	r.pdf.Ln(6)
}

func (r *PDFCalculationReport) addBreakdown() {
	r.drawSectionHeader("Tax Breakdown")

	headers := []string{"Bracket", "Taxable Amount", "Rate", "Tax"}
	widths := []float64{contentWidth * 0.4, contentWidth * 0.25, contentWidth * 0.1, contentWidth * 0.25}
	r.drawTableHeader(headers, widths)

	if len(r.result.Breakdown) == 0 {
		r.drawTableRow([]string{"No taxable income", "", "", ""}, widths, false)
	}
	for _, entry := range r.result.Breakdown {
		r.drawTableRow([]string{
			FormatBracketRangeWith(r.symbol, entry.Lower, entry.Upper),
			r.money(entry.TaxableAmount),
			FormatRate(entry.Rate),
			r.money(entry.Tax),
		}, widths, false)
	}
	r.drawTableRow([]string{"Total", r.money(r.result.Income), "", r.money(r.result.TotalTax)}, widths, true)
	r.pdf.Ln(6)
}

func (r *PDFCalculationReport) addSchedule() {
	r.drawSectionHeader("Tax Rates - FY " + r.schedule.Year)

	headers := []string{"Taxable Income", "Tax Rate"}
	widths := []float64{contentWidth * 0.5, contentWidth * 0.5}
	r.drawTableHeader(headers, widths)
	for _, b := range r.schedule.Brackets {
		r.drawTableRow([]string{
			FormatBracketRangeWith(r.symbol, b.Lower, b.Upper),
			BracketRateLabel(r.symbol, b),
		}, widths, false)
	}
}

func (r *PDFCalculationReport) addFooter() {
	r.pdf.Ln(10)
	r.pdf.SetFont("Arial", "I", 8)
	r.pdf.SetTextColor(120, 120, 120)
	r.pdf.MultiCell(contentWidth, 4,
		r.text(fmt.Sprintf("Generated %s. Amounts are rounded to the nearest cent for display. "+
			"This is an estimate and not tax advice.", r.created.Format("2 January 2006 15:04"))),
		"", "C", false)
}

// Helper functions

func (r *PDFCalculationReport) drawSectionHeader(title string) {
	r.pdf.SetFont("Arial", "B", 14)
	r.pdf.SetTextColor(0, 51, 102)
	r.pdf.CellFormat(contentWidth, 9, r.text(title), "", 1, "L", false, 0, "")
	r.pdf.SetDrawColor(0, 51, 102)
	r.pdf.Line(marginLeft, r.pdf.GetY(), marginLeft+contentWidth, r.pdf.GetY())
	r.pdf.Ln(3)
}

func (r *PDFCalculationReport) drawTableHeader(headers []string, widths []float64) {
	r.pdf.SetFillColor(0, 51, 102)
	r.pdf.SetTextColor(255, 255, 255)
	r.pdf.SetFont("Arial", "B", 9)

	for i, header := range headers {
		align := "L"
		if i > 0 {
			align = "R"
		}
		r.pdf.CellFormat(widths[i], 6, r.text(header), "1", 0, align, true, 0, "")
	}
	r.pdf.Ln(-1)
}

func (r *PDFCalculationReport) drawTableRow(cells []string, widths []float64, isBold bool) {
	r.pdf.SetFillColor(250, 250, 250)
	r.pdf.SetTextColor(50, 50, 50)

	if isBold {
		r.pdf.SetFont("Arial", "B", 9)
		r.pdf.SetFillColor(240, 240, 240)
	} else {
		r.pdf.SetFont("Arial", "", 9)
	}

	for i, cell := range cells {
		align := "L"
		if i > 0 {
			align = "R"
		}
		r.pdf.CellFormat(widths[i], 6, r.text(cell), "1", 0, align, true, 0, "")
	}
	r.pdf.Ln(-1)
}
