package main

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// csvAmount writes an amount to cents without symbol or grouping so
// spreadsheets read it as a number
func csvAmount(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}

// WriteBreakdownCSV writes one row per contributing bracket followed by totals
func WriteBreakdownCSV(w io.Writer, result TaxResult, symbol string) error {
	cw := csv.NewWriter(w)

	rows := [][]string{
		{"Financial Year", "Bracket", "Lower", "Upper", "Rate", "Taxable Amount", "Tax"},
	}
	for _, entry := range result.Breakdown {
		upper := ""
		if upperJSON(entry.Upper) != nil {
			upper = csvAmount(entry.Upper)
		}
		rows = append(rows, []string{
			result.Year,
			FormatBracketRangeWith(symbol, entry.Lower, entry.Upper),
			csvAmount(entry.Lower),
			upper,
			FormatRate(entry.Rate),
			csvAmount(entry.TaxableAmount),
			csvAmount(entry.Tax),
		})
	}

	rows = append(rows,
		[]string{result.Year, "Total Tax Payable", "", "", "", csvAmount(result.Income), csvAmount(result.TotalTax)},
		[]string{result.Year, "Net Income", "", "", "", "", csvAmount(result.NetIncome)},
		[]string{result.Year, "Effective Tax Rate", "", "", FormatPercent(result.EffectiveRate()), "", ""},
		[]string{result.Year, "Marginal Tax Rate", "", "", FormatRate(result.MarginalRate), "", ""},
	)

	if err := cw.WriteAll(rows); err != nil {
		return errors.Wrap(err, "write csv")
	}
	return nil
}

// writeFileWith creates filename and fills it using write
func writeFileWith(filename string, write func(io.Writer) error) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "create %s", filename)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "close %s", filename)
}
