package main

import (
	"encoding/json"
	"fmt"
	"math"
)

// Unbounded marks the upper edge of the top bracket
var Unbounded = math.Inf(1)

// TaxBracket is one progressive slice of a schedule.
// Income strictly above Lower and up to Upper (inclusive) is taxed at Rate.
type TaxBracket struct {
	Name  string  `json:"name,omitempty"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"-"`
	Rate  float64 `json:"rate"`
	// BaseTax is the cumulative tax owed on all income up to Lower.
	// It is derived by NewTaxSchedule and never read from input.
	BaseTax float64 `json:"base_tax"`
}

// IsUnbounded reports whether the bracket has no upper edge
func (b TaxBracket) IsUnbounded() bool {
	return math.IsInf(b.Upper, 1)
}

// DisplayLower returns the first whole dollar that falls into the bracket
func (b TaxBracket) DisplayLower() float64 {
	if b.Lower > 0 {
		return b.Lower + 1
	}
	return 0
}

// Width returns the size of the bracket (Inf for the top bracket)
func (b TaxBracket) Width() float64 {
	return b.Upper - b.Lower
}

// upperJSON converts an upper edge to a JSON-safe pointer (nil when unbounded)
func upperJSON(upper float64) *float64 {
	if math.IsInf(upper, 1) {
		return nil
	}
	return &upper
}

// MarshalJSON writes Upper as null for the top bracket
func (b TaxBracket) MarshalJSON() ([]byte, error) {
	type bracket TaxBracket
	return json.Marshal(struct {
		bracket
		Upper *float64 `json:"upper"`
	}{bracket(b), upperJSON(b.Upper)})
}

// TaxSchedule is an ordered, contiguous set of brackets for one financial year.
// Build it with NewTaxSchedule so the invariants hold and BaseTax is populated.
type TaxSchedule struct {
	Year     string       `json:"year"`
	Brackets []TaxBracket `json:"brackets"`
}

// BreakdownEntry records what a single bracket contributed to a result
type BreakdownEntry struct {
	Lower         float64 `json:"lower"`
	Upper         float64 `json:"-"`
	TaxableAmount float64 `json:"taxable_amount"`
	Rate          float64 `json:"rate"`
	Tax           float64 `json:"tax"`
}

// Range formats the bracket range as "$18,201 – $45,000" or "$190,001 and above"
func (e BreakdownEntry) Range() string {
	return FormatBracketRange(e.Lower, e.Upper)
}

// MarshalJSON writes Upper as null for the top bracket and adds the display range
func (e BreakdownEntry) MarshalJSON() ([]byte, error) {
	type entry BreakdownEntry
	return json.Marshal(struct {
		entry
		Upper *float64 `json:"upper"`
		Range string   `json:"range"`
	}{entry(e), upperJSON(e.Upper), e.Range()})
}

// TaxResult is the output of a single computation
type TaxResult struct {
	Year         string           `json:"year,omitempty"`
	Income       float64          `json:"income"`
	TotalTax     float64          `json:"total_tax"`
	NetIncome    float64          `json:"net_income"`
	MarginalRate float64          `json:"marginal_rate"`
	Breakdown    []BreakdownEntry `json:"breakdown"`
}

// EffectiveRate returns total tax as a percentage of income (0 for zero income)
func (r TaxResult) EffectiveRate() float64 {
	if r.Income > 0 {
		return r.TotalTax / r.Income * 100
	}
	return 0
}

// ScheduleError describes a schedule that breaks the bracket invariants
type ScheduleError struct {
	Year    string
	Bracket int
	Message string
}

func (e ScheduleError) Error() string {
	if e.Bracket < 0 {
		return fmt.Sprintf("schedule %s: %s", e.Year, e.Message)
	}
	return fmt.Sprintf("schedule %s, bracket %d: %s", e.Year, e.Bracket+1, e.Message)
}
