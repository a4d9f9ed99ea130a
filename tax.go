package main

import (
	"errors"
	"fmt"
	"math"
)

// NewTaxSchedule validates brackets and returns a schedule with BaseTax populated.
// Brackets must start at 0, be contiguous (each Lower equals the previous Upper),
// strictly ascending, carry rates in [0, 1], and end with an unbounded bracket.
func NewTaxSchedule(year string, brackets []TaxBracket) (TaxSchedule, error) {
	if len(brackets) == 0 {
		return TaxSchedule{}, ScheduleError{Year: year, Bracket: -1, Message: "no brackets defined"}
	}

	out := make([]TaxBracket, len(brackets))
	previous := 0.0
	base := 0.0
	for i, b := range brackets {
		switch {
		case math.IsNaN(b.Lower) || math.IsNaN(b.Upper) || math.IsNaN(b.Rate):
			return TaxSchedule{}, ScheduleError{Year: year, Bracket: i, Message: "bounds and rate must be numbers"}
		case b.Lower != previous:
			if i == 0 {
				return TaxSchedule{}, ScheduleError{Year: year, Bracket: i, Message: "first bracket must start at 0"}
			}
			return TaxSchedule{}, ScheduleError{Year: year, Bracket: i,
				Message: "lower bound must equal the previous upper bound"}
		case b.Upper <= b.Lower:
			return TaxSchedule{}, ScheduleError{Year: year, Bracket: i, Message: "upper bound must be above lower bound"}
		case b.Rate < 0 || b.Rate > 1:
			return TaxSchedule{}, ScheduleError{Year: year, Bracket: i, Message: "rate must be between 0 and 1"}
		case b.IsUnbounded() && i != len(brackets)-1:
			return TaxSchedule{}, ScheduleError{Year: year, Bracket: i, Message: "only the last bracket may be unbounded"}
		}

		out[i] = b
		out[i].BaseTax = base
		if !b.IsUnbounded() {
			base += b.Width() * b.Rate
		}
		previous = b.Upper
	}

	if !out[len(out)-1].IsUnbounded() {
		return TaxSchedule{}, ScheduleError{Year: year, Bracket: len(out) - 1, Message: "last bracket must be unbounded"}
	}

	return TaxSchedule{Year: year, Brackets: out}, nil
}

// Compute applies the schedule to an income using marginal accumulation.
// Income on a boundary belongs to the lower bracket. Zero-rate brackets that
// carry income are kept in the breakdown with a zero tax line. No rounding is
// applied; presenters round to cents.
func Compute(income float64, schedule TaxSchedule) TaxResult {
	result := TaxResult{
		Year:      schedule.Year,
		Income:    income,
		Breakdown: []BreakdownEntry{},
	}

	var totalTax float64
	previous := 0.0

	for _, bracket := range schedule.Brackets {
		if income <= previous {
			break
		}

		// Calculate the taxable amount in this bracket
		taxableInBracket := math.Min(income, bracket.Upper) - previous
		if taxableInBracket > 0 {
			taxInBracket := taxableInBracket * bracket.Rate
			totalTax += taxInBracket
			result.Breakdown = append(result.Breakdown, BreakdownEntry{
				Lower:         previous,
				Upper:         bracket.Upper,
				TaxableAmount: taxableInBracket,
				Rate:          bracket.Rate,
				Tax:           taxInBracket,
			})
			result.MarginalRate = bracket.Rate
		}

		previous = bracket.Upper
	}

	result.TotalTax = totalTax
	result.NetIncome = income - totalTax
	return result
}

// ErrUnreachableNet is returned by GrossUp when no gross income nets the target,
// which happens when the top rate is 100%
var ErrUnreachableNet = errors.New("net income target cannot be reached")

// GrossUp finds the gross income whose net income equals netNeeded (well inside a cent)
// Uses binary search over Compute
func GrossUp(netNeeded float64, schedule TaxSchedule) (gross, tax float64, err error) {
	if netNeeded <= 0 {
		return 0, 0, nil
	}

	// A 100% top rate caps net income at what its lower edge takes home
	if len(schedule.Brackets) > 0 {
		top := schedule.Brackets[len(schedule.Brackets)-1]
		if best := Compute(top.Lower, schedule).NetIncome; top.Rate >= 1 && best < netNeeded {
			return 0, 0, unreachableNet(netNeeded, schedule.Year, best)
		}
	}

	low := netNeeded
	high := netNeeded
	// Widen until the upper bound nets at least what is needed
	for i := 0; i < 64 && Compute(high, schedule).NetIncome < netNeeded; i++ {
		high *= 2
	}
	if best := Compute(high, schedule).NetIncome; best < netNeeded {
		return 0, 0, unreachableNet(netNeeded, schedule.Year, best)
	}

	for i := 0; i < 200; i++ {
		mid := (low + high) / 2
		netFromMid := Compute(mid, schedule).NetIncome

		if math.Abs(netFromMid-netNeeded) < 0.0005 {
			return mid, mid - netFromMid, nil
		}

		if netFromMid < netNeeded {
			low = mid
		} else {
			high = mid
		}
	}

	// Return best estimate if convergence takes too long
	result := Compute(high, schedule)
	return high, result.TotalTax, nil
}

func unreachableNet(netNeeded float64, year string, best float64) error {
	return fmt.Errorf("%w: %.2f is more than any income in %s takes home (at most %.2f)",
		ErrUnreachableNet, netNeeded, year, best)
}
