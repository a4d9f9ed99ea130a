package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Financial years run 1 July to 30 June and are labelled "2024-25"
const financialYearStartMonth = time.July

var financialYearRegex = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// FinancialYearLabel returns the label for the financial year starting in startYear
func FinancialYearLabel(startYear int) string {
	return fmt.Sprintf("%d-%02d", startYear, (startYear+1)%100)
}

// FinancialYearStart returns the calendar year in which the financial year containing t began
func FinancialYearStart(t time.Time) int {
	if t.Month() >= financialYearStartMonth {
		return t.Year()
	}
	return t.Year() - 1
}

// ParseFinancialYear parses "2024-25" into its start year, checking the suffix follows on
func ParseFinancialYear(label string) (int, error) {
	m := financialYearRegex.FindStringSubmatch(label)
	if m == nil {
		return 0, fmt.Errorf("invalid financial year %q: use YYYY-YY (e.g., 2024-25)", label)
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if (start+1)%100 != end {
		return 0, fmt.Errorf("invalid financial year %q: %02d does not follow %d", label, end, start)
	}
	return start, nil
}

// ResolveYear picks the schedule year to use: the requested year if given,
// else the financial year containing now if loaded, else the set's default
func ResolveYear(set *ScheduleSet, requested string, now time.Time) (string, error) {
	if requested = strings.TrimSpace(requested); requested != "" {
		if set.Has(requested) {
			return requested, nil
		}
		// Explain a malformed label rather than only listing what is loaded
		if _, err := ParseFinancialYear(requested); err != nil {
			return "", fmt.Errorf("%w: %v (loaded: %s)", ErrUnknownYear, err, strings.Join(set.Years(), ", "))
		}
		_, err := set.Get(requested)
		return "", err
	}

	current := FinancialYearLabel(FinancialYearStart(now))
	if set.Has(current) {
		return current, nil
	}
	return set.DefaultYear(), nil
}
