package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidIncome matches every income ValidationError via errors.Is
var ErrInvalidIncome = errors.New("invalid income input")

// ErrQuit is returned by prompts when the user asks to leave
var ErrQuit = errors.New("quit")

// maxIncome guards against values that overflow when formatted
const maxIncome = 1e15

// Validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// Is lets callers test for ErrInvalidIncome without knowing the message
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidIncome && e.Field == "income"
}

func invalidIncome(message string) error {
	return ValidationError{Field: "income", Message: message}
}

// ParseIncome parses an annual income like "85000", "$85,000.50" or "85k".
// It rejects empty, non-numeric, non-finite and negative values.
func ParseIncome(raw string) (float64, error) {
	input := strings.TrimSpace(strings.ToLower(raw))
	if input == "" {
		return 0, invalidIncome("Please enter your annual taxable income.")
	}

	input = strings.NewReplacer("$", "", ",", "", " ", "", "_", "").Replace(input)
	multiplier := 1.0
	if strings.HasSuffix(input, "k") {
		multiplier = 1000
		input = strings.TrimSuffix(input, "k")
	} else if strings.HasSuffix(input, "m") {
		multiplier = 1000000
		input = strings.TrimSuffix(input, "m")
	}

	val, err := strconv.ParseFloat(input, 64)
	if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
		return 0, invalidIncome(fmt.Sprintf("%q is not a number. Please enter a valid positive income amount.", strings.TrimSpace(raw)))
	}
	if val < 0 {
		return 0, invalidIncome("Income cannot be negative. Please enter a valid positive income amount.")
	}

	val *= multiplier
	if val > maxIncome {
		return 0, invalidIncome("Amount seems too large. Please check the value.")
	}
	return val, nil
}

// Prompter asks for calculator input on a line-based terminal
type Prompter struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewPrompter creates a prompter reading from in and writing prompts to out
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// readLine returns the next trimmed line, io.EOF when input is exhausted,
// or ErrQuit for "q"/"quit"
func (p *Prompter) readLine() (string, error) {
	input, err := p.reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	switch strings.ToLower(input) {
	case "q", "quit", "exit":
		return "", ErrQuit
	}
	return input, nil
}

// PromptIncome asks for an annual income until a valid value is entered
func (p *Prompter) PromptIncome() (float64, error) {
	for {
		fmt.Fprint(p.out, "Please enter your Annual Taxable Income: $")
		input, err := p.readLine()
		if err != nil {
			return 0, err
		}
		income, err := ParseIncome(input)
		if err != nil {
			fmt.Fprintf(p.out, "  ✗ %s\n", err.Error())
			continue
		}
		return income, nil
	}
}

// PromptYear asks which financial year to use; blank input takes the default
func (p *Prompter) PromptYear(years []string, defaultYear string) (string, error) {
	if len(years) <= 1 {
		return defaultYear, nil
	}

	fmt.Fprintln(p.out, "Select Financial Year:")
	for i, year := range years {
		marker := " "
		if year == defaultYear {
			marker = "*"
		}
		fmt.Fprintf(p.out, "  %s %d. FY %s\n", marker, i+1, year)
	}

	for {
		fmt.Fprintf(p.out, "Year [%s]: ", defaultYear)
		input, err := p.readLine()
		if err != nil {
			return "", err
		}
		if input == "" {
			return defaultYear, nil
		}
		if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(years) {
			return years[n-1], nil
		}
		for _, year := range years {
			if strings.EqualFold(input, year) || strings.EqualFold(input, "fy "+year) {
				return year, nil
			}
		}
		fmt.Fprintf(p.out, "  ✗ Choose 1-%d or one of: %s\n", len(years), strings.Join(years, ", "))
	}
}

// PromptAgain asks whether to run another calculation
func (p *Prompter) PromptAgain() bool {
	fmt.Fprint(p.out, "Calculate another? [y/N]: ")
	input, err := p.readLine()
	if err != nil {
		return false
	}
	input = strings.ToLower(input)
	return input == "y" || input == "yes"
}
