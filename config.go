package main

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed default-schedules.yaml
var defaultSchedulesYAML string

// ErrUnknownYear is returned when a schedule is requested for a year that is not loaded
var ErrUnknownYear = errors.New("unknown financial year")

// baseTolerance is how far a declared base amount may drift from the derived one
const baseTolerance = 0.5

// Bound is a bracket edge read from YAML. It accepts numbers, "5%"-style
// preprocessed values, and the words "unbounded", "inf" or "infinity".
type Bound struct {
	Value float64
	Set   bool
}

// UnmarshalYAML implements yaml.Unmarshaler
func (b *Bound) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: bound must be a single number or \"unbounded\"", value.Line)
	}
	raw := strings.TrimSpace(strings.ToLower(value.Value))
	switch raw {
	case "", "~", "null":
		*b = Bound{}
		return nil
	case "unbounded", "inf", "infinity", ".inf":
		*b = Bound{Value: math.Inf(1), Set: true}
		return nil
	}

	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.ReplaceAll(raw, "_", "")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid bound %q", value.Line, value.Value)
	}
	*b = Bound{Value: v, Set: true}
	return nil
}

// BracketConfig is one bracket as written in a schedules file.
// Either lower/upper (contiguous edges) or min/max (whole-dollar edges where
// min is the previous max + 1) may be used.
type BracketConfig struct {
	Name  string  `yaml:"name,omitempty"`
	Lower Bound   `yaml:"lower,omitempty"`
	Upper Bound   `yaml:"upper,omitempty"`
	Min   Bound   `yaml:"min,omitempty"`
	Max   Bound   `yaml:"max,omitempty"`
	Rate  float64 `yaml:"rate"`
	// Base is optional; when present it must match the derived cumulative tax
	Base *float64 `yaml:"base,omitempty"`
}

// ScheduleConfig holds the brackets for one financial year
type ScheduleConfig struct {
	Year     string          `yaml:"year"`
	Brackets []BracketConfig `yaml:"brackets"`
}

// SchedulesFile is the top-level layout of a schedules YAML file
type SchedulesFile struct {
	Default   string           `yaml:"default,omitempty"`
	Schedules []ScheduleConfig `yaml:"schedules"`
}

// ScheduleSet holds named schedules in file order
type ScheduleSet struct {
	defaultYear string
	years       []string
	byYear      map[string]TaxSchedule
}

// Get returns the schedule for a year label
func (s *ScheduleSet) Get(year string) (TaxSchedule, error) {
	schedule, ok := s.byYear[strings.TrimSpace(year)]
	if !ok {
		return TaxSchedule{}, errors.Wrapf(ErrUnknownYear, "%q (available: %s)", year, strings.Join(s.years, ", "))
	}
	return schedule, nil
}

// Has reports whether a schedule exists for the year
func (s *ScheduleSet) Has(year string) bool {
	_, ok := s.byYear[strings.TrimSpace(year)]
	return ok
}

// Years returns year labels in file order
func (s *ScheduleSet) Years() []string {
	out := make([]string, len(s.years))
	copy(out, s.years)
	return out
}

// DefaultYear returns the file's declared default, or the last year listed
func (s *ScheduleSet) DefaultYear() string {
	if s.defaultYear != "" {
		return s.defaultYear
	}
	if len(s.years) == 0 {
		return ""
	}
	return s.years[len(s.years)-1]
}

// LoadSchedules loads schedules from a YAML file.
// An empty filename or a missing file falls back to the embedded defaults.
func LoadSchedules(filename string) (*ScheduleSet, error) {
	if filename == "" {
		return LoadDefaultSchedules()
	}

	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return LoadDefaultSchedules()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read schedules %s", filename)
	}

	set, err := ParseSchedules(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load schedules %s", filename)
	}
	return set, nil
}

// LoadDefaultSchedules parses the embedded default-schedules.yaml
func LoadDefaultSchedules() (*ScheduleSet, error) {
	set, err := ParseSchedules([]byte(defaultSchedulesYAML))
	if err != nil {
		return nil, errors.Wrap(err, "load embedded schedules")
	}
	return set, nil
}

// ParseSchedules decodes and validates a schedules document
func ParseSchedules(data []byte) (*ScheduleSet, error) {
	content := preprocessPercentages(string(data))

	var file SchedulesFile
	if err := yaml.Unmarshal([]byte(content), &file); err != nil {
		return nil, err
	}
	if len(file.Schedules) == 0 {
		return nil, errors.New("no schedules defined")
	}

	set := &ScheduleSet{
		defaultYear: strings.TrimSpace(file.Default),
		byYear:      make(map[string]TaxSchedule, len(file.Schedules)),
	}

	for _, sc := range file.Schedules {
		year := strings.TrimSpace(sc.Year)
		if year == "" {
			return nil, errors.New("schedule without a year label")
		}
		if _, dup := set.byYear[year]; dup {
			return nil, fmt.Errorf("duplicate schedule for %s", year)
		}

		schedule, err := NewTaxSchedule(year, sc.toBrackets())
		if err != nil {
			return nil, err
		}
		if err := sc.checkDeclaredBase(schedule); err != nil {
			return nil, err
		}

		set.years = append(set.years, year)
		set.byYear[year] = schedule
	}

	if set.defaultYear != "" && !set.Has(set.defaultYear) {
		return nil, errors.Wrapf(ErrUnknownYear, "default %q", set.defaultYear)
	}

	return set, nil
}

// toBrackets normalises file notation into contiguous brackets
func (sc ScheduleConfig) toBrackets() []TaxBracket {
	brackets := make([]TaxBracket, 0, len(sc.Brackets))
	previous := 0.0

	for i, bc := range sc.Brackets {
		lower := previous
		switch {
		case bc.Lower.Set:
			lower = bc.Lower.Value
		case bc.Min.Set:
			// min/max notation: a bracket starting at previous+1 continues from previous
			lower = bc.Min.Value
			if i > 0 && bc.Min.Value == previous+1 {
				lower = previous
			}
		}

		upper := math.Inf(1)
		switch {
		case bc.Upper.Set:
			upper = bc.Upper.Value
		case bc.Max.Set:
			upper = bc.Max.Value
		}

		brackets = append(brackets, TaxBracket{
			Name:  bc.Name,
			Lower: lower,
			Upper: upper,
			Rate:  bc.Rate,
		})
		previous = upper
	}

	return brackets
}

// checkDeclaredBase rejects files whose base amounts disagree with accumulation
func (sc ScheduleConfig) checkDeclaredBase(schedule TaxSchedule) error {
	for i, bc := range sc.Brackets {
		if bc.Base == nil {
			continue
		}
		derived := schedule.Brackets[i].BaseTax
		if math.Abs(*bc.Base-derived) > baseTolerance {
			return ScheduleError{
				Year:    schedule.Year,
				Bracket: i,
				Message: fmt.Sprintf("declared base %.2f does not match derived base %.2f", *bc.Base, derived),
			}
		}
	}
	return nil
}

// preprocessPercentages converts percentage values like "16%" to decimal "0.16"
func preprocessPercentages(content string) string {
	// Match patterns like: key: 16% or key: 32.5%
	re := regexp.MustCompile(`(:\s*)(\d+\.?\d*)%`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) >= 3 {
			num, err := strconv.ParseFloat(parts[2], 64)
			if err == nil {
				return parts[1] + strconv.FormatFloat(num/100.0, 'f', -1, 64)
			}
		}
		return match
	})
}
