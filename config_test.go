package main

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultSchedules(t *testing.T) {
	set, err := LoadDefaultSchedules()
	require.NoError(t, err)

	assert.Equal(t, []string{"2023-24", "2024-25", "2025-26"}, set.Years())
	assert.Equal(t, "2024-25", set.DefaultYear())
	assert.Len(t, set.Years(), 3)

	schedule, err := set.Get("2024-25")
	require.NoError(t, err)
	require.Len(t, schedule.Brackets, 5)

	// min/max notation is normalised to contiguous edges
	b := schedule.Brackets[1]
	assert.Equal(t, 18200.0, b.Lower)
	assert.Equal(t, 45000.0, b.Upper)
	assert.Equal(t, 0.16, b.Rate)
	assert.Equal(t, "Tax-free threshold", schedule.Brackets[0].Name)
	assert.True(t, schedule.Brackets[4].IsUnbounded())
	assert.Equal(t, 190001.0, schedule.Brackets[4].DisplayLower())
	assert.Equal(t, 0.0, schedule.Brackets[0].DisplayLower())
}

func TestScheduleSet_UnknownYear(t *testing.T) {
	set, err := LoadDefaultSchedules()
	require.NoError(t, err)

	_, err = set.Get("2019-20")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownYear))
	assert.Contains(t, err.Error(), "2023-24, 2024-25, 2025-26")
	assert.False(t, set.Has("2019-20"))
}

func TestParseSchedules_ContiguousNotation(t *testing.T) {
	doc := `
schedules:
  - year: "test"
    brackets:
      - lower: 0
        upper: 10,000
        rate: 0
      - upper: 50000
        rate: 20%
      - rate: 0.4
`
	set, err := ParseSchedules([]byte(doc))
	require.NoError(t, err)

	schedule, err := set.Get("test")
	require.NoError(t, err)
	require.Len(t, schedule.Brackets, 3)

	assert.Equal(t, 10000.0, schedule.Brackets[1].Lower)
	assert.Equal(t, 0.2, schedule.Brackets[1].Rate)
	assert.Equal(t, 50000.0, schedule.Brackets[2].Lower)
	assert.True(t, math.IsInf(schedule.Brackets[2].Upper, 1))
	assertTaxEquals(t, 8000, schedule.Brackets[2].BaseTax, "derived base")

	// Without a declared default the last year is used
	assert.Equal(t, "test", set.DefaultYear())
}

func TestParseSchedules_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "schedules: [unterminated"},
		{"no schedules", "schedules: []"},
		{"missing year", `
schedules:
  - brackets:
      - rate: 0
`},
		{"duplicate year", `
schedules:
  - year: a
    brackets: [{rate: 0}]
  - year: a
    brackets: [{rate: 0}]
`},
		{"gap in min/max", `
schedules:
  - year: gap
    brackets:
      - {min: 0, max: 100, rate: 0}
      - {min: 150, rate: 0.1}
`},
		{"bad bound", `
schedules:
  - year: bad
    brackets:
      - {lower: 0, upper: lots, rate: 0}
      - {rate: 0.1}
`},
		{"sequence as bound", `
schedules:
  - year: seq
    brackets:
      - {lower: 0, upper: [1, 2], rate: 0}
      - {rate: 0.1}
`},
		{"mapping as bound", `
schedules:
  - year: map
    brackets:
      - lower: 0
        max:
          value: 100
        rate: 0
      - {rate: 0.1}
`},
		{"declared base disagrees", `
schedules:
  - year: base
    brackets:
      - {min: 0, max: 100, rate: 0.1}
      - {min: 101, rate: 0.2, base: 50}
`},
		{"default names missing year", `
default: "2030-31"
schedules:
  - year: a
    brackets: [{rate: 0}]
`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			set, err := ParseSchedules([]byte(tc.doc))
			assert.Error(t, err)
			assert.Nil(t, set)
		})
	}
}

func TestParseSchedules_DeclaredBaseChecked(t *testing.T) {
	doc := `
schedules:
  - year: base
    brackets:
      - {min: 0, max: 100, rate: 0.1}
      - {min: 101, rate: 0.2, base: 10}
`
	set, err := ParseSchedules([]byte(doc))
	require.NoError(t, err)
	schedule, err := set.Get("base")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, schedule.Brackets[1].BaseTax, 1e-9)
}

func TestLoadSchedules_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schedules.yaml")
	doc := `
schedules:
  - year: "2030-31"
    brackets:
      - {min: 0, max: 20000, rate: 0%}
      - {min: 20001, rate: 25%}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	set, err := LoadSchedules(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"2030-31"}, set.Years())

	schedule, err := set.Get("2030-31")
	require.NoError(t, err)
	assertTaxEquals(t, 2500, Compute(30000, schedule).TotalTax, "custom schedule")
}

func TestLoadSchedules_Fallbacks(t *testing.T) {
	set, err := LoadSchedules("")
	require.NoError(t, err)
	assert.Len(t, set.Years(), 3)

	set, err = LoadSchedules(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Len(t, set.Years(), 3)
}

func TestLoadSchedules_InvalidFileNamesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schedules: []"), 0644))

	_, err := LoadSchedules(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestPreprocessPercentages(t *testing.T) {
	assert.Equal(t, "rate: 0.16", preprocessPercentages("rate: 16%"))
	assert.Equal(t, "rate: 0.325", preprocessPercentages("rate: 32.5%"))
	assert.Equal(t, "rate: 0", preprocessPercentages("rate: 0%"))
	assert.Equal(t, "note 16%", preprocessPercentages("note 16%"))
}
