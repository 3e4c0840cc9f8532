/*
Package factory provides JSON to Go student-configuration conversion.

PURPOSE:
  Converts JSON student definitions - curriculum week plans and lesson
  rates - into schedule.Student values. This enables enrollment
  configuration without code changes: the front desk edits JSON (or the
  admin UI posts it), and the factory builds the proper Go structs with
  validated, decimal-precise rates.

JSON SCHEMA:
  {
    "id": "stu-001",
    "name": "Jamie Park",
    "active": true,
    "monthly": true,
    "anchor_date": "2025-01-06",
    "curriculum": [
      {"week": 1, "master": 2, "vocal": 1, "vocal30": 0},
      {"week": 2, "master": 1, "vocal": 1, "vocal30": 1},
      {"week": 3, "master": 2, "vocal": 0, "vocal30": 0},
      {"week": 4, "master": 1, "vocal": 2, "vocal30": 0}
    ],
    "rates": {"master": "70000", "vocal": "55000", "vocal30": "30000"}
  }

KEY FEATURES:
  - Validates structure (week numbers 1..4, no duplicates, non-negative
    counts, parseable decimal rates)
  - Sets sensible defaults (missing weeks become zero plans)
  - Rates parsed as decimal strings, never floats

SEE ALSO:
  - schedule/types.go: Student, WeekPlan, Rates
  - api/handlers.go: enrollment endpoint using this factory
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/lesson-engine/schedule"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// StudentJSON is the JSON representation of a student configuration.
type StudentJSON struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Active         bool           `json:"active"`
	Monthly        bool           `json:"monthly,omitempty"`
	Artist         bool           `json:"artist,omitempty"`
	AnchorDate     string         `json:"anchor_date,omitempty"`
	LastBilledDate string         `json:"last_billed_date,omitempty"`
	Curriculum     []WeekPlanJSON `json:"curriculum,omitempty"`
	Rates          *RatesJSON     `json:"rates,omitempty"`
	SessionCount   int            `json:"session_count,omitempty"`
}

// WeekPlanJSON is one rotation week's session requirement.
type WeekPlanJSON struct {
	Week    int `json:"week"`
	Master  int `json:"master"`
	Vocal   int `json:"vocal"`
	Vocal30 int `json:"vocal30"`
}

// RatesJSON carries rates as decimal strings.
type RatesJSON struct {
	Master  string `json:"master,omitempty"`
	Vocal   string `json:"vocal,omitempty"`
	Vocal30 string `json:"vocal30,omitempty"`
}

// =============================================================================
// FACTORY
// =============================================================================

type StudentFactory struct{}

func NewStudentFactory() *StudentFactory {
	return &StudentFactory{}
}

// Parse converts a JSON student definition into a schedule.Student.
func (f *StudentFactory) Parse(jsonStr string) (*schedule.Student, error) {
	var sj StudentJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return nil, fmt.Errorf("invalid student JSON: %w", err)
	}
	return f.Build(sj)
}

// Build converts an already-decoded definition.
func (f *StudentFactory) Build(sj StudentJSON) (*schedule.Student, error) {
	if sj.ID == "" {
		return nil, &schedule.ValidationError{Field: "id", Reason: "required"}
	}
	if sj.Name == "" {
		return nil, &schedule.ValidationError{Field: "name", Reason: "required"}
	}

	st := schedule.Student{
		ID:           sj.ID,
		Name:         sj.Name,
		Active:       sj.Active,
		Monthly:      sj.Monthly,
		Artist:       sj.Artist,
		SessionCount: sj.SessionCount,
	}

	if sj.AnchorDate != "" {
		d, err := schedule.ParseDay(sj.AnchorDate)
		if err != nil {
			return nil, &schedule.ValidationError{Field: "anchor_date", Reason: "malformed date"}
		}
		st.AnchorDate = d
	}
	if sj.LastBilledDate != "" {
		d, err := schedule.ParseDay(sj.LastBilledDate)
		if err != nil {
			return nil, &schedule.ValidationError{Field: "last_billed_date", Reason: "malformed date"}
		}
		st.LastBilledDate = d
	}

	curriculum, err := buildCurriculum(sj.Curriculum)
	if err != nil {
		return nil, err
	}
	st.Curriculum = curriculum

	if sj.Rates != nil {
		rates, err := buildRates(*sj.Rates)
		if err != nil {
			return nil, err
		}
		st.Rates = rates
	}

	return &st, nil
}

func buildCurriculum(plans []WeekPlanJSON) ([]schedule.WeekPlan, error) {
	seen := make(map[int]bool)
	var curriculum []schedule.WeekPlan
	for _, p := range plans {
		if p.Week < 1 || p.Week > 4 {
			return nil, &schedule.ValidationError{Field: "curriculum.week", Reason: "must be 1..4"}
		}
		if seen[p.Week] {
			return nil, &schedule.ValidationError{Field: "curriculum.week", Reason: fmt.Sprintf("week %d defined twice", p.Week)}
		}
		if p.Master < 0 || p.Vocal < 0 || p.Vocal30 < 0 {
			return nil, &schedule.ValidationError{Field: "curriculum", Reason: "counts must be non-negative"}
		}
		seen[p.Week] = true
		curriculum = append(curriculum, schedule.WeekPlan{
			Week:         p.Week,
			MasterCount:  p.Master,
			VocalCount:   p.Vocal,
			Vocal30Count: p.Vocal30,
		})
	}
	// Missing weeks are zero plans, filled in so rotation math never
	// has to special-case a sparse curriculum.
	for week := 1; week <= 4; week++ {
		if !seen[week] {
			curriculum = append(curriculum, schedule.WeekPlan{Week: week})
		}
	}
	return curriculum, nil
}

func buildRates(rj RatesJSON) (schedule.Rates, error) {
	parse := func(field, v string) (decimal.Decimal, error) {
		if v == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, &schedule.ValidationError{Field: "rates." + field, Reason: "not a decimal"}
		}
		if d.IsNegative() {
			return decimal.Zero, &schedule.ValidationError{Field: "rates." + field, Reason: "must not be negative"}
		}
		return d, nil
	}

	var (
		rates schedule.Rates
		err   error
	)
	if rates.Master, err = parse("master", rj.Master); err != nil {
		return rates, err
	}
	if rates.Vocal, err = parse("vocal", rj.Vocal); err != nil {
		return rates, err
	}
	if rates.Vocal30, err = parse("vocal30", rj.Vocal30); err != nil {
		return rates, err
	}
	return rates, nil
}
