package simulation

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

var ErrInvalidScenario = errors.New("invalid scenario")

// ScenarioMetadata is the scenario file: run options plus the population,
// geography, activities, disease and policies handed to the model
type ScenarioMetadata struct {
	UniqueName string  `yaml:"unique_name"`
	Seed       uint64  `yaml:"seed"`
	Days       float64 `yaml:"days"`

	Model        ModelOptions        `yaml:"model"`
	Output       OutputOptions       `yaml:"output"`
	Reproducible ReproducibleOptions `yaml:"reproducible"`

	LocationTypes     []LocationTypeSpec `yaml:"location_types"`
	Locations         []LocationSpec     `yaml:"locations"`
	Activities        []ActivitySpec     `yaml:"activities"`
	WeekPatterns      []WeekPatternSpec  `yaml:"week_patterns"`
	Persons           []PersonSpec       `yaml:"persons"`
	Disease           DiseaseSpec        `yaml:"disease"`
	Policies          []PolicySpec       `yaml:"policies"`
	InitialInfections []InfectionSpec    `yaml:"initial_infections"`
}

type ModelOptions struct {
	MaxSkipsPerTick        int     `yaml:"max_skips_per_tick"`
	TransmissionSweepHours float64 `yaml:"transmission_sweep_hours"`
	PatternCheckHour       float64 `yaml:"pattern_check_hour"`
}

type OutputOptions struct {
	StatsIntervalHours     float64 `yaml:"stats_interval_hours"`
	PersonDumpIntervalDays int     `yaml:"person_dump_interval_days"`
	SnapshotIntervalDays   int     `yaml:"snapshot_interval_days"`
	MaxSnapshotCount       int     `yaml:"max_snapshot_count"`
	EventDB                bool    `yaml:"event_db"`
	EventStream            bool    `yaml:"event_stream"`
	DBCacheSize            int     `yaml:"db_cache_size"`
	// PhaseChangeEvents also stores phase changes other than infection
	PhaseChangeEvents bool `yaml:"phase_change_events"`
}

// ReproducibleOptions select the person-keyed stream for a kind of draw
type ReproducibleOptions struct {
	Transmission bool `yaml:"transmission"`
	Progression  bool `yaml:"progression"`
}

type LocationTypeSpec struct {
	ID                 int      `yaml:"id"`
	Name               string   `yaml:"name"`
	TransmissionRate   float64  `yaml:"transmission_rate"`
	FractionOpen       *float64 `yaml:"fraction_open"`
	FractionActivities *float64 `yaml:"fraction_activities"`
	Alternative        string   `yaml:"alternative"`
	House              bool     `yaml:"house"`
}

type LocationSpec struct {
	ID   int     `yaml:"id"`
	Type string  `yaml:"type"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
	Area float64 `yaml:"area"`
}

// LocatorSpec is a locator tree. Kinds: fixed, current, home, work, school,
// nearest, random_within_radius, walk, bike, car.
type LocatorSpec struct {
	Kind         string       `yaml:"kind"`
	Location     int          `yaml:"location"`
	Type         string       `yaml:"type"`
	Start        *LocatorSpec `yaml:"start"`
	Radius       float64      `yaml:"radius"`
	Reproducible bool         `yaml:"reproducible"`
}

// DistributionSpec names a distribution, its parameters and their unit
type DistributionSpec struct {
	Distribution string    `yaml:"distribution"`
	Params       []float64 `yaml:"params"`
	Unit         string    `yaml:"unit"`
}

// DurationSpec is a duration strategy. Kinds: fixed, stochastic, until,
// travel.
type DurationSpec struct {
	DistributionSpec `yaml:",inline"`

	Kind  string       `yaml:"kind"`
	Hours float64      `yaml:"hours"`
	Until *float64     `yaml:"until"`
	Mode  string       `yaml:"mode"`
	From  *LocatorSpec `yaml:"from"`
	To    *LocatorSpec `yaml:"to"`
}

type ActivitySpec struct {
	Name     string       `yaml:"name"`
	Locator  LocatorSpec  `yaml:"locator"`
	Duration DurationSpec `yaml:"duration"`
}

// WeekPatternSpec lists activity names per weekday; Daily applies to every
// day not listed in Days
type WeekPatternSpec struct {
	ID    int                 `yaml:"id"`
	Name  string              `yaml:"name"`
	Daily []string            `yaml:"daily"`
	Days  map[string][]string `yaml:"days"`
}

type PersonSpec struct {
	ID      int    `yaml:"id"`
	Age     int    `yaml:"age"`
	Female  bool   `yaml:"female"`
	Home    int    `yaml:"home"`
	Work    *int   `yaml:"work"`
	School  *int   `yaml:"school"`
	Pattern string `yaml:"pattern"`
}

type TransitionSpec struct {
	To          string  `yaml:"to"`
	Probability float64 `yaml:"probability"`
}

type PhaseSpec struct {
	Name           string            `yaml:"name"`
	Dwell          *DistributionSpec `yaml:"dwell"`
	Infectiousness float64           `yaml:"infectiousness"`
	Susceptible    bool              `yaml:"susceptible"`
	Dead           bool              `yaml:"dead"`
	Isolation      bool              `yaml:"isolation"`
	Transitions    []TransitionSpec  `yaml:"transitions"`
}

type DiseaseSpec struct {
	Name     string      `yaml:"name"`
	Initial  string      `yaml:"initial"`
	Infected string      `yaml:"infected"`
	Phases   []PhaseSpec `yaml:"phases"`
}

type RestrictionSpec struct {
	Type               string  `yaml:"type"`
	FractionOpen       float64 `yaml:"fraction_open"`
	FractionActivities float64 `yaml:"fraction_activities"`
	Alternative        string  `yaml:"alternative"`
}

type PatternSwapSpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type PolicySpec struct {
	Name              string            `yaml:"name"`
	ActivateAtHours   float64           `yaml:"activate_at_hours"`
	DeactivateAtHours *float64          `yaml:"deactivate_at_hours"`
	Restrictions      []RestrictionSpec `yaml:"restrictions"`
	PatternSwaps      []PatternSwapSpec `yaml:"pattern_swaps"`
}

// InfectionSpec seeds infections at a time, either the listed persons or
// Count susceptible persons drawn at random
type InfectionSpec struct {
	AtHours float64 `yaml:"at_hours"`
	Persons []int   `yaml:"persons"`
	Count   int     `yaml:"count"`
}

// LoadScenarioMetadata reads and validates a scenario file
func LoadScenarioMetadata(path string) (*ScenarioMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return ParseScenarioMetadata(data)
}

// ParseScenarioMetadata decodes and validates a scenario; unknown keys are
// rejected
func ParseScenarioMetadata(data []byte) (*ScenarioMetadata, error) {
	var meta ScenarioMetadata
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Save writes the scenario as YAML
func (s *ScenarioMetadata) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode scenario: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate fills in defaults and checks what the model builder cannot
func (s *ScenarioMetadata) Validate() error {
	if s.UniqueName == "" {
		s.UniqueName = uuid.NewString()
	}
	if math.IsNaN(s.Days) || s.Days <= 0 {
		return fmt.Errorf("%w: days must be positive, got %v", ErrInvalidScenario, s.Days)
	}

	if s.Model.MaxSkipsPerTick <= 0 {
		s.Model.MaxSkipsPerTick = 64
	}
	if s.Model.PatternCheckHour == 0 {
		s.Model.PatternCheckHour = 23.999
	}
	if s.Model.PatternCheckHour < 0 || s.Model.PatternCheckHour >= 24 {
		return fmt.Errorf("%w: pattern_check_hour must lie in [0, 24)", ErrInvalidScenario)
	}
	if s.Model.TransmissionSweepHours < 0 {
		return fmt.Errorf("%w: transmission_sweep_hours cannot be negative", ErrInvalidScenario)
	}

	if s.Output.StatsIntervalHours <= 0 {
		s.Output.StatsIntervalHours = 0.5
	}
	if s.Output.DBCacheSize <= 0 {
		s.Output.DBCacheSize = 2000
	}
	if s.Output.MaxSnapshotCount <= 0 {
		s.Output.MaxSnapshotCount = 3
	}

	if len(s.LocationTypes) == 0 || len(s.Persons) == 0 {
		return fmt.Errorf("%w: location types and persons are required", ErrInvalidScenario)
	}
	houses := 0
	for _, t := range s.LocationTypes {
		if t.House {
			houses++
		}
	}
	if houses != 1 {
		return fmt.Errorf("%w: exactly one location type must be the house type, got %d", ErrInvalidScenario, houses)
	}
	if len(s.Disease.Phases) == 0 {
		return fmt.Errorf("%w: disease has no phases", ErrInvalidScenario)
	}
	for _, inf := range s.InitialInfections {
		if math.IsNaN(inf.AtHours) || inf.AtHours < 0 || inf.Count < 0 {
			return fmt.Errorf("%w: initial infection at %v", ErrInvalidScenario, inf.AtHours)
		}
	}
	return nil
}
