package model

import (
	"fmt"
	"math"
	"sort"

	"epi-model/devs"
	"epi-model/random"

	"github.com/paulmach/orb"
)

// ModelParams contains the tunables of the activity scheduler
type ModelParams struct {
	// MaxSkipsPerTick bounds the activities a person may skip in one
	// ready callback before the pattern is reported as broken
	MaxSkipsPerTick int
	// TransmissionSweepInterval is the period in hours of the sweep over
	// populated locations; zero disables it
	TransmissionSweepInterval float64
	// PatternCheckHour is the hour of day at which policy pattern swaps
	// are evaluated
	PatternCheckHour float64
}

// DefaultModelParams creates a new parameters struct with default values
func DefaultModelParams() *ModelParams {
	return &ModelParams{
		MaxSkipsPerTick:           64,
		TransmissionSweepInterval: 1.0,
		PatternCheckHour:          23.999,
	}
}

// ToMap converts the parameters to a map
func (p *ModelParams) ToMap() map[string]any {
	return map[string]any{
		"max_skips_per_tick":          p.MaxSkipsPerTick,
		"transmission_sweep_interval": p.TransmissionSweepInterval,
		"pattern_check_hour":          p.PatternCheckHour,
	}
}

// Model owns the registries of locations, persons and patterns, and drives
// the activity scheduler on top of an event simulator
type Model struct {
	Params       *ModelParams
	Sim          devs.Simulator
	Random       random.GlobalRandom
	Reproducible random.ReproducibleRandom

	Progression  DiseaseProgression
	Transmission DiseaseTransmission
	Policies     *PolicyEngine
	EventLogger  func(*EventRecord)
	Schedule     *Activation

	// HouseType terminates alternative chains and short-circuits
	// nearest queries to the person's home
	HouseType *LocationType

	Walk *Location
	Bike *Location
	Car  *Location

	types     map[int]*LocationType
	typeList  []*LocationType
	locations map[int]*Location
	locList   []*Location
	persons   map[int]*Person
	patterns  map[int]*WeekPattern

	started bool
}

// NewModel creates a model with the in-transit locations registered
func NewModel(
	sim devs.Simulator,
	global random.GlobalRandom,
	reproducible random.ReproducibleRandom,
	params *ModelParams,
	eventLogger func(*EventRecord),
) *Model {
	if params == nil {
		params = DefaultModelParams()
	}

	m := &Model{
		Params:       params,
		Sim:          sim,
		Random:       global,
		Reproducible: reproducible,
		EventLogger:  eventLogger,
		types:        make(map[int]*LocationType),
		typeList:     make([]*LocationType, 0),
		locations:    make(map[int]*Location),
		locList:      make([]*Location, 0),
		persons:      make(map[int]*Person),
		patterns:     make(map[int]*WeekPattern),
	}
	m.Policies = NewPolicyEngine(m)
	m.Schedule = NewActivation(m)

	m.Walk = m.addTransit(WalkID, "walk")
	m.Bike = m.addTransit(BikeID, "bike")
	m.Car = m.addTransit(CarID, "car")

	return m
}

func (m *Model) addTransit(id int, name string) *Location {
	t := NewLocationType(id, name, 0)
	t.Unconstrained = true
	m.types[id] = t
	m.typeList = append(m.typeList, t)

	l := NewLocation(id, t, orb.Point{}, unconstrainedArea)
	t.addLocation(l)
	m.locations[id] = l
	m.locList = append(m.locList, l)
	return l
}

// AddLocationType registers a location type
func (m *Model) AddLocationType(t *LocationType) error {
	if m.started {
		return ErrAlreadyStarted
	}
	if _, ok := m.types[t.ID]; ok {
		return fmt.Errorf("%w: location type %d", ErrDuplicateID, t.ID)
	}
	m.types[t.ID] = t
	m.typeList = append(m.typeList, t)
	return nil
}

// SetHouseType marks a registered type as the house type
func (m *Model) SetHouseType(t *LocationType) error {
	if m.types[t.ID] != t {
		return fmt.Errorf("%w: location type %d", ErrUnknownID, t.ID)
	}
	m.HouseType = t
	return nil
}

// AddLocation registers a location and indexes it under its type
func (m *Model) AddLocation(l *Location) error {
	if m.started {
		return ErrAlreadyStarted
	}
	if _, ok := m.locations[l.ID]; ok {
		return fmt.Errorf("%w: location %d", ErrDuplicateID, l.ID)
	}
	if l.Type == nil || m.types[l.Type.ID] != l.Type {
		return fmt.Errorf("%w: type of location %d", ErrUnknownID, l.ID)
	}
	if math.IsNaN(l.Coord.X()) || math.IsNaN(l.Coord.Y()) {
		return fmt.Errorf("location %d: coordinate must be finite", l.ID)
	}
	l.Type.addLocation(l)
	m.locations[l.ID] = l
	m.locList = append(m.locList, l)
	return nil
}

// AddWeekPattern registers a week pattern
func (m *Model) AddWeekPattern(w *WeekPattern) error {
	if _, ok := m.patterns[w.ID]; ok {
		return fmt.Errorf("%w: week pattern %d", ErrDuplicateID, w.ID)
	}
	m.patterns[w.ID] = w
	return nil
}

// AddPerson registers a person; the person is placed at home on Start
func (m *Model) AddPerson(p *Person) error {
	if m.started {
		return ErrAlreadyStarted
	}
	if _, ok := m.persons[p.ID]; ok {
		return fmt.Errorf("%w: person %d", ErrDuplicateID, p.ID)
	}
	for role, l := range map[string]*Location{"home": p.Home, "work": p.Work, "school": p.School} {
		if l == nil {
			if role == "home" {
				return fmt.Errorf("%w: person %d has no home", ErrNoLocation, p.ID)
			}
			continue
		}
		if m.locations[l.ID] != l {
			return fmt.Errorf("%w: %s location %d of person %d", ErrUnknownID, role, l.ID, p.ID)
		}
	}
	if p.basePattern == nil {
		return fmt.Errorf("person %d: week pattern cannot be nil", p.ID)
	}
	p.Model = m
	m.persons[p.ID] = p
	m.Schedule.AddPerson(p)
	return nil
}

// SetDisease installs the progression and transmission models
func (m *Model) SetDisease(progression DiseaseProgression, transmission DiseaseTransmission) {
	m.Progression = progression
	m.Transmission = transmission
}

// LocationType looks up a type by ID
func (m *Model) LocationType(id int) *LocationType {
	return m.types[id]
}

// LocationTypes returns all types in registration order
func (m *Model) LocationTypes() []*LocationType {
	return m.typeList
}

// Location looks up a location by ID
func (m *Model) Location(id int) *Location {
	return m.locations[id]
}

// Locations returns all locations in registration order
func (m *Model) Locations() []*Location {
	return m.locList
}

// Person looks up a person by ID
func (m *Model) Person(id int) *Person {
	return m.persons[id]
}

// Persons returns all persons in registration order
func (m *Model) Persons() []*Person {
	return m.Schedule.Persons
}

// WeekPattern looks up a pattern by ID
func (m *Model) WeekPattern(id int) *WeekPattern {
	return m.patterns[id]
}

// Started reports whether Start has run
func (m *Model) Started() bool {
	return m.started
}

// ValidateAlternatives checks every base alternative chain terminates
func (m *Model) ValidateAlternatives() error {
	for _, t := range m.typeList {
		seen := map[*LocationType]bool{}
		cur := t
		for cur != nil && !cur.Unconstrained && cur != m.HouseType {
			if seen[cur] {
				return fmt.Errorf("%w: starting at %q", ErrAlternativeLoop, t.Name)
			}
			seen[cur] = true
			cur = cur.baseAlternative
		}
	}
	return nil
}

// EffectiveType follows the alternatives of closed types until an open,
// house or unconstrained type is reached
func (m *Model) EffectiveType(t *LocationType) (*LocationType, error) {
	seen := map[*LocationType]bool{}
	cur := t
	for cur.Closed() && !cur.Unconstrained && cur != m.HouseType {
		if seen[cur] {
			return nil, fmt.Errorf("%w: starting at %q", ErrAlternativeLoop, t.Name)
		}
		seen[cur] = true
		alt := cur.Alternative()
		if alt == nil {
			return nil, fmt.Errorf("%w: %q", ErrNoAlternative, cur.Name)
		}
		cur = alt
	}
	return cur, nil
}

// Start places every person at home in the initial disease phase and
// schedules the first activity of each
func (m *Model) Start() error {
	if m.started {
		return ErrAlreadyStarted
	}
	if m.HouseType == nil || m.Progression == nil || m.Transmission == nil {
		return ErrNotConfigured
	}
	if err := m.ValidateAlternatives(); err != nil {
		return err
	}

	initial := m.Progression.Initial()
	now := m.Sim.Now()
	for _, p := range m.Schedule.Persons {
		if err := p.Home.add(p); err != nil {
			return err
		}
		p.current = p.Home
		p.day = DayOf(now)
		p.activityIndex = 0
		if p.phase == nil {
			p.phase = initial
			p.phaseEntered = now
			initial.count++
		}
	}
	m.started = true

	if err := m.Progression.Start(); err != nil {
		return err
	}
	if err := m.Schedule.Start(); err != nil {
		return err
	}
	if err := m.schedulePatternCheck(); err != nil {
		return err
	}
	return m.scheduleSweep()
}

// ChangePhase moves a person to another disease phase, keeping the phase
// counts, the occupancy and the pending activity consistent
func (m *Model) ChangePhase(p *Person, to *DiseasePhase) error {
	if p.dead {
		return fmt.Errorf("%w: person %d", ErrDeadPerson, p.ID)
	}
	from := p.phase
	if from == to {
		return nil
	}

	if p.current != nil {
		if err := m.settle(p.current); err != nil {
			return err
		}
	}

	from.count--
	to.count++
	p.phase = to
	p.phaseEntered = m.Sim.Now()
	m.logPhaseChange(p, from)

	if to.Dead {
		return m.kill(p)
	}
	if to.Isolation && !from.Isolation {
		return m.Reroute(p)
	}
	return nil
}

// RecordInfection emits the infection event of a person who just entered
// the first infected phase at a location
func (m *Model) RecordInfection(p *Person, at *Location) {
	m.logInfection(p, at)
}

func (m *Model) kill(p *Person) error {
	at := p.current
	m.cancelReady(p)
	if at != nil {
		if err := at.remove(p); err != nil {
			return err
		}
	}
	p.current = nil
	p.currentActivity = nil
	p.dead = true
	m.logDeath(p, at)
	return nil
}

// moveTo settles both locations and moves the person. A phase change while
// settling can reroute or kill the person; the move is then abandoned and
// false is returned.
func (m *Model) moveTo(p *Person, to *Location) (bool, error) {
	from := p.current
	if from == to {
		return true, nil
	}
	if from != nil {
		if err := m.settle(from); err != nil {
			return false, err
		}
		if p.dead || p.hasReady {
			return false, nil
		}
	}
	if err := m.settle(to); err != nil {
		return false, err
	}
	if p.dead || p.hasReady {
		return false, nil
	}
	if from != nil {
		if err := from.remove(p); err != nil {
			return false, err
		}
	}
	if err := to.add(p); err != nil {
		return false, err
	}
	p.current = to
	return true, nil
}

func (m *Model) settle(l *Location) error {
	if m.Transmission == nil {
		return nil
	}
	if err := m.Transmission.Settle(l); err != nil {
		return fmt.Errorf("transmission at location %d: %w", l.ID, err)
	}
	return nil
}

// PopulatedLocations returns the locations with occupants, ordered by ID
func (m *Model) PopulatedLocations() []*Location {
	result := make([]*Location, 0)
	for _, l := range m.locList {
		if l.OccupantCount() > 0 {
			result = append(result, l)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
