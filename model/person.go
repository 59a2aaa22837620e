package model

import "epi-model/devs"

// Person is an agent moving between locations according to its week pattern
type Person struct {
	ID     int
	Age    int
	Female bool
	Model  *Model

	// Home is always set; Work and School are set for workers and students
	Home   *Location
	Work   *Location
	School *Location

	current *Location

	basePattern *WeekPattern
	pattern     *WeekPattern
	nextPattern *WeekPattern

	day             int
	activityIndex   int
	currentActivity *Activity

	phase        *DiseasePhase
	phaseEntered float64
	dead         bool

	ready    devs.Handle
	hasReady bool
}

// NewPerson creates a person living at home with the given base pattern
func NewPerson(id int, age int, female bool, home *Location, pattern *WeekPattern) *Person {
	return &Person{
		ID:          id,
		Age:         age,
		Female:      female,
		Home:        home,
		basePattern: pattern,
		pattern:     pattern,
	}
}

// CurrentLocation is nil only for deceased persons
func (p *Person) CurrentLocation() *Location {
	return p.current
}

// WeekPattern returns the pattern in effect
func (p *Person) WeekPattern() *WeekPattern {
	return p.pattern
}

// BasePattern returns the pattern assigned by the population loader
func (p *Person) BasePattern() *WeekPattern {
	return p.basePattern
}

// PendingPattern returns the pattern queued for the next day, if any
func (p *Person) PendingPattern() *WeekPattern {
	return p.nextPattern
}

// CurrentActivity returns the activity being performed, nil before start
func (p *Person) CurrentActivity() *Activity {
	return p.currentActivity
}

// ActivityIndex returns the index of the next activity in today's pattern
func (p *Person) ActivityIndex() int {
	return p.activityIndex
}

// Day returns the simulated day the person's pattern is on
func (p *Person) Day() int {
	return p.day
}

// Phase returns the current disease phase
func (p *Person) Phase() *DiseasePhase {
	return p.phase
}

// PhaseEntered returns the time the current phase was entered
func (p *Person) PhaseEntered() float64 {
	return p.phaseEntered
}

func (p *Person) Dead() bool {
	return p.dead
}

func (p *Person) IsWorker() bool {
	return p.Work != nil
}

func (p *Person) IsStudent() bool {
	return p.School != nil
}

// Isolating reports whether the person's phase confines them to home
func (p *Person) Isolating() bool {
	return p.phase != nil && p.phase.Isolation
}
