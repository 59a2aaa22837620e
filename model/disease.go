package model

import "epi-model/dist"

// Transition is an outgoing edge of a disease phase
type Transition struct {
	Target *DiseasePhase
	// Probability is optional when the phase has a single transition
	Probability float64
}

// DiseasePhase is one state of the per-person health state machine
type DiseasePhase struct {
	Name  string
	Index int

	// Dwell draws the time in hours until the next transition; nil for
	// phases that are left only through infection or never
	Dwell       dist.Continuous
	Transitions []Transition

	Infectiousness float64
	Susceptible    bool
	Dead           bool
	Isolation      bool

	count int
}

// Count returns the number of persons currently in the phase
func (ph *DiseasePhase) Count() int {
	return ph.count
}

// Terminal reports whether the phase has no outgoing transitions
func (ph *DiseasePhase) Terminal() bool {
	return len(ph.Transitions) == 0
}

func (ph *DiseasePhase) String() string {
	return ph.Name
}

// DiseaseProgression is the phase state machine. Implementations choose the
// next phase and schedule transitions; the model applies the phase change.
type DiseaseProgression interface {
	// Name identifies the disease
	Name() string

	// Phases returns all phases in index order
	Phases() []*DiseasePhase

	// Initial is the susceptible phase every person starts in
	Initial() *DiseasePhase

	// Start schedules the transitions of persons who begin in a phase
	// with a dwell timer; called once the initial phases are assigned
	Start() error

	// Infect moves a susceptible person into the first infected phase
	Infect(p *Person, at *Location) error
}

// DiseaseTransmission computes infections from co-presence
type DiseaseTransmission interface {
	// Settle evaluates the exposure accumulated at loc since it was last
	// settled. The model calls it before membership or infectiousness at
	// loc changes.
	Settle(loc *Location) error
}

// BaseDiseaseTransmission never infects anyone
type BaseDiseaseTransmission struct {
	// do nothing
}

// for type check
func _() DiseaseTransmission {
	return &BaseDiseaseTransmission{}
}

func (BaseDiseaseTransmission) Settle(loc *Location) error {
	return nil
}
