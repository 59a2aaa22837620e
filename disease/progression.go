// Package disease implements the phase state machine and the co-location
// transmission model.
package disease

import (
	"errors"
	"fmt"
	"math"

	"epi-model/devs"
	"epi-model/model"
	"epi-model/utils"

	"gonum.org/v1/gonum/graph/simple"
)

var (
	ErrNoPhases          = errors.New("disease has no phases")
	ErrDuplicatePhase    = errors.New("duplicate phase name")
	ErrInitialPhase      = errors.New("initial phase must be susceptible")
	ErrUnknownPhase      = errors.New("transition targets a phase outside the disease")
	ErrZeroProbability   = errors.New("transition probabilities must sum to a positive value")
	ErrBadProbability    = errors.New("transition probability must be finite and non-negative")
	ErrMissingDwell      = errors.New("non-terminal phase has no dwell distribution")
	ErrUnreachablePhase  = errors.New("phase is unreachable from the initial phase")
	ErrDeadNotTerminal   = errors.New("dead phase must be terminal")
	ErrNoTransitionTaken = errors.New("no transition selected")
)

// Progression is the phase state machine. Each infected person has at most
// one pending transition callback.
type Progression struct {
	model *model.Model

	name     string
	phases   []*model.DiseasePhase
	initial  *model.DiseasePhase
	infected *model.DiseasePhase
	graph    *simple.DirectedGraph

	// Reproducible selects the person-keyed stream for transition draws
	Reproducible bool

	pending map[int]devs.Handle
}

// NewProgression validates the phase graph and creates the state machine.
// Infection moves a person from a susceptible phase to infected.
func NewProgression(
	m *model.Model,
	name string,
	phases []*model.DiseasePhase,
	initial *model.DiseasePhase,
	infected *model.DiseasePhase,
	reproducible bool,
) (*Progression, error) {
	if len(phases) == 0 {
		return nil, ErrNoPhases
	}

	members := make(map[*model.DiseasePhase]bool)
	names := make(map[string]bool)
	for i, ph := range phases {
		if names[ph.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePhase, ph.Name)
		}
		names[ph.Name] = true
		members[ph] = true
		ph.Index = i
	}
	if !members[initial] || !members[infected] {
		return nil, fmt.Errorf("%w: initial or infected phase", ErrUnknownPhase)
	}
	if !initial.Susceptible {
		return nil, fmt.Errorf("%w: %q", ErrInitialPhase, initial.Name)
	}

	for _, ph := range phases {
		if err := validatePhase(ph, members); err != nil {
			return nil, fmt.Errorf("phase %q: %w", ph.Name, err)
		}
	}

	g := buildGraph(phases, initial, infected)
	if missing := utils.Unreachable(g, int64(initial.Index)); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnreachablePhase, phases[missing[0]].Name)
	}

	return &Progression{
		model:        m,
		name:         name,
		phases:       phases,
		initial:      initial,
		infected:     infected,
		graph:        g,
		Reproducible: reproducible,
		pending:      make(map[int]devs.Handle),
	}, nil
}

func validatePhase(ph *model.DiseasePhase, members map[*model.DiseasePhase]bool) error {
	if ph.Dead && !ph.Terminal() {
		return ErrDeadNotTerminal
	}
	if math.IsNaN(ph.Infectiousness) || ph.Infectiousness < 0 {
		return fmt.Errorf("infectiousness must be non-negative, got %v", ph.Infectiousness)
	}
	if ph.Terminal() {
		return nil
	}
	if ph.Dwell == nil {
		return ErrMissingDwell
	}
	for _, tr := range ph.Transitions {
		if !members[tr.Target] {
			return ErrUnknownPhase
		}
	}
	if len(ph.Transitions) == 1 && ph.Transitions[0].Probability == 0 {
		return nil
	}
	sum := 0.0
	for _, tr := range ph.Transitions {
		if math.IsNaN(tr.Probability) || math.IsInf(tr.Probability, 0) || tr.Probability < 0 {
			return fmt.Errorf("%w: %v to %q", ErrBadProbability, tr.Probability, tr.Target.Name)
		}
		sum += tr.Probability
	}
	if sum <= 0 {
		return ErrZeroProbability
	}
	return nil
}

// buildGraph creates the phase graph, weighted by transition probability,
// with an infection edge from every susceptible phase
func buildGraph(phases []*model.DiseasePhase, initial, infected *model.DiseasePhase) *simple.DirectedGraph {
	g := simple.NewDirectedGraph()
	for _, ph := range phases {
		g.AddNode(simple.Node(ph.Index))
	}
	setEdge := func(from, to *model.DiseasePhase, w float64) {
		if from == to {
			return
		}
		g.SetEdge(simple.WeightedEdge{F: simple.Node(from.Index), T: simple.Node(to.Index), W: w})
	}
	for _, ph := range phases {
		if ph.Susceptible {
			setEdge(ph, infected, 1)
		}
		for _, tr := range ph.Transitions {
			w := tr.Probability
			if len(ph.Transitions) == 1 && w == 0 {
				w = 1
			}
			setEdge(ph, tr.Target, w)
		}
	}
	return g
}

func (pr *Progression) Name() string {
	return pr.name
}

func (pr *Progression) Phases() []*model.DiseasePhase {
	return pr.phases
}

func (pr *Progression) Initial() *model.DiseasePhase {
	return pr.initial
}

// Infected returns the phase an infection leads to
func (pr *Progression) Infected() *model.DiseasePhase {
	return pr.infected
}

// Graph returns the phase graph with node IDs equal to phase indices
func (pr *Progression) Graph() *simple.DirectedGraph {
	return pr.graph
}

// Labels maps node IDs of the phase graph to phase names
func (pr *Progression) Labels() map[int64]string {
	ret := make(map[int64]string, len(pr.phases))
	for _, ph := range pr.phases {
		ret[int64(ph.Index)] = ph.Name
	}
	return ret
}

// Phase looks up a phase by name
func (pr *Progression) Phase(name string) *model.DiseasePhase {
	for _, ph := range pr.phases {
		if ph.Name == name {
			return ph
		}
	}
	return nil
}

// Infect moves a susceptible person into the infected phase. Persons not
// susceptible are left untouched.
func (pr *Progression) Infect(p *model.Person, at *model.Location) error {
	if p.Dead() || !p.Phase().Susceptible {
		return nil
	}
	pr.cancel(p)
	if err := pr.model.ChangePhase(p, pr.infected); err != nil {
		return err
	}
	pr.model.RecordInfection(p, at)
	return pr.scheduleNext(p)
}

// Start schedules the dwell timers of persons who begin in a phase with
// outgoing transitions other than infection
func (pr *Progression) Start() error {
	for _, p := range pr.model.Persons() {
		if _, ok := pr.pending[p.ID]; ok {
			continue
		}
		if err := pr.scheduleNext(p); err != nil {
			return err
		}
	}
	return nil
}

func (pr *Progression) cancel(p *model.Person) {
	if h, ok := pr.pending[p.ID]; ok {
		pr.model.Sim.Cancel(h)
		delete(pr.pending, p.ID)
	}
}

func (pr *Progression) scheduleNext(p *model.Person) error {
	ph := p.Phase()
	if p.Dead() || ph.Terminal() {
		return nil
	}
	d := ph.Dwell.Draw()
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return fmt.Errorf("phase %q: dwell drew %v", ph.Name, d)
	}
	h, err := pr.model.Sim.ScheduleAfter(max(d, 0), func() error {
		return pr.transition(p, ph)
	})
	if err != nil {
		return err
	}
	pr.pending[p.ID] = h
	return nil
}

// transition fires when a person's dwell timer in from expires
func (pr *Progression) transition(p *model.Person, from *model.DiseasePhase) error {
	delete(pr.pending, p.ID)
	if p.Dead() || p.Phase() != from {
		return nil
	}
	next, err := pr.choose(p, from)
	if err != nil {
		return fmt.Errorf("person %d, phase %q: %w", p.ID, from.Name, err)
	}
	if err := pr.model.ChangePhase(p, next); err != nil {
		return err
	}
	return pr.scheduleNext(p)
}

func (pr *Progression) draw(p *model.Person) float64 {
	if pr.Reproducible {
		return pr.model.Reproducible.Float64(int64(p.ID))
	}
	return pr.model.Random.Float64()
}

// choose selects the next phase by the normalised transition probabilities
func (pr *Progression) choose(p *model.Person, from *model.DiseasePhase) (*model.DiseasePhase, error) {
	trs := from.Transitions
	if len(trs) == 1 && trs[0].Probability == 0 {
		return trs[0].Target, nil
	}

	sum := 0.0
	for _, tr := range trs {
		sum += tr.Probability
	}
	if !(sum > 0) {
		return nil, ErrZeroProbability
	}

	u := pr.draw(p) * sum
	acc := 0.0
	var last *model.DiseasePhase
	for _, tr := range trs {
		if tr.Probability <= 0 {
			continue
		}
		acc += tr.Probability
		last = tr.Target
		if u < acc {
			return tr.Target, nil
		}
	}
	// rounding left u at the top of the range
	if last == nil {
		return nil, ErrNoTransitionTaken
	}
	return last, nil
}

// for type check
var _ model.DiseaseProgression = (*Progression)(nil)
