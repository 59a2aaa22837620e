package disease

import (
	"context"
	"math"
	"testing"

	"epi-model/devs"
	"epi-model/dist"
	"epi-model/model"
	"epi-model/random"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

type homeLocator struct{}

func (homeLocator) Locate(p *model.Person) (*model.Location, error) {
	return p.Home, nil
}

type hours float64

func (h hours) Duration(p *model.Person) (float64, error) {
	return float64(h), nil
}

type village struct {
	m       *model.Model
	sim     *devs.EventSimulator
	house   *model.LocationType
	persons []*model.Person
}

// newVillage houses the persons in households of the given size; everybody
// stays home all day
func newVillage(t *testing.T, seed uint64, persons, household int, rate float64) *village {
	t.Helper()
	v := &village{sim: devs.NewEventSimulator(0)}
	v.m = model.NewModel(v.sim, random.NewStream(seed), random.NewKeyedStream(seed+1), nil, nil)
	v.house = model.NewLocationType(0, "house", rate)
	require.NoError(t, v.m.AddLocationType(v.house))
	require.NoError(t, v.m.SetHouseType(v.house))

	stay, err := model.NewActivity("stay", homeLocator{}, hours(24))
	require.NoError(t, err)
	pattern, err := model.NewDailyPattern(1, "stay", []*model.Activity{stay})
	require.NoError(t, err)

	var home *model.Location
	for i := range persons {
		if i%household == 0 {
			home = model.NewLocation(i, v.house, orb.Point{float64(i), 0}, 60)
			require.NoError(t, v.m.AddLocation(home))
		}
		p := model.NewPerson(i, 20+i%60, i%2 == 0, home, pattern)
		require.NoError(t, v.m.AddPerson(p))
		v.persons = append(v.persons, p)
	}
	return v
}

func constant(h float64) dist.Continuous {
	return dist.Constant(h)
}

// seird returns susceptible, exposed, infectious, recovered, dead. A tenth
// of infectious cases die; recovery wanes after a week.
func seird() []*model.DiseasePhase {
	s := &model.DiseasePhase{Name: "susceptible", Susceptible: true}
	e := &model.DiseasePhase{Name: "exposed", Dwell: constant(24)}
	i := &model.DiseasePhase{Name: "infectious", Dwell: constant(48), Infectiousness: 1}
	r := &model.DiseasePhase{Name: "recovered", Dwell: constant(168)}
	d := &model.DiseasePhase{Name: "dead", Dead: true}
	e.Transitions = []model.Transition{{Target: i}}
	i.Transitions = []model.Transition{{Target: r, Probability: 0.9}, {Target: d, Probability: 0.1}}
	r.Transitions = []model.Transition{{Target: s}}
	return []*model.DiseasePhase{s, e, i, r, d}
}

func (v *village) install(t *testing.T, phases []*model.DiseasePhase, infected *model.DiseasePhase) *Progression {
	t.Helper()
	prog, err := NewProgression(v.m, "test", phases, phases[0], infected, false)
	require.NoError(t, err)
	v.m.SetDisease(prog, NewAreaTransmission(v.m, true))
	require.NoError(t, v.m.Start())
	return prog
}

func TestProgressionValidation(t *testing.T) {
	v := newVillage(t, 1, 1, 1, 0)

	tests := []struct {
		name  string
		build func() ([]*model.DiseasePhase, *model.DiseasePhase, *model.DiseasePhase)
		want  error
	}{
		{"zero probabilities", func() ([]*model.DiseasePhase, *model.DiseasePhase, *model.DiseasePhase) {
			ph := seird()
			ph[2].Transitions[0].Probability = 0
			ph[2].Transitions[1].Probability = 0
			return ph, ph[0], ph[1]
		}, ErrZeroProbability},
		{"negative probability", func() ([]*model.DiseasePhase, *model.DiseasePhase, *model.DiseasePhase) {
			ph := seird()
			ph[2].Transitions[1].Probability = -0.1
			return ph, ph[0], ph[1]
		}, ErrBadProbability},
		{"unreachable", func() ([]*model.DiseasePhase, *model.DiseasePhase, *model.DiseasePhase) {
			ph := append(seird(), &model.DiseasePhase{Name: "orphan"})
			return ph, ph[0], ph[1]
		}, ErrUnreachablePhase},
		{"dead with transitions", func() ([]*model.DiseasePhase, *model.DiseasePhase, *model.DiseasePhase) {
			ph := seird()
			ph[4].Dwell = constant(1)
			ph[4].Transitions = []model.Transition{{Target: ph[0]}}
			return ph, ph[0], ph[1]
		}, ErrDeadNotTerminal},
		{"missing dwell", func() ([]*model.DiseasePhase, *model.DiseasePhase, *model.DiseasePhase) {
			ph := seird()
			ph[1].Dwell = nil
			return ph, ph[0], ph[1]
		}, ErrMissingDwell},
		{"initial not susceptible", func() ([]*model.DiseasePhase, *model.DiseasePhase, *model.DiseasePhase) {
			ph := seird()
			return ph, ph[1], ph[2]
		}, ErrInitialPhase},
		{"foreign target", func() ([]*model.DiseasePhase, *model.DiseasePhase, *model.DiseasePhase) {
			ph := seird()
			ph[3].Transitions = []model.Transition{{Target: &model.DiseasePhase{Name: "elsewhere"}}}
			return ph, ph[0], ph[1]
		}, ErrUnknownPhase},
		{"duplicate name", func() ([]*model.DiseasePhase, *model.DiseasePhase, *model.DiseasePhase) {
			ph := seird()
			ph[3].Name = "exposed"
			return ph, ph[0], ph[1]
		}, ErrDuplicatePhase},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			phases, initial, infected := tc.build()
			_, err := NewProgression(v.m, "bad", phases, initial, infected, false)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := NewProgression(v.m, "empty", nil, nil, nil, false)
	require.ErrorIs(t, err, ErrNoPhases)
}

func TestPhaseGraph(t *testing.T) {
	v := newVillage(t, 1, 1, 1, 0)
	phases := seird()
	prog := v.install(t, phases, phases[1])

	g := prog.Graph()
	require.Equal(t, 5, g.Nodes().Len())
	require.Equal(t, 5, g.Edges().Len())
	require.True(t, g.HasEdgeFromTo(0, 1))
	require.True(t, g.HasEdgeFromTo(3, 0))
	require.False(t, g.HasEdgeFromTo(4, 0))
	require.Equal(t, "infectious", prog.Labels()[2])
	require.Equal(t, phases[3], prog.Phase("recovered"))
	require.Nil(t, prog.Phase("unknown"))
}

func TestCountsSumToPopulation(t *testing.T) {
	v := newVillage(t, 3, 60, 4, 0.2)
	phases := seird()
	prog := v.install(t, phases, phases[1])

	for _, p := range v.persons[:10] {
		require.NoError(t, prog.Infect(p, p.Home))
	}
	require.Equal(t, 50, phases[0].Count())
	require.Equal(t, 10, phases[1].Count())

	for end := 6.0; end <= 24*30; end += 6 {
		require.NoError(t, v.sim.RunUntil(context.Background(), end))
		total, living := 0, 0
		for _, ph := range prog.Phases() {
			require.GreaterOrEqual(t, ph.Count(), 0)
			total += ph.Count()
			if !ph.Dead {
				living += ph.Count()
			}
		}
		require.Equal(t, len(v.persons), total)
		require.Equal(t, v.m.LivingCount(), living)
		require.NoError(t, v.m.CheckInvariants())
	}
}

func TestDeceasedIsTerminal(t *testing.T) {
	v := newVillage(t, 1, 2, 2, 0)
	s := &model.DiseasePhase{Name: "susceptible", Susceptible: true}
	i := &model.DiseasePhase{Name: "infected", Dwell: constant(2), Infectiousness: 1}
	d := &model.DiseasePhase{Name: "deceased", Dead: true}
	i.Transitions = []model.Transition{{Target: d}}
	prog := v.install(t, []*model.DiseasePhase{s, i, d}, i)

	p := v.persons[0]
	home := p.Home
	require.NoError(t, prog.Infect(p, home))
	require.Equal(t, 1, i.Count())

	require.NoError(t, v.sim.RunUntil(context.Background(), 3))
	require.True(t, p.Dead())
	require.Equal(t, d, p.Phase())
	require.False(t, home.Contains(p))
	require.Nil(t, p.CurrentLocation())
	require.Equal(t, 1, home.OccupantCount())
	_, pending := prog.pending[p.ID]
	require.False(t, pending)

	require.NoError(t, v.sim.RunUntil(context.Background(), 24*14))
	require.Equal(t, 1, d.Count())
	require.False(t, home.Contains(p))
	require.NoError(t, v.m.CheckInvariants())

	// infecting the deceased is a no-op
	require.NoError(t, prog.Infect(p, home))
	require.Equal(t, 1, d.Count())
}

func TestTransitionChoiceIsNormalised(t *testing.T) {
	v := newVillage(t, 5, 1, 1, 0)
	phases := seird()
	prog := v.install(t, phases, phases[1])

	// weights 1:3 without summing to one
	from := &model.DiseasePhase{Name: "branch", Transitions: []model.Transition{
		{Target: phases[3], Probability: 1},
		{Target: phases[4], Probability: 3},
	}}
	recovered := 0
	const n = 4000
	for range n {
		next, err := prog.choose(v.persons[0], from)
		require.NoError(t, err)
		if next == phases[3] {
			recovered++
		}
	}
	require.InDelta(t, 0.25, float64(recovered)/n, 0.03)

	next, err := prog.choose(v.persons[0], phases[1])
	require.NoError(t, err)
	require.Equal(t, phases[2], next)
}

func TestExposureProbability(t *testing.T) {
	require.Zero(t, ExposureProbability(0, 1, 1))
	require.Zero(t, ExposureProbability(1, 0, 1))
	require.Zero(t, ExposureProbability(1, 1, 0))
	require.InDelta(t, 1-math.Exp(-0.7), ExposureProbability(0.35, 1, 2), 1e-12)
	require.InDelta(t, 1-math.Exp(-1.4), ExposureProbability(0.35, 2, 2), 1e-12)
}

// outbreak runs a household of two, one infectious for two hours, and
// reports when the other was infected, or -1
func outbreak(t *testing.T, seed uint64) float64 {
	v := newVillage(t, seed, 2, 2, 0.35)
	s := &model.DiseasePhase{Name: "susceptible", Susceptible: true}
	i := &model.DiseasePhase{Name: "infectious", Dwell: constant(2), Infectiousness: 1}
	r := &model.DiseasePhase{Name: "recovered"}
	i.Transitions = []model.Transition{{Target: r}}

	var infectedAt = -1.0
	v.m.EventLogger = func(e *model.EventRecord) {
		if e.Type == model.EventInfection && e.PersonID == 1 {
			infectedAt = e.Time
		}
	}
	prog := v.install(t, []*model.DiseasePhase{s, i, r}, i)
	require.NoError(t, prog.Infect(v.persons[0], v.persons[0].Home))
	require.NoError(t, v.sim.RunUntil(context.Background(), 48))
	return infectedAt
}

func TestTransmissionIsReproducible(t *testing.T) {
	const runs = 200
	first := make([]float64, runs)
	for k := range first {
		first[k] = outbreak(t, uint64(k))
	}
	second := make([]float64, runs)
	for k := range second {
		second[k] = outbreak(t, uint64(k))
	}
	require.Equal(t, first, second)

	infected := 0
	for _, at := range first {
		if at >= 0 {
			infected++
			require.LessOrEqual(t, at, 2.0)
		}
	}
	// 1 - exp(-0.7) is about one half
	require.Greater(t, infected, runs/4)
	require.Less(t, infected, runs*3/4)
}

func TestTransmissionDrawsAgainstOccupantsBeforeThePass(t *testing.T) {
	rate := math.Ln2
	want := ExposureProbability(rate, 1, 1)
	both := 0
	for seed := range uint64(100) {
		v := newVillage(t, seed, 3, 3, rate)
		s := &model.DiseasePhase{Name: "susceptible", Susceptible: true}
		i := &model.DiseasePhase{Name: "infectious", Dwell: constant(100), Infectiousness: 1}
		r := &model.DiseasePhase{Name: "recovered"}
		i.Transitions = []model.Transition{{Target: r}}
		prog := v.install(t, []*model.DiseasePhase{s, i, r}, i)
		require.NoError(t, prog.Infect(v.persons[0], v.persons[0].Home))

		// the first settle with exposure is the sweep at hour 1
		require.NoError(t, v.sim.RunUntil(context.Background(), 1))

		draws := random.NewKeyedStream(seed + 1)
		infected := 0
		for _, p := range v.persons[1:] {
			expected := draws.Float64(int64(p.ID)) < want
			require.Equal(t, expected, p.Phase() == i, "seed %d, person %d", seed, p.ID)
			if expected {
				infected++
			}
		}
		if infected == 2 {
			both++
		}
	}
	require.Positive(t, both)
}

type fixedLocator struct {
	l *model.Location
}

func (f fixedLocator) Locate(p *model.Person) (*model.Location, error) {
	return f.l, nil
}

type countedHours struct {
	h     float64
	count *int
}

func (c countedHours) Duration(p *model.Person) (float64, error) {
	*c.count++
	return c.h, nil
}

func TestIsolationOnDepartureKeepsOneActivityChain(t *testing.T) {
	sim := devs.NewEventSimulator(0)
	// without sweeps, exposure is only settled when somebody moves
	params := model.DefaultModelParams()
	params.TransmissionSweepInterval = 0
	m := model.NewModel(sim, random.NewStream(1), random.NewKeyedStream(2), params, nil)
	house := model.NewLocationType(0, "house", 100)
	office := model.NewLocationType(1, "office", 0)
	require.NoError(t, m.AddLocationType(house))
	require.NoError(t, m.AddLocationType(office))
	require.NoError(t, m.SetHouseType(house))
	home := model.NewLocation(0, house, orb.Point{0, 0}, 60)
	work := model.NewLocation(100, office, orb.Point{500, 0}, 200)
	require.NoError(t, m.AddLocation(home))
	require.NoError(t, m.AddLocation(work))

	evaluations := 0
	atHome, err := model.NewActivity("home", homeLocator{}, countedHours{1, &evaluations})
	require.NoError(t, err)
	atWork, err := model.NewActivity("work", fixedLocator{work}, countedHours{1, &evaluations})
	require.NoError(t, err)
	commute, err := model.NewDailyPattern(1, "commute", []*model.Activity{atHome, atWork})
	require.NoError(t, err)
	stay, err := model.NewActivity("stay", homeLocator{}, hours(24))
	require.NoError(t, err)
	stayHome, err := model.NewDailyPattern(2, "stay", []*model.Activity{stay})
	require.NoError(t, err)

	commuter := model.NewPerson(0, 30, true, home, commute)
	sick := model.NewPerson(1, 40, false, home, stayHome)
	require.NoError(t, m.AddPerson(commuter))
	require.NoError(t, m.AddPerson(sick))

	s := &model.DiseasePhase{Name: "susceptible", Susceptible: true}
	i := &model.DiseasePhase{Name: "infected", Infectiousness: 1, Isolation: true}
	prog, err := NewProgression(m, "test", []*model.DiseasePhase{s, i}, s, i, false)
	require.NoError(t, err)
	m.SetDisease(prog, NewAreaTransmission(m, true))
	require.NoError(t, m.Start())
	require.NoError(t, prog.Infect(sick, home))

	// leaving home at hour 1 settles an hour of certain exposure
	require.NoError(t, sim.RunUntil(context.Background(), 10))

	require.Equal(t, i, commuter.Phase())
	require.Equal(t, home, commuter.CurrentLocation())
	require.Zero(t, work.OccupantCount())
	// hours 0 and 1, the rerouted evaluation at hour 1, then hours 2 to 10
	require.Equal(t, 12, evaluations)
	require.NoError(t, m.CheckInvariants())
}
