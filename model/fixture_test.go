package model

import (
	"testing"

	"epi-model/devs"
	"epi-model/random"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

type locateFunc func(p *Person) (*Location, error)

func (f locateFunc) Locate(p *Person) (*Location, error) {
	return f(p)
}

type hours float64

func (h hours) Duration(p *Person) (float64, error) {
	return float64(h), nil
}

var (
	atHome = locateFunc(func(p *Person) (*Location, error) { return p.Home, nil })
	atWork = locateFunc(func(p *Person) (*Location, error) { return p.Work, nil })
	skip   = hours(Skip())
)

// stubProgression has phases susceptible, infected, isolated and dead
// without timers
type stubProgression struct {
	m      *Model
	phases []*DiseasePhase
}

func newStubProgression(m *Model) *stubProgression {
	s := &DiseasePhase{Name: "susceptible", Index: 0, Susceptible: true}
	i := &DiseasePhase{Name: "infected", Index: 1, Infectiousness: 1}
	q := &DiseasePhase{Name: "isolated", Index: 2, Infectiousness: 1, Isolation: true}
	d := &DiseasePhase{Name: "dead", Index: 3, Dead: true}
	return &stubProgression{m: m, phases: []*DiseasePhase{s, i, q, d}}
}

func (s *stubProgression) Name() string            { return "stub" }
func (s *stubProgression) Phases() []*DiseasePhase { return s.phases }
func (s *stubProgression) Initial() *DiseasePhase  { return s.phases[0] }
func (s *stubProgression) Start() error            { return nil }

func (s *stubProgression) Infect(p *Person, at *Location) error {
	if !p.Phase().Susceptible {
		return nil
	}
	if err := s.m.ChangePhase(p, s.phases[1]); err != nil {
		return err
	}
	s.m.RecordInfection(p, at)
	return nil
}

type world struct {
	m      *Model
	sim    *devs.EventSimulator
	stub   *stubProgression
	house  *LocationType
	office *LocationType
	homes  []*Location
	work   *Location
	events []*EventRecord
}

// newWorld creates a model with one house per person and a shared office
func newWorld(t *testing.T, persons int) *world {
	t.Helper()

	w := &world{sim: devs.NewEventSimulator(0)}
	w.m = NewModel(w.sim, random.NewStream(1), random.NewKeyedStream(2), nil, func(e *EventRecord) {
		w.events = append(w.events, e)
	})
	w.stub = newStubProgression(w.m)
	w.m.SetDisease(w.stub, &BaseDiseaseTransmission{})

	w.house = NewLocationType(0, "house", 0.1)
	w.office = NewLocationType(1, "office", 0.1)
	require.NoError(t, w.m.AddLocationType(w.house))
	require.NoError(t, w.m.AddLocationType(w.office))
	require.NoError(t, w.m.SetHouseType(w.house))
	require.NoError(t, w.office.SetBaseConstraint(1, 1, w.house))

	w.work = NewLocation(100, w.office, orb.Point{500, 0}, 200)
	require.NoError(t, w.m.AddLocation(w.work))
	for i := range persons {
		h := NewLocation(i, w.house, orb.Point{float64(i * 10), 100}, 80)
		require.NoError(t, w.m.AddLocation(h))
		w.homes = append(w.homes, h)
	}
	return w
}

func (w *world) addPersons(t *testing.T, pattern *WeekPattern) []*Person {
	t.Helper()
	persons := make([]*Person, len(w.homes))
	for i, h := range w.homes {
		p := NewPerson(i, 30+i, i%2 == 0, h, pattern)
		p.Work = w.work
		require.NoError(t, w.m.AddPerson(p))
		persons[i] = p
	}
	return persons
}

func mustActivity(t *testing.T, name string, l Locator, d Duration) *Activity {
	t.Helper()
	a, err := NewActivity(name, l, d)
	require.NoError(t, err)
	return a
}

func mustDaily(t *testing.T, id int, name string, acts ...*Activity) *WeekPattern {
	t.Helper()
	w, err := NewDailyPattern(id, name, acts)
	require.NoError(t, err)
	return w
}

func (w *world) eventsOf(kind string) []*EventRecord {
	var ret []*EventRecord
	for _, e := range w.events {
		if e.Type == kind {
			ret = append(ret, e)
		}
	}
	return ret
}
