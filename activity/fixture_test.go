package activity

import (
	"testing"

	"epi-model/devs"
	"epi-model/disease"
	"epi-model/model"
	"epi-model/random"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

type town struct {
	m      *model.Model
	sim    *devs.EventSimulator
	house  *model.LocationType
	office *model.LocationType
	shop   *model.LocationType
	worker *model.Person
}

// newTown lays out a worker living at the origin, an office 2 km east and
// shops at 100 m, 300 m, 350 m and 5 km
func newTown(t *testing.T, seed uint64) *town {
	t.Helper()

	tw := &town{sim: devs.NewEventSimulator(0)}
	tw.m = model.NewModel(tw.sim, random.NewStream(seed), random.NewKeyedStream(seed+1), nil, nil)

	tw.house = model.NewLocationType(0, "house", 0.2)
	tw.office = model.NewLocationType(1, "office", 0.1)
	tw.shop = model.NewLocationType(2, "shop", 0.1)
	for _, lt := range []*model.LocationType{tw.house, tw.office, tw.shop} {
		require.NoError(t, tw.m.AddLocationType(lt))
	}
	require.NoError(t, tw.m.SetHouseType(tw.house))
	require.NoError(t, tw.office.SetBaseConstraint(1, 1, tw.shop))

	home := model.NewLocation(1, tw.house, orb.Point{0, 0}, 90)
	office := model.NewLocation(2, tw.office, orb.Point{2000, 0}, 500)
	require.NoError(t, tw.m.AddLocation(home))
	require.NoError(t, tw.m.AddLocation(office))
	for i, x := range []float64{100, 300, 350, 5000} {
		require.NoError(t, tw.m.AddLocation(model.NewLocation(10+i, tw.shop, orb.Point{x, 0}, 100)))
	}

	stay, err := model.NewActivity("stay", Home{}, &FixedDuration{Hours: 24})
	require.NoError(t, err)
	pattern, err := model.NewDailyPattern(1, "stay", []*model.Activity{stay})
	require.NoError(t, err)

	tw.worker = model.NewPerson(1, 40, true, home, pattern)
	tw.worker.Work = office
	require.NoError(t, tw.m.AddPerson(tw.worker))

	s := &model.DiseasePhase{Name: "susceptible", Susceptible: true}
	i := &model.DiseasePhase{Name: "infected", Infectiousness: 1}
	prog, err := disease.NewProgression(tw.m, "flu", []*model.DiseasePhase{s, i}, s, i, false)
	require.NoError(t, err)
	tw.m.SetDisease(prog, disease.NewAreaTransmission(tw.m, false))
	require.NoError(t, tw.m.Start())
	return tw
}

func (tw *town) policy(t *testing.T, name string, lt *model.LocationType, fo, fa float64, alt *model.LocationType) {
	t.Helper()
	p := model.NewPolicy(name)
	require.NoError(t, p.Restrict(lt, fo, fa, alt))
	require.NoError(t, tw.m.Policies.Register(p))
	require.NoError(t, tw.m.Policies.Activate(name))
}
