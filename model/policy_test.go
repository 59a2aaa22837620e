package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPolicyCompositionIsMostRestrictive(t *testing.T) {
	w := newWorld(t, 1)
	park := NewLocationType(2, "park", 0.05)
	shop := NewLocationType(3, "shop", 0.05)
	require.NoError(t, w.m.AddLocationType(park))
	require.NoError(t, w.m.AddLocationType(shop))

	a := NewPolicy("a")
	require.NoError(t, a.Restrict(w.office, 0.5, 0.2, nil))
	b := NewPolicy("b")
	require.NoError(t, b.Restrict(w.office, 0.3, 0.9, park))
	c := NewPolicy("c")
	require.NoError(t, c.Restrict(w.office, 0.8, 0.8, shop))
	for _, p := range []*Policy{a, b, c} {
		require.NoError(t, w.m.Policies.Register(p))
	}

	// activation order does not matter, registration order does
	require.NoError(t, w.m.Policies.Activate("c"))
	require.NoError(t, w.m.Policies.Activate("a"))
	require.NoError(t, w.m.Policies.Activate("b"))
	require.Equal(t, 0.3, w.office.FractionOpen())
	require.Equal(t, 0.2, w.office.FractionActivities())
	require.Equal(t, park, w.office.Alternative())
	require.True(t, w.office.Constrained())

	require.NoError(t, w.m.Policies.Deactivate("b"))
	require.Equal(t, 0.5, w.office.FractionOpen())
	require.Equal(t, 0.2, w.office.FractionActivities())
	require.Equal(t, shop, w.office.Alternative())

	require.NoError(t, w.m.Policies.Deactivate("a"))
	require.NoError(t, w.m.Policies.Deactivate("c"))
	require.Equal(t, 1.0, w.office.FractionOpen())
	require.Equal(t, 1.0, w.office.FractionActivities())
	require.Equal(t, w.house, w.office.Alternative())
	require.False(t, w.office.Constrained())

	// untouched types keep their base constraint
	require.Equal(t, 1.0, park.FractionOpen())
}

func TestPolicyErrors(t *testing.T) {
	w := newWorld(t, 1)
	p := NewPolicy("p")
	require.ErrorIs(t, p.Restrict(w.office, 1.5, 1, nil), ErrFractionRange)
	require.NoError(t, w.m.Policies.Register(p))
	require.ErrorIs(t, w.m.Policies.Register(NewPolicy("p")), ErrDuplicateID)
	require.ErrorIs(t, w.m.Policies.Activate("missing"), ErrUnknownPolicy)
	require.ErrorIs(t, w.m.Policies.ScheduleWindow("p", 5, 1), ErrInvalidPolicyTimes)
	require.ErrorIs(t, w.office.SetBaseConstraint(-0.1, 1, nil), ErrFractionRange)
}

func TestEffectiveTypeFollowsClosedTypes(t *testing.T) {
	w := newWorld(t, 1)
	school := NewLocationType(2, "school", 0.1)
	require.NoError(t, w.m.AddLocationType(school))

	p := NewPolicy("closures")
	require.NoError(t, p.Restrict(school, 0, 0, w.office))
	require.NoError(t, p.Restrict(w.office, 0, 0, w.house))
	require.NoError(t, w.m.Policies.Register(p))

	eff, err := w.m.EffectiveType(school)
	require.NoError(t, err)
	require.Equal(t, school, eff)

	require.NoError(t, w.m.Policies.Activate("closures"))
	eff, err = w.m.EffectiveType(school)
	require.NoError(t, err)
	require.Equal(t, w.house, eff)

	eff, err = w.m.EffectiveType(w.m.Walk.Type)
	require.NoError(t, err)
	require.Equal(t, w.m.Walk.Type, eff)
}

func TestEffectiveTypeLoopAndMissingAlternative(t *testing.T) {
	w := newWorld(t, 1)
	a := NewLocationType(2, "a", 0.1)
	b := NewLocationType(3, "b", 0.1)
	c := NewLocationType(4, "c", 0.1)
	for _, lt := range []*LocationType{a, b, c} {
		require.NoError(t, w.m.AddLocationType(lt))
	}

	p := NewPolicy("loop")
	require.NoError(t, p.Restrict(a, 0, 1, b))
	require.NoError(t, p.Restrict(b, 0, 1, a))
	require.NoError(t, p.Restrict(c, 0, 1, nil))
	require.NoError(t, w.m.Policies.Register(p))
	require.NoError(t, w.m.Policies.Activate("loop"))

	_, err := w.m.EffectiveType(a)
	require.ErrorIs(t, err, ErrAlternativeLoop)
	_, err = w.m.EffectiveType(c)
	require.ErrorIs(t, err, ErrNoAlternative)
}

func TestBaseAlternativeLoopFailsStart(t *testing.T) {
	w := newWorld(t, 1)
	a := NewLocationType(2, "a", 0.1)
	b := NewLocationType(3, "b", 0.1)
	require.NoError(t, w.m.AddLocationType(a))
	require.NoError(t, w.m.AddLocationType(b))
	require.NoError(t, a.SetBaseConstraint(1, 1, b))
	require.NoError(t, b.SetBaseConstraint(1, 1, a))
	w.addPersons(t, workDay(t))

	require.ErrorIs(t, w.m.Start(), ErrAlternativeLoop)
}
