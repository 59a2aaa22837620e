package model

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func workDay(t *testing.T) *WeekPattern {
	return mustDaily(t, 1, "workday",
		mustActivity(t, "sleep", atHome, hours(8)),
		mustActivity(t, "work", atWork, hours(8)),
		mustActivity(t, "evening", atHome, hours(8)),
	)
}

func TestOccupancyInvariantHoldsWhileRunning(t *testing.T) {
	w := newWorld(t, 5)
	persons := w.addPersons(t, workDay(t))
	require.NoError(t, w.m.Start())

	checks := 0
	var check func() error
	check = func() error {
		checks++
		if err := w.m.CheckInvariants(); err != nil {
			return err
		}
		_, err := w.sim.ScheduleAfter(0.25, check)
		return err
	}
	_, err := w.sim.ScheduleAt(0, check)
	require.NoError(t, err)

	require.NoError(t, w.sim.RunUntil(context.Background(), 72))
	require.Greater(t, checks, 250)

	// t=72 is the start of a day: everyone is asleep at home
	for _, p := range persons {
		require.Equal(t, p.Home, p.CurrentLocation())
		require.True(t, p.Home.Contains(p))
	}
}

func TestPersonsFollowTheirPattern(t *testing.T) {
	w := newWorld(t, 2)
	persons := w.addPersons(t, workDay(t))
	require.NoError(t, w.m.Start())

	require.NoError(t, w.sim.RunUntil(context.Background(), 9))
	for _, p := range persons {
		require.Equal(t, w.work, p.CurrentLocation())
		require.Equal(t, "work", p.CurrentActivity().Name)
	}
	require.Equal(t, 2, w.work.OccupantCount())

	require.NoError(t, w.sim.RunUntil(context.Background(), 17))
	require.Equal(t, 0, w.work.OccupantCount())
	require.Equal(t, "evening", persons[0].CurrentActivity().Name)
}

func TestSkipConsumesNoTime(t *testing.T) {
	w := newWorld(t, 1)
	persons := w.addPersons(t, mustDaily(t, 1, "skipping",
		mustActivity(t, "skipped", atHome, skip),
		mustActivity(t, "work", atWork, hours(10)),
		mustActivity(t, "rest", atHome, hours(14)),
	))
	require.NoError(t, w.m.Start())

	require.NoError(t, w.sim.RunUntil(context.Background(), 0))
	p := persons[0]
	require.Equal(t, "work", p.CurrentActivity().Name)
	require.Equal(t, w.work, p.CurrentLocation())
	require.Equal(t, 2, p.ActivityIndex())
}

func TestAllSkippingPatternIsAnError(t *testing.T) {
	w := newWorld(t, 1)
	w.addPersons(t, mustDaily(t, 1, "broken",
		mustActivity(t, "a", atHome, skip),
		mustActivity(t, "b", atWork, skip),
	))
	require.NoError(t, w.m.Start())

	err := w.sim.RunUntil(context.Background(), 1)
	require.ErrorIs(t, err, ErrSkipLoop)
}

func TestNegativeDurationIsAnError(t *testing.T) {
	w := newWorld(t, 1)
	w.addPersons(t, mustDaily(t, 1, "broken", mustActivity(t, "a", atHome, hours(-1))))
	require.NoError(t, w.m.Start())

	err := w.sim.RunUntil(context.Background(), 1)
	require.ErrorIs(t, err, ErrInvalidDuration)
}

func TestEmptyPatternDayIsRejected(t *testing.T) {
	var days [DaysPerWeek][]*Activity
	for d := range 6 {
		days[d] = []*Activity{mustActivity(t, "a", atHome, hours(24))}
	}
	_, err := NewWeekPattern(1, "no sunday", days)
	require.ErrorIs(t, err, ErrEmptyPatternDay)
}

func TestStartRequiresConfiguration(t *testing.T) {
	w := newWorld(t, 1)
	w.addPersons(t, workDay(t))
	w.m.Progression = nil
	require.ErrorIs(t, w.m.Start(), ErrNotConfigured)
}

func TestDuplicateRegistrations(t *testing.T) {
	w := newWorld(t, 1)
	persons := w.addPersons(t, workDay(t))
	require.ErrorIs(t, w.m.AddPerson(persons[0]), ErrDuplicateID)
	require.ErrorIs(t, w.m.AddLocation(w.work), ErrDuplicateID)
	require.ErrorIs(t, w.m.AddLocationType(w.office), ErrDuplicateID)
}

func TestDeathRemovesPersonForGood(t *testing.T) {
	w := newWorld(t, 2)
	persons := w.addPersons(t, workDay(t))
	require.NoError(t, w.m.Start())
	require.NoError(t, w.sim.RunUntil(context.Background(), 9))

	p := persons[0]
	require.NoError(t, w.m.ChangePhase(p, w.stub.phases[3]))
	require.True(t, p.Dead())
	require.Nil(t, p.CurrentLocation())
	require.False(t, w.work.Contains(p))
	require.Len(t, w.eventsOf(EventDeath), 1)
	require.Equal(t, w.work.ID, w.eventsOf(EventDeath)[0].Body.(DeathEventBody).LocationID)

	require.NoError(t, w.sim.RunUntil(context.Background(), 72))
	require.Nil(t, p.CurrentLocation())
	for _, l := range w.m.Locations() {
		require.False(t, l.Contains(p))
	}
	require.NoError(t, w.m.CheckInvariants())
	require.Equal(t, 1, w.m.LivingCount())
	require.Equal(t, 1, w.stub.phases[3].Count())

	require.ErrorIs(t, w.m.ChangePhase(p, w.stub.phases[0]), ErrDeadPerson)
}

func TestIsolationSendsPersonHome(t *testing.T) {
	w := newWorld(t, 1)
	persons := w.addPersons(t, workDay(t))
	require.NoError(t, w.m.Start())
	require.NoError(t, w.sim.RunUntil(context.Background(), 10))

	p := persons[0]
	require.Equal(t, w.work, p.CurrentLocation())
	require.NoError(t, w.m.ChangePhase(p, w.stub.phases[2]))
	require.NoError(t, w.sim.RunUntil(context.Background(), 10))
	require.Equal(t, p.Home, p.CurrentLocation())

	// every later activity resolves home as well
	require.NoError(t, w.sim.RunUntil(context.Background(), 40))
	require.Equal(t, p.Home, p.CurrentLocation())
	require.Equal(t, 0, w.work.OccupantCount())
}

func TestPhaseCountsFollowChanges(t *testing.T) {
	w := newWorld(t, 4)
	persons := w.addPersons(t, workDay(t))
	require.NoError(t, w.m.Start())

	require.NoError(t, w.stub.Infect(persons[1], persons[1].Home))
	require.NoError(t, w.stub.Infect(persons[1], persons[1].Home))
	require.NoError(t, w.m.ChangePhase(persons[2], w.stub.phases[3]))

	counts := w.m.CollectPhaseCounts()
	require.Equal(t, []PhaseCount{
		{Phase: "susceptible", Count: 2},
		{Phase: "infected", Count: 1},
		{Phase: "isolated", Count: 0},
		{Phase: "dead", Count: 1},
	}, counts)
	require.NoError(t, w.m.CheckInvariants())
	require.Len(t, w.eventsOf(EventInfection), 1)
	require.Len(t, w.eventsOf(EventPhaseChange), 2)
}

func TestPatternSwapAppliesFromNextDay(t *testing.T) {
	w := newWorld(t, 1)
	base := mustDaily(t, 1, "normal", mustActivity(t, "office", atWork, hours(24)))
	lockdown := mustDaily(t, 2, "lockdown", mustActivity(t, "stay home", atHome, hours(24)))
	require.NoError(t, w.m.AddWeekPattern(base))
	require.NoError(t, w.m.AddWeekPattern(lockdown))
	persons := w.addPersons(t, base)

	pol := NewPolicy("lockdown")
	pol.SwapPattern(base, lockdown)
	require.NoError(t, w.m.Policies.Register(pol))
	require.NoError(t, w.m.Policies.ScheduleWindow("lockdown", 10, 50))
	require.NoError(t, w.m.Start())

	p := persons[0]
	require.NoError(t, w.sim.RunUntil(context.Background(), 23))
	require.Equal(t, base, p.WeekPattern())
	require.Equal(t, w.work, p.CurrentLocation())

	require.NoError(t, w.sim.RunUntil(context.Background(), 24.5))
	require.Equal(t, lockdown, p.WeekPattern())
	require.Equal(t, p.Home, p.CurrentLocation())

	// deactivated at 50, back to normal from day 3
	require.NoError(t, w.sim.RunUntil(context.Background(), 70))
	require.Equal(t, lockdown, p.WeekPattern())
	require.NoError(t, w.sim.RunUntil(context.Background(), 72.5))
	require.Equal(t, base, p.WeekPattern())
	require.Equal(t, w.work, p.CurrentLocation())

	require.Len(t, w.eventsOf(EventPolicyActivated), 1)
	require.Len(t, w.eventsOf(EventPolicyDeactivated), 1)
}

func TestDayHelpers(t *testing.T) {
	require.Equal(t, 0, DayOf(23.999))
	require.Equal(t, 1, DayOf(24))
	require.InDelta(t, 1.5, HourOfDay(49.5), 1e-12)
	require.True(t, IsSkip(Skip()))
	require.False(t, IsSkip(0))
	require.False(t, IsSkip(math.Inf(1)))
}
