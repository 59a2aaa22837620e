package model

import (
	"fmt"
	"math"
)

// ready runs a person's next activity. It resolves the location and the
// duration, skipping activities whose duration is a skip, then moves the
// person and schedules the following ready callback.
func (m *Model) ready(p *Person) error {
	p.hasReady = false
	if p.dead {
		return nil
	}

	for skips := 0; ; skips++ {
		if skips > m.Params.MaxSkipsPerTick {
			return fmt.Errorf(
				"%w: person %d, pattern %q, day %d",
				ErrSkipLoop, p.ID, p.pattern.Name, p.day,
			)
		}

		if p.activityIndex == 0 && p.nextPattern != nil {
			p.pattern = p.nextPattern
			p.nextPattern = nil
		}
		act := p.pattern.Day(p.day)[p.activityIndex]
		m.advance(p)

		loc, d, err := m.resolve(p, act)
		if err != nil {
			return fmt.Errorf("person %d, activity %q: %w", p.ID, act.Name, err)
		}
		if IsSkip(d) {
			continue
		}
		if d < 0 || math.IsInf(d, 0) {
			return fmt.Errorf("%w: person %d, activity %q, got %v", ErrInvalidDuration, p.ID, act.Name, d)
		}

		p.currentActivity = act
		moved, err := m.moveTo(p, loc)
		if err != nil {
			return fmt.Errorf("person %d, activity %q: %w", p.ID, act.Name, err)
		}
		if !moved {
			// the rerouted callback continues the pattern
			return nil
		}
		return m.scheduleReady(p, d)
	}
}

// resolve evaluates an activity for a person; isolating persons stay home
func (m *Model) resolve(p *Person, act *Activity) (*Location, float64, error) {
	var loc *Location
	if p.Isolating() {
		loc = p.Home
	} else {
		l, err := act.Locator.Locate(p)
		if err != nil {
			return nil, 0, err
		}
		if l == nil {
			return nil, 0, ErrNoLocation
		}
		loc = l
	}

	d, err := act.Duration.Duration(p)
	if err != nil {
		return nil, 0, err
	}
	return loc, d, nil
}

// advance moves the pattern index forward, wrapping to the first activity
// of the next day. A pending pattern switch takes effect when the first
// activity of a day is picked.
func (m *Model) advance(p *Person) {
	p.activityIndex++
	if p.activityIndex < len(p.pattern.Day(p.day)) {
		return
	}
	p.activityIndex = 0
	p.day = max(p.day+1, DayOf(m.Sim.Now()))
}

func (m *Model) scheduleReady(p *Person, after float64) error {
	h, err := m.Sim.ScheduleAfter(after, func() error {
		return m.ready(p)
	})
	if err != nil {
		return err
	}
	p.ready = h
	p.hasReady = true
	return nil
}

func (m *Model) cancelReady(p *Person) {
	if p.hasReady {
		m.Sim.Cancel(p.ready)
		p.hasReady = false
	}
}

// Reroute cancels a person's pending activity and resolves the next one
// immediately
func (m *Model) Reroute(p *Person) error {
	if p.dead {
		return fmt.Errorf("%w: person %d", ErrDeadPerson, p.ID)
	}
	if !m.started {
		return nil
	}
	m.cancelReady(p)
	return m.scheduleReady(p, 0)
}

func (m *Model) nextPatternCheck() float64 {
	now := m.Sim.Now()
	t := float64(DayOf(now))*HoursPerDay + m.Params.PatternCheckHour
	if t < now {
		t += HoursPerDay
	}
	return t
}

func (m *Model) schedulePatternCheck() error {
	_, err := m.Sim.ScheduleAt(m.nextPatternCheck(), m.checkWeekPatterns)
	return err
}

// checkWeekPatterns queues the pattern each living person should follow
// from the next day on, according to the active policies
func (m *Model) checkWeekPatterns() error {
	for _, p := range m.Schedule.Persons {
		if p.dead {
			continue
		}
		desired := m.Policies.PatternFor(p)
		if desired != p.pattern {
			p.nextPattern = desired
		} else {
			p.nextPattern = nil
		}
	}
	_, err := m.Sim.ScheduleAfter(HoursPerDay, m.checkWeekPatterns)
	return err
}

func (m *Model) scheduleSweep() error {
	if m.Params.TransmissionSweepInterval <= 0 {
		return nil
	}
	_, err := m.Sim.ScheduleAfter(m.Params.TransmissionSweepInterval, m.sweep)
	return err
}

// sweep settles exposure at every populated location
func (m *Model) sweep() error {
	for _, l := range m.PopulatedLocations() {
		if err := m.settle(l); err != nil {
			return err
		}
	}
	return m.scheduleSweep()
}
