package model

import (
	"errors"
	"fmt"
)

// PhaseCount is the population of one disease phase
type PhaseCount struct {
	Phase string
	Count int
}

// TypeOccupancy is the number of persons present at locations of one type
type TypeOccupancy struct {
	TypeID int
	Name   string
	Count  int
}

// CollectPhaseCounts returns the phase populations in phase order
func (m *Model) CollectPhaseCounts() []PhaseCount {
	if m.Progression == nil {
		return nil
	}
	phases := m.Progression.Phases()
	ret := make([]PhaseCount, len(phases))
	for i, ph := range phases {
		ret[i] = PhaseCount{Phase: ph.Name, Count: ph.count}
	}
	return ret
}

// CollectOccupancy returns the persons present per location type, in type
// registration order
func (m *Model) CollectOccupancy() []TypeOccupancy {
	ret := make([]TypeOccupancy, len(m.typeList))
	for i, t := range m.typeList {
		count := 0
		for _, l := range t.locations {
			count += len(l.occupants)
		}
		ret[i] = TypeOccupancy{TypeID: t.ID, Name: t.Name, Count: count}
	}
	return ret
}

// LivingCount returns the number of persons not deceased
func (m *Model) LivingCount() int {
	count := 0
	for _, p := range m.Schedule.Persons {
		if !p.dead {
			count++
		}
	}
	return count
}

// CheckInvariants verifies occupancy and phase count consistency: every
// living person is present at exactly their current location, nobody else
// is present anywhere, and the phase counts match the population.
func (m *Model) CheckInvariants() error {
	var errs []error

	seen := make(map[int]int)
	for _, l := range m.locList {
		for id, p := range l.occupants {
			seen[id]++
			if p.current != l {
				errs = append(errs, fmt.Errorf("person %d present at location %d but current is elsewhere", id, l.ID))
			}
		}
	}
	for _, p := range m.Schedule.Persons {
		switch {
		case p.dead && seen[p.ID] != 0:
			errs = append(errs, fmt.Errorf("deceased person %d is still present", p.ID))
		case !p.dead && seen[p.ID] != 1:
			errs = append(errs, fmt.Errorf("person %d present at %d locations", p.ID, seen[p.ID]))
		}
	}

	if m.Progression != nil {
		total, living := 0, 0
		for _, ph := range m.Progression.Phases() {
			total += ph.count
			if !ph.Dead {
				living += ph.count
			}
		}
		if total != len(m.Schedule.Persons) {
			errs = append(errs, fmt.Errorf("phase counts sum to %d, population is %d", total, len(m.Schedule.Persons)))
		}
		if n := m.LivingCount(); living != n {
			errs = append(errs, fmt.Errorf("living phase counts sum to %d, living population is %d", living, n))
		}
	}

	return errors.Join(errs...)
}
