package model

// PersonDumpRecord is the state of one person at dump time
type PersonDumpRecord struct {
	ID       int
	Age      int
	Female   bool
	Home     int
	Work     int
	School   int
	Location int
	Activity string
	Pattern  string
	Phase    string
	Dead     bool
}

// ModelDumpData is a snapshot of the population
type ModelDumpData struct {
	Time        float64
	Day         int
	Persons     []PersonDumpRecord
	PhaseCounts []PhaseCount
	Occupancy   []TypeOccupancy
}

func locationID(l *Location) int {
	if l == nil {
		return NoID
	}
	return l.ID
}

// Dump collects the current state of every person
func (m *Model) Dump() *ModelDumpData {
	now := m.Sim.Now()
	ret := &ModelDumpData{
		Time:        now,
		Day:         DayOf(now),
		Persons:     make([]PersonDumpRecord, len(m.Schedule.Persons)),
		PhaseCounts: m.CollectPhaseCounts(),
		Occupancy:   m.CollectOccupancy(),
	}
	for i, p := range m.Schedule.Persons {
		rec := PersonDumpRecord{
			ID:       p.ID,
			Age:      p.Age,
			Female:   p.Female,
			Home:     locationID(p.Home),
			Work:     locationID(p.Work),
			School:   locationID(p.School),
			Location: locationID(p.current),
			Pattern:  p.pattern.Name,
			Dead:     p.dead,
		}
		if p.currentActivity != nil {
			rec.Activity = p.currentActivity.Name
		}
		if p.phase != nil {
			rec.Phase = p.phase.Name
		}
		ret.Persons[i] = rec
	}
	return ret
}
