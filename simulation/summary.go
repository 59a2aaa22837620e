package simulation

import (
	"epi-model/model"
	"epi-model/utils"
)

// AgeBrackets is the number of ten-year age brackets; the last one is open
const AgeBrackets = 11

func ageBracket(age int) int {
	return min(max(age/10, 0), AgeBrackets-1)
}

// Summary aggregates the events of a run
type Summary struct {
	InfectionsByAge  [AgeBrackets]int
	DeathsByAge      [AgeBrackets]int
	InfectionsByType map[string]int
	Infections       int
	Deaths           int
	PeakInfected     int
	PeakTime         float64
	// TopLocations ranks locations by infections
	TopLocations []utils.KeyCount

	byLocation map[int]int
}

func NewSummary() *Summary {
	return &Summary{
		InfectionsByType: make(map[string]int),
		byLocation:       make(map[int]int),
	}
}

func (s *Summary) record(m *model.Model, event *model.EventRecord) {
	switch body := event.Body.(type) {
	case model.InfectionEventBody:
		s.Infections++
		s.InfectionsByAge[ageBracket(body.Age)]++
		if t := m.LocationType(body.LocationTypeID); t != nil {
			s.InfectionsByType[t.Name]++
			s.byLocation[body.LocationID]++
		}
	case model.DeathEventBody:
		s.Deaths++
		s.DeathsByAge[ageBracket(body.Age)]++
	}
}

// observe tracks the peak of persons in infectious phases
func (s *Summary) observe(m *model.Model) {
	infected := 0
	for _, ph := range m.Progression.Phases() {
		if ph.Infectiousness > 0 {
			infected += ph.Count()
		}
	}
	if infected > s.PeakInfected {
		s.PeakInfected = infected
		s.PeakTime = m.Sim.Now()
	}
}

func (s *Summary) finish(topK int) {
	s.TopLocations = utils.TopK(s.byLocation, topK)
}
