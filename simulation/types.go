package simulation

import (
	"epi-model/model"
)

// AccumulativeModelState is the time series sampled during a run
type AccumulativeModelState struct {
	// (sample)
	Times []float64
	// (sample, phase)
	PhaseCounts [][]int32
	// (sample, location type)
	Occupancy [][]int32
	// (sample, location type), infections since the previous sample
	Infections [][]int32
}

func NewAccumulativeModelState() *AccumulativeModelState {
	return &AccumulativeModelState{
		Times:       make([]float64, 0),
		PhaseCounts: make([][]int32, 0),
		Occupancy:   make([][]int32, 0),
		Infections:  make([][]int32, 0),
	}
}

// accumulate appends one sample; infections is consumed and reset
func (s *AccumulativeModelState) accumulate(m *model.Model, infections []int32) {
	s.Times = append(s.Times, m.Sim.Now())

	counts := m.CollectPhaseCounts()
	phases := make([]int32, len(counts))
	for i, c := range counts {
		phases[i] = int32(c.Count)
	}
	s.PhaseCounts = append(s.PhaseCounts, phases)

	occ := m.CollectOccupancy()
	types := make([]int32, len(occ))
	for i, o := range occ {
		types[i] = int32(o.Count)
	}
	s.Occupancy = append(s.Occupancy, types)

	inf := make([]int32, len(infections))
	copy(inf, infections)
	clear(infections)
	s.Infections = append(s.Infections, inf)
}

// validate checks the series are aligned and rectangular
func (s *AccumulativeModelState) validate(phases, types int) bool {
	n := len(s.Times)
	if len(s.PhaseCounts) != n || len(s.Occupancy) != n || len(s.Infections) != n {
		return false
	}
	for i := range n {
		if len(s.PhaseCounts[i]) != phases || len(s.Occupancy[i]) != types || len(s.Infections[i]) != types {
			return false
		}
	}
	return true
}
