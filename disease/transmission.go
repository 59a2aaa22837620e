package disease

import (
	"math"

	"epi-model/model"
)

// AreaTransmission infects susceptible occupants of a location at a hazard
// proportional to the summed infectiousness of their co-occupants. Exposure
// is settled over each interval of constant membership: with hazard
// rate*I over dt hours, a susceptible person is infected with probability
// 1 - exp(-rate*I*dt).
type AreaTransmission struct {
	model  *model.Model
	origin float64

	// Reproducible selects the person-keyed stream for infection draws
	Reproducible bool

	lastSettled map[int]float64
}

// NewAreaTransmission creates the transmission model; exposure is counted
// from the model's current time
func NewAreaTransmission(m *model.Model, reproducible bool) *AreaTransmission {
	return &AreaTransmission{
		model:        m,
		origin:       m.Sim.Now(),
		Reproducible: reproducible,
		lastSettled:  make(map[int]float64),
	}
}

// ExposureProbability is the infection probability over dt hours at a
// location of the given rate with total co-present infectiousness
func ExposureProbability(rate, infectiousness, dt float64) float64 {
	if rate <= 0 || infectiousness <= 0 || dt <= 0 {
		return 0
	}
	return -math.Expm1(-rate * infectiousness * dt)
}

// Settle draws infections for the interval since loc was last settled.
// All draws are taken before any infection is applied.
func (t *AreaTransmission) Settle(loc *model.Location) error {
	now := t.model.Sim.Now()
	last, ok := t.lastSettled[loc.ID]
	if !ok {
		last = t.origin
	}
	t.lastSettled[loc.ID] = now

	dt := now - last
	rate := loc.Type.TransmissionRate
	if dt <= 0 || rate <= 0 || loc.OccupantCount() < 2 {
		return nil
	}

	occupants := loc.Occupants()
	total := 0.0
	for _, p := range occupants {
		total += p.Phase().Infectiousness
	}
	if total <= 0 {
		return nil
	}

	infected := make([]*model.Person, 0)
	for _, p := range occupants {
		ph := p.Phase()
		if !ph.Susceptible {
			continue
		}
		prob := ExposureProbability(rate, total-ph.Infectiousness, dt)
		if prob <= 0 {
			continue
		}
		if t.draw(p) < prob {
			infected = append(infected, p)
		}
	}

	for _, p := range infected {
		if err := t.model.Progression.Infect(p, loc); err != nil {
			return err
		}
	}
	return nil
}

func (t *AreaTransmission) draw(p *model.Person) float64 {
	if t.Reproducible {
		return t.model.Reproducible.Float64(int64(p.ID))
	}
	return t.model.Random.Float64()
}

// for type check
var _ model.DiseaseTransmission = (*AreaTransmission)(nil)
