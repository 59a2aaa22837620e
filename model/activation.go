package model

// Activation holds the persons of a model and starts them in random order
type Activation struct {
	Model   *Model
	Persons []*Person
}

// NewActivation creates a new random activation scheduler
func NewActivation(model *Model) *Activation {
	return &Activation{
		Model:   model,
		Persons: make([]*Person, 0),
	}
}

// AddPerson adds a person to the scheduler
func (a *Activation) AddPerson(p *Person) {
	a.Persons = append(a.Persons, p)
}

// Start schedules the first ready callback of every living person at the
// current time, in an order shuffled by the global stream. Equal-time
// callbacks run in insertion order, so the shuffle decides who moves first.
func (a *Activation) Start() error {
	indices := make([]int, len(a.Persons))
	for i := range indices {
		indices[i] = i
	}
	a.Model.Random.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	for _, i := range indices {
		p := a.Persons[i]
		if p.dead {
			continue
		}
		if err := a.Model.scheduleReady(p, 0); err != nil {
			return err
		}
	}
	return nil
}
