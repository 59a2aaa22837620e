package model

import "math"

// NoID marks an absent person or location in records; negative IDs are
// taken by the in-transit locations
const NoID = math.MinInt32

// event types
const (
	EventInfection         = "Infection"
	EventPhaseChange       = "PhaseChange"
	EventDeath             = "Death"
	EventPolicyActivated   = "PolicyActivated"
	EventPolicyDeactivated = "PolicyDeactivated"
)

// EventRecord is a discrete event emitted to the statistics layer
type EventRecord struct {
	Type string
	// PersonID is NoID for events without a person
	PersonID int
	Time     float64
	Body     any
}

// InfectionEventBody records who was infected where
type InfectionEventBody struct {
	LocationID     int
	LocationTypeID int
	Age            int
	// Phase is the first infected phase entered
	Phase string
}

// PhaseChangeEventBody records a disease phase transition
type PhaseChangeEventBody struct {
	From       string
	To         string
	LocationID int
}

// DeathEventBody records the location a person died at
type DeathEventBody struct {
	LocationID int
	Age        int
}

// PolicyEventBody records a policy (de)activation
type PolicyEventBody struct {
	Policy string
}

func (m *Model) emit(event *EventRecord) {
	if m.EventLogger != nil {
		m.EventLogger(event)
	}
}

func (m *Model) logInfection(p *Person, at *Location) {
	body := InfectionEventBody{Age: p.Age, Phase: p.phase.Name, LocationID: NoID, LocationTypeID: NoID}
	if at != nil {
		body.LocationID = at.ID
		body.LocationTypeID = at.Type.ID
	}
	m.emit(&EventRecord{
		Type:     EventInfection,
		PersonID: p.ID,
		Time:     m.Sim.Now(),
		Body:     body,
	})
}

func (m *Model) logPhaseChange(p *Person, from *DiseasePhase) {
	m.emit(&EventRecord{
		Type:     EventPhaseChange,
		PersonID: p.ID,
		Time:     m.Sim.Now(),
		Body: PhaseChangeEventBody{
			From:       from.Name,
			To:         p.phase.Name,
			LocationID: locationID(p.current),
		},
	})
}

func (m *Model) logDeath(p *Person, at *Location) {
	m.emit(&EventRecord{
		Type:     EventDeath,
		PersonID: p.ID,
		Time:     m.Sim.Now(),
		Body:     DeathEventBody{LocationID: locationID(at), Age: p.Age},
	})
}

func (m *Model) logPolicy(eventType string, name string) {
	m.emit(&EventRecord{
		Type:     eventType,
		PersonID: NoID,
		Time:     m.Sim.Now(),
		Body:     PolicyEventBody{Policy: name},
	})
}
