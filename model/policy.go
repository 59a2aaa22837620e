package model

import (
	"fmt"
	"math"
)

// Restriction is a constraint a policy overlays onto a location type.
// A nil Alternative leaves the alternative to other policies or the base.
type Restriction struct {
	FractionOpen       float64
	FractionActivities float64
	Alternative        *LocationType
}

// Policy is a named set of restrictions and week pattern swaps
type Policy struct {
	Name string

	restrictions map[*LocationType]Restriction
	swaps        map[*WeekPattern]*WeekPattern
	active       bool
}

// NewPolicy creates a policy without effect
func NewPolicy(name string) *Policy {
	return &Policy{
		Name:         name,
		restrictions: make(map[*LocationType]Restriction),
		swaps:        make(map[*WeekPattern]*WeekPattern),
	}
}

// Restrict adds a restriction on a location type
func (p *Policy) Restrict(t *LocationType, fractionOpen, fractionActivities float64, alternative *LocationType) error {
	if err := checkFraction("fractionOpen", fractionOpen); err != nil {
		return fmt.Errorf("policy %q, type %q: %w", p.Name, t.Name, err)
	}
	if err := checkFraction("fractionActivities", fractionActivities); err != nil {
		return fmt.Errorf("policy %q, type %q: %w", p.Name, t.Name, err)
	}
	p.restrictions[t] = Restriction{
		FractionOpen:       fractionOpen,
		FractionActivities: fractionActivities,
		Alternative:        alternative,
	}
	return nil
}

// SwapPattern makes persons whose base pattern is from follow to instead
// while the policy is active
func (p *Policy) SwapPattern(from, to *WeekPattern) {
	p.swaps[from] = to
}

// Restriction returns the restriction on a type, if any
func (p *Policy) Restriction(t *LocationType) (Restriction, bool) {
	r, ok := p.restrictions[t]
	return r, ok
}

func (p *Policy) Active() bool {
	return p.active
}

// PolicyEngine composes the active policies onto the location types.
// Fractions take the minimum over the base constraint and every active
// policy. The alternative comes from the first registered active policy
// that names one, falling back to the base alternative.
type PolicyEngine struct {
	model    *Model
	policies []*Policy
	byName   map[string]*Policy
}

// NewPolicyEngine creates an engine with no policies
func NewPolicyEngine(model *Model) *PolicyEngine {
	return &PolicyEngine{
		model:    model,
		policies: make([]*Policy, 0),
		byName:   make(map[string]*Policy),
	}
}

// Register adds a policy; registration order is the alternative tie-break
func (e *PolicyEngine) Register(p *Policy) error {
	if _, ok := e.byName[p.Name]; ok {
		return fmt.Errorf("%w: policy %q", ErrDuplicateID, p.Name)
	}
	e.policies = append(e.policies, p)
	e.byName[p.Name] = p
	return nil
}

// Policy looks up a policy by name
func (e *PolicyEngine) Policy(name string) *Policy {
	return e.byName[name]
}

// Policies returns the registered policies in registration order
func (e *PolicyEngine) Policies() []*Policy {
	return e.policies
}

// Activate applies a policy; activating an active policy is a no-op
func (e *PolicyEngine) Activate(name string) error {
	p, ok := e.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	if p.active {
		return nil
	}
	p.active = true
	e.recompute()
	e.model.logPolicy(EventPolicyActivated, name)
	return nil
}

// Deactivate removes a policy's contribution; deactivating an inactive
// policy is a no-op
func (e *PolicyEngine) Deactivate(name string) error {
	p, ok := e.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	if !p.active {
		return nil
	}
	p.active = false
	e.recompute()
	e.model.logPolicy(EventPolicyDeactivated, name)
	return nil
}

func (e *PolicyEngine) recompute() {
	for _, t := range e.model.typeList {
		fo := t.baseFractionOpen
		fa := t.baseFractionActivities
		var alt *LocationType
		for _, p := range e.policies {
			if !p.active {
				continue
			}
			r, ok := p.restrictions[t]
			if !ok {
				continue
			}
			fo = math.Min(fo, r.FractionOpen)
			fa = math.Min(fa, r.FractionActivities)
			if alt == nil && r.Alternative != nil {
				alt = r.Alternative
			}
		}
		if alt == nil {
			alt = t.baseAlternative
		}
		t.applyConstraint(fo, fa, alt)
	}
}

// ScheduleWindow activates a policy at one time and deactivates it at
// another; an infinite deactivation time keeps it active
func (e *PolicyEngine) ScheduleWindow(name string, activateAt, deactivateAt float64) error {
	if _, ok := e.byName[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	if math.IsNaN(activateAt) || math.IsInf(activateAt, 0) || math.IsNaN(deactivateAt) || deactivateAt < activateAt {
		return fmt.Errorf("%w: %q [%v, %v]", ErrInvalidPolicyTimes, name, activateAt, deactivateAt)
	}

	sim := e.model.Sim
	if _, err := sim.ScheduleAt(activateAt, func() error { return e.Activate(name) }); err != nil {
		return fmt.Errorf("policy %q: %w", name, err)
	}
	if math.IsInf(deactivateAt, 1) {
		return nil
	}
	if _, err := sim.ScheduleAt(deactivateAt, func() error { return e.Deactivate(name) }); err != nil {
		return fmt.Errorf("policy %q: %w", name, err)
	}
	return nil
}

// PatternFor returns the pattern a person should follow under the active
// policies; the first registered active swap wins
func (e *PolicyEngine) PatternFor(p *Person) *WeekPattern {
	for _, pol := range e.policies {
		if !pol.active {
			continue
		}
		if to, ok := pol.swaps[p.basePattern]; ok {
			return to
		}
	}
	return p.basePattern
}
