// Package activity provides the locator and duration strategies activities
// are composed of. Locators wrap other locators as their start point and
// are evaluated when a person reaches the activity.
package activity

import (
	"fmt"

	"epi-model/model"
)

// Fixed always resolves to the same location
type Fixed struct {
	Location *model.Location
}

func NewFixed(l *model.Location) *Fixed {
	return &Fixed{Location: l}
}

func (f *Fixed) Locate(p *model.Person) (*model.Location, error) {
	if f.Location == nil {
		return nil, model.ErrNoLocation
	}
	return f.Location, nil
}

// Current resolves to where the person is
type Current struct{}

func (Current) Locate(p *model.Person) (*model.Location, error) {
	l := p.CurrentLocation()
	if l == nil {
		return nil, fmt.Errorf("%w: person %d", model.ErrDeadPerson, p.ID)
	}
	return l, nil
}

// Home resolves to the person's home
type Home struct{}

func (Home) Locate(p *model.Person) (*model.Location, error) {
	return p.Home, nil
}

// Role names the assigned location a RoleLocator resolves
type Role string

const (
	RoleWork   Role = "work"
	RoleSchool Role = "school"
)

// RoleLocator resolves to the person's work or school location. When the
// location's type is constrained, the person goes to the nearest instance
// of the type's alternative instead, or home when the alternative is the
// house type.
type RoleLocator struct {
	Role Role
}

func NewWork() *RoleLocator {
	return &RoleLocator{Role: RoleWork}
}

func NewSchool() *RoleLocator {
	return &RoleLocator{Role: RoleSchool}
}

func (r *RoleLocator) Locate(p *model.Person) (*model.Location, error) {
	var assigned *model.Location
	switch r.Role {
	case RoleWork:
		assigned = p.Work
	case RoleSchool:
		assigned = p.School
	}
	if assigned == nil {
		return nil, fmt.Errorf("%w: person %d has no %s location", model.ErrNoLocation, p.ID, r.Role)
	}

	t := assigned.Type
	if !t.Constrained() {
		return assigned, nil
	}
	alt := t.Alternative()
	if alt == nil {
		return nil, fmt.Errorf("%w: %q", model.ErrNoAlternative, t.Name)
	}
	return nearestOf(p, alt, p.CurrentLocation())
}

// Nearest resolves to the instance of Target closest to where Start
// resolves. A house target resolves to the person's home.
type Nearest struct {
	Start  model.Locator
	Target *model.LocationType
}

func NewNearest(start model.Locator, target *model.LocationType) *Nearest {
	if start == nil {
		start = Current{}
	}
	return &Nearest{Start: start, Target: target}
}

func (n *Nearest) Locate(p *model.Person) (*model.Location, error) {
	t, err := p.Model.EffectiveType(n.Target)
	if err != nil {
		return nil, err
	}
	if t == p.Model.HouseType {
		return p.Home, nil
	}
	start, err := n.Start.Locate(p)
	if err != nil {
		return nil, err
	}
	return nearestOf(p, t, start)
}

// nearestOf resolves the closest open instance of t, following closed
// types to their alternatives
func nearestOf(p *model.Person, t *model.LocationType, from *model.Location) (*model.Location, error) {
	eff, err := p.Model.EffectiveType(t)
	if err != nil {
		return nil, err
	}
	if eff == p.Model.HouseType {
		return p.Home, nil
	}
	if from == nil {
		from = p.Home
	}
	found := eff.Nearest(from.Coord)
	if found == nil {
		return nil, fmt.Errorf("%w: no %q instance", model.ErrNoLocation, eff.Name)
	}
	return found, nil
}

// RandomWithinRadius picks uniformly among the instances of Target within
// Radius metres of where Start resolves, and falls back to the nearest
// instance when there are none. Reproducible draws use the stream keyed by
// the person.
type RandomWithinRadius struct {
	Start        model.Locator
	Target       *model.LocationType
	Radius       float64
	Reproducible bool
}

func NewRandomWithinRadius(start model.Locator, target *model.LocationType, radius float64, reproducible bool) (*RandomWithinRadius, error) {
	if !(radius >= 0) {
		return nil, fmt.Errorf("radius must be a non-negative number, got %v", radius)
	}
	if start == nil {
		start = Current{}
	}
	return &RandomWithinRadius{
		Start:        start,
		Target:       target,
		Radius:       radius,
		Reproducible: reproducible,
	}, nil
}

func (r *RandomWithinRadius) Locate(p *model.Person) (*model.Location, error) {
	m := p.Model
	t, err := m.EffectiveType(r.Target)
	if err != nil {
		return nil, err
	}
	if t == m.HouseType {
		return p.Home, nil
	}
	start, err := r.Start.Locate(p)
	if err != nil {
		return nil, err
	}

	candidates := t.WithinRadius(start.Coord, r.Radius)
	if len(candidates) == 0 {
		return nearestOf(p, t, start)
	}

	var u float64
	if r.Reproducible {
		u = m.Reproducible.Float64(int64(p.ID))
	} else {
		u = m.Random.Float64()
	}
	return candidates[pickIndex(u, len(candidates))], nil
}

// pickIndex maps a uniform draw to an index in [0, n-1]
func pickIndex(u float64, n int) int {
	i := int(u * float64(n))
	return min(max(i, 0), n-1)
}

// for type check
var (
	_ model.Locator = (*Fixed)(nil)
	_ model.Locator = Current{}
	_ model.Locator = Home{}
	_ model.Locator = (*RoleLocator)(nil)
	_ model.Locator = (*Nearest)(nil)
	_ model.Locator = (*RandomWithinRadius)(nil)
)
