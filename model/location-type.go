package model

import (
	"fmt"
	"math"
	"sort"

	"epi-model/utils"

	"github.com/paulmach/orb"
)

// LocationType groups locations of one kind and carries the availability
// constraints that policies adjust at runtime
type LocationType struct {
	ID   int
	Name string

	// TransmissionRate is the per-hour infection hazard contributed by one
	// unit of co-present infectiousness
	TransmissionRate float64

	// Unconstrained types (walk, bike, car) are never closed by policy
	Unconstrained bool

	baseFractionOpen       float64
	baseFractionActivities float64
	baseAlternative        *LocationType

	fractionOpen       float64
	fractionActivities float64
	alternative        *LocationType

	locations []*Location
	index     *utils.SpatialIndex
}

// NewLocationType creates a fully open location type
func NewLocationType(id int, name string, transmissionRate float64) *LocationType {
	return &LocationType{
		ID:                     id,
		Name:                   name,
		TransmissionRate:       transmissionRate,
		baseFractionOpen:       1.0,
		baseFractionActivities: 1.0,
		fractionOpen:           1.0,
		fractionActivities:     1.0,
		locations:              make([]*Location, 0),
		index:                  utils.NewSpatialIndex(),
	}
}

func checkFraction(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %s = %v", ErrFractionRange, name, v)
	}
	return nil
}

// SetBaseConstraint sets the constraint that holds when no policy is active
func (t *LocationType) SetBaseConstraint(fractionOpen, fractionActivities float64, alternative *LocationType) error {
	if err := checkFraction("fractionOpen", fractionOpen); err != nil {
		return fmt.Errorf("location type %q: %w", t.Name, err)
	}
	if err := checkFraction("fractionActivities", fractionActivities); err != nil {
		return fmt.Errorf("location type %q: %w", t.Name, err)
	}
	t.baseFractionOpen = fractionOpen
	t.baseFractionActivities = fractionActivities
	t.baseAlternative = alternative
	t.applyConstraint(fractionOpen, fractionActivities, alternative)
	return nil
}

func (t *LocationType) applyConstraint(fractionOpen, fractionActivities float64, alternative *LocationType) {
	t.fractionOpen = fractionOpen
	t.fractionActivities = fractionActivities
	t.alternative = alternative
}

// FractionOpen is the share of instances open under the active policies
func (t *LocationType) FractionOpen() float64 {
	return t.fractionOpen
}

// FractionActivities is the share of activity instances still permitted
func (t *LocationType) FractionActivities() float64 {
	return t.fractionActivities
}

// Alternative is the type used when this one is closed or restricted
func (t *LocationType) Alternative() *LocationType {
	return t.alternative
}

// Constrained reports whether any restriction is in effect
func (t *LocationType) Constrained() bool {
	return t.fractionOpen < 1.0 || t.fractionActivities < 1.0
}

// Closed reports whether no instance of the type is open
func (t *LocationType) Closed() bool {
	return t.fractionOpen == 0
}

func (t *LocationType) addLocation(l *Location) {
	t.locations = append(t.locations, l)
	t.index.Add(l)
}

// Locations returns the instances of the type in registration order
func (t *LocationType) Locations() []*Location {
	return t.locations
}

// Nearest returns the instance closest to p, or nil when there is none
func (t *LocationType) Nearest(p orb.Point) *Location {
	found := t.index.Nearest(p)
	if found == nil {
		return nil
	}
	return found.(*Location)
}

// WithinRadius returns the instances within r metres of p, ordered by ID
func (t *LocationType) WithinRadius(p orb.Point, r float64) []*Location {
	found := t.index.WithinRadius(p, r)
	result := make([]*Location, len(found))
	for i, f := range found {
		result[i] = f.(*Location)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (t *LocationType) String() string {
	return t.Name
}
