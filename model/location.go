package model

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// IDs of the distinguished in-transit locations and their types
const (
	WalkID = -1
	BikeID = -2
	CarID  = -3
)

// area given to the in-transit locations
const unconstrainedArea = 1e6

// Location is a place persons stay at. Coordinates are projected metres.
type Location struct {
	ID    int
	Type  *LocationType
	Coord orb.Point
	Area  float64

	occupants map[int]*Person
}

// NewLocation creates an empty location; it is indexed once added to a model
func NewLocation(id int, locationType *LocationType, coord orb.Point, area float64) *Location {
	return &Location{
		ID:        id,
		Type:      locationType,
		Coord:     coord,
		Area:      area,
		occupants: make(map[int]*Person),
	}
}

// Point implements orb.Pointer for the spatial index
func (l *Location) Point() orb.Point {
	return l.Coord
}

// DistanceM is the straight-line distance in metres
func (l *Location) DistanceM(other *Location) float64 {
	return planar.Distance(l.Coord, other.Coord)
}

// Contains reports whether p is currently present
func (l *Location) Contains(p *Person) bool {
	_, ok := l.occupants[p.ID]
	return ok
}

// OccupantCount returns the number of persons present
func (l *Location) OccupantCount() int {
	return len(l.occupants)
}

// Occupants returns the persons present, ordered by ID
func (l *Location) Occupants() []*Person {
	result := make([]*Person, 0, len(l.occupants))
	for _, p := range l.occupants {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (l *Location) add(p *Person) error {
	if _, ok := l.occupants[p.ID]; ok {
		return fmt.Errorf("%w: person %d at location %d", ErrDuplicateOccupant, p.ID, l.ID)
	}
	l.occupants[p.ID] = p
	return nil
}

func (l *Location) remove(p *Person) error {
	if _, ok := l.occupants[p.ID]; !ok {
		return fmt.Errorf("%w: person %d at location %d", ErrNotOccupant, p.ID, l.ID)
	}
	delete(l.occupants, p.ID)
	return nil
}
