package utils

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"
)

// SpatialIndex answers nearest-point and radius queries over a set of
// points. The quadtree is rebuilt lazily after additions, since instances
// are registered before the simulation starts and rarely afterwards.
type SpatialIndex struct {
	items []orb.Pointer
	tree  *quadtree.Quadtree
	dirty bool
}

// NewSpatialIndex creates an empty index
func NewSpatialIndex() *SpatialIndex {
	return &SpatialIndex{
		items: make([]orb.Pointer, 0),
	}
}

// Add registers a point
func (s *SpatialIndex) Add(p orb.Pointer) {
	s.items = append(s.items, p)
	s.dirty = true
}

// Len returns the number of indexed points
func (s *SpatialIndex) Len() int {
	return len(s.items)
}

func (s *SpatialIndex) build() {
	if !s.dirty && s.tree != nil {
		return
	}

	bound := orb.Bound{Min: s.items[0].Point(), Max: s.items[0].Point()}
	for _, it := range s.items[1:] {
		bound = bound.Extend(it.Point())
	}
	// a degenerate bound would put every point on the tree's edges
	s.tree = quadtree.New(bound.Pad(1))

	for _, it := range s.items {
		// every point lies inside the padded bound
		_ = s.tree.Add(it)
	}
	s.dirty = false
}

// Nearest returns the indexed point closest to p, or nil when empty
func (s *SpatialIndex) Nearest(p orb.Point) orb.Pointer {
	if len(s.items) == 0 {
		return nil
	}
	s.build()
	return s.tree.Find(p)
}

// WithinRadius returns every indexed point whose planar distance to p is at
// most r, in index order
func (s *SpatialIndex) WithinRadius(p orb.Point, r float64) []orb.Pointer {
	if len(s.items) == 0 || r < 0 {
		return nil
	}
	s.build()

	box := orb.Bound{
		Min: orb.Point{p[0] - r, p[1] - r},
		Max: orb.Point{p[0] + r, p[1] + r},
	}
	candidates := s.tree.InBound(nil, box)

	result := make([]orb.Pointer, 0, len(candidates))
	for _, c := range candidates {
		if planar.Distance(p, c.Point()) <= r {
			result = append(result, c)
		}
	}
	return result
}
