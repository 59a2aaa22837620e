package utils

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// Reachable returns the set of node IDs reachable from the given node,
// including the node itself
func Reachable(g *simple.DirectedGraph, from int64) map[int64]bool {
	result := make(map[int64]bool)
	start := g.Node(from)
	if start == nil {
		return result
	}

	bfs := traverse.BreadthFirst{
		Visit: func(n graph.Node) {
			result[n.ID()] = true
		},
	}
	bfs.Walk(g, start, nil)
	return result
}

// Unreachable returns the node IDs that cannot be reached from the given
// node, in ascending order
func Unreachable(g *simple.DirectedGraph, from int64) []int64 {
	seen := Reachable(g, from)

	var missing []int64
	nodes := g.Nodes()
	for nodes.Next() {
		id := nodes.Node().ID()
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	sortInt64s(missing)
	return missing
}

// Helper function to compare two graphs for equality
func CompareGraphs(g1, g2 *simple.DirectedGraph) bool {
	if g1.Nodes().Len() != g2.Nodes().Len() {
		return false
	}
	nodes := g1.Nodes()
	for nodes.Next() {
		if g2.Node(nodes.Node().ID()) == nil {
			return false
		}
	}

	if g1.Edges().Len() != g2.Edges().Len() {
		return false
	}
	edges := g1.Edges()
	for edges.Next() {
		e1 := edges.Edge()
		e2 := g2.Edge(e1.From().ID(), e1.To().ID())
		if e2 == nil || edgeWeight(e1) != edgeWeight(e2) {
			return false
		}
	}

	return true
}

func edgeWeight(e graph.Edge) float64 {
	if w, ok := e.(simple.WeightedEdge); ok {
		return w.W
	}
	return 0
}

func sortInt64s(s []int64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
