package utils

import (
	"os"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/graph/simple"
)

// NetworkXGraph mirrors the adjacency layout networkx uses for node-link
// style dumps, so analysis scripts can load the phase graph directly
type NetworkXGraph struct {
	Adjacency map[int64]map[int64]any  `msgpack:"adjacency"`
	Directed  bool                     `msgpack:"directed"`
	Nodes     map[int64]map[string]any `msgpack:"nodes"`
	Graph     map[string]any           `msgpack:"graph"`
}

// SerializeGraph converts g, attaching labels[id] as the "name" attribute
// of each node when present
func SerializeGraph(g *simple.DirectedGraph, name string, labels map[int64]string) *NetworkXGraph {
	nxGraph := &NetworkXGraph{
		Adjacency: make(map[int64]map[int64]any),
		Directed:  true,
		Nodes:     make(map[int64]map[string]any),
		Graph:     map[string]any{"name": name},
	}

	nodes := g.Nodes()
	for nodes.Next() {
		id := nodes.Node().ID()
		attrs := make(map[string]any)
		if label, ok := labels[id]; ok {
			attrs["name"] = label
		}
		nxGraph.Nodes[id] = attrs
		nxGraph.Adjacency[id] = make(map[int64]any)
	}

	edges := g.Edges()
	for edges.Next() {
		edge := edges.Edge()
		attrs := map[string]any{}
		if weighted, ok := edge.(simple.WeightedEdge); ok {
			attrs["weight"] = weighted.W
		}
		nxGraph.Adjacency[edge.From().ID()][edge.To().ID()] = attrs
	}

	return nxGraph
}

// DeserializeGraph rebuilds a gonum graph; weights survive, labels do not
func DeserializeGraph(nxGraph *NetworkXGraph) *simple.DirectedGraph {
	g := simple.NewDirectedGraph()

	for id := range nxGraph.Nodes {
		g.AddNode(simple.Node(id))
	}

	for fromID, targets := range nxGraph.Adjacency {
		if g.Node(fromID) == nil {
			g.AddNode(simple.Node(fromID))
		}
		for toID, edgeAttr := range targets {
			if g.Node(toID) == nil {
				g.AddNode(simple.Node(toID))
			}

			if w, ok := weightOf(edgeAttr); ok {
				g.SetEdge(simple.WeightedEdge{F: simple.Node(fromID), T: simple.Node(toID), W: w})
			} else {
				g.SetEdge(simple.Edge{F: simple.Node(fromID), T: simple.Node(toID)})
			}
		}
	}

	return g
}

func weightOf(edgeAttr any) (float64, bool) {
	attrs, ok := edgeAttr.(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := attrs["weight"].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int8:
		return float64(v), true
	case uint8:
		return float64(v), true
	}
	return 0, false
}

// SaveGraphToFile writes the serialized graph as msgpack
func SaveGraphToFile(nxGraph *NetworkXGraph, filename string) error {
	data, err := msgpack.Marshal(nxGraph)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// LoadGraphFromFile reads a graph written by SaveGraphToFile
func LoadGraphFromFile(filename string) (*NetworkXGraph, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var nxGraph NetworkXGraph
	if err := msgpack.Unmarshal(data, &nxGraph); err != nil {
		return nil, err
	}
	return &nxGraph, nil
}
