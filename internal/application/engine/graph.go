package engine

import "github.com/aescanero/dagrun/internal/domain"

// EdgeRef is an edge between two arena indices.
type EdgeRef struct {
	ID           string
	Source       int
	Target       int
	SourceHandle string
	TargetHandle string
}

// GraphNode is a node together with its incoming and outgoing edges, in the
// order the edges were declared.
type GraphNode struct {
	Node     domain.Node
	Incoming []EdgeRef
	Outgoing []EdgeRef
}

// Graph is an adjacency snapshot addressed by stable integer indices. It is
// never mutated after BuildGraph returns.
type Graph struct {
	nodes []GraphNode
	index map[string]int
}

// BuildGraph turns a flat node/edge list into a Graph. Edges naming an unknown
// source or target are dropped. A repeated node id replaces the earlier
// node's content but keeps its position.
func BuildGraph(nodes []domain.Node, edges []domain.Edge) *Graph {
	g := &Graph{
		nodes: make([]GraphNode, 0, len(nodes)),
		index: make(map[string]int, len(nodes)),
	}
	for _, n := range nodes {
		if i, ok := g.index[n.ID]; ok {
			g.nodes[i].Node = n
			continue
		}
		g.index[n.ID] = len(g.nodes)
		g.nodes = append(g.nodes, GraphNode{Node: n})
	}

	for _, e := range edges {
		src, ok := g.index[e.Source]
		if !ok {
			continue
		}
		dst, ok := g.index[e.Target]
		if !ok {
			continue
		}
		ref := EdgeRef{
			ID:           e.ID,
			Source:       src,
			Target:       dst,
			SourceHandle: e.SourceHandle,
			TargetHandle: e.TargetHandle,
		}
		g.nodes[src].Outgoing = append(g.nodes[src].Outgoing, ref)
		g.nodes[dst].Incoming = append(g.nodes[dst].Incoming, ref)
	}
	return g
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node at index i.
func (g *Graph) Node(i int) GraphNode { return g.nodes[i] }

// Lookup returns the index of a node id.
func (g *Graph) Lookup(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// StartNodes returns, in declaration order, every node with no incoming edge.
func (g *Graph) StartNodes() []int {
	var starts []int
	for i, n := range g.nodes {
		if len(n.Incoming) == 0 {
			starts = append(starts, i)
		}
	}
	return starts
}

// fires reports whether an outgoing edge is followed after a node produced
// the given port. An empty port or an untagged edge always fires.
func fires(port string, edge EdgeRef) bool {
	return port == "" || edge.SourceHandle == "" || edge.SourceHandle == port
}
