package graph

import (
	"encoding/json"
	"slices"
	"sort"
	"sync"
)

// Graph is an in-memory directed graph of workspace artifacts.
//
// Nodes are keyed by ID and deduplicated on insert: the first node added
// for an ID is kept and later duplicates are ignored. Edges are kept as a
// multiset in insertion order, since two files referencing the same target
// are distinct relations.
//
// Adjacency lookups are backed by secondary indexes so that Outgoing and
// Incoming are O(result) rather than O(graph).
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	edges []Edge

	// Secondary indexes, kept in sync by add/prune helpers.
	byType   map[NodeType]map[string]*Node
	outgoing map[string][]int
	incoming map[string][]int
}

// Stats summarizes graph size.
type Stats struct {
	Nodes       int              `json:"nodes"`
	Edges       int              `json:"edges"`
	NodesByType map[NodeType]int `json:"nodesByType"`
	EdgesByKind map[EdgeKind]int `json:"edgesByKind"`
}

// New creates a new empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		byType:   make(map[NodeType]map[string]*Node),
		outgoing: make(map[string][]int),
		incoming: make(map[string][]int),
	}
}

// AddNode adds a node unless one with the same ID is already present.
// Returns true if the node was inserted.
func (g *Graph) AddNode(node Node) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addNodeLocked(node)
}

func (g *Graph) addNodeLocked(node Node) bool {
	if _, ok := g.nodes[node.ID]; ok {
		return false
	}

	n := node
	if node.Meta != nil {
		n.Meta = make(map[string]string, len(node.Meta))
		for k, v := range node.Meta {
			n.Meta[k] = v
		}
	}
	g.nodes[n.ID] = &n

	if g.byType[n.Type] == nil {
		g.byType[n.Type] = make(map[string]*Node)
	}
	g.byType[n.Type][n.ID] = &n
	return true
}

// AddEdge appends an edge. Edges are not deduplicated.
func (g *Graph) AddEdge(edge Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addEdgeLocked(edge)
}

func (g *Graph) addEdgeLocked(edge Edge) {
	idx := len(g.edges)
	g.edges = append(g.edges, edge)
	g.outgoing[edge.Source] = append(g.outgoing[edge.Source], idx)
	g.incoming[edge.Target] = append(g.incoming[edge.Target], idx)
}

// Merge adds a local subgraph under a single lock acquisition.
func (g *Graph) Merge(nodes []Node, edges []Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, n := range nodes {
		g.addNodeLocked(n)
	}
	for _, e := range edges {
		g.addEdgeLocked(e)
	}
}

// Prune drops every edge whose source or target node is not present.
// Returns the number of edges removed.
func (g *Graph) Prune() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	kept := g.edges[:0:0]
	for _, e := range g.edges {
		_, okSrc := g.nodes[e.Source]
		_, okDst := g.nodes[e.Target]
		if okSrc && okDst {
			kept = append(kept, e)
		}
	}

	removed := len(g.edges) - len(kept)
	if removed == 0 {
		return 0
	}

	g.edges = nil
	g.outgoing = make(map[string][]int)
	g.incoming = make(map[string][]int)
	for _, e := range kept {
		g.addEdgeLocked(e)
	}
	return removed
}

// Node returns the node with the given ID, or nil if it does not exist.
func (g *Graph) Node(id string) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	cp := *n
	return &cp
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Nodes returns all nodes sorted by ID.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		result = append(result, *n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// NodesByType returns all nodes of the given type sorted by ID.
func (g *Graph) NodesByType(t NodeType) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes, ok := g.byType[t]
	if !ok {
		return nil
	}

	result := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, *n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.edges)
}

// SortedEdges returns all edges ordered by source, target and kind.
// Useful for comparing edge multisets of two graphs.
func (g *Graph) SortedEdges() []Edge {
	edges := g.Edges()
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Kind < b.Kind
	})
	return edges
}

// Outgoing returns edges originating from the given node ID.
// If kinds are provided, only edges of those kinds are returned.
func (g *Graph) Outgoing(id string, kinds ...EdgeKind) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collect(g.outgoing[id], kinds)
}

// Incoming returns edges targeting the given node ID.
// If kinds are provided, only edges of those kinds are returned.
func (g *Graph) Incoming(id string, kinds ...EdgeKind) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collect(g.incoming[id], kinds)
}

// collect must be called with the read lock held.
func (g *Graph) collect(idxs []int, kinds []EdgeKind) []Edge {
	if len(idxs) == 0 {
		return nil
	}

	result := make([]Edge, 0, len(idxs))
	for _, i := range idxs {
		e := g.edges[i]
		if len(kinds) > 0 && !slices.Contains(kinds, e.Kind) {
			continue
		}
		result = append(result, e)
	}
	return result
}

// Stats returns node and edge counts, broken down by type and kind.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Stats{
		Nodes:       len(g.nodes),
		Edges:       len(g.edges),
		NodesByType: make(map[NodeType]int),
		EdgesByKind: make(map[EdgeKind]int),
	}
	for t, nodes := range g.byType {
		if len(nodes) > 0 {
			s.NodesByType[t] = len(nodes)
		}
	}
	for _, e := range g.edges {
		s.EdgesByKind[e.Kind]++
	}
	return s
}

type graphJSON struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// MarshalJSON encodes the graph as {"nodes": [...], "edges": [...]}.
func (g *Graph) MarshalJSON() ([]byte, error) {
	out := graphJSON{Nodes: g.Nodes(), Edges: g.Edges()}
	if out.Edges == nil {
		out.Edges = []Edge{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a graph previously encoded with MarshalJSON.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var in graphJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	fresh := New()
	fresh.Merge(in.Nodes, in.Edges)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = fresh.nodes
	g.edges = fresh.edges
	g.byType = fresh.byType
	g.outgoing = fresh.outgoing
	g.incoming = fresh.incoming
	return nil
}
