package graph

// FilterOptions selects which relations a consumer wants to see.
// The zero value hides everything; use DefaultFilter for the full graph.
type FilterOptions struct {
	Imports      bool
	Declarations bool
	Wikilinks    bool
	Links        bool
	URLs         bool
}

// DefaultFilter shows every node and edge.
func DefaultFilter() FilterOptions {
	return FilterOptions{
		Imports:      true,
		Declarations: true,
		Wikilinks:    true,
		Links:        true,
		URLs:         true,
	}
}

func (o FilterOptions) showsKind(k EdgeKind) bool {
	switch k {
	case EdgeImport:
		return o.Imports
	case EdgeDeclares:
		return o.Declarations
	case EdgeWikilink:
		return o.Wikilinks
	case EdgeMDLink:
		return o.Links
	case EdgeURL:
		return o.URLs
	default:
		return true
	}
}

func (o FilterOptions) showsType(t NodeType) bool {
	switch t {
	case NodeFn:
		return o.Declarations
	case NodeURL:
		return o.URLs
	default:
		return true
	}
}

// Filter returns a new graph holding only the nodes and edges selected by
// opts. Declaration and URL nodes are hidden together with their edges;
// file nodes are always kept.
func (g *Graph) Filter(opts FilterOptions) *Graph {
	out := New()
	for _, n := range g.Nodes() {
		if opts.showsType(n.Type) {
			out.AddNode(n)
		}
	}
	for _, e := range g.Edges() {
		if opts.showsKind(e.Kind) {
			out.AddEdge(e)
		}
	}
	out.Prune()
	return out
}
