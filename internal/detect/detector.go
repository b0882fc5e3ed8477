package detect

import (
	"path/filepath"

	"github.com/Benny93/codenode/internal/graph"
)

// Result is the local subgraph produced by one detector invocation.
// Edge targets may name nodes that only exist in other files' results.
type Result struct {
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

func (r *Result) addNode(n graph.Node) {
	r.Nodes = append(r.Nodes, n)
}

func (r *Result) addEdge(source, target string, kind graph.EdgeKind) {
	r.Edges = append(r.Edges, graph.Edge{Source: source, Target: target, Kind: kind})
}

// Detector converts one file into a local subgraph.
type Detector interface {
	// Category returns the file category this detector handles.
	Category() Category

	// Detect analyzes a file. text is ignored by detectors whose category
	// does not need content. Files outside the detector's category yield an
	// empty result. Detect never fails: unresolvable references are dropped.
	Detect(filePath, text string, known *KnownFiles) *Result
}

// Registry dispatches files to the detector for their category.
type Registry struct {
	detectors map[Category]Detector
}

// NewRegistry creates a registry holding the database, markdown and source
// detectors.
func NewRegistry() *Registry {
	r := &Registry{detectors: make(map[Category]Detector)}
	for _, d := range []Detector{NewDatabaseDetector(), NewMarkdownDetector(), NewSourceDetector()} {
		r.Register(d)
	}
	return r
}

// Register installs d for its category, replacing any previous detector.
func (r *Registry) Register(d Detector) {
	r.detectors[d.Category()] = d
}

// ForCategory returns the detector for a category, or nil.
func (r *Registry) ForCategory(c Category) Detector {
	return r.detectors[c]
}

// ForPath returns the detector for a file path, or nil if the file is not
// indexed.
func (r *Registry) ForPath(path string) Detector {
	return r.detectors[Classify(path)]
}

// fileNode builds the whole-file node for path.
func fileNode(path string, t graph.NodeType) graph.Node {
	return graph.Node{
		ID:       graph.FileID(path),
		Label:    filepath.Base(path),
		Type:     t,
		FilePath: path,
	}
}
