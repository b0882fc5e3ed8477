package detect

import "github.com/Benny93/codenode/internal/graph"

// DatabaseDetector makes database files visible as unconnected vertices.
// Database files are opaque: their schema is never read.
type DatabaseDetector struct{}

// NewDatabaseDetector creates a new database detector.
func NewDatabaseDetector() *DatabaseDetector {
	return &DatabaseDetector{}
}

// Category returns CategoryDatabase.
func (d *DatabaseDetector) Category() Category {
	return CategoryDatabase
}

// Detect returns a single db node for the file and no edges.
func (d *DatabaseDetector) Detect(filePath, _ string, _ *KnownFiles) *Result {
	res := &Result{}
	if Classify(filePath) != CategoryDatabase {
		return res
	}

	res.addNode(fileNode(filePath, graph.NodeDB))
	return res
}
