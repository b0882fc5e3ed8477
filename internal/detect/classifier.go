// Package detect provides the per-category detectors that turn one file's
// content into a local subgraph of nodes and edges.
//
// Detectors are lexical: they scan text with regular expressions rather
// than building a syntax tree. Every detector is a pure function of its
// inputs and is safe to call from multiple goroutines.
package detect

import (
	"path/filepath"
	"strings"
)

// Category identifies which detector applies to a file.
type Category string

const (
	CategoryNone     Category = ""
	CategoryDatabase Category = "database"
	CategoryMarkdown Category = "markdown"
	CategorySource   Category = "source"
)

// Supported file extensions and their categories.
var extensionCategories = map[string]Category{
	".db":       CategoryDatabase,
	".sqlite":   CategoryDatabase,
	".sqlite3":  CategoryDatabase,
	".db3":      CategoryDatabase,
	".duckdb":   CategoryDatabase,
	".ddb":      CategoryDatabase,
	".mdb":      CategoryDatabase,
	".accdb":    CategoryDatabase,
	".md":       CategoryMarkdown,
	".mdx":      CategoryMarkdown,
	".markdown": CategoryMarkdown,
	".ts":       CategorySource,
	".tsx":      CategorySource,
	".js":       CategorySource,
	".jsx":      CategorySource,
}

// Classify returns the category for a file path, or CategoryNone if the
// file is not indexed. Extension matching is case-insensitive.
func Classify(path string) Category {
	ext := strings.ToLower(filepath.Ext(path))
	return extensionCategories[ext]
}

// IsSupported reports whether a file path belongs to any category.
func IsSupported(path string) bool {
	return Classify(path) != CategoryNone
}

// NeedsContent reports whether detectors of this category read file text.
func (c Category) NeedsContent() bool {
	return c == CategoryMarkdown || c == CategorySource
}

// String returns the category name, "none" for CategoryNone.
func (c Category) String() string {
	if c == CategoryNone {
		return "none"
	}
	return string(c)
}
