// Package graph provides the repository graph data model for codenode.
//
// It defines the node and edge types that represent workspace artifacts
// (files, exported declarations, external URLs) and the relations between
// them (imports, declarations, wikilinks, markdown links, URL references).
package graph

import "strings"

// NodeType represents the type of a graph node.
type NodeType string

const (
	NodeDB  NodeType = "db"
	NodeMD  NodeType = "md"
	NodeTS  NodeType = "ts"
	NodeTSX NodeType = "tsx"
	NodeJS  NodeType = "js"
	NodeJSX NodeType = "jsx"
	NodeFn  NodeType = "fn"
	NodeURL NodeType = "url"
)

// EdgeKind represents the kind of relation between two nodes.
type EdgeKind string

const (
	EdgeImport   EdgeKind = "import"
	EdgeDeclares EdgeKind = "declares"
	EdgeWikilink EdgeKind = "wikilink"
	EdgeMDLink   EdgeKind = "mdlink"
	EdgeURL      EdgeKind = "url"
)

// Identity scheme separators.
const (
	declSeparator = "::"
	urlPrefix     = "url:"
)

// Node represents a vertex in the repository graph.
type Node struct {
	// ID is the unique identifier for the node.
	// Files use their absolute path, declarations {file}::{name}, URLs url:{url}.
	ID string `json:"id"`

	// Label is the display string (base name, declaration name or URL).
	Label string `json:"label"`

	// Type is the node type.
	Type NodeType `json:"type"`

	// FilePath is the owning file. Empty for URL nodes.
	FilePath string `json:"filePath,omitempty"`

	// Meta holds auxiliary attributes (e.g., "url", "parent").
	Meta map[string]string `json:"meta,omitempty"`
}

// Edge represents a directed relation between two node IDs.
type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
}

// FileID returns the node ID for a whole file.
func FileID(filePath string) string {
	return filePath
}

// DeclID returns the node ID for a declaration owned by filePath.
func DeclID(filePath, name string) string {
	return filePath + declSeparator + name
}

// URLID returns the node ID for an external URL.
func URLID(url string) string {
	return urlPrefix + url
}

// IsURLID reports whether id uses the URL identity scheme.
func IsURLID(id string) bool {
	return strings.HasPrefix(id, urlPrefix)
}

// IsFileType reports whether t denotes a whole-file node.
func IsFileType(t NodeType) bool {
	switch t {
	case NodeDB, NodeMD, NodeTS, NodeTSX, NodeJS, NodeJSX:
		return true
	default:
		return false
	}
}
