// Package mcp exposes a codenode workspace graph over the Model Context
// Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/codenode/internal/graph"
	"github.com/Benny93/codenode/internal/ingestion"
)

const (
	uriGraph       = "codenode://graph"
	uriDiagnostics = "codenode://diagnostics"
	uriSchema      = "codenode://schema"

	defaultSearchLimit = 20
)

// Workspace is the build surface the server drives.
type Workspace interface {
	Build(ctx context.Context) (*ingestion.BuildResult, error)
	Update(ctx context.Context, changed []string) (*ingestion.BuildResult, error)
	Current() *ingestion.BuildResult
}

// Server represents the MCP server.
type Server struct {
	ws     Workspace
	filter graph.FilterOptions
	server *mcp.Server
	logger *slog.Logger
}

// BuildArgs are the arguments of graph_build.
type BuildArgs struct {
	Changed []string `json:"changed,omitempty" jsonschema:"files changed since the last build; empty rebuilds everything"`
}

// StatsArgs are the arguments of graph_stats.
type StatsArgs struct{}

// NodeArgs are the arguments of graph_node.
type NodeArgs struct {
	ID string `json:"id" jsonschema:"node id: an absolute file path, path::Name for a declaration, or url:URL"`
}

// SearchArgs are the arguments of graph_search.
type SearchArgs struct {
	Query string `json:"query" jsonschema:"case-insensitive substring of the node label or id"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
}

// Tool describes a registered tool.
type Tool struct {
	Name        string
	Description string
}

// Resource describes a registered resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a server over ws. Graphs handed to clients are
// filtered with filter.
func NewServer(ws Workspace, filter graph.FilterOptions, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{ws: ws, filter: filter, logger: logger}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "codenode",
		Version: "0.1.0",
	}, nil)

	s.registerTools()
	s.registerResources()

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "graph_build",
			Description: "Rebuild the workspace graph. Pass changed files for an incremental rebuild. Returns a build summary.",
		},
		{
			Name:        "graph_stats",
			Description: "Count nodes by type and edges by kind in the current graph.",
		},
		{
			Name:        "graph_node",
			Description: "Show one node with its outgoing and incoming edges.",
		},
		{
			Name:        "graph_search",
			Description: "Find nodes whose label or id contains the query, ignoring case.",
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         uriGraph,
			Name:        "Workspace Graph",
			Description: "The current graph as JSON with nodes and edges",
			MimeType:    "application/json",
		},
		{
			URI:         uriDiagnostics,
			Name:        "Build Diagnostics",
			Description: "Files that failed in the current build and why",
			MimeType:    "application/json",
		},
		{
			URI:         uriSchema,
			Name:        "Graph Schema",
			Description: "JSON schema of graph nodes and edges",
			MimeType:    "application/schema+json",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "graph_build":
		var changed []string
		if list, ok := args["changed"].([]any); ok {
			for _, v := range list {
				if p, ok := v.(string); ok {
					changed = append(changed, p)
				}
			}
		}
		return s.handleBuild(ctx, changed)
	case "graph_stats":
		return s.handleStats(ctx)
	case "graph_node":
		id, _ := args["id"].(string)
		return s.handleNode(ctx, id)
	case "graph_search":
		query, _ := args["query"].(string)
		limit, _ := args["limit"].(float64)
		return s.handleSearch(ctx, query, int(limit))
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case uriGraph:
		return s.graphJSON(ctx)
	case uriDiagnostics:
		return s.diagnosticsJSON(ctx)
	case uriSchema:
		return schemaJSON()
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run serves MCP over stdin and stdout until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// current returns the current build, building first if there is none.
func (s *Server) current(ctx context.Context) (*ingestion.BuildResult, error) {
	if res := s.ws.Current(); res != nil {
		return res, nil
	}
	s.logger.Debug("no graph yet, building")
	return s.ws.Build(ctx)
}

func (s *Server) view(ctx context.Context) (*graph.Graph, error) {
	res, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return res.Graph.Filter(s.filter), nil
}

func (s *Server) handleBuild(ctx context.Context, changed []string) (string, error) {
	var (
		res *ingestion.BuildResult
		err error
	)
	if len(changed) > 0 {
		res, err = s.ws.Update(ctx, changed)
	} else {
		res, err = s.ws.Build(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("build failed: %w", err)
	}

	mode := "full"
	if res.Incremental {
		mode = "incremental"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Build %s (%s) finished in %s\n\n", res.ID, mode, res.Duration.Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("**Files:** %d\n", res.Files))
	sb.WriteString(fmt.Sprintf("**Nodes:** %d\n", res.Graph.NodeCount()))
	sb.WriteString(fmt.Sprintf("**Edges:** %d\n", res.Graph.EdgeCount()))
	sb.WriteString(fmt.Sprintf("**Failures:** %d\n", len(res.Diagnostics)))
	for _, d := range res.Diagnostics {
		sb.WriteString(fmt.Sprintf("- %s\n", d.Error()))
	}
	return sb.String(), nil
}

func (s *Server) handleStats(ctx context.Context) (string, error) {
	g, err := s.view(ctx)
	if err != nil {
		return "", err
	}
	stats := g.Stats()

	var sb strings.Builder
	sb.WriteString("# Graph Statistics\n\n")
	sb.WriteString(fmt.Sprintf("**Nodes:** %d\n", stats.Nodes))
	sb.WriteString(fmt.Sprintf("**Edges:** %d\n", stats.Edges))

	sb.WriteString("\n## Nodes by type\n\n")
	types := make([]string, 0, len(stats.NodesByType))
	for t := range stats.NodesByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		sb.WriteString(fmt.Sprintf("- %s: %d\n", t, stats.NodesByType[graph.NodeType(t)]))
	}

	sb.WriteString("\n## Edges by kind\n\n")
	kinds := make([]string, 0, len(stats.EdgesByKind))
	for k := range stats.EdgesByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		sb.WriteString(fmt.Sprintf("- %s: %d\n", k, stats.EdgesByKind[graph.EdgeKind(k)]))
	}
	return sb.String(), nil
}

func (s *Server) handleNode(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "No node id provided", nil
	}
	g, err := s.view(ctx)
	if err != nil {
		return "", err
	}

	node := g.Node(id)
	if node == nil {
		return fmt.Sprintf("Node '%s' not found in graph", id), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Node: **%s** (%s)\n", node.Label, node.Type))
	sb.WriteString(fmt.Sprintf("ID: %s\n", node.ID))
	if node.FilePath != "" {
		sb.WriteString(fmt.Sprintf("File: %s\n", node.FilePath))
	}

	out := g.Outgoing(id)
	in := g.Incoming(id)
	if len(out) > 0 {
		sb.WriteString(fmt.Sprintf("\n## Outgoing (%d)\n", len(out)))
		for _, e := range out {
			sb.WriteString(fmt.Sprintf("- %s -> %s\n", e.Kind, e.Target))
		}
	}
	if len(in) > 0 {
		sb.WriteString(fmt.Sprintf("\n## Incoming (%d)\n", len(in)))
		for _, e := range in {
			sb.WriteString(fmt.Sprintf("- %s <- %s\n", e.Kind, e.Source))
		}
	}
	if len(out) == 0 && len(in) == 0 {
		sb.WriteString("\nNo edges. The node is isolated.\n")
	}
	return sb.String(), nil
}

func (s *Server) handleSearch(ctx context.Context, query string, limit int) (string, error) {
	if query == "" {
		return "No query provided", nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	g, err := s.view(ctx)
	if err != nil {
		return "", err
	}

	matches := g.Search(query, limit)
	if len(matches) == 0 {
		return fmt.Sprintf("No nodes match '%s'", query), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d node(s) matching '%s':\n\n", len(matches), query))
	for _, n := range matches {
		sb.WriteString(fmt.Sprintf("- %s (%s) %s\n", n.Label, n.Type, n.ID))
	}
	return sb.String(), nil
}

func (s *Server) graphJSON(ctx context.Context) (string, error) {
	g, err := s.view(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("encoding graph: %w", err)
	}
	return string(data), nil
}

func (s *Server) diagnosticsJSON(ctx context.Context) (string, error) {
	res, err := s.current(ctx)
	if err != nil {
		return "", err
	}
	diags := res.Diagnostics
	if diags == nil {
		diags = ingestion.Diagnostics{}
	}
	data, err := json.Marshal(diags)
	if err != nil {
		return "", fmt.Errorf("encoding diagnostics: %w", err)
	}
	return string(data), nil
}

// schemaJSON describes the graph document served at codenode://graph.
func schemaJSON() (string, error) {
	type document struct {
		Nodes []graph.Node `json:"nodes"`
		Edges []graph.Edge `json:"edges"`
	}
	schema, err := jsonschema.For[document](nil)
	if err != nil {
		return "", fmt.Errorf("inferring schema: %w", err)
	}
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding schema: %w", err)
	}
	return string(data), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	res := textResult(err.Error())
	res.IsError = true
	return res
}

// toolResult adapts a string handler to an MCP tool result.
func toolResult(text string, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		return errorResult(err), nil, nil
	}
	return textResult(text), nil, nil
}

// registerTools registers tools with the MCP server.
func (s *Server) registerTools() {
	tools := make(map[string]Tool)
	for _, t := range s.ListTools() {
		tools[t.Name] = t
	}
	tool := func(name string) *mcp.Tool {
		return &mcp.Tool{Name: name, Description: tools[name].Description}
	}

	mcp.AddTool(s.server, tool("graph_build"), func(ctx context.Context, _ *mcp.CallToolRequest, args BuildArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(s.handleBuild(ctx, args.Changed))
	})
	mcp.AddTool(s.server, tool("graph_stats"), func(ctx context.Context, _ *mcp.CallToolRequest, _ StatsArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(s.handleStats(ctx))
	})
	mcp.AddTool(s.server, tool("graph_node"), func(ctx context.Context, _ *mcp.CallToolRequest, args NodeArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(s.handleNode(ctx, args.ID))
	})
	mcp.AddTool(s.server, tool("graph_search"), func(ctx context.Context, _ *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(s.handleSearch(ctx, args.Query, args.Limit))
	})
}

// registerResources registers resources with the MCP server.
func (s *Server) registerResources() {
	for _, r := range s.ListResources() {
		s.server.AddResource(&mcp.Resource{
			URI:         r.URI,
			Name:        r.Name,
			Description: r.Description,
			MIMEType:    r.MimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadResource(ctx, r.URI)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: r.URI, MIMEType: r.MimeType, Text: text},
				},
			}, nil
		})
	}
}
