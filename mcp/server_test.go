package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/codenode/internal/graph"
	"github.com/Benny93/codenode/internal/ingestion"
)

// memoryWorkspace builds from an in-memory file set.
type memoryWorkspace struct {
	builder *ingestion.Builder
	files   ingestion.MapLoader
	paths   []string
	fail    error
}

func newMemoryWorkspace() *memoryWorkspace {
	files := ingestion.MapLoader{
		"/ws/docs/index.md": "See [[guide]] and [app](../src/app.ts). https://example.com",
		"/ws/docs/guide.md": "# Guide",
		"/ws/src/app.ts":    "import { db } from './db'\nexport function main() {}",
		"/ws/src/db.js":     "export const pool = null",
	}
	return &memoryWorkspace{
		builder: ingestion.NewBuilder(ingestion.Options{Workers: 2}),
		files:   files,
		paths:   []string{"/ws/docs/index.md", "/ws/docs/guide.md", "/ws/src/app.ts", "/ws/src/db.js", "/ws/broken.md"},
	}
}

func (w *memoryWorkspace) Build(ctx context.Context) (*ingestion.BuildResult, error) {
	if w.fail != nil {
		return nil, w.fail
	}
	return w.builder.Build(ctx, w.paths, w.files)
}

func (w *memoryWorkspace) Update(ctx context.Context, changed []string) (*ingestion.BuildResult, error) {
	if w.fail != nil {
		return nil, w.fail
	}
	return w.builder.Update(ctx, w.paths, changed, w.files)
}

func (w *memoryWorkspace) Current() *ingestion.BuildResult {
	return w.builder.Current()
}

func TestServer_ListToolsAndResources(t *testing.T) {
	t.Parallel()

	s := NewServer(newMemoryWorkspace(), graph.DefaultFilter(), nil)

	var names []string
	for _, tool := range s.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{"graph_build", "graph_stats", "graph_node", "graph_search"}, names)

	var uris []string
	for _, r := range s.ListResources() {
		uris = append(uris, r.URI)
	}
	assert.Equal(t, []string{"codenode://graph", "codenode://diagnostics", "codenode://schema"}, uris)
}

func TestServer_CallTool(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("BuildSummary", func(t *testing.T) {
		t.Parallel()
		s := NewServer(newMemoryWorkspace(), graph.DefaultFilter(), nil)

		out, err := s.CallTool(ctx, "graph_build", nil)
		require.NoError(t, err)

		assert.Contains(t, out, "(full)")
		assert.Contains(t, out, "**Files:** 4")
		assert.Contains(t, out, "**Failures:** 1")
		assert.Contains(t, out, "/ws/broken.md")
	})

	t.Run("IncrementalBuild", func(t *testing.T) {
		t.Parallel()
		ws := newMemoryWorkspace()
		s := NewServer(ws, graph.DefaultFilter(), nil)

		_, err := s.CallTool(ctx, "graph_build", nil)
		require.NoError(t, err)

		ws.files["/ws/docs/guide.md"] = "back to [[index]]"
		out, err := s.CallTool(ctx, "graph_build", map[string]any{"changed": []any{"/ws/docs/guide.md"}})
		require.NoError(t, err)

		assert.Contains(t, out, "(incremental)")
		assert.Len(t, ws.Current().Graph.Outgoing("/ws/docs/guide.md"), 1)
	})

	t.Run("BuildError", func(t *testing.T) {
		t.Parallel()
		ws := newMemoryWorkspace()
		ws.fail = errors.New("disk gone")
		s := NewServer(ws, graph.DefaultFilter(), nil)

		_, err := s.CallTool(ctx, "graph_build", nil)
		assert.ErrorContains(t, err, "disk gone")
	})

	t.Run("StatsBuildsLazily", func(t *testing.T) {
		t.Parallel()
		ws := newMemoryWorkspace()
		s := NewServer(ws, graph.DefaultFilter(), nil)

		out, err := s.CallTool(ctx, "graph_stats", nil)
		require.NoError(t, err)

		assert.NotNil(t, ws.Current())
		assert.Contains(t, out, "**Nodes:** 7")
		assert.Contains(t, out, "- md: 2")
		assert.Contains(t, out, "- fn: 2")
		assert.Contains(t, out, "- url: 1")
		assert.Contains(t, out, "- wikilink: 1")
	})

	t.Run("StatsHonorFilter", func(t *testing.T) {
		t.Parallel()
		filter := graph.DefaultFilter()
		filter.URLs = false
		filter.Declarations = false
		s := NewServer(newMemoryWorkspace(), filter, nil)

		out, err := s.CallTool(ctx, "graph_stats", nil)
		require.NoError(t, err)

		assert.Contains(t, out, "**Nodes:** 4")
		assert.NotContains(t, out, "- url:")
		assert.NotContains(t, out, "- declares:")
	})

	t.Run("Node", func(t *testing.T) {
		t.Parallel()
		s := NewServer(newMemoryWorkspace(), graph.DefaultFilter(), nil)

		out, err := s.CallTool(ctx, "graph_node", map[string]any{"id": "/ws/src/app.ts"})
		require.NoError(t, err)

		assert.Contains(t, out, "Node: **app.ts** (ts)")
		assert.Contains(t, out, "## Outgoing (2)")
		assert.Contains(t, out, "- import -> /ws/src/db.js")
		assert.Contains(t, out, "- declares -> /ws/src/app.ts::main")
		assert.Contains(t, out, "## Incoming (1)")
		assert.Contains(t, out, "- mdlink <- /ws/docs/index.md")
	})

	t.Run("NodeMissing", func(t *testing.T) {
		t.Parallel()
		s := NewServer(newMemoryWorkspace(), graph.DefaultFilter(), nil)

		out, err := s.CallTool(ctx, "graph_node", map[string]any{"id": "/ws/nope.ts"})
		require.NoError(t, err)
		assert.Contains(t, out, "not found")

		out, err = s.CallTool(ctx, "graph_node", map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, "No node id provided", out)
	})

	t.Run("Search", func(t *testing.T) {
		t.Parallel()
		s := NewServer(newMemoryWorkspace(), graph.DefaultFilter(), nil)

		out, err := s.CallTool(ctx, "graph_search", map[string]any{"query": "GUIDE"})
		require.NoError(t, err)
		assert.Contains(t, out, "Found 1 node(s)")
		assert.Contains(t, out, "/ws/docs/guide.md")

		out, err = s.CallTool(ctx, "graph_search", map[string]any{"query": "/ws/", "limit": float64(2)})
		require.NoError(t, err)
		assert.Contains(t, out, "Found 2 node(s)")

		out, err = s.CallTool(ctx, "graph_search", map[string]any{"query": "zzz"})
		require.NoError(t, err)
		assert.Contains(t, out, "No nodes match")
	})

	t.Run("UnknownTool", func(t *testing.T) {
		t.Parallel()
		s := NewServer(newMemoryWorkspace(), graph.DefaultFilter(), nil)

		_, err := s.CallTool(ctx, "graph_delete", nil)
		assert.Error(t, err)
	})
}

func TestServer_ReadResource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("Graph", func(t *testing.T) {
		t.Parallel()
		s := NewServer(newMemoryWorkspace(), graph.DefaultFilter(), nil)

		out, err := s.ReadResource(ctx, "codenode://graph")
		require.NoError(t, err)

		g := graph.New()
		require.NoError(t, json.Unmarshal([]byte(out), g))
		assert.Equal(t, 7, g.NodeCount())
		assert.Equal(t, 6, g.EdgeCount())
	})

	t.Run("Diagnostics", func(t *testing.T) {
		t.Parallel()
		s := NewServer(newMemoryWorkspace(), graph.DefaultFilter(), nil)

		out, err := s.ReadResource(ctx, "codenode://diagnostics")
		require.NoError(t, err)

		var diags []string
		require.NoError(t, json.Unmarshal([]byte(out), &diags))
		require.Len(t, diags, 1)
		assert.Contains(t, diags[0], "/ws/broken.md")
	})

	t.Run("Schema", func(t *testing.T) {
		t.Parallel()
		s := NewServer(newMemoryWorkspace(), graph.DefaultFilter(), nil)

		out, err := s.ReadResource(ctx, "codenode://schema")
		require.NoError(t, err)

		assert.Contains(t, out, `"nodes"`)
		assert.Contains(t, out, `"edges"`)
		assert.Contains(t, out, `"filePath"`)
	})

	t.Run("Unknown", func(t *testing.T) {
		t.Parallel()
		s := NewServer(newMemoryWorkspace(), graph.DefaultFilter(), nil)

		_, err := s.ReadResource(ctx, "codenode://nope")
		assert.Error(t, err)
	})
}

func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestServer_Protocol(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	session := connect(t, NewServer(newMemoryWorkspace(), graph.DefaultFilter(), nil))

	t.Run("ListTools", func(t *testing.T) {
		res, err := session.ListTools(ctx, nil)
		require.NoError(t, err)

		var names []string
		for _, tool := range res.Tools {
			names = append(names, tool.Name)
		}
		assert.ElementsMatch(t, []string{"graph_build", "graph_stats", "graph_node", "graph_search"}, names)
	})

	t.Run("CallTool", func(t *testing.T) {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      "graph_node",
			Arguments: map[string]any{"id": "/ws/docs/guide.md"},
		})
		require.NoError(t, err)
		require.False(t, res.IsError)
		require.Len(t, res.Content, 1)

		text, ok := res.Content[0].(*mcp.TextContent)
		require.True(t, ok)
		assert.Contains(t, text.Text, "- wikilink <- /ws/docs/index.md")
	})

	t.Run("ReadResource", func(t *testing.T) {
		res, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "codenode://graph"})
		require.NoError(t, err)
		require.Len(t, res.Contents, 1)
		assert.Equal(t, "application/json", res.Contents[0].MIMEType)
		assert.Contains(t, res.Contents[0].Text, `"nodes"`)
	})
}

func TestServer_ProtocolToolError(t *testing.T) {
	t.Parallel()

	ws := newMemoryWorkspace()
	ws.fail = errors.New("walk failed")
	session := connect(t, NewServer(ws, graph.DefaultFilter(), nil))

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: "graph_build", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
