package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/codenode/internal/config"
	"github.com/Benny93/codenode/internal/graph"
	"github.com/Benny93/codenode/internal/metrics"
)

func TestWorkspace(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"docs/index.md": "Start at [[guide]] or [setup](../src/app.ts). https://example.com",
		"docs/guide.md": "# Guide",
		"src/app.ts":    "import { db } from './db'\nexport function main() {}",
		"src/db.js":     "export const pool = null",
		"main.go":       "package main",
	})

	cfg := config.Default()
	cfg.CacheDir = ".codenode/cache"
	reg := metrics.NewRegistry()

	ws, err := OpenWorkspace(root, cfg, WorkspaceOptions{Metrics: reg})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, ws.Close()) })

	assert.Equal(t, root, ws.Root())
	assert.Same(t, cfg, ws.Config())
	assert.Nil(t, ws.Current())

	res, err := ws.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Files)

	index := filepath.Join(root, "docs", "index.md")
	app := filepath.Join(root, "src", "app.ts")
	stats := res.Graph.Stats()
	assert.Equal(t, 1, stats.EdgesByKind[graph.EdgeWikilink])
	assert.Equal(t, 1, stats.EdgesByKind[graph.EdgeMDLink])
	assert.Equal(t, 1, stats.EdgesByKind[graph.EdgeImport])
	assert.Equal(t, 2, stats.EdgesByKind[graph.EdgeDeclares])
	assert.Equal(t, 1, stats.EdgesByKind[graph.EdgeURL])
	assert.Len(t, res.Graph.Outgoing(index), 3)
	assert.NotNil(t, res.Graph.Node(graph.DeclID(app, "main")))

	_, err = os.Stat(filepath.Join(root, ".codenode", "cache"))
	assert.NoError(t, err, "badger cache directory is created")

	require.NoError(t, os.WriteFile(app, []byte("export function run() {}"), 0o644))
	updated, err := ws.Update(context.Background(), []string{"src/app.ts"})
	require.NoError(t, err)

	assert.True(t, updated.Incremental)
	assert.Nil(t, updated.Graph.Node(graph.DeclID(app, "main")))
	assert.NotNil(t, updated.Graph.Node(graph.DeclID(app, "run")))
	assert.Same(t, updated, ws.Current())
}

func TestOpenWorkspace_Defaults(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.md": "[[a]]"})

	ws, err := OpenWorkspace(root, nil, WorkspaceOptions{})
	require.NoError(t, err)
	defer ws.Close()

	res, err := ws.Build(context.Background())
	require.NoError(t, err)

	// A self wikilink is kept.
	assert.Equal(t, 1, res.Graph.EdgeCount())
}

func TestWorkspace_NoCache(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.CacheSize = 0

	ws, err := OpenWorkspace(t.TempDir(), cfg, WorkspaceOptions{})
	require.NoError(t, err)
	assert.Nil(t, ws.cache)
	assert.NoError(t, ws.Close())
}
