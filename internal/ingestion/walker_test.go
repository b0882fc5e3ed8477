package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		fullPath := filepath.Join(root, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
	}
}

func relPaths(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(rel)
	}
	return out
}

func TestWalkWorkspace(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"README.md":                 "# readme",
		"notes/todo.markdown":       "- [[README]]",
		"src/app.ts":                "import './lib'",
		"src/lib.js":                "",
		"src/view.TSX":              "",
		"src/app.test.ts":           "",
		"data/app.sqlite":           "",
		"data/legacy.db3":           "",
		"main.go":                   "package main",
		"image.png":                 "",
		"node_modules/pkg/index.js": "",
		".git/config.md":            "",
		"dist/bundle.js":            "",
		"generated/out.ts":          "",
		".gitignore":                "generated/\n# comment\n*.db3\n",
	})

	t.Run("DefaultsAndGitignore", func(t *testing.T) {
		t.Parallel()
		paths, err := WalkWorkspace(root, WalkOptions{RespectGitignore: true})
		require.NoError(t, err)

		assert.Equal(t, []string{
			"README.md",
			"data/app.sqlite",
			"notes/todo.markdown",
			"src/app.test.ts",
			"src/app.ts",
			"src/lib.js",
			"src/view.TSX",
		}, relPaths(t, root, paths))
		for _, p := range paths {
			assert.True(t, filepath.IsAbs(p))
		}
	})

	t.Run("IgnoreGitignore", func(t *testing.T) {
		t.Parallel()
		paths, err := WalkWorkspace(root, WalkOptions{})
		require.NoError(t, err)

		rel := relPaths(t, root, paths)
		assert.Contains(t, rel, "generated/out.ts")
		assert.Contains(t, rel, "data/legacy.db3")
		assert.NotContains(t, rel, "node_modules/pkg/index.js")
	})

	t.Run("ExcludeGlobs", func(t *testing.T) {
		t.Parallel()
		paths, err := WalkWorkspace(root, WalkOptions{
			RespectGitignore: true,
			Exclude:          []string{"*.test.ts", "notes/**"},
		})
		require.NoError(t, err)

		rel := relPaths(t, root, paths)
		assert.NotContains(t, rel, "src/app.test.ts")
		assert.NotContains(t, rel, "notes/todo.markdown")
		assert.Contains(t, rel, "src/app.ts")
	})

	t.Run("BadExclude", func(t *testing.T) {
		t.Parallel()
		_, err := WalkWorkspace(root, WalkOptions{Exclude: []string{"[a-"}})
		assert.Error(t, err)
	})

	t.Run("RootNotDir", func(t *testing.T) {
		t.Parallel()
		_, err := WalkWorkspace(filepath.Join(root, "README.md"), WalkOptions{})
		assert.ErrorIs(t, err, ErrRootNotDir)
	})

	t.Run("MissingRoot", func(t *testing.T) {
		t.Parallel()
		_, err := WalkWorkspace(filepath.Join(root, "missing"), WalkOptions{})
		assert.Error(t, err)
	})
}

func TestLoadGitignore(t *testing.T) {
	t.Parallel()

	t.Run("Missing", func(t *testing.T) {
		t.Parallel()
		patterns, err := loadGitignore(t.TempDir())
		require.NoError(t, err)
		assert.Nil(t, patterns)
	})

	t.Run("SkipsCommentsAndBlanks", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeFiles(t, root, map[string]string{".gitignore": "# c\n\n*.log\nbuild/\n"})

		patterns, err := loadGitignore(root)
		require.NoError(t, err)
		assert.Len(t, patterns, 2)
	})
}
