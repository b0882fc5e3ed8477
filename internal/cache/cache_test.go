package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/codenode/internal/detect"
	"github.com/Benny93/codenode/internal/graph"
)

func sampleResult(path string) *detect.Result {
	return &detect.Result{
		Nodes: []graph.Node{
			{ID: path, Label: "a.md", Type: graph.NodeMD, FilePath: path},
			{ID: graph.URLID("http://x.com"), Label: "http://x.com", Type: graph.NodeURL, Meta: map[string]string{"url": "http://x.com"}},
		},
		Edges: []graph.Edge{{Source: path, Target: graph.URLID("http://x.com"), Kind: graph.EdgeURL}},
	}
}

func TestKey(t *testing.T) {
	t.Parallel()

	base := Key(detect.CategoryMarkdown, "/ws/a.md", "text", "fp")

	assert.Len(t, base, 64)
	assert.Equal(t, base, Key(detect.CategoryMarkdown, "/ws/a.md", "text", "fp"))
	assert.NotEqual(t, base, Key(detect.CategorySource, "/ws/a.md", "text", "fp"))
	assert.NotEqual(t, base, Key(detect.CategoryMarkdown, "/ws/b.md", "text", "fp"))
	assert.NotEqual(t, base, Key(detect.CategoryMarkdown, "/ws/a.md", "text2", "fp"))
	assert.NotEqual(t, base, Key(detect.CategoryMarkdown, "/ws/a.md", "text", "fp2"))
	// Parts are separated, so shifting bytes between them changes the key.
	assert.NotEqual(t, Key(detect.CategoryMarkdown, "/ws/a", "b", "fp"), Key(detect.CategoryMarkdown, "/ws/", "ab", "fp"))
}

func TestLRU(t *testing.T) {
	t.Parallel()

	t.Run("GetPut", func(t *testing.T) {
		t.Parallel()
		c, err := NewLRU(4)
		require.NoError(t, err)

		_, ok := c.Get("k")
		assert.False(t, ok)

		res := sampleResult("/ws/a.md")
		c.Put("k", res)

		got, ok := c.Get("k")
		require.True(t, ok)
		assert.Same(t, res, got)
	})

	t.Run("Evicts", func(t *testing.T) {
		t.Parallel()
		c, err := NewLRU(2)
		require.NoError(t, err)

		c.Put("a", sampleResult("/ws/a.md"))
		c.Put("b", sampleResult("/ws/b.md"))
		c.Put("c", sampleResult("/ws/c.md"))

		assert.Equal(t, 2, c.Len())
		_, ok := c.Get("a")
		assert.False(t, ok)
	})

	t.Run("InvalidSize", func(t *testing.T) {
		t.Parallel()
		_, err := NewLRU(0)
		assert.Error(t, err)
	})
}

func TestBadger(t *testing.T) {
	t.Parallel()

	t.Run("RoundTrip", func(t *testing.T) {
		t.Parallel()
		c, err := OpenBadger(t.TempDir(), nil)
		require.NoError(t, err)
		defer c.Close()

		res := sampleResult("/ws/a.md")
		c.Put("k", res)

		got, ok := c.Get("k")
		require.True(t, ok)
		assert.Equal(t, res, got)
		assert.Equal(t, 1, c.Len())

		_, ok = c.Get("missing")
		assert.False(t, ok)
	})

	t.Run("PersistsAcrossOpen", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		c, err := OpenBadger(dir, nil)
		require.NoError(t, err)
		c.Put("k", sampleResult("/ws/a.md"))
		require.NoError(t, c.Close())

		c, err = OpenBadger(dir, nil)
		require.NoError(t, err)
		defer c.Close()

		_, ok := c.Get("k")
		assert.True(t, ok)
	})

	t.Run("Clear", func(t *testing.T) {
		t.Parallel()
		c, err := OpenBadger(t.TempDir(), nil)
		require.NoError(t, err)
		defer c.Close()

		c.Put("a", sampleResult("/ws/a.md"))
		c.Put("b", sampleResult("/ws/b.md"))
		require.NoError(t, c.Clear())

		assert.Equal(t, 0, c.Len())
	})

	t.Run("ClosedIsInert", func(t *testing.T) {
		t.Parallel()
		c, err := OpenBadger(t.TempDir(), nil)
		require.NoError(t, err)
		require.NoError(t, c.Close())

		c.Put("k", sampleResult("/ws/a.md"))
		_, ok := c.Get("k")
		assert.False(t, ok)
		assert.NoError(t, c.Close())
	})
}

func TestTiered(t *testing.T) {
	t.Parallel()

	front, err := NewLRU(8)
	require.NoError(t, err)
	back, err := OpenBadger(t.TempDir(), nil)
	require.NoError(t, err)

	tiered := NewTiered(front, back)
	defer tiered.Close()

	back.Put("k", sampleResult("/ws/a.md"))

	_, ok := front.Get("k")
	require.False(t, ok)

	_, ok = tiered.Get("k")
	require.True(t, ok)

	_, ok = front.Get("k")
	assert.True(t, ok, "back-tier hit is promoted")

	tiered.Put("k2", sampleResult("/ws/b.md"))
	_, ok = back.Get("k2")
	assert.True(t, ok)
}
