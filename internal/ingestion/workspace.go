package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Benny93/codenode/internal/cache"
	"github.com/Benny93/codenode/internal/config"
	"github.com/Benny93/codenode/internal/metrics"
)

// Workspace ties a root directory to its configuration, a disk loader and
// a Builder.
type Workspace struct {
	root    string
	cfg     *config.Config
	walk    WalkOptions
	loader  Loader
	cache   cache.Cache
	builder *Builder
	logger  *slog.Logger
}

// WorkspaceOptions carries optional collaborators for a Workspace.
type WorkspaceOptions struct {
	Logger   *slog.Logger
	Metrics  *metrics.Registry
	Progress ProgressCallback
}

// OpenWorkspace prepares a workspace rooted at root. A nil cfg uses the
// defaults. The caller must Close the workspace.
func OpenWorkspace(root string, cfg *config.Config, opts WorkspaceOptions) (*Workspace, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c, err := openCache(root, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Workspace{
		root: root,
		cfg:  cfg,
		walk: WalkOptions{
			RespectGitignore: cfg.RespectGitignore,
			Exclude:          cfg.Exclude,
		},
		loader: NewFSLoader(cfg.MaxFileSize, cfg.ReadTimeout),
		cache:  c,
		builder: NewBuilder(Options{
			Workers:  cfg.WorkerCount(),
			Cache:    c,
			Metrics:  opts.Metrics,
			Logger:   logger,
			Progress: opts.Progress,
		}),
		logger: logger,
	}, nil
}

func openCache(root string, cfg *config.Config, logger *slog.Logger) (cache.Cache, error) {
	var memory, disk cache.Cache
	if cfg.CacheSize > 0 {
		lru, err := cache.NewLRU(cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		memory = lru
	}
	if cfg.CacheDir != "" {
		dir := cfg.CacheDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		db, err := cache.OpenBadger(dir, logger)
		if err != nil {
			return nil, err
		}
		disk = db
	}

	switch {
	case memory != nil && disk != nil:
		return cache.NewTiered(memory, disk), nil
	case memory != nil:
		return memory, nil
	case disk != nil:
		return disk, nil
	}
	return nil, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Config returns the workspace configuration.
func (w *Workspace) Config() *config.Config {
	return w.cfg
}

// Files walks the workspace and returns the indexable file paths.
func (w *Workspace) Files() ([]string, error) {
	return WalkWorkspace(w.root, w.walk)
}

// Build walks the workspace and builds a fresh graph.
func (w *Workspace) Build(ctx context.Context) (*BuildResult, error) {
	paths, err := w.Files()
	if err != nil {
		return nil, err
	}
	return w.builder.Build(ctx, paths, w.loader)
}

// Update walks the workspace and rebuilds, re-detecting only changed
// files when no file was added or removed.
func (w *Workspace) Update(ctx context.Context, changed []string) (*BuildResult, error) {
	paths, err := w.Files()
	if err != nil {
		return nil, err
	}
	abs := make([]string, len(changed))
	for i, p := range changed {
		if !filepath.IsAbs(p) {
			p = filepath.Join(w.root, p)
		}
		abs[i] = p
	}
	return w.builder.Update(ctx, paths, abs, w.loader)
}

// Current returns the last successful build, or nil.
func (w *Workspace) Current() *BuildResult {
	return w.builder.Current()
}

// Close releases the detection cache.
func (w *Workspace) Close() error {
	if w.cache == nil {
		return nil
	}
	return w.cache.Close()
}
