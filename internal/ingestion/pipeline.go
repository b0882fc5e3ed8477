package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Benny93/codenode/internal/cache"
	"github.com/Benny93/codenode/internal/detect"
	"github.com/Benny93/codenode/internal/graph"
	"github.com/Benny93/codenode/internal/metrics"
)

const (
	modeFull        = "full"
	modeIncremental = "incremental"
)

// ProgressCallback is called after each file with the number of files
// finished and the total for the current build.
type ProgressCallback func(done, total int)

// Options configures a Builder. Every field is optional.
type Options struct {
	// Workers bounds concurrent detector invocations; 0 means one per CPU.
	Workers int

	// Registry overrides the default detectors.
	Registry *detect.Registry

	Cache    cache.Cache
	Metrics  *metrics.Registry
	Logger   *slog.Logger
	Progress ProgressCallback
}

// BuildResult is one complete, consistent graph snapshot.
type BuildResult struct {
	ID          string
	Graph       *graph.Graph
	Diagnostics Diagnostics

	// Files counts files whose detector contributed to the graph.
	Files int

	// Skipped counts input paths that belong to no category.
	Skipped int

	// Pruned counts edges dropped for a missing endpoint.
	Pruned int

	Incremental bool
	Duration    time.Duration
}

// buildState is the per-file detector output behind a BuildResult, kept so
// Update can re-detect only changed files.
type buildState struct {
	known    *detect.KnownFiles
	results  map[string]*detect.Result
	failures map[string]*FileError
}

func newBuildState(known *detect.KnownFiles) *buildState {
	return &buildState{
		known:    known,
		results:  make(map[string]*detect.Result, known.Len()),
		failures: make(map[string]*FileError),
	}
}

func (s *buildState) clone() *buildState {
	return &buildState{
		known:    s.known,
		results:  maps.Clone(s.results),
		failures: maps.Clone(s.failures),
	}
}

// Builder aggregates detector output into graphs. Builds are serialized;
// Current may be called concurrently with a running build.
type Builder struct {
	registry *detect.Registry
	opts     Options
	logger   *slog.Logger

	buildMu sync.Mutex

	mu      sync.RWMutex
	current *BuildResult
	state   *buildState
}

// NewBuilder creates a Builder.
func NewBuilder(opts Options) *Builder {
	registry := opts.Registry
	if registry == nil {
		registry = detect.NewRegistry()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{registry: registry, opts: opts, logger: logger}
}

func (b *Builder) workers() int {
	if b.opts.Workers > 0 {
		return b.opts.Workers
	}
	return runtime.NumCPU()
}

// Current returns the last successful build, or nil before the first one.
func (b *Builder) Current() *BuildResult {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// Build runs every detector over paths and merges the results. If ctx is
// cancelled the partial work is discarded, ctx.Err() is returned and
// Current keeps the previous snapshot.
func (b *Builder) Build(ctx context.Context, paths []string, loader Loader) (*BuildResult, error) {
	b.buildMu.Lock()
	defer b.buildMu.Unlock()
	return b.build(ctx, paths, loader)
}

func (b *Builder) build(ctx context.Context, paths []string, loader Loader) (*BuildResult, error) {
	start := time.Now()
	indexed, skipped := classifyPaths(paths)
	known := detect.NewKnownFiles(indexed)
	state := newBuildState(known)

	b.logger.Debug("starting build", "files", known.Len(), "skipped", skipped)

	if err := b.detectAll(ctx, known.Paths(), state, loader); err != nil {
		b.opts.Metrics.RecordBuild(modeFull, "cancelled", time.Since(start), 0, 0, 0)
		b.logger.Info("build cancelled", "error", err)
		return nil, err
	}
	return b.commit(modeFull, state, skipped, start), nil
}

// Update re-detects only the changed files when the indexed file set is
// the same as in the previous build, and falls back to a full Build
// otherwise. The result is identical to a full Build over paths.
func (b *Builder) Update(ctx context.Context, paths, changed []string, loader Loader) (*BuildResult, error) {
	b.buildMu.Lock()
	defer b.buildMu.Unlock()

	indexed, skipped := classifyPaths(paths)
	known := detect.NewKnownFiles(indexed)

	b.mu.RLock()
	prev := b.state
	b.mu.RUnlock()

	if prev == nil || !prev.known.Equal(known) {
		b.logger.Debug("file set changed, running full build")
		return b.build(ctx, paths, loader)
	}

	start := time.Now()
	state := prev.clone()

	dirty := make([]string, 0, len(changed))
	seen := make(map[string]bool, len(changed))
	for _, p := range changed {
		p = filepath.Clean(p)
		if known.Has(p) && !seen[p] {
			seen[p] = true
			dirty = append(dirty, p)
		}
	}
	sort.Strings(dirty)

	b.logger.Debug("starting incremental build", "changed", len(dirty))

	if err := b.detectAll(ctx, dirty, state, loader); err != nil {
		b.opts.Metrics.RecordBuild(modeIncremental, "cancelled", time.Since(start), 0, 0, 0)
		b.logger.Info("build cancelled", "error", err)
		return nil, err
	}
	return b.commit(modeIncremental, state, skipped, start), nil
}

// classifyPaths returns the cleaned, deduplicated, sorted paths that belong
// to a category and the number of distinct paths that do not.
func classifyPaths(paths []string) ([]string, int) {
	seen := make(map[string]bool, len(paths))
	indexed := make([]string, 0, len(paths))
	skipped := 0
	for _, p := range paths {
		p = filepath.Clean(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		if detect.IsSupported(p) {
			indexed = append(indexed, p)
		} else {
			skipped++
		}
	}
	sort.Strings(indexed)
	return indexed, skipped
}

type fileOutcome struct {
	path   string
	result *detect.Result
	err    *FileError
}

// detectAll runs detectors for paths on the worker pool. A single collector
// goroutine owns state while workers run.
func (b *Builder) detectAll(ctx context.Context, paths []string, state *buildState, loader Loader) error {
	outcomes := make(chan fileOutcome)
	collected := make(chan struct{})

	go func() {
		defer close(collected)
		done := 0
		for out := range outcomes {
			if out.err != nil {
				state.failures[out.path] = out.err
				delete(state.results, out.path)
			} else {
				state.results[out.path] = out.result
				delete(state.failures, out.path)
			}
			done++
			if b.opts.Progress != nil {
				b.opts.Progress(done, len(paths))
			}
		}
	}()

	var g errgroup.Group
	g.SetLimit(b.workers())
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, ok := b.detectFile(ctx, path, state.known, loader)
			if !ok {
				return nil
			}
			select {
			case outcomes <- out:
			case <-ctx.Done():
			}
			return nil
		})
	}
	_ = g.Wait()
	close(outcomes)
	<-collected

	return ctx.Err()
}

// detectFile produces the outcome for one file. ok is false when the
// caller abandoned the build.
func (b *Builder) detectFile(ctx context.Context, path string, known *detect.KnownFiles, loader Loader) (fileOutcome, bool) {
	if ctx.Err() != nil {
		return fileOutcome{}, false
	}

	category := detect.Classify(path)

	var text string
	if category.NeedsContent() {
		t, err := loader.Load(ctx, path)
		if err != nil {
			if isCancellation(ctx, err) {
				return fileOutcome{}, false
			}
			return b.failed(path, category, err), true
		}
		text = t
	}

	var key string
	if b.opts.Cache != nil && category.NeedsContent() {
		key = cache.Key(category, path, text, known.Fingerprint())
		if res, hit := b.opts.Cache.Get(key); hit {
			b.opts.Metrics.RecordCacheLookup(true)
			b.opts.Metrics.RecordFile(category.String(), "ok")
			return fileOutcome{path: path, result: res}, true
		}
		b.opts.Metrics.RecordCacheLookup(false)
	}

	res, err := b.runDetector(path, text, known)
	if err != nil {
		return b.failed(path, category, err), true
	}
	if key != "" {
		b.opts.Cache.Put(key, res)
	}

	b.opts.Metrics.RecordFile(category.String(), "ok")
	return fileOutcome{path: path, result: res}, true
}

// runDetector isolates detector panics to the file that caused them.
func (b *Builder) runDetector(path, text string, known *detect.KnownFiles) (res *detect.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("%w: %v", ErrDetectorPanic, r)
		}
	}()

	d := b.registry.ForPath(path)
	if d == nil {
		return nil, fmt.Errorf("no detector for %s", detect.Classify(path))
	}
	res = d.Detect(path, text, known)
	if res == nil {
		res = &detect.Result{}
	}
	return res, nil
}

func (b *Builder) failed(path string, category detect.Category, err error) fileOutcome {
	b.opts.Metrics.RecordFile(category.String(), "failed")
	b.logger.Warn("file skipped", "path", path, "err", err)
	return fileOutcome{path: path, err: &FileError{Path: path, Err: err}}
}

// commit merges per-file results in sorted path order, prunes dangling
// edges and publishes the snapshot.
func (b *Builder) commit(mode string, state *buildState, skipped int, start time.Time) *BuildResult {
	g := graph.New()
	for _, path := range state.known.Paths() {
		if res, ok := state.results[path]; ok {
			g.Merge(res.Nodes, res.Edges)
		}
	}
	pruned := g.Prune()

	diags := make(Diagnostics, 0, len(state.failures))
	for _, fe := range state.failures {
		diags = append(diags, fe)
	}
	sortDiagnostics(diags)

	result := &BuildResult{
		ID:          uuid.NewString(),
		Graph:       g,
		Diagnostics: diags,
		Files:       len(state.results),
		Skipped:     skipped,
		Pruned:      pruned,
		Incremental: mode == modeIncremental,
		Duration:    time.Since(start),
	}

	b.mu.Lock()
	b.current = result
	b.state = state
	b.mu.Unlock()

	b.opts.Metrics.RecordBuild(mode, "ok", result.Duration, g.NodeCount(), g.EdgeCount(), pruned)
	b.logger.Info("graph built",
		"build_id", result.ID,
		"mode", mode,
		"files", result.Files,
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"failures", len(diags),
		"duration", result.Duration,
	)
	return result
}
