// Package cmd provides CLI command implementations for codenode.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/Benny93/codenode/internal/config"
	"github.com/Benny93/codenode/internal/graph"
	"github.com/Benny93/codenode/internal/ingestion"
	"github.com/Benny93/codenode/internal/metrics"
	"github.com/Benny93/codenode/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Globals are flags shared by every command.
type Globals struct {
	Config  string `short:"c" type:"path" help:"Config file (default: <path>/.codenode.yaml)"`
	Verbose bool   `short:"v" help:"Enable verbose output"`
	Quiet   bool   `short:"q" help:"Suppress non-essential output"`

	Stdout io.Writer `kong:"-"`
	Stderr io.Writer `kong:"-"`
}

func (g *Globals) stdout() io.Writer {
	if g.Stdout != nil {
		return g.Stdout
	}
	return os.Stdout
}

func (g *Globals) stderr() io.Writer {
	if g.Stderr != nil {
		return g.Stderr
	}
	return os.Stderr
}

func (g *Globals) loadConfig(root string) (*config.Config, error) {
	if g.Config != "" {
		return config.Load(g.Config)
	}
	return config.LoadWorkspace(root)
}

func (g *Globals) logger(cfg *config.Config) *slog.Logger {
	level := cfg.LogLevel
	switch {
	case g.Verbose:
		level = "debug"
	case g.Quiet:
		level = "error"
	}
	return config.NewLogger(g.stderr(), level)
}

// WorkspaceFlags select and tune the workspace a command builds.
type WorkspaceFlags struct {
	Path        string   `arg:"" optional:"" default:"." help:"Path to workspace"`
	Workers     int      `help:"Concurrent detector workers (0 = one per CPU)"`
	Exclude     []string `help:"Glob patterns of files to skip"`
	NoGitignore bool     `help:"Do not apply .gitignore"`
	NoCache     bool     `help:"Disable the detection cache"`
}

// open resolves the configuration, applies flag overrides and opens the
// workspace.
func (f *WorkspaceFlags) open(g *Globals, reg *metrics.Registry, progress ingestion.ProgressCallback) (*ingestion.Workspace, error) {
	root, err := filepath.Abs(f.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("accessing %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	cfg, err := g.loadConfig(root)
	if err != nil {
		return nil, err
	}
	if f.Workers > 0 {
		cfg.Workers = f.Workers
	}
	cfg.Exclude = append(cfg.Exclude, f.Exclude...)
	if f.NoGitignore {
		cfg.RespectGitignore = false
	}
	if f.NoCache {
		cfg.CacheSize = 0
		cfg.CacheDir = ""
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	return ingestion.OpenWorkspace(root, cfg, ingestion.WorkspaceOptions{
		Logger:   g.logger(cfg),
		Metrics:  reg,
		Progress: progress,
	})
}

// build opens the workspace, builds once and returns the filtered graph.
func (f *WorkspaceFlags) build(g *Globals) (*ingestion.BuildResult, *graph.Graph, error) {
	var progress ingestion.ProgressCallback
	if g.Verbose {
		progress = func(done, total int) {
			fmt.Fprintf(g.stderr(), "\r\033[KDetecting (%d/%d)", done, total)
			if done == total {
				fmt.Fprintln(g.stderr())
			}
		}
	}

	ws, err := f.open(g, nil, progress)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = ws.Close() }()

	ctx, stop := signalContext()
	defer stop()

	res, err := ws.Build(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("building graph: %w", err)
	}
	return res, res.Graph.Filter(ws.Config().Filter()), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printDiagnostics(g *Globals, diags ingestion.Diagnostics) {
	if len(diags) == 0 || g.Quiet {
		return
	}
	warn := color.New(color.FgYellow)
	warn.Fprintf(g.stderr(), "%d file(s) skipped:\n", len(diags))
	for _, d := range diags {
		fmt.Fprintf(g.stderr(), "  %s\n", d.Error())
	}
}

// BuildCmd builds the workspace graph and prints a summary or the graph.
type BuildCmd struct {
	WorkspaceFlags
	JSON bool `help:"Print the graph as JSON"`
}

// Run executes the build command.
func (c *BuildCmd) Run(g *Globals) error {
	res, view, err := c.build(g)
	if err != nil {
		return err
	}
	printDiagnostics(g, res.Diagnostics)

	out := g.stdout()
	if c.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	if !g.Quiet {
		color.New(color.FgGreen).Fprintln(out, "✓ Graph built")
	}
	fmt.Fprintf(out, "  Build:     %s\n", res.ID)
	fmt.Fprintf(out, "  Files:     %d\n", res.Files)
	fmt.Fprintf(out, "  Skipped:   %d\n", res.Skipped)
	fmt.Fprintf(out, "  Failures:  %d\n", len(res.Diagnostics))
	fmt.Fprintf(out, "  Nodes:     %d\n", view.NodeCount())
	fmt.Fprintf(out, "  Edges:     %d\n", view.EdgeCount())
	fmt.Fprintf(out, "  Duration:  %.2fs\n", res.Duration.Seconds())
	return nil
}

// NeighborsCmd prints the edges of one node.
type NeighborsCmd struct {
	NodeID string `arg:"" help:"Node id: absolute file path, path::Name or url:URL"`
	WorkspaceFlags
}

// Run executes the neighbors command.
func (c *NeighborsCmd) Run(g *Globals) error {
	res, view, err := c.build(g)
	if err != nil {
		return err
	}
	printDiagnostics(g, res.Diagnostics)

	id := c.NodeID
	if view.Node(id) == nil && !graph.IsURLID(id) && !filepath.IsAbs(id) {
		// Accept file paths relative to the working directory.
		if abs, err := filepath.Abs(id); err == nil {
			id = abs
		}
	}
	node := view.Node(id)
	if node == nil {
		return fmt.Errorf("node %q not found", c.NodeID)
	}

	out := g.stdout()
	color.New(color.Bold).Fprintf(out, "%s (%s)\n", node.Label, node.Type)
	fmt.Fprintf(out, "  %s\n\n", node.ID)

	outgoing := view.Outgoing(node.ID)
	fmt.Fprintf(out, "Outgoing (%d)\n", len(outgoing))
	for _, e := range outgoing {
		fmt.Fprintf(out, "  %-9s -> %s\n", e.Kind, e.Target)
	}

	incoming := view.Incoming(node.ID)
	fmt.Fprintf(out, "Incoming (%d)\n", len(incoming))
	for _, e := range incoming {
		fmt.Fprintf(out, "  %-9s <- %s\n", e.Kind, e.Source)
	}
	return nil
}

// StatsCmd prints node and edge counts.
type StatsCmd struct {
	WorkspaceFlags
}

// Run executes the stats command.
func (c *StatsCmd) Run(g *Globals) error {
	res, view, err := c.build(g)
	if err != nil {
		return err
	}
	printDiagnostics(g, res.Diagnostics)

	stats := view.Stats()
	out := g.stdout()
	heading := color.New(color.FgCyan, color.Bold)

	heading.Fprintf(out, "Nodes: %d\n", stats.Nodes)
	types := make([]string, 0, len(stats.NodesByType))
	for t := range stats.NodesByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(out, "  %-9s %d\n", t, stats.NodesByType[graph.NodeType(t)])
	}

	heading.Fprintf(out, "Edges: %d\n", stats.Edges)
	kinds := make([]string, 0, len(stats.EdgesByKind))
	for k := range stats.EdgesByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(out, "  %-9s %d\n", k, stats.EdgesByKind[graph.EdgeKind(k)])
	}
	return nil
}

// SearchCmd finds nodes by label or id.
type SearchCmd struct {
	Query string `arg:"" help:"Case-insensitive substring to look for"`
	WorkspaceFlags
	Limit int `short:"n" default:"20" help:"Maximum results"`
}

// Run executes the search command.
func (c *SearchCmd) Run(g *Globals) error {
	_, view, err := c.build(g)
	if err != nil {
		return err
	}

	out := g.stdout()
	results := view.Search(c.Query, c.Limit)
	if len(results) == 0 {
		fmt.Fprintln(out, "No results found")
		return nil
	}
	for i, n := range results {
		fmt.Fprintf(out, "%d. %s (%s)\n", i+1, n.Label, n.Type)
		fmt.Fprintf(out, "   %s\n", n.ID)
	}
	return nil
}

// ServeCmd starts the MCP server over stdio.
type ServeCmd struct {
	WorkspaceFlags
	MetricsAddr string `help:"Serve prometheus metrics on this address (e.g. :9090)"`
}

// Run executes the serve command.
func (c *ServeCmd) Run(g *Globals) error {
	reg := metrics.NewRegistry()
	ws, err := c.open(g, reg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = ws.Close() }()

	cfg := ws.Config()
	logger := g.logger(cfg)

	ctx, stop := signalContext()
	defer stop()

	if c.MetricsAddr != "" {
		srv := newMetricsServer(c.MetricsAddr, reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", c.MetricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", "addr", c.MetricsAddr)
	}

	if _, err := ws.Build(ctx); err != nil {
		logger.Warn("initial build failed", "error", err)
	}

	fmt.Fprintln(g.stderr(), "Starting MCP server...")
	return mcp.NewServer(ws, cfg.Filter(), logger).Run(ctx)
}

func newMetricsServer(addr string, reg *metrics.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// CleanCmd deletes the on-disk detection cache.
type CleanCmd struct {
	Path string `arg:"" optional:"" default:"." help:"Path to workspace"`
}

// Run executes the clean command.
func (c *CleanCmd) Run(g *Globals) error {
	root, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	cfg, err := g.loadConfig(root)
	if err != nil {
		return err
	}

	out := g.stdout()
	if cfg.CacheDir == "" {
		fmt.Fprintln(out, "No disk cache configured")
		return nil
	}

	dir := cfg.CacheDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		fmt.Fprintf(out, "No cache found at %s\n", dir)
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing cache: %w", err)
	}

	color.New(color.FgGreen).Fprintf(out, "✓ Removed cache at %s\n", dir)
	return nil
}

// CLI is the root Kong command structure.
type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Show version information"`

	// Commands
	Build     BuildCmd     `cmd:"" help:"Build the workspace graph"`
	Neighbors NeighborsCmd `cmd:"" help:"Show the edges of a node"`
	Stats     StatsCmd     `cmd:"" help:"Count nodes by type and edges by kind"`
	Search    SearchCmd    `cmd:"" help:"Find nodes by label or id"`
	Serve     ServeCmd     `cmd:"" help:"Start MCP server (stdio transport)"`
	Clean     CleanCmd     `cmd:"" help:"Delete the on-disk detection cache"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("codenode"),
		kong.Description("Build a graph of files, declarations, links and URLs in a workspace"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	return kongCtx.Run(&c.Globals)
}
