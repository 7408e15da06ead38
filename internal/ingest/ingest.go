// Package ingest implements the two-pass code ingester described in
// SPEC_FULL.md §4.3: pass 1 walks every source file to emit structural
// nodes and DEFINES/IMPORTS/INHERITS edges and populate the symbol table;
// pass 2 re-walks function and method bodies to resolve CALLS edges against
// the now-complete table.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/codegraph-io/codegraph/internal/discover"
	"github.com/codegraph-io/codegraph/internal/graph"
	"github.com/codegraph-io/codegraph/internal/metrics"
	"github.com/codegraph-io/codegraph/internal/resolver"
)

// Options configures a single ingestion run.
type Options struct {
	RepoPath    string
	ProjectName string
}

func (o Options) Validate() error {
	if o.ProjectName == "" {
		return fmt.Errorf("ingest: project_name is required")
	}
	if o.RepoPath == "" {
		return fmt.Errorf("ingest: repo_path is required")
	}
	return nil
}

// Stats summarizes a completed ingestion run.
type Stats struct {
	FilesDiscovered int
	FilesParsed     int
	FilesSkipped    int
	Diagnostics     []Diagnostic
	NodesWritten    int
	EdgesWritten    int
}

// Diagnostic is a per-file failure recorded during ingestion; a parse
// failure in one file never aborts the run.
type Diagnostic struct {
	Path string
	Err  string
}

// Ingester drives the two-pass pipeline against a Graph Writer.
type Ingester struct {
	Writer *graph.Writer
}

// New creates an Ingester around an already-connected Graph Writer.
func New(w *graph.Writer) *Ingester {
	return &Ingester{Writer: w}
}

// Run executes discovery, pass 1 (structure + definitions), and pass 2
// (call resolution) against the configured repository and project.
func (ig *Ingester) Run(ctx context.Context, opts Options) (stats *Stats, err error) {
	if verr := opts.Validate(); verr != nil {
		return nil, verr
	}
	metrics.IngestRunsStarted.Inc()
	timer := metrics.NewTimer(metrics.IngestRunDuration)
	defer timer.ObserveDuration()
	defer func() {
		if err != nil {
			metrics.IngestRunsFailed.Inc()
		}
	}()

	repoPath, err := filepath.Abs(opts.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("ingest: resolve repo path: %w", err)
	}

	files, err := discover.Discover(ctx, repoPath, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest: discover: %w", err)
	}
	metrics.IngestFilesDiscovered.Add(float64(len(files)))

	stats = &Stats{FilesDiscovered: len(files)}

	if err := ig.Writer.UpsertNode(ctx, "Project", opts.ProjectName, map[string]any{"name": opts.ProjectName}); err != nil {
		return nil, fmt.Errorf("ingest: upsert project: %w", err)
	}

	tree := buildContainment(repoPath, files, opts.ProjectName)
	if err := writeContainment(ctx, ig.Writer, tree); err != nil {
		return nil, fmt.Errorf("ingest: write containment: %w", err)
	}

	table := resolver.New()

	results, diags := parsePass1(ctx, files, opts.ProjectName)
	stats.Diagnostics = append(stats.Diagnostics, diags...)
	metrics.IngestDiagnostics.Add(float64(len(diags)))
	stats.FilesParsed = len(results)
	stats.FilesSkipped = stats.FilesDiscovered - stats.FilesParsed - len(diags)

	if err := writeDefinitions(ctx, ig.Writer, table, results); err != nil {
		return nil, fmt.Errorf("ingest: write definitions: %w", err)
	}

	if err := ig.Writer.FlushAll(ctx); err != nil {
		return nil, fmt.Errorf("ingest: flush pass 1: %w", err)
	}

	callEdges, callDiags := parsePass2(ctx, results, table)
	stats.Diagnostics = append(stats.Diagnostics, callDiags...)
	metrics.IngestDiagnostics.Add(float64(len(callDiags)))

	if err := writeCalls(ctx, ig.Writer, callEdges); err != nil {
		return nil, fmt.Errorf("ingest: write calls: %w", err)
	}
	if err := ig.Writer.FlushAll(ctx); err != nil {
		return nil, fmt.Errorf("ingest: flush pass 2: %w", err)
	}

	slog.Info("ingest.run.done",
		"project", opts.ProjectName,
		"files_discovered", stats.FilesDiscovered,
		"files_parsed", stats.FilesParsed,
		"diagnostics", len(stats.Diagnostics),
		"call_edges", len(callEdges))
	metrics.IngestRunsCompleted.Inc()
	return stats, nil
}

// parallelism bounds worker counts for CPU-bound parse stages.
func parallelism() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n
}

// runBounded runs fn for every item with a bounded errgroup; fn stores its
// own result (the callers write into a per-index slot). A single file's failure never aborts the
// group; errgroup is used purely for concurrency control here, not fail-fast
// semantics — see parsePass1/parsePass2 for how per-file errors are
// recorded as diagnostics instead of returned.
func runBounded(ctx context.Context, n int, fn func(i int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism())
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}
	return g.Wait()
}
