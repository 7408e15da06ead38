package graph

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// nodeRow is a buffered node upsert.
type nodeRow struct {
	project       string
	qualifiedName string
	props         map[string]any
}

// edgeRow is a buffered edge upsert, keyed by endpoint qualified names.
type edgeRow struct {
	project  string
	fromQN   string
	toQN     string
	props    map[string]any
}

// edgeBucket groups buffered edges by (fromLabel, type, toLabel) since Cypher
// relationship types and node labels cannot be parameterized.
type edgeBucket struct {
	fromLabel string
	relType   string
	toLabel   string
}

// Writer is the batched, idempotent Graph Writer described by the
// specification: connection lifecycle, project-scoped unique constraints,
// buffered upserts, and ordered flush (nodes before edges).
type Writer struct {
	exec    QueryExecutor
	cfg     Config
	project string

	mu        sync.Mutex
	nodeBuf   map[string][]nodeRow // label -> rows
	nodeCount int
	edgeBuf   map[edgeBucket][]edgeRow
	edgeCount int
}

// Connect opens a connection to the graph store, switches to the
// project-scoped database context (when the backend supports named
// databases), and ensures unique constraints on {project, qualified_name}
// for every node label. Constraint creation is idempotent.
func Connect(ctx context.Context, cfg Config, project string) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	exec, err := newDriverExecutor(ctx, cfg)
	if err != nil {
		return nil, err
	}

	w := newWriter(exec, cfg, project)
	if err := w.EnsureConstraints(ctx); err != nil {
		_ = exec.Close(ctx)
		return nil, err
	}
	return w, nil
}

// NewWriter builds a Writer around an arbitrary QueryExecutor, production or
// fake. Exported for packages (ingest, query) that need to inject a fake
// executor in tests.
func NewWriter(exec QueryExecutor, cfg Config, project string) *Writer {
	return newWriter(exec, cfg.withDefaults(), project)
}

func newWriter(exec QueryExecutor, cfg Config, project string) *Writer {
	return &Writer{
		exec:    exec,
		cfg:     cfg,
		project: project,
		nodeBuf: make(map[string][]nodeRow),
		edgeBuf: make(map[edgeBucket][]edgeRow),
	}
}

// EnsureConstraints creates a unique constraint on {project, qualified_name}
// for every known node label. Idempotent.
func (w *Writer) EnsureConstraints(ctx context.Context) error {
	for _, label := range NodeLabels {
		q := fmt.Sprintf(
			"CREATE CONSTRAINT ON (n:%s) ASSERT (n.project, n.qualified_name) IS UNIQUE",
			label,
		)
		if _, err := w.runWithRetry(ctx, q, nil); err != nil {
			return fmt.Errorf("graph: ensure constraint for %s: %w", label, err)
		}
	}
	return nil
}

// UpsertNode enqueues a node upsert. qualified_name and project are injected
// into props automatically; callers supply the rest.
func (w *Writer) UpsertNode(ctx context.Context, label, qualifiedName string, props map[string]any) error {
	w.mu.Lock()
	w.nodeBuf[label] = append(w.nodeBuf[label], nodeRow{
		project:       w.project,
		qualifiedName: qualifiedName,
		props:         props,
	})
	w.nodeCount++
	full := w.nodeCount >= w.cfg.BatchSize
	w.mu.Unlock()

	if full {
		return w.FlushNodes(ctx)
	}
	return nil
}

// UpsertEdge enqueues an edge upsert between two node references identified
// by label and qualified name.
func (w *Writer) UpsertEdge(ctx context.Context, from NodeRef, relType string, to NodeRef, props map[string]any) error {
	bucket := edgeBucket{fromLabel: from.Label, relType: relType, toLabel: to.Label}

	w.mu.Lock()
	w.edgeBuf[bucket] = append(w.edgeBuf[bucket], edgeRow{
		project: w.project,
		fromQN:  from.QualifiedName,
		toQN:    to.QualifiedName,
		props:   props,
	})
	w.edgeCount++
	full := w.edgeCount >= w.cfg.BatchSize
	w.mu.Unlock()

	if full {
		return w.FlushAll(ctx)
	}
	return nil
}

// FlushNodes executes batched node creation queries and clears the node
// buffer, one UNWIND per label.
func (w *Writer) FlushNodes(ctx context.Context) error {
	w.mu.Lock()
	buf := w.nodeBuf
	w.nodeBuf = make(map[string][]nodeRow)
	w.nodeCount = 0
	w.mu.Unlock()

	for label, rows := range buf {
		if len(rows) == 0 {
			continue
		}
		params := make([]map[string]any, len(rows))
		for i, r := range rows {
			props := map[string]any{}
			for k, v := range r.props {
				props[k] = v
			}
			props["project"] = r.project
			props["qualified_name"] = r.qualifiedName
			params[i] = props
		}

		q := fmt.Sprintf(`
UNWIND $rows AS row
MERGE (n:%s {project: row.project, qualified_name: row.qualified_name})
SET n += row`, label)

		if _, err := w.runWithRetry(ctx, q, map[string]any{"rows": params}); err != nil {
			return fmt.Errorf("graph: flush nodes (%s): %w", label, err)
		}
	}
	return nil
}

// FlushRelationships executes batched relationship creation queries and
// clears the edge buffer, one UNWIND per (fromLabel, type, toLabel) bucket.
// Per the writer's failure semantics, a batch whose endpoints are missing
// (a programming error, not a transient fault) is retried once after a
// forced node flush before being surfaced as fatal.
func (w *Writer) FlushRelationships(ctx context.Context) error {
	w.mu.Lock()
	buf := w.edgeBuf
	w.edgeBuf = make(map[edgeBucket][]edgeRow)
	w.edgeCount = 0
	w.mu.Unlock()

	for bucket, rows := range buf {
		if len(rows) == 0 {
			continue
		}
		params := make([]map[string]any, len(rows))
		for i, r := range rows {
			params[i] = map[string]any{
				"project": r.project,
				"from_qn": r.fromQN,
				"to_qn":   r.toQN,
				"props":   r.props,
			}
		}

		q := fmt.Sprintf(`
UNWIND $rows AS row
MATCH (a:%s {project: row.project, qualified_name: row.from_qn})
MATCH (b:%s {project: row.project, qualified_name: row.to_qn})
MERGE (a)-[r:%s]->(b)
SET r += row.props`, bucket.fromLabel, bucket.toLabel, bucket.relType)

		if _, err := w.runWithRetry(ctx, q, map[string]any{"rows": params}); err != nil {
			slog.Warn("graph.flush_edges.missing_endpoint.retry", "type", bucket.relType, "err", err)
			if ferr := w.FlushNodes(ctx); ferr != nil {
				return fmt.Errorf("graph: forced node flush before edge retry: %w", ferr)
			}
			if _, err2 := w.runWithRetry(ctx, q, map[string]any{"rows": params}); err2 != nil {
				return fmt.Errorf("graph: flush edges (%s) failed after retry: %w", bucket.relType, err2)
			}
		}
	}
	return nil
}

// FlushAll flushes nodes first, then relationships, guaranteeing endpoint
// existence at edge-flush time.
func (w *Writer) FlushAll(ctx context.Context) error {
	if err := w.FlushNodes(ctx); err != nil {
		return err
	}
	return w.FlushRelationships(ctx)
}

// Clean detach-deletes every node transitively contained by the project.
func (w *Writer) Clean(ctx context.Context) error {
	_, err := w.runWithRetry(ctx, `
MATCH (p:Project {project: $project, qualified_name: $project})
OPTIONAL MATCH (p)-[:CONTAINS|DEFINES|DEFINES_METHOD*0..]->(n)
DETACH DELETE p, n`, map[string]any{"project": w.project})
	return err
}

// Read executes a parameterized read query and returns rows as ordered
// column->value maps.
func (w *Writer) Read(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	return w.exec.Run(ctx, query, params)
}

// Close flushes any buffered writes and releases the connection.
func (w *Writer) Close(ctx context.Context) error {
	if err := w.FlushAll(ctx); err != nil {
		_ = w.exec.Close(ctx)
		return err
	}
	return w.exec.Close(ctx)
}

// retryAttempts and retryBaseWait bound exponential backoff for transient
// transport errors.
const (
	retryAttempts = 4
	retryBaseWait = 100 * time.Millisecond
)

func (w *Writer) runWithRetry(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		rows, err := w.exec.Run(ctx, query, params)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		if attempt == retryAttempts-1 {
			break
		}
		wait := time.Duration(math.Pow(2, float64(attempt))) * retryBaseWait
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}
