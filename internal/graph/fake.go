package graph

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// FakeExecutor is an in-process QueryExecutor backed by a simple in-memory
// graph, used so the writer and query layers can be exercised without a live
// Memgraph instance. It understands exactly the statement shapes the Writer
// and query package generate: it is not a Cypher interpreter.
type FakeExecutor struct {
	mu    sync.Mutex
	Nodes map[string]map[string]Row          // label -> qualified_name -> row
	Edges map[string][]FakeEdge              // relType -> edges
	Calls []FakeCall
}

// FakeEdge records one relationship instance for assertions in tests.
type FakeEdge struct {
	FromLabel, FromQN string
	ToLabel, ToQN     string
	Type              string
	Props             map[string]any
}

// FakeCall records every statement issued, for assertions on behavior such
// as the ad-hoc guard never reaching the executor.
type FakeCall struct {
	Query  string
	Params map[string]any
}

// NewFakeExecutor builds an empty fake graph.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		Nodes: make(map[string]map[string]Row),
		Edges: make(map[string][]FakeEdge),
	}
}

func (f *FakeExecutor) Close(context.Context) error { return nil }

var (
	nodeMergeRE = regexp.MustCompile(`(?s)MERGE \(n:(\w+) `)
	edgeMatchRE = regexp.MustCompile(`(?s)MATCH \(a:(\w+).*MATCH \(b:(\w+).*MERGE \(a\)-\[r:(\w+)\]->\(b\)`)
)

// Run applies the two statement shapes the Writer emits for data
// (label-scoped node MERGE/UNWIND and edge MATCH+MERGE/UNWIND) to an
// in-memory graph, so callers can assert on Nodes/Edges after driving a
// Writer, and answers the query package's lookup/traversal reads from the
// same graph. It is not a Cypher interpreter: every other statement (USE
// DATABASE, constraint creation, project clean) is recorded in Calls and
// otherwise ignored.
func (f *FakeExecutor) Run(_ context.Context, query string, params map[string]any) ([]Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, FakeCall{Query: query, Params: params})

	if qn, ok := params["__lookup_qn"].(string); ok {
		return f.lookupByQN(qn), nil
	}
	if _, ok := params["__trav_rel_types"].([]string); ok {
		return f.runTraversal(params), nil
	}

	rows, _ := params["rows"].([]map[string]any)

	switch {
	case nodeMergeRE.MatchString(query):
		label := nodeMergeRE.FindStringSubmatch(query)[1]
		if f.Nodes[label] == nil {
			f.Nodes[label] = make(map[string]Row)
		}
		for _, row := range rows {
			qn, _ := row["qualified_name"].(string)
			r := Row{}
			for k, v := range row {
				r[k] = v
			}
			f.Nodes[label][qn] = r
		}
		return nil, nil

	case edgeMatchRE.MatchString(query):
		m := edgeMatchRE.FindStringSubmatch(query)
		fromLabel, toLabel, relType := m[1], m[2], m[3]
		for _, row := range rows {
			fromQN, _ := row["from_qn"].(string)
			toQN, _ := row["to_qn"].(string)
			if _, ok := f.Nodes[fromLabel][fromQN]; !ok {
				return nil, fmt.Errorf("fake graph: missing endpoint %s:%s", fromLabel, fromQN)
			}
			if _, ok := f.Nodes[toLabel][toQN]; !ok {
				return nil, fmt.Errorf("fake graph: missing endpoint %s:%s", toLabel, toQN)
			}
			props, _ := row["props"].(map[string]any)
			f.mergeEdge(FakeEdge{
				FromLabel: fromLabel, FromQN: fromQN,
				ToLabel: toLabel, ToQN: toQN,
				Type: relType, Props: props,
			})
		}
		return nil, nil

	default:
		return nil, nil
	}
}

// mergeEdge appends e unless an edge with the same (from, type, to) key
// already exists, modeling the MERGE-by-key idempotence the real writer
// relies on for re-ingest stability. Caller must hold f.mu.
func (f *FakeExecutor) mergeEdge(e FakeEdge) {
	for i, existing := range f.Edges[e.Type] {
		if existing.FromQN == e.FromQN && existing.ToQN == e.ToQN {
			f.Edges[e.Type][i] = e
			return
		}
	}
	f.Edges[e.Type] = append(f.Edges[e.Type], e)
}

// lookupByQN scans every label's node map for a matching qualified_name, for
// callers that need to discover a node's label before running a
// label-scoped traversal. Caller must hold f.mu.
func (f *FakeExecutor) lookupByQN(qn string) []Row {
	for label, nodes := range f.Nodes {
		if row, ok := nodes[qn]; ok {
			out := Row{"label": label, "qualified_name": qn}
			for k, v := range row {
				out[k] = v
			}
			return []Row{out}
		}
	}
	return nil
}

// runTraversal performs a breadth-first walk over the in-memory edge set,
// honoring the same (direction, relationship-type-list, max-depth)
// parameters the query package's variable-length-path Cypher encodes, and
// returns one row per reached node with its minimum hop distance — modeling
// the dedup-by-min-depth rule the query tools require, plus whether the
// edge(s) on the shortest path carry an "ambiguous" property, mirroring the
// real Cypher's `any(r IN relationships(p) WHERE r.ambiguous = true)`. Caller
// must hold f.mu.
func (f *FakeExecutor) runTraversal(params map[string]any) []Row {
	startLabel, _ := params["__trav_start_label"].(string)
	startQN, _ := params["__trav_start_qn"].(string)
	relTypes, _ := params["__trav_rel_types"].([]string)
	direction, _ := params["__trav_direction"].(string)
	maxDepth, _ := params["__trav_max_depth"].(int)
	if maxDepth <= 0 {
		maxDepth = 1
	}

	type item struct {
		label, qn string
		depth     int
		ambiguous bool
	}
	key := func(label, qn string) string { return label + "|" + qn }

	best := map[string]int{}
	bestLabel := map[string]string{}
	bestQN := map[string]string{}
	bestAmbiguous := map[string]bool{}
	visited := map[string]bool{key(startLabel, startQN): true}
	queue := []item{{startLabel, startQN, 0, false}}

	type traveledEdge struct{ fromLabel, fromQN, toLabel, toQN, relType string }
	var edgeSeen = map[string]bool{}
	var edges []traveledEdge

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, relType := range relTypes {
			for _, e := range f.Edges[relType] {
				var nextLabel, nextQN string
				var match, forward bool
				if direction != "in" && e.FromLabel == cur.label && e.FromQN == cur.qn {
					nextLabel, nextQN, match, forward = e.ToLabel, e.ToQN, true, true
				}
				if !match && direction != "out" && e.ToLabel == cur.label && e.ToQN == cur.qn {
					nextLabel, nextQN, match, forward = e.FromLabel, e.FromQN, true, false
				}
				if !match {
					continue
				}
				k := key(nextLabel, nextQN)
				ambiguous, _ := e.Props["ambiguous"].(bool)
				pathAmbiguous := cur.ambiguous || ambiguous
				if d, ok := best[k]; !ok || cur.depth+1 < d {
					best[k] = cur.depth + 1
					bestLabel[k] = nextLabel
					bestQN[k] = nextQN
					bestAmbiguous[k] = pathAmbiguous
				}
				te := traveledEdge{relType: relType}
				if forward {
					te.fromLabel, te.fromQN, te.toLabel, te.toQN = cur.label, cur.qn, nextLabel, nextQN
				} else {
					te.fromLabel, te.fromQN, te.toLabel, te.toQN = nextLabel, nextQN, cur.label, cur.qn
				}
				ek := te.fromQN + "|" + te.relType + "|" + te.toQN
				if !edgeSeen[ek] {
					edgeSeen[ek] = true
					edges = append(edges, te)
				}
				if !visited[k] {
					visited[k] = true
					queue = append(queue, item{nextLabel, nextQN, cur.depth + 1, pathAmbiguous})
				}
			}
		}
	}

	if wantEdges, _ := params["__trav_want_edges"].(bool); wantEdges {
		rows := make([]Row, 0, len(edges))
		for _, e := range edges {
			rows = append(rows, Row{
				"from_qn": e.fromQN, "from_label": e.fromLabel,
				"to_qn": e.toQN, "to_label": e.toLabel,
				"type": e.relType,
			})
		}
		return rows
	}

	rows := make([]Row, 0, len(best))
	for k, depth := range best {
		rows = append(rows, Row{
			"label": bestLabel[k], "qualified_name": bestQN[k], "depth": depth,
			"ambiguous": bestAmbiguous[k],
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		di, dj := rows[i]["depth"].(int), rows[j]["depth"].(int)
		if di != dj {
			return di < dj
		}
		return strings.Compare(rows[i]["qualified_name"].(string), rows[j]["qualified_name"].(string)) < 0
	})
	return rows
}

// SeedNode inserts a node directly, bypassing Run, for test fixtures.
func (f *FakeExecutor) SeedNode(label, qualifiedName string, props map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Nodes[label] == nil {
		f.Nodes[label] = make(map[string]Row)
	}
	row := Row{}
	for k, v := range props {
		row[k] = v
	}
	row["qualified_name"] = qualifiedName
	f.Nodes[label][qualifiedName] = row
}

// SeedEdge inserts an edge directly, bypassing Run, for test fixtures.
func (f *FakeExecutor) SeedEdge(fromLabel, fromQN, relType, toLabel, toQN string, props map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mergeEdge(FakeEdge{
		FromLabel: fromLabel, FromQN: fromQN,
		ToLabel: toLabel, ToQN: toQN,
		Type: relType, Props: props,
	})
}
