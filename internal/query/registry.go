package query

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"

	"github.com/codegraph-io/codegraph/internal/metrics"
)

// Argument structs the registry reflects into JSON Schema via
// invopop/jsonschema, one per tool, so the published schema and the
// args a handler actually reads can never drift apart the way two
// independently hand-maintained copies can.
type callersArgs struct {
	QN           string `json:"qn" jsonschema:"required,description=Fully qualified name of the target symbol."`
	MaxDepth     int    `json:"max_depth,omitempty" jsonschema:"minimum=1,maximum=5,description=Maximum call-chain depth to traverse."`
	IncludePaths bool   `json:"include_paths,omitempty" jsonschema:"description=Also return the CALLS edges traversed, not just the reached nodes."`
}

type hierarchyArgs struct {
	QN        string `json:"qn" jsonschema:"required,description=Fully qualified name of the target class or interface."`
	Direction string `json:"direction,omitempty" jsonschema:"enum=up,enum=down,enum=both,description=Traversal direction."`
	MaxDepth  int    `json:"max_depth,omitempty" jsonschema:"minimum=1,maximum=10,description=Maximum inheritance depth to traverse."`
}

type dependenciesArgs struct {
	QN         string `json:"qn" jsonschema:"required,description=Fully qualified name of the target symbol."`
	Kind       string `json:"kind,omitempty" jsonschema:"enum=imports,enum=calls,enum=all,description=Which dependency edges to follow."`
	Transitive bool   `json:"transitive,omitempty" jsonschema:"description=Follow dependencies up to 3 hops instead of 1."`
}

type implementationsArgs struct {
	QN              string `json:"qn" jsonschema:"required,description=Fully qualified name of the target interface or class."`
	IncludeIndirect bool   `json:"include_indirect,omitempty" jsonschema:"description=Include implementations reached transitively through the inheritance chain."`
}

type moduleExportsArgs struct {
	ModuleQN       string `json:"module_qn" jsonschema:"required,description=Fully qualified name of the module."`
	IncludePrivate bool   `json:"include_private,omitempty" jsonschema:"description=Include symbols whose name starts with an underscore."`
}

type callGraphArgs struct {
	EntryQN  string `json:"entry_qn" jsonschema:"required,description=Fully qualified name of the entry-point function or method."`
	MaxDepth int    `json:"max_depth,omitempty" jsonschema:"minimum=1,maximum=5,description=Maximum call depth to traverse."`
	MaxNodes int    `json:"max_nodes,omitempty" jsonschema:"minimum=1,maximum=100,description=Maximum number of nodes to return."`
}

type adHocArgs struct {
	Query  string         `json:"query" jsonschema:"required,description=A read-only Cypher query string."`
	Params map[string]any `json:"params,omitempty" jsonschema:"description=Primitive-valued bind parameters for the query."`
	Limit  int            `json:"limit,omitempty" jsonschema:"minimum=1,maximum=1000,description=Maximum rows to return."`
}

var schemaReflector = &jsonschema.Reflector{
	ExpandedStruct:            true,
	DoNotReference:            true,
	AllowAdditionalProperties: false,
}

// reflectSchema reflects a zero-value arg struct into the JSON-Schema the
// transport layer publishes and validates calls against.
func reflectSchema(args any) json.RawMessage {
	s := schemaReflector.Reflect(args)
	b, err := json.Marshal(s)
	if err != nil {
		// args is always a literal struct type defined in this file; a
		// marshal failure here would be a programming error.
		panic(err)
	}
	return b
}

// ToolDef describes one registered tool: the JSON-Schema a transport
// validates arguments against before dispatch, plus the timeout applied to
// its handler, per spec.md §5's "cooperative timeout (default 10s for
// ad-hoc, 5s for prebuilt)".
type ToolDef struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Timeout     time.Duration
	handler     handlerFunc
}

// Registry is the closed set of structural query tools plus the guarded
// ad-hoc tool, all sharing the envelope in the transport-facing contract.
// It is grounded on the teacher's Server.addTool/CallTool registration
// shape (internal/tools/tools.go), adapted to a fixed six-tool-plus-ad-hoc
// surface instead of an open MCP tool list.
type Registry struct {
	reader GraphReader
	tools  map[string]ToolDef
	order  []string
}

const (
	prebuiltTimeout = 5 * time.Second
	adHocTimeout    = 10 * time.Second
)

// NewRegistry builds the registry around a GraphReader (typically a
// *graph.Writer, whose Read method this interface mirrors).
func NewRegistry(reader GraphReader) *Registry {
	r := &Registry{reader: reader, tools: map[string]ToolDef{}}
	r.register(ToolDef{
		Name:        "callers",
		Description: "Find direct and transitive callers of a function or method.",
		InputSchema: reflectSchema(&callersArgs{}),
		Timeout:     prebuiltTimeout,
		handler: handleCallers,
	})
	r.register(ToolDef{
		Name:        "hierarchy",
		Description: "Walk the INHERITS graph above, below, or both directions from a class or interface.",
		InputSchema: reflectSchema(&hierarchyArgs{}),
		Timeout:     prebuiltTimeout,
		handler: handleHierarchy,
	})
	r.register(ToolDef{
		Name:        "dependencies",
		Description: "List a symbol's import and/or call dependencies, optionally transitively.",
		InputSchema: reflectSchema(&dependenciesArgs{}),
		Timeout:     prebuiltTimeout,
		handler: handleDependencies,
	})
	r.register(ToolDef{
		Name:        "implementations",
		Description: "Find classes implementing an interface or inheriting from a class, direct or indirect.",
		InputSchema: reflectSchema(&implementationsArgs{}),
		Timeout:     prebuiltTimeout,
		handler: handleImplementations,
	})
	r.register(ToolDef{
		Name:        "module_exports",
		Description: "List the top-level symbols a module defines.",
		InputSchema: reflectSchema(&moduleExportsArgs{}),
		Timeout:     prebuiltTimeout,
		handler: handleModuleExports,
	})
	r.register(ToolDef{
		Name:        "call_graph",
		Description: "Build the outbound call graph reachable from an entry point, bounded by depth and node count.",
		InputSchema: reflectSchema(&callGraphArgs{}),
		Timeout:     prebuiltTimeout,
		handler: handleCallGraph,
	})
	r.register(ToolDef{
		Name:        "ad_hoc",
		Description: "Execute a read-only, user-supplied Cypher query against the project's graph. Mutation keywords are rejected.",
		InputSchema: reflectSchema(&adHocArgs{}),
		Timeout:     adHocTimeout,
		handler: handleAdHoc,
	})
	return r
}

func (r *Registry) register(t ToolDef) {
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
}

// ToolNames returns the registered tool names in alphabetical order.
func (r *Registry) ToolNames() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// ToolDefs returns every registered tool's public schema, for a transport
// layer's tool-listing endpoint.
func (r *Registry) ToolDefs() []ToolDef {
	defs := make([]ToolDef, 0, len(r.order))
	for _, name := range r.ToolNames() {
		defs = append(defs, r.tools[name])
	}
	return defs
}

// Call dispatches a tool invocation by name and always returns a complete
// envelope — never a Go error — since the envelope itself is the error
// channel per the transport-facing contract.
func (r *Registry) Call(ctx context.Context, project, requestID, toolName string, args map[string]any) Envelope {
	if requestID == "" {
		requestID = uuid.NewString()
	}

	def, ok := r.tools[toolName]
	if !ok {
		return NewFailure(requestID, ErrToolNotFound, "no such tool: "+toolName, nil)
	}

	metrics.QueryToolInvocations.WithLabelValues(toolName).Inc()
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, def.Timeout)
	defer cancel()

	type outcome struct {
		data any
		meta map[string]any
		err  *toolErr
	}
	done := make(chan outcome, 1)
	go func() {
		data, meta, err := def.handler(callCtx, r.reader, project, args)
		done <- outcome{data, meta, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-callCtx.Done():
		code := ErrTimeout
		if toolName == "ad_hoc" {
			code = ErrQueryTimeout
		}
		metrics.QueryToolDuration.WithLabelValues(toolName).Observe(time.Since(start).Seconds())
		metrics.QueryToolErrors.WithLabelValues(toolName, string(code)).Inc()
		return NewFailure(requestID, code, "tool execution exceeded its deadline", nil)
	}

	elapsed := time.Since(start)
	metrics.QueryToolDuration.WithLabelValues(toolName).Observe(elapsed.Seconds())

	if out.err != nil {
		metrics.QueryToolErrors.WithLabelValues(toolName, string(out.err.Code)).Inc()
		meta := out.meta
		if meta == nil {
			meta = map[string]any{}
		}
		meta["execution_time_ms"] = elapsed.Milliseconds()
		return NewFailure(requestID, out.err.Code, out.err.Error(), meta)
	}

	meta := out.meta
	if meta == nil {
		meta = map[string]any{}
	}
	meta["execution_time_ms"] = elapsed.Milliseconds()
	return NewSuccess(requestID, out.data, meta)
}
