// Package transport is the thin MCP stdio binding over the query registry.
// The wire protocol itself is out of scope; this package only maps each
// registered tool onto an mcp.Tool and forwards calls to query.Registry.Call,
// rendering its envelope as the tool result.
package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codegraph-io/codegraph/internal/query"
)

// Version is the server's MCP handshake version.
const Version = "0.1.0"

// Server wraps an mcp.Server bound to a single project's query registry.
type Server struct {
	mcp     *mcp.Server
	reg     *query.Registry
	project string
}

// NewServer builds an MCP server exposing every tool in reg as an mcp.Tool,
// scoped to a single project (the MCP session has no notion of switching
// projects mid-connection).
func NewServer(reg *query.Registry, project string) *Server {
	s := &Server{reg: reg, project: project}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "codegraph",
		Version: Version,
	}, nil)

	for _, def := range reg.ToolDefs() {
		def := def
		s.mcp.AddTool(&mcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return s.call(ctx, def.Name, req)
		})
	}
	return s
}

func (s *Server) call(ctx context.Context, name string, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	env := s.reg.Call(ctx, s.project, "", name, args)
	return jsonResult(env), nil
}

// Run serves the MCP protocol over stdio until ctx is cancelled or the
// transport closes.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}
