package transport

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-io/codegraph/internal/graph"
	"github.com/codegraph-io/codegraph/internal/query"
)

func newTestServer() *Server {
	fake := graph.NewFakeExecutor()
	fake.SeedNode("Function", "proj.a.main", nil)
	fake.SeedNode("Function", "proj.a.helper", nil)
	fake.SeedEdge("Function", "proj.a.main", "CALLS", "Function", "proj.a.helper", nil)

	w := graph.NewWriter(fake, graph.Config{BatchSize: 1000}, "proj")
	reg := query.NewRegistry(w)
	return NewServer(reg, "proj")
}

func callRequest(t *testing.T, args map[string]any) *mcp.CallToolRequest {
	t.Helper()
	b, err := json.Marshal(args)
	require.NoError(t, err)
	return &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: b},
	}
}

func TestServerCallReturnsEnvelopeAsTextContent(t *testing.T) {
	s := newTestServer()
	result, err := s.call(context.Background(), "callers", callRequest(t, map[string]any{"qn": "proj.a.helper"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)

	var env query.Envelope
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &env))
	require.True(t, env.Success)
}

func TestServerCallRejectsMalformedArguments(t *testing.T) {
	s := newTestServer()
	req := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(`not json`)}}
	result, err := s.call(context.Background(), "callers", req)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestNewServerBuildsMCPServer(t *testing.T) {
	s := newTestServer()
	require.NotNil(t, s.mcp)
}
