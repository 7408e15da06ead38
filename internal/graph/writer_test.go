package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Host: "localhost", Port: 7687, BatchSize: 1000, Database: "codegraph_demo"}, false},
		{"missing host", Config{Port: 7687, BatchSize: 1000}, true},
		{"bad batch size", Config{Host: "localhost", Port: 7687, BatchSize: 0}, true},
		{"bad database name", Config{Host: "localhost", Port: 7687, BatchSize: 1000, Database: "bad name!"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestWriterFlushOrdersNodesBeforeEdges(t *testing.T) {
	ctx := context.Background()
	fake := NewFakeExecutor()
	w := NewWriter(fake, Config{BatchSize: 1000}, "demo")

	require.NoError(t, w.UpsertNode(ctx, "Function", "demo.m.a", map[string]any{"name": "a"}))
	require.NoError(t, w.UpsertNode(ctx, "Function", "demo.m.b", map[string]any{"name": "b"}))
	require.NoError(t, w.UpsertEdge(ctx, NodeRef{Label: "Function", QualifiedName: "demo.m.a"}, "CALLS",
		NodeRef{Label: "Function", QualifiedName: "demo.m.b"}, nil))
	require.NoError(t, w.FlushAll(ctx))

	require.Len(t, fake.Calls, 2)
	require.Contains(t, fake.Calls[0].Query, "MERGE (n:Function")
	require.Contains(t, fake.Calls[1].Query, "MERGE (a)-[r:CALLS]->(b)")
	require.Len(t, fake.Edges["CALLS"], 1)
}

func TestWriterAutoFlushesOnBatchSize(t *testing.T) {
	ctx := context.Background()
	fake := NewFakeExecutor()
	w := NewWriter(fake, Config{BatchSize: 2}, "demo")

	require.NoError(t, w.UpsertNode(ctx, "Function", "demo.m.a", nil))
	require.Empty(t, fake.Calls)
	require.NoError(t, w.UpsertNode(ctx, "Function", "demo.m.b", nil))
	require.Len(t, fake.Calls, 1, "buffer should auto-flush once batch size is reached")
}

func TestValidateDatabaseName(t *testing.T) {
	require.NoError(t, ValidateDatabaseName(""))
	require.NoError(t, ValidateDatabaseName("codegraph_my-project_1"))
	require.Error(t, ValidateDatabaseName("has space"))
	require.Error(t, ValidateDatabaseName("semi;colon"))
}
