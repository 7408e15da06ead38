package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v6/neo4j"
)

// Row is a single result row keyed by column name, matching the protocol's
// "ordered column->value maps" read contract.
type Row map[string]any

// QueryExecutor runs a single Cypher statement against a graph store and
// returns its rows. Production code implements it against a live Memgraph
// connection; tests implement it in-process for determinism.
type QueryExecutor interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]Row, error)
	Close(ctx context.Context) error
}

// driverExecutor adapts the neo4j-go-driver client to QueryExecutor, scoping
// every query to a named database when one is configured.
type driverExecutor struct {
	driver   neo4j.DriverWithContext
	database string
}

func newDriverExecutor(ctx context.Context, cfg Config) (*driverExecutor, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.boltURI(), auth)
	if err != nil {
		return nil, fmt.Errorf("graph: create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graph: verify connectivity: %w", err)
	}

	e := &driverExecutor{driver: driver, database: cfg.Database}
	if cfg.Database != "" {
		if _, err := e.Run(ctx, fmt.Sprintf("USE DATABASE %s", cfg.Database), nil); err != nil {
			_ = driver.Close(ctx)
			return nil, fmt.Errorf("graph: switch to database %q: %w", cfg.Database, err)
		}
	}
	return e, nil
}

func (e *driverExecutor) Run(ctx context.Context, cypher string, params map[string]any) ([]Row, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if e.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(e.database))
	}

	result, err := neo4j.ExecuteQuery(ctx, e.driver, cypher, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(result.Records))
	for _, rec := range result.Records {
		row := make(Row, len(rec.Keys))
		for _, key := range rec.Keys {
			v, _, _ := rec.Get(key)
			row[key] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (e *driverExecutor) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}
