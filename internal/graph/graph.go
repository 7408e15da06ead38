// Package graph implements the batched, idempotent writer and read path for
// the code knowledge graph, speaking the Memgraph bolt wire protocol via the
// neo4j-go-driver client.
package graph

import (
	"fmt"
	"regexp"
)

// NodeLabels enumerates the node labels the writer knows how to constrain.
// Order matters only for readability; constraint creation is idempotent.
var NodeLabels = []string{
	"Project", "Package", "Folder", "File", "Module",
	"Class", "Interface", "Function", "Method", "ExternalPackage",
}

var databaseNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateDatabaseName checks a Memgraph database name against the safe
// character set. An empty name is valid and means "no database switching".
func ValidateDatabaseName(name string) error {
	if name == "" {
		return nil
	}
	if !databaseNamePattern.MatchString(name) {
		return fmt.Errorf("graph: invalid database name %q: must match %s", name, databaseNamePattern.String())
	}
	return nil
}

// Config holds connection parameters for a Graph Writer.
type Config struct {
	Host             string
	Port             int
	Database         string // project-scoped database name; empty disables USE DATABASE
	Username         string
	Password         string
	BatchSize        int
	ConnectTimeoutMs int
}

// Validate checks the configuration surface per the enumerated rules: host
// and port required, batch size >= 1, database name restricted to a safe
// character set.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("graph: host is required")
	}
	if c.Port <= 0 {
		return fmt.Errorf("graph: port must be positive, got %d", c.Port)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("graph: batch_size must be >= 1, got %d", c.BatchSize)
	}
	return ValidateDatabaseName(c.Database)
}

func (c Config) boltURI() string {
	return fmt.Sprintf("bolt://%s:%d", c.Host, c.Port)
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 1000
	}
	if c.ConnectTimeoutMs <= 0 {
		c.ConnectTimeoutMs = 5000
	}
	return c
}

// NodeRef identifies a node by its unique (project, qualified_name) key for
// use as an edge endpoint.
type NodeRef struct {
	Label          string
	QualifiedName  string
}
