// Package main implements cgraph, the thin operator CLI around the code
// knowledge graph: ingest a repository, run a structural query tool, or
// wipe a project's database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codegraph-io/codegraph/internal/graph"
	"github.com/codegraph-io/codegraph/internal/ingest"
	"github.com/codegraph-io/codegraph/internal/query"
	"github.com/codegraph-io/codegraph/internal/transport"
)

var version = "dev"

// graphFlags holds the connection surface shared by every subcommand that
// touches Memgraph, mirroring graph.Config's fields one-to-one.
type graphFlags struct {
	host      string
	port      int
	database  string
	username  string
	password  string
	batchSize int
}

func (g graphFlags) toConfig() graph.Config {
	return graph.Config{
		Host:      g.host,
		Port:      g.port,
		Database:  g.database,
		Username:  g.username,
		Password:  g.password,
		BatchSize: g.batchSize,
	}
}

func main() {
	var gf graphFlags

	root := &cobra.Command{
		Use:     "cgraph",
		Short:   "Operate the code knowledge graph: ingest, query, clean.",
		Version: version,
	}
	root.PersistentFlags().StringVar(&gf.host, "host", "127.0.0.1", "Memgraph host")
	root.PersistentFlags().IntVar(&gf.port, "port", 7687, "Memgraph bolt port")
	root.PersistentFlags().StringVar(&gf.database, "database", "", "Memgraph database name (project-scoped; empty disables USE DATABASE)")
	root.PersistentFlags().StringVar(&gf.username, "username", "", "Memgraph username")
	root.PersistentFlags().StringVar(&gf.password, "password", "", "Memgraph password")
	root.PersistentFlags().IntVar(&gf.batchSize, "batch-size", 1000, "Writer flush batch size")
	root.SetVersionTemplate("cgraph version {{.Version}}\n")

	root.AddCommand(newIngestCmd(&gf))
	root.AddCommand(newQueryCmd(&gf))
	root.AddCommand(newCleanCmd(&gf))
	root.AddCommand(newServeCmd(&gf))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newIngestCmd(gf *graphFlags) *cobra.Command {
	var repoPath, projectName string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run the two-pass ingester against a repository.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), gf.toConfig(), ingest.Options{
				RepoPath:    repoPath,
				ProjectName: projectName,
			})
		},
	}
	cmd.Flags().StringVar(&repoPath, "repo-path", "", "Path to the repository to ingest (required)")
	cmd.Flags().StringVar(&projectName, "project", "", "Project name the graph is scoped under (required)")
	cmd.MarkFlagRequired("repo-path")
	cmd.MarkFlagRequired("project")
	return cmd
}

func runIngest(ctx context.Context, cfg graph.Config, opts ingest.Options) error {
	w, err := graph.Connect(ctx, cfg, opts.ProjectName)
	if err != nil {
		return fmt.Errorf("cgraph: connecting to graph: %w", err)
	}
	defer w.Close(ctx)

	start := time.Now()
	stats, err := ingest.New(w).Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("cgraph: ingest run: %w", err)
	}

	slog.Info("ingest.complete",
		"project", opts.ProjectName,
		"files_discovered", stats.FilesDiscovered,
		"files_parsed", stats.FilesParsed,
		"files_skipped", stats.FilesSkipped,
		"nodes_written", stats.NodesWritten,
		"edges_written", stats.EdgesWritten,
		"elapsed", time.Since(start),
	)
	color.New(color.FgGreen).Printf("ingested %s: ", opts.ProjectName)
	fmt.Printf("%d files parsed, %d skipped, %d nodes, %d edges (%s)\n",
		stats.FilesParsed, stats.FilesSkipped, stats.NodesWritten, stats.EdgesWritten, time.Since(start).Round(time.Millisecond))
	for _, d := range stats.Diagnostics {
		color.New(color.FgYellow).Fprintf(os.Stderr, "warn: %s: %s\n", d.Path, d.Err)
	}
	return nil
}

func newQueryCmd(gf *graphFlags) *cobra.Command {
	var project string
	var raw bool
	var format string

	cmd := &cobra.Command{
		Use:   "query <tool> [json-args]",
		Short: "Invoke one of the six structural tools or ad_hoc against a project's graph.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolName := args[0]
			var toolArgs map[string]any
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
					return fmt.Errorf("cgraph: parsing json-args: %w", err)
				}
			}
			return runQuery(cmd.Context(), gf.toConfig(), project, toolName, toolArgs, raw, format)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project name the graph is scoped under (required)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the full envelope instead of just the result data")
	cmd.Flags().StringVar(&format, "format", "json", "Output encoding: json or yaml")
	cmd.MarkFlagRequired("project")
	return cmd
}

func encode(v any, format string) (string, error) {
	switch format {
	case "yaml":
		b, err := yaml.Marshal(v)
		return string(b), err
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		return string(b), err
	}
}

func runQuery(ctx context.Context, cfg graph.Config, project, toolName string, args map[string]any, raw bool, format string) error {
	if format != "json" && format != "yaml" {
		return fmt.Errorf("cgraph: --format must be json or yaml, got %q", format)
	}

	w, err := graph.Connect(ctx, cfg, project)
	if err != nil {
		return fmt.Errorf("cgraph: connecting to graph: %w", err)
	}
	defer w.Close(ctx)

	reg := query.NewRegistry(w)
	if toolName == "--help" || toolName == "-h" {
		fmt.Fprintf(os.Stderr, "Available tools:\n  %s\n", strings.Join(reg.ToolNames(), "\n  "))
		return nil
	}

	env := reg.Call(ctx, project, "", toolName, args)

	if raw {
		out, err := encode(env, format)
		if err != nil {
			return fmt.Errorf("cgraph: encoding envelope: %w", err)
		}
		fmt.Println(out)
		if !env.Success {
			os.Exit(1)
		}
		return nil
	}

	if !env.Success {
		color.New(color.FgRed).Fprintf(os.Stderr, "error [%s]: %s\n", env.Code, env.Error)
		os.Exit(1)
	}
	out, err := encode(env.Data, format)
	if err != nil {
		return fmt.Errorf("cgraph: encoding result: %w", err)
	}
	fmt.Println(out)
	if truncated, _ := env.Meta["truncated"].(bool); truncated {
		color.New(color.FgYellow).Fprintf(os.Stderr, "note: result truncated (%v of %v shown) — %v\n",
			env.Meta["shown_count"], env.Meta["total_count"], env.Meta["hint"])
	}
	return nil
}

func newCleanCmd(gf *graphFlags) *cobra.Command {
	var project string
	var yes bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Detach-delete a project's Project node and every node it contains or defines.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("cgraph: refusing to clean %q without --yes", project)
			}
			return runClean(cmd.Context(), gf.toConfig(), project)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project name the graph is scoped under (required)")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the destructive wipe")
	cmd.MarkFlagRequired("project")
	return cmd
}

func runClean(ctx context.Context, cfg graph.Config, project string) error {
	w, err := graph.Connect(ctx, cfg, project)
	if err != nil {
		return fmt.Errorf("cgraph: connecting to graph: %w", err)
	}
	defer w.Close(ctx)

	if err := w.Clean(ctx); err != nil {
		return fmt.Errorf("cgraph: clean: %w", err)
	}
	color.New(color.FgGreen).Printf("cleaned project %q\n", project)
	return nil
}

func newServeCmd(gf *graphFlags) *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the six structural tools plus ad_hoc over MCP stdio for a single project.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), gf.toConfig(), project)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project name the graph is scoped under (required)")
	cmd.MarkFlagRequired("project")
	return cmd
}

func runServe(ctx context.Context, cfg graph.Config, project string) error {
	w, err := graph.Connect(ctx, cfg, project)
	if err != nil {
		return fmt.Errorf("cgraph: connecting to graph: %w", err)
	}
	defer w.Close(ctx)

	reg := query.NewRegistry(w)
	srv := transport.NewServer(reg, project)
	slog.Info("serve.start", "project", project, "tools", reg.ToolNames())
	return srv.Run(ctx)
}
