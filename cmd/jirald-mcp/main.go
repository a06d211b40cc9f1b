// jirald-mcp serves the tracker's create operation as an MCP stdio server.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mba-tools/jirald/internal/adapter/jira"
	"github.com/mba-tools/jirald/internal/adapter/mcp"
	"github.com/mba-tools/jirald/internal/config"
	"github.com/mba-tools/jirald/internal/resilience"
)

const serverVersion = "1.0.0"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Stdout carries the MCP protocol, so logs go to stderr.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	cfg, err := config.LoadTracker()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	trackerClient := jira.NewClient(cfg.Jira.URL, cfg.Jira.Username, cfg.Jira.APIToken)
	trackerClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	srv := mcp.NewServer(
		mcp.ServerConfig{
			Name:       "jirald-mcp",
			Version:    serverVersion,
			ProjectKey: cfg.Jira.ProjectKey,
		},
		mcp.ServerDeps{Issues: trackerClient},
	)

	slog.Info("mcp server starting", "project_key", cfg.Jira.ProjectKey)
	return srv.ServeStdio()
}
