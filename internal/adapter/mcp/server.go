// Package mcp exposes the tracker's create operation as a Model Context
// Protocol tool over stdio, so MCP clients can file cards through the same
// tracker client the webhook pipeline uses.
package mcp

import (
	"context"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mba-tools/jirald/internal/port/tracker"
)

// IssueCreator is the slice of the tracker port the MCP surface needs.
type IssueCreator interface {
	CreateIssue(ctx context.Context, req tracker.CreateRequest) (*tracker.Issue, error)
}

// ServerConfig holds the MCP server identity and tracker settings.
type ServerConfig struct {
	Name       string
	Version    string
	ProjectKey string
}

// ServerDeps holds the server's dependencies.
type ServerDeps struct {
	Issues IssueCreator
}

// Server wraps an MCP server exposing the tracker tools.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
	tools     map[string]mcpserver.ServerTool
}

// NewServer creates the MCP server and registers its tools.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(true)),
		tools: make(map[string]mcpserver.ServerTool),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Tools returns the registered tools by name.
func (s *Server) Tools() map[string]mcpserver.ServerTool {
	return s.tools
}

// ServeStdio runs the server over stdin/stdout until the client disconnects.
// Logs must go to stderr while this runs; stdout carries the protocol.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcpServer)
}

func (s *Server) addTools(tools ...mcpserver.ServerTool) {
	for _, t := range tools {
		s.tools[t.Tool.Name] = t
	}
	s.mcpServer.AddTools(tools...)
}
