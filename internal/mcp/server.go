package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/devcompass/internal/api"
	"github.com/ziadkadry99/devcompass/internal/job"
	"github.com/ziadkadry99/devcompass/internal/session"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes the DevCompass repository tools.
type Server struct {
	client *api.Client
	gate   *session.Gate
	poller *job.Poller
	mcp    *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(client *api.Client, gate *session.Gate, poller *job.Poller) *Server {
	s := &Server{
		client: client,
		gate:   gate,
		poller: poller,
	}

	s.mcp = server.NewMCPServer(
		"devcompass",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(analyzeRepositoryTool, s.handleAnalyzeRepository)
	s.mcp.AddTool(listRepositoriesTool, s.handleListRepositories)
	s.mcp.AddTool(getRepositoryTool, s.handleGetRepository)
	s.mcp.AddTool(getDiagramTool, s.handleGetDiagram)
	s.mcp.AddTool(askRepositoryTool, s.handleAskRepository)
	s.mcp.AddTool(deleteRepositoryTool, s.handleDeleteRepository)
	s.mcp.AddTool(sessionTool, s.handleSession)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
