package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"binder/internal/config"
)

// Server hosts the binder MCP tool set over stdio.
type Server struct {
	server *server.MCPServer
}

// New builds the MCP server and registers the binder tools. Tools that read
// workbook state fall back to the workspace directory when the agent is not
// running; tools that mutate state require it.
func New(cfg *config.Config, version string) *Server {
	s := &Server{
		server: server.NewMCPServer("binder-mcp", version, server.WithToolCapabilities(true)),
	}
	s.server.AddTool(workbooksTool(), withRecovery(workbooksHandler(cfg)))
	s.server.AddTool(linksScanTool(), withRecovery(linksScanHandler(cfg)))
	s.server.AddTool(sessionSaveTool(), withRecovery(sessionSaveHandler(cfg)))
	s.server.AddTool(procsHealthTool(), withRecovery(procsHealthHandler(cfg)))
	return s
}

// Start serves MCP requests on stdin/stdout until the peer disconnects.
func (s *Server) Start() error {
	return server.ServeStdio(s.server)
}
