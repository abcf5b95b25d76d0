// ABOUTME: MCP server setup for the gym tracker.
// ABOUTME: Wraps the MCP server around the local-first service and, optionally, the sync engine.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/gymtracker/internal/service"
	gymsync "github.com/harperreed/gymtracker/internal/sync"
)

// Syncer is the slice of the sync engine the tools expose.
type Syncer interface {
	SyncNow(ctx context.Context) (*gymsync.Result, error)
	RefreshStatus(ctx context.Context) gymsync.Status
}

// Server wraps the MCP server with service access.
type Server struct {
	mcpServer *mcp.Server
	svc       *service.Service
	syncer    Syncer
}

// NewServer creates a new MCP server. syncer may be nil when no server is configured.
func NewServer(svc *service.Service, syncer Syncer) (*Server, error) {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "gymtrack",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		svc:       svc,
		syncer:    syncer,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	defer s.svc.Flush()
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
