package mcpadapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName = "policy-retrieval"
	Version    = "0.1.0"
)

type Server struct {
	ports  *Ports
	server *server.MCPServer
}

func NewServer(p *Ports) (*Server, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validate ports: %w", err)
	}

	s := &Server{
		ports:  p,
		server: server.NewMCPServer(serverName, Version, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s, nil
}

// Run serves JSON-RPC over stdin/stdout until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	return server.NewStdioServer(s.server).Listen(ctx, os.Stdin, os.Stdout)
}

// RunHTTP serves the streamable HTTP transport on addr.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
