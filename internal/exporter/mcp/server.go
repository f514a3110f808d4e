// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sustainable-computing-io/anepower/internal/monitor"
	"github.com/sustainable-computing-io/anepower/internal/service"
	"github.com/sustainable-computing-io/anepower/internal/version"
)

type (
	Initializer       = service.Initializer
	Runner            = service.Runner
	PowerDataProvider = monitor.PowerDataProvider
	APIRegistry       = interface {
		Register(endpoint, summary, description string, handler http.Handler) error
	}
)

// Transports supported by the MCP server
const (
	TransportStdio      = "stdio"
	TransportSSE        = "sse"
	TransportStreamable = "streamable"
)

// DefaultPath is where the HTTP transports are mounted on the API server
const DefaultPath = "/mcp"

// Server answers Model Context Protocol tool calls about ANE power
type Server struct {
	logger      *slog.Logger
	monitor     PowerDataProvider
	server      *mcp.Server
	apiRegistry APIRegistry

	transport string
	httpPath  string
}

var (
	_ Initializer = (*Server)(nil)
	_ Runner      = (*Server)(nil)
)

// Option defines functional options for MCP server configuration
type Option func(*Server)

// WithLogger sets the logger of the server
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithHTTPTransport serves MCP on the API server at path using transport,
// which is either TransportSSE or TransportStreamable
func WithHTTPTransport(apiRegistry APIRegistry, transport, path string) Option {
	return func(s *Server) {
		s.apiRegistry = apiRegistry
		s.transport = transport
		s.httpPath = path
	}
}

// NewServer creates a new MCP server. It uses the stdio transport unless
// WithHTTPTransport is given.
func NewServer(pm PowerDataProvider, options ...Option) *Server {
	server := &Server{
		logger:    slog.Default(),
		monitor:   pm,
		transport: TransportStdio,
		httpPath:  DefaultPath,
	}
	for _, option := range options {
		option(server)
	}
	server.logger = server.logger.With("service", "mcp")

	server.server = mcp.NewServer(&mcp.Implementation{
		Name:    "anepower",
		Version: version.Info().Version,
	}, nil)
	server.registerTools()

	return server
}

func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_ane_power",
		Description: "Get the latest Apple Neural Engine power and energy reading",
	}, s.handleGetANEPower)
}

func (s *Server) Init() error {
	s.logger.Info("Initializing MCP server", "transport", s.transport, "path", s.httpPath)
	if s.transport == TransportStdio {
		return nil
	}

	if s.apiRegistry == nil {
		return fmt.Errorf("transport %s requires an API server", s.transport)
	}

	getServer := func(*http.Request) *mcp.Server { return s.server }

	var handler http.Handler
	switch s.transport {
	case TransportSSE:
		handler = mcp.NewSSEHandler(getServer)
	case TransportStreamable:
		handler = mcp.NewStreamableHTTPHandler(getServer, nil)
	default:
		return fmt.Errorf("unknown MCP transport: %s", s.transport)
	}

	return s.apiRegistry.Register(s.httpPath, "MCP Server",
		"Model Context Protocol server for querying Neural Engine power", handler)
}

func (s *Server) Name() string {
	return "mcp"
}

// Run serves stdio until ctx is done. HTTP transports are served by the API
// server, so Run only waits.
func (s *Server) Run(ctx context.Context) error {
	if s.transport != TransportStdio {
		s.logger.Info("MCP server running via HTTP transport", "path", s.httpPath)
		<-ctx.Done()
		return nil
	}

	s.logger.Info("MCP server starting with stdio transport")
	return s.server.Run(ctx, mcp.NewStdioTransport())
}
