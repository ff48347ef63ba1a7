// Package mcp exposes a muster graph to Model Context Protocol clients: queries
// run as tools and the graph definition is published as a resource.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/muster"
	"github.com/aretw0/muster/internal/logging"
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/nodes"
	"github.com/aretw0/muster/pkg/registry"
	"github.com/aretw0/muster/pkg/wire"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// GraphURI is the resource holding the serialized graph definition.
const GraphURI = "muster://graph"

// Engine defines the part of the muster engine the MCP server uses.
type Engine interface {
	Resolve(ctx context.Context, target *domain.Definition) (*domain.Definition, error)
	Dispatch(ev domain.Event)
	Root() *domain.GraphNode
	Registry() *registry.Registry
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	timeout   time.Duration
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithTimeout bounds how long a tool call waits for a settled result.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		timeout:   30 * time.Second,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("muster-mcp", strings.TrimSpace(muster.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("resolve",
		mcp.WithDescription(`Resolve a query against the graph. The query is a JSON node tagged with "$type", e.g. {"$type":"ref","path":[{"$type":"value","value":"users"}]}.`),
		mcp.WithString("query", mcp.Required(), mcp.Description("Serialized query node")),
	), s.handleResolve)

	s.mcpServer.AddTool(mcp.NewTool("get",
		mcp.WithDescription("Read the value at a slash-separated path, e.g. users/alice/name."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path from the graph root")),
	), s.handleGet)

	s.mcpServer.AddTool(mcp.NewTool("set",
		mcp.WithDescription("Write a JSON value to the node at a slash-separated path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path from the graph root")),
		mcp.WithString("value", mcp.Required(), mcp.Description("JSON encoded value")),
	), s.handleSet)

	s.mcpServer.AddTool(mcp.NewTool("dispatch",
		mcp.WithDescription("Dispatch an event into the graph's root scope."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Event type, e.g. reset")),
		mcp.WithString("payload", mcp.Description("JSON encoded payload (optional)")),
	), s.handleDispatch)

	s.mcpServer.AddTool(mcp.NewTool("list_types",
		mcp.WithDescription("List the node types queries may use."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		names := s.engine.Registry().Names()
		sort.Strings(names)
		return mcp.NewToolResultText(strings.Join(names, "\n")), nil
	})
}

func (s *Server) handleResolve(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := wire.Deserialize(s.engine.Registry(), []byte(raw))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid query: %v", err)), nil
	}
	return s.resolve(ctx, query)
}

func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.resolve(ctx, nodes.Ref(splitPath(path)...))
}

func (s *Server) handleSet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := request.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid value: %v", err)), nil
	}
	return s.resolve(ctx, nodes.Set(nodes.Ref(splitPath(path)...), value))
}

func (s *Server) handleDispatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eventType, err := request.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ev := domain.Event{Type: eventType}
	if raw := request.GetString("payload", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &ev.Payload); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid payload: %v", err)), nil
		}
	}
	s.engine.Dispatch(ev)
	return mcp.NewToolResultText(fmt.Sprintf("dispatched %q", eventType)), nil
}

// resolve runs query and reports the serialized result. Error results are
// reported as tool errors carrying the serialized error node.
func (s *Server) resolve(ctx context.Context, query *domain.Definition) (*mcp.CallToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.engine.Resolve(ctx, query)
	if result == nil {
		s.logger.Warn("MCP resolve: no settled result", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("query did not settle: %v", err)), nil
	}
	data, serr := wire.Serialize(result)
	if serr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("result not serializable: %v", serr)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(string(data)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Graph Definition",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := wire.Serialize(s.engine.Root().Definition)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize graph: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GraphURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func splitPath(path string) []any {
	var out []any
	for _, key := range strings.Split(path, "/") {
		if key != "" {
			out = append(out, key)
		}
	}
	return out
}
