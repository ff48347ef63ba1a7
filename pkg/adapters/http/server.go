// Package http serves a muster graph over HTTP: single-shot queries on POST /
// and streamed subscriptions over a WebSocket on /ws.
package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/aretw0/muster/internal/logging"
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/nodes"
	"github.com/aretw0/muster/pkg/registry"
	"github.com/aretw0/muster/pkg/schema"
	"github.com/aretw0/muster/pkg/wire"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Engine defines the part of the muster engine served over HTTP.
type Engine interface {
	Node(def *domain.Definition) *domain.GraphNode
	ResolveNode(ctx context.Context, node *domain.GraphNode) (*domain.Definition, error)
	SubscribeNode(node *domain.GraphNode, fn func(*domain.Definition)) (unsubscribe func())
	Registry() *registry.Registry
}

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxBytes = 1 << 20
	// defaultSendBuffer is how many results a WebSocket client may lag behind
	// before it is disconnected.
	defaultSendBuffer = 64
)

// Server exposes an Engine over HTTP.
type Server struct {
	Engine   Engine
	root     []string
	timeout  time.Duration
	maxBytes int64
	sendBuf  int
	metrics  http.Handler
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// Option configures the Server.
type Option func(*Server)

// WithRoot serves the subtree at path instead of the whole graph. Queries see
// it as their root.
func WithRoot(path ...string) Option {
	return func(s *Server) {
		s.root = path
	}
}

// WithTimeout bounds how long a single-shot query may stay pending.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// WithMaxBytes limits the size of a request body.
func WithMaxBytes(n int64) Option {
	return func(s *Server) {
		s.maxBytes = n
	}
}

// WithSendBuffer sets how many undelivered results a WebSocket client may
// accumulate. A client falling further behind is disconnected.
func WithSendBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.sendBuf = n
		}
	}
}

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Server for engine.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		Engine:   engine,
		timeout:  defaultTimeout,
		maxBytes: defaultMaxBytes,
		sendBuf:  defaultSendBuffer,
		logger:   logging.NewNop(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	return NewServer(engine, opts...).Routes()
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", s.Query)
	r.Get("/ws", s.Subscribe)
	r.Get("/health", s.GetHealth)
	r.Get("/types", s.GetTypes)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Query handles POST /: the body is a serialized node, the response its first
// settled result.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBytes))
	if err != nil {
		s.logger.Warn("Query: invalid request body", "error", err)
		s.writeResult(w, http.StatusBadRequest, domain.ErrorNode(domain.NewError("Invalid request body: %v", err)))
		return
	}
	query, err := wire.Deserialize(s.Engine.Registry(), body)
	if err != nil {
		s.logger.Warn("Query: invalid query", "error", err)
		s.writeResult(w, http.StatusBadRequest, domain.ErrorNode(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	result, err := s.Engine.ResolveNode(ctx, s.node(query))
	if result == nil {
		s.logger.Warn("Query: no settled result", "error", err)
		s.writeResult(w, http.StatusGatewayTimeout, domain.ErrorNode(domain.NewError("Query did not settle: %v", err)))
		return
	}
	s.writeResult(w, statusOf(result), result)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetTypes handles GET /types, listing the node types queries may use along
// with the property shape of each.
func (s *Server) GetTypes(w http.ResponseWriter, r *http.Request) {
	reg := s.Engine.Registry()
	names := reg.Names()
	sort.Strings(names)
	shapes := make(map[string]schema.Schema, len(names))
	for _, name := range names {
		if t, ok := reg.NodeType(name); ok {
			shapes[name] = t.Shape
		}
	}

	resp := struct {
		Types  []string                 `json:"types"`
		Shapes map[string]schema.Schema `json:"shapes"`
	}{names, shapes}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("GetTypes response encode failed", "error", err)
	}
}

// node materializes a query, rebinding root() to the served subtree.
func (s *Server) node(query *domain.Definition) *domain.GraphNode {
	if len(s.root) == 0 {
		return s.Engine.Node(query)
	}
	path := make([]any, len(s.root))
	for i, key := range s.root {
		path[i] = key
	}
	return s.Engine.Node(nodes.With(map[string]*domain.Definition{
		"root": nodes.Ref(path...),
	}, query))
}

// statusOf maps a result to its response status. Errors carrying a code are
// client errors; other error results are ordinary values.
func statusOf(result *domain.Definition) int {
	if e := domain.ErrorOf(result); e != nil && e.Code != "" {
		return http.StatusBadRequest
	}
	return http.StatusOK
}

func (s *Server) writeResult(w http.ResponseWriter, status int, result *domain.Definition) {
	data, err := wire.Serialize(result)
	if err != nil {
		s.logger.Error("Result serialization failed", "error", err)
		status = http.StatusInternalServerError
		data, _ = wire.Serialize(domain.ErrorNode(err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("Response write failed", "error", err)
	}
}
