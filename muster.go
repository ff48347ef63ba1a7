package muster

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/muster/internal/logging"
	"github.com/aretw0/muster/internal/runtime"
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/nodes"
	"github.com/aretw0/muster/pkg/registry"
)

// Engine is the high-level entry point for the Muster library.
// It binds a graph root to a runtime and exposes subscription, resolution and
// event APIs over it.
type Engine struct {
	runtime  *runtime.Runtime
	registry *registry.Registry
	hooks    domain.Hooks
	logger   *slog.Logger
	debug    bool
	maxDepth int
	root     *domain.GraphNode
	Name     string

	mu     sync.Mutex
	subs   map[uint64]func()
	nextID uint64
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithHooks registers observability hooks.
func WithHooks(hooks domain.Hooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithDebug makes circular reference errors report the full resolution chain.
func WithDebug(debug bool) Option {
	return func(e *Engine) {
		e.debug = debug
	}
}

// WithMaxDepth bounds the recursion of a single resolution (default 256).
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// WithRegistry replaces the default registry, which holds the built-in node catalogue.
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithName labels the engine; the name is attached to every log line.
func WithName(name string) Option {
	return func(e *Engine) {
		e.Name = name
	}
}

// New creates an engine serving the graph rooted at root.
func New(root *domain.Definition, opts ...Option) (*Engine, error) {
	if root == nil {
		return nil, fmt.Errorf("root definition is required")
	}
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.registry == nil {
		eng.registry = registry.NewRegistry()
		if err := nodes.Register(eng.registry); err != nil {
			return nil, fmt.Errorf("failed to register node catalogue: %w", err)
		}
	}

	// Ensure logger is initialized (so we don't pass nil to runtime, which would overwrite its default)
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("graph", eng.Name)
	}

	eng.runtime = runtime.New(
		runtime.WithLogger(eng.logger),
		runtime.WithHooks(eng.hooks),
		runtime.WithDebug(eng.debug),
		runtime.WithMaxDepth(eng.maxDepth),
	)
	_, eng.root = domain.NewRootContext(root, eng.runtime.RootScope(), nil)
	return eng, nil
}

// Root returns the materialized graph root.
func (e *Engine) Root() *domain.GraphNode {
	return e.root
}

// Node materializes def in the root scope and context, so root() and relative
// references inside it resolve against the graph root.
func (e *Engine) Node(def *domain.Definition) *domain.GraphNode {
	return e.root.Derive(def)
}

// Registry returns the node type registry used to decode definitions.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// Scope returns the ID of the root scope.
func (e *Engine) Scope() domain.ScopeID {
	return e.runtime.RootScope()
}

// Subscribe resolves target and calls fn with the result, then again with every
// distinct result that follows. Results may be pending or error nodes. fn runs
// outside the runtime loop and may call back into the engine.
func (e *Engine) Subscribe(target *domain.Definition, fn func(*domain.Definition)) (unsubscribe func()) {
	return e.SubscribeNode(e.Node(target), fn)
}

// SubscribeNode is like Subscribe for an already materialized node.
func (e *Engine) SubscribeNode(node *domain.GraphNode, fn func(*domain.Definition)) (unsubscribe func()) {
	stop := e.runtime.Subscribe(node, func(result *domain.GraphNode) {
		fn(result.Definition)
	})

	e.mu.Lock()
	if e.subs == nil {
		e.subs = make(map[uint64]func())
	}
	e.nextID++
	id := e.nextID
	var once sync.Once
	unsubscribe = func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
			stop()
		})
	}
	e.subs[id] = unsubscribe
	e.mu.Unlock()
	return unsubscribe
}

// Resolve returns the first settled result of target. An error node is
// returned along with the error it carries.
func (e *Engine) Resolve(ctx context.Context, target *domain.Definition) (*domain.Definition, error) {
	return e.ResolveNode(ctx, e.Node(target))
}

// ResolveNode is like Resolve for an already materialized node.
func (e *Engine) ResolveNode(ctx context.Context, node *domain.GraphNode) (*domain.Definition, error) {
	result, err := e.runtime.Resolve(ctx, node)
	if err != nil {
		return nil, err
	}
	if err := domain.ErrorOf(result.Definition); err != nil {
		return result.Definition, err
	}
	return result.Definition, nil
}

// Invalidate forces every cached operation of target to recompute.
func (e *Engine) Invalidate(target *domain.Definition) {
	e.runtime.Invalidate(e.Node(target))
}

// Dispatch sends ev through the root scope's event bus.
func (e *Engine) Dispatch(ev domain.Event) {
	e.runtime.Dispatch(e.Scope(), ev)
}

// DispatchTo sends ev through the event bus of scope.
func (e *Engine) DispatchTo(scope domain.ScopeID, ev domain.Event) {
	e.runtime.Dispatch(scope, ev)
}

// OnEvent listens to events dispatched into the root scope or raised by
// dispatch nodes evaluated in it.
func (e *Engine) OnEvent(fn func(domain.Event)) (remove func()) {
	return e.runtime.OnEvent(e.Scope(), fn)
}

// CreateScope opens a child scope of the root scope.
func (e *Engine) CreateScope(remap domain.EventRemap) domain.ScopeID {
	return e.runtime.CreateScope(e.Scope(), remap)
}

// DisposeScope resets the state held in scope and its children.
func (e *Engine) DisposeScope(scope domain.ScopeID) {
	e.runtime.Dispose(scope)
}

// Dispose resets every stateful node to its construction-time value.
func (e *Engine) Dispose() {
	e.runtime.Dispose(e.Scope())
}

// OnDispose registers fn to run after every Dispose.
func (e *Engine) OnDispose(fn func()) {
	e.runtime.OnDispose(e.Scope(), fn)
}

// Stats reports the size of the runtime cache.
type Stats = runtime.Stats

// Stats returns a snapshot of the runtime cache size.
func (e *Engine) Stats() Stats {
	return e.runtime.Stats()
}

// Close cancels every subscription made through the engine and disposes the
// root scope. The engine stays usable; Close only drops what it holds.
func (e *Engine) Close() error {
	e.mu.Lock()
	subs := make([]func(), 0, len(e.subs))
	for _, unsubscribe := range e.subs {
		subs = append(subs, unsubscribe)
	}
	e.mu.Unlock()

	for _, unsubscribe := range subs {
		unsubscribe()
	}
	e.runtime.Close(e.Scope())
	return nil
}
