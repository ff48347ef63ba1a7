package domain

import "log/slog"

// Invocation is the port through which an operation handler talks to the runtime.
//
// Methods reading or writing state must be called from Run, OnSubscribe,
// OnUnsubscribe or a function passed to Defer. Defer and Invalidate are safe to
// call from any goroutine.
type Invocation interface {
	Node() *GraphNode
	Operation() *Operation
	// Dependencies returns the resolved dependencies, in declaration order.
	Dependencies() []*GraphNode
	// ContextDependencies returns the resolved context dependencies, in declaration order.
	ContextDependencies() []*GraphNode

	// State returns the node's state cell value. Calling it from Run makes the
	// result depend on the cell.
	State() any
	// SetState replaces the state. Values equal to the current state are ignored.
	SetState(v any)
	// UpdateState replaces the state with fn applied to the current state.
	UpdateState(fn func(any) any)

	// Data and SetData hold private data of the cache entry; it is discarded when
	// the entry is released or invalidated.
	Data() any
	SetData(v any)

	// Invalidate forces the entry to recompute.
	Invalidate()
	// Defer runs fn on the runtime loop.
	Defer(fn func())
	// Released reports whether the cache entry was released.
	Released() bool

	// CreateScope opens a child scope of the node's scope. It is closed when the
	// entry is released or recomputed.
	CreateScope(remap EventRemap) ScopeID
	// Dispatch posts an event into the node's scope.
	Dispatch(ev Event)

	Logger() *slog.Logger
}
