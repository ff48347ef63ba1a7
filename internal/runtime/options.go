package runtime

import (
	"log/slog"

	"github.com/aretw0/muster/pkg/domain"
)

// DefaultMaxDepth bounds the nesting of a single resolution request.
const DefaultMaxDepth = 256

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.Hooks) Option {
	return func(r *Runtime) {
		r.hooks = hooks
	}
}

// WithDebug makes circular reference and depth errors report every node visited
// from the request root instead of only the offending segment.
func WithDebug(debug bool) Option {
	return func(r *Runtime) {
		r.debug = debug
	}
}

// WithMaxDepth sets the recursion limit of a single resolution request.
func WithMaxDepth(depth int) Option {
	return func(r *Runtime) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}
