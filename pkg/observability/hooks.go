package observability

import (
	"log/slog"
	"time"

	"github.com/aretw0/muster/pkg/domain"
)

// Combine merges several hook sets into one. Each callback runs the non-nil
// callbacks of every set, in argument order.
func Combine(sets ...domain.Hooks) domain.Hooks {
	var out domain.Hooks
	for _, h := range sets {
		h := h
		if h.OnEvaluate != nil {
			prev := out.OnEvaluate
			out.OnEvaluate = func(node *domain.GraphNode, op *domain.Operation, elapsed time.Duration) {
				if prev != nil {
					prev(node, op, elapsed)
				}
				h.OnEvaluate(node, op, elapsed)
			}
		}
		if h.OnCacheHit != nil {
			prev := out.OnCacheHit
			out.OnCacheHit = func(node *domain.GraphNode, op *domain.Operation) {
				if prev != nil {
					prev(node, op)
				}
				h.OnCacheHit(node, op)
			}
		}
		if h.OnSubscribe != nil {
			prev := out.OnSubscribe
			out.OnSubscribe = func(node *domain.GraphNode, op *domain.Operation) {
				if prev != nil {
					prev(node, op)
				}
				h.OnSubscribe(node, op)
			}
		}
		if h.OnUnsubscribe != nil {
			prev := out.OnUnsubscribe
			out.OnUnsubscribe = func(node *domain.GraphNode, op *domain.Operation) {
				if prev != nil {
					prev(node, op)
				}
				h.OnUnsubscribe(node, op)
			}
		}
		if h.OnEmit != nil {
			prev := out.OnEmit
			out.OnEmit = func(node *domain.GraphNode, result *domain.Definition) {
				if prev != nil {
					prev(node, result)
				}
				h.OnEmit(node, result)
			}
		}
		if h.OnError != nil {
			prev := out.OnError
			out.OnError = func(node *domain.GraphNode, op *domain.Operation, err *domain.Error) {
				if prev != nil {
					prev(node, op, err)
				}
				h.OnError(node, op, err)
			}
		}
		if h.OnDispatch != nil {
			prev := out.OnDispatch
			out.OnDispatch = func(scope domain.ScopeID, ev domain.Event) {
				if prev != nil {
					prev(scope, ev)
				}
				h.OnDispatch(scope, ev)
			}
		}
	}
	return out
}

// LogHooks logs evaluations and subscriptions at Debug and error results at
// Warn.
func LogHooks(logger *slog.Logger) domain.Hooks {
	return domain.Hooks{
		OnEvaluate: func(node *domain.GraphNode, op *domain.Operation, elapsed time.Duration) {
			logger.Debug("evaluate", "node", node.String(), "operation", op.String(), "elapsed", elapsed)
		},
		OnSubscribe: func(node *domain.GraphNode, op *domain.Operation) {
			logger.Debug("subscribe", "node", node.String(), "operation", op.Name())
		},
		OnUnsubscribe: func(node *domain.GraphNode, op *domain.Operation) {
			logger.Debug("unsubscribe", "node", node.String(), "operation", op.Name())
		},
		OnError: func(node *domain.GraphNode, op *domain.Operation, err *domain.Error) {
			logger.Warn("node failed",
				"node", node.String(),
				"operation", op.Name(),
				"code", err.Code,
				"path", err.Path,
				"error", err.Message,
			)
		},
		OnDispatch: func(scope domain.ScopeID, ev domain.Event) {
			logger.Debug("dispatch", "scope", uint64(scope), "event", ev.Type)
		},
	}
}
