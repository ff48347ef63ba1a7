// Package remote proxies nodes of a graph served by another process. A proxy
// node stands for a path in the remote graph: reading it streams the remote
// value, and set or call operations are forwarded as one-shot queries.
package remote

import (
	"context"
	"fmt"

	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/nodes"
	"github.com/aretw0/muster/pkg/schema"
)

// Transport carries queries to a remote graph.
type Transport interface {
	// Subscribe streams the results of query to fn until cancel is called.
	// Transport failures arrive as error nodes.
	Subscribe(query *domain.Definition, fn func(*domain.Definition)) (cancel func())
	// Query returns the first settled result of query. An error node is
	// returned along with the error it carries.
	Query(ctx context.Context, query *domain.Definition) (*domain.Definition, error)
}

// ProxyType is a node standing for a path inside a remote graph.
var ProxyType = &domain.NodeType{
	Name: "remote",
	Shape: schema.Schema{
		"transport": schema.Custom("transport", checkTransport),
		"path":      schema.Slice(schema.String()),
	},
	Operations: map[string]*domain.OperationHandler{
		domain.OpEvaluate: {
			Run:           runEvaluate,
			OnUnsubscribe: stopStream,
		},
		domain.OpGetChild: {
			Run: func(inv domain.Invocation) (domain.Result, error) {
				def := inv.Node().Definition
				key := fmt.Sprint(inv.Operation().Key())
				return domain.Must(def.Type, domain.Properties{
					"transport": transportOf(def),
					"path":      append(pathOf(def), key),
				}), nil
			},
		},
		domain.OpSet: {
			Uncacheable: true,
			Run: func(inv domain.Invocation) (domain.Result, error) {
				return forward(inv, func(target *domain.Definition) *domain.Definition {
					return nodes.Set(target, inv.Operation().Value())
				})
			},
		},
		domain.OpCall: {
			Uncacheable: true,
			GetDependencies: func(_ *domain.Definition, op *domain.Operation) []domain.Dependency {
				deps := make([]domain.Dependency, len(op.Args()))
				for i, arg := range op.Args() {
					deps[i] = domain.Dependency{Target: arg}
				}
				return deps
			},
			Run: func(inv domain.Invocation) (domain.Result, error) {
				args := make([]any, 0, len(inv.Dependencies()))
				for _, dep := range inv.Dependencies() {
					args = append(args, dep.Definition)
				}
				return forward(inv, func(target *domain.Definition) *domain.Definition {
					return nodes.Call(target, args...)
				})
			},
		},
	},
}

// Proxy creates a node standing for path inside the graph reached through t.
// Without a path it stands for the remote root.
func Proxy(t Transport, path ...string) *domain.Definition {
	if path == nil {
		path = []string{}
	}
	return domain.Must(ProxyType, domain.Properties{"transport": t, "path": path})
}

func checkTransport(v any) error {
	if _, ok := v.(Transport); !ok {
		return fmt.Errorf("expected remote.Transport, got %T", v)
	}
	return nil
}

func transportOf(def *domain.Definition) Transport {
	t, _ := def.Get("transport").(Transport)
	return t
}

func pathOf(def *domain.Definition) []string {
	path, _ := def.Get("path").([]string)
	return append([]string(nil), path...)
}

// target builds the remote reference to the node's path.
func target(def *domain.Definition) *domain.Definition {
	path := pathOf(def)
	keys := make([]any, len(path))
	for i, key := range path {
		keys[i] = key
	}
	return nodes.Ref(keys...)
}

// stream is the entry data of an evaluate: one remote subscription per entry.
type stream struct {
	cancel func()
	result *domain.Definition
}

func runEvaluate(inv domain.Invocation) (domain.Result, error) {
	s, _ := inv.Data().(*stream)
	if s == nil {
		s = &stream{}
		inv.SetData(s)
		def := inv.Node().Definition
		s.cancel = transportOf(def).Subscribe(target(def), func(result *domain.Definition) {
			inv.Defer(func() {
				if inv.Released() || inv.Data() != s {
					// Replaced by an invalidation.
					s.cancel()
					return
				}
				s.result = result
				inv.Invalidate()
			})
		})
	}
	if s.result == nil {
		return domain.Pending(), nil
	}
	return settle(s.result)
}

func stopStream(inv domain.Invocation) {
	if s, ok := inv.Data().(*stream); ok && s.cancel != nil {
		s.cancel()
	}
}

// request is the entry data of a forwarded set or call.
type request struct {
	done   bool
	result *domain.Definition
	err    error
}

func forward(inv domain.Invocation, build func(target *domain.Definition) *domain.Definition) (domain.Result, error) {
	req, _ := inv.Data().(*request)
	if req == nil {
		req = &request{}
		inv.SetData(req)
		def := inv.Node().Definition
		query := build(target(def))
		go func() {
			result, err := transportOf(def).Query(context.Background(), query)
			inv.Defer(func() {
				req.done, req.result, req.err = true, result, err
				inv.Invalidate()
			})
		}()
	}
	if !req.done {
		return domain.Pending(), nil
	}
	if req.result == nil {
		return nil, req.err
	}
	return settle(req.result)
}

// settle converts a remote error result into a local failure that remembers
// where in the remote graph it surfaced.
func settle(result *domain.Definition) (domain.Result, error) {
	e := domain.ErrorOf(result)
	if e == nil {
		return result, nil
	}
	local := *e
	if len(local.RemotePath) == 0 {
		local.RemotePath = local.Path
	}
	local.Path = nil
	return nil, &local
}
