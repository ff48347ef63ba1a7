package nodes

import (
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/schema"
)

// ScopeType evaluates a root in an isolated child scope. Only the declared
// context bindings cross into it.
var ScopeType = &domain.NodeType{
	Name: "scope",
	Shape: schema.Schema{
		"root":    domain.NodeShape,
		"context": schema.Optional(domain.NodeMapShape),
		"remap":   schema.Optional(schema.Func()),
	},
	Codec: domain.GenericCodec(),
	Operations: handlers{
		domain.OpEvaluate: {Run: runScope},
	},
}

// ScopeOption configures a scope node.
type ScopeOption func(domain.Properties)

// WithScopeContext forwards bindings, evaluated in the enclosing context, into
// the child scope.
func WithScopeContext(bindings map[string]*domain.Definition) ScopeOption {
	return func(p domain.Properties) {
		p["context"] = bindings
	}
}

// WithRemap transforms events entering the child scope; returning false drops them.
func WithRemap(remap domain.EventRemap) ScopeOption {
	return func(p domain.Properties) {
		p["remap"] = remap
	}
}

// Scope creates a node resolving root inside a new child scope.
func Scope(root *domain.Definition, opts ...ScopeOption) *domain.Definition {
	props := domain.Properties{"root": root}
	for _, opt := range opts {
		opt(props)
	}
	return domain.Must(ScopeType, props)
}

func runScope(inv domain.Invocation) (domain.Result, error) {
	node := inv.Node()
	def := node.Definition

	var remap domain.EventRemap
	switch fn := def.Get("remap").(type) {
	case domain.EventRemap:
		remap = fn
	case func(domain.Event) (domain.Event, bool):
		remap = fn
	}

	id := inv.CreateScope(remap)
	bindings, _ := def.Get("context").(map[string]*domain.Definition)
	forwarded := make(map[string]*domain.GraphNode, len(bindings))
	for name, binding := range bindings {
		forwarded[name] = node.Derive(binding)
	}
	_, root := domain.NewRootContext(def.Node("root"), id, forwarded)
	return root, nil
}

// DispatchType fires an event into the current scope when evaluated.
var DispatchType = &domain.NodeType{
	Name: "dispatch",
	Shape: schema.Schema{
		"type":    schema.String(),
		"payload": schema.Any(),
	},
	Codec: domain.GenericCodec(),
	Operations: handlers{
		domain.OpEvaluate: {
			Uncacheable: true,
			Run: func(inv domain.Invocation) (domain.Result, error) {
				def := inv.Node().Definition
				eventType, _ := def.Get("type").(string)
				inv.Dispatch(domain.Event{Type: eventType, Payload: def.Get("payload")})
				return domain.Nil(), nil
			},
		},
	},
}

// Dispatch creates a node that dispatches an event when evaluated.
func Dispatch(eventType string, payload any) *domain.Definition {
	return domain.Must(DispatchType, domain.Properties{"type": eventType, "payload": payload})
}
