package nodes

import (
	"fmt"

	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/schema"
)

// VariableType holds a mutable value in its scope. The initial value comes back
// after the scope is disposed or a reset event reaches it.
var VariableType = &domain.NodeType{
	Name:  "variable",
	Shape: schema.Schema{"value": domain.NodeShape},
	Codec: domain.GenericCodec(),
	State: &domain.StateType{
		Initial: func(def *domain.Definition) any { return def.Node("value") },
		OnEvent: func(node *domain.GraphNode, ev domain.Event, _ any) (any, bool) {
			if ev.Type != domain.EventReset {
				return nil, false
			}
			return node.Definition.Node("value"), true
		},
	},
	Operations: handlers{
		domain.OpEvaluate: {
			Run: func(inv domain.Invocation) (domain.Result, error) {
				current, _ := inv.State().(*domain.Definition)
				return current, nil
			},
		},
		domain.OpSet: {
			Uncacheable: true,
			Run: func(inv domain.Invocation) (domain.Result, error) {
				value := inv.Operation().Value()
				if value == nil {
					value = domain.Nil()
				}
				inv.SetState(value)
				return value, nil
			},
		},
		domain.OpReset: {
			Uncacheable: true,
			Run: func(inv domain.Invocation) (domain.Result, error) {
				initial := inv.Node().Definition.Node("value")
				inv.SetState(initial)
				return initial, nil
			},
		},
	},
}

// Variable creates a stateful node initialised with value. Every call creates a
// distinct variable, even for equal initial values.
func Variable(value any) *domain.Definition {
	return domain.Must(VariableType, domain.Properties{"value": toDefinition(value)})
}

// SetType applies a set operation to its target when evaluated.
var SetType = &domain.NodeType{
	Name: "set",
	Shape: schema.Schema{
		"target": domain.TargetShape,
		"value":  domain.NodeShape,
	},
	Codec: domain.GenericCodec(),
	Operations: handlers{
		domain.OpEvaluate: {
			Uncacheable: true,
			GetDependencies: func(def *domain.Definition, _ *domain.Operation) []domain.Dependency {
				return []domain.Dependency{
					{Target: def.Get("target"), Until: domain.UntilSupports(domain.OpSet)},
					{Target: def.Node("value")},
				}
			},
			Run: func(inv domain.Invocation) (domain.Result, error) {
				deps := inv.Dependencies()
				return &domain.Action{Target: deps[0], Operation: domain.Set(deps[1].Definition)}, nil
			},
		},
	},
}

// Set creates a node that writes value into target when evaluated.
func Set(target any, value any) *domain.Definition {
	return domain.Must(SetType, domain.Properties{"target": target, "value": toDefinition(value)})
}

// ResetType applies a reset operation to its target when evaluated.
var ResetType = &domain.NodeType{
	Name:  "reset",
	Shape: schema.Schema{"target": domain.TargetShape},
	Codec: domain.GenericCodec(),
	Operations: handlers{
		domain.OpEvaluate: {
			Uncacheable: true,
			GetDependencies: func(def *domain.Definition, _ *domain.Operation) []domain.Dependency {
				return []domain.Dependency{{Target: def.Get("target"), Until: domain.UntilSupports(domain.OpReset)}}
			},
			Run: func(inv domain.Invocation) (domain.Result, error) {
				return &domain.Action{Target: inv.Dependencies()[0], Operation: domain.Reset()}, nil
			},
		},
	},
}

// Reset creates a node that restores target to its initial value.
func Reset(target any) *domain.Definition {
	return domain.Must(ResetType, domain.Properties{"target": target})
}

// IncrementType and DecrementType read their target once and write it back
// shifted by one.
var (
	IncrementType = stepType("increment", 1)
	DecrementType = stepType("decrement", -1)
)

// Increment creates a node that adds one to target when evaluated.
func Increment(target any) *domain.Definition {
	return domain.Must(IncrementType, domain.Properties{"target": target})
}

// Decrement creates a node that subtracts one from target when evaluated.
func Decrement(target any) *domain.Definition {
	return domain.Must(DecrementType, domain.Properties{"target": target})
}

func stepType(name string, delta int) *domain.NodeType {
	return &domain.NodeType{
		Name:  name,
		Shape: schema.Schema{"target": domain.TargetShape},
		Codec: domain.GenericCodec(),
		Operations: handlers{
			domain.OpEvaluate: {
				Uncacheable: true,
				GetDependencies: func(def *domain.Definition, _ *domain.Operation) []domain.Dependency {
					return []domain.Dependency{
						{Target: def.Get("target"), Until: domain.UntilSupports(domain.OpSet)},
						{Target: def.Get("target"), Once: true},
					}
				},
				Run: func(inv domain.Invocation) (domain.Result, error) {
					deps := inv.Dependencies()
					next, err := shift(domain.ValueOf(deps[1].Definition), delta)
					if err != nil {
						return nil, err
					}
					return &domain.Action{Target: deps[0], Operation: domain.Set(domain.Value(next))}, nil
				},
			},
		},
	}
}

func shift(v any, delta int) (any, error) {
	switch n := v.(type) {
	case int:
		return n + delta, nil
	case int64:
		return n + int64(delta), nil
	case float64:
		return n + float64(delta), nil
	}
	return nil, domain.NewError("Expected numeric value, received %s", fmt.Sprintf("%T", v))
}
