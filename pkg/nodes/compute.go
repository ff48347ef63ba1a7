package nodes

import (
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/schema"
)

// Func is the signature of computed combiners and fn bodies. Arguments are
// unwrapped values; the result is lifted back into a node.
type Func func(args ...any) (any, error)

// ComputedType combines the values of its dependencies.
var ComputedType = &domain.NodeType{
	Name: "computed",
	Shape: schema.Schema{
		"dependencies": domain.NodeListShape,
		"combine":      schema.Func(),
	},
	Operations: handlers{
		domain.OpEvaluate: {
			GetDependencies: func(def *domain.Definition, _ *domain.Operation) []domain.Dependency {
				return evaluateAll(def.Nodes("dependencies"))
			},
			Run: func(inv domain.Invocation) (domain.Result, error) {
				combine, _ := inv.Node().Definition.Get("combine").(Func)
				out, err := combine(values(inv.Dependencies())...)
				if err != nil {
					return nil, err
				}
				return toDefinition(out), nil
			},
		},
	},
}

// Computed creates a node whose value is combine applied to the values of deps.
// Computed nodes hold a function and cannot cross the remote boundary.
func Computed(deps []*domain.Definition, combine Func) *domain.Definition {
	if deps == nil {
		deps = []*domain.Definition{}
	}
	return domain.Must(ComputedType, domain.Properties{"dependencies": deps, "combine": combine})
}

// FnType is a static callable.
var FnType = &domain.NodeType{
	Name:   "fn",
	Shape:  schema.Schema{"body": schema.Func()},
	Static: true,
	Operations: handlers{
		domain.OpCall: {
			Uncacheable: true,
			GetDependencies: func(_ *domain.Definition, op *domain.Operation) []domain.Dependency {
				return evaluateAll(op.Args())
			},
			Run: func(inv domain.Invocation) (domain.Result, error) {
				body, _ := inv.Node().Definition.Get("body").(Func)
				out, err := body(values(inv.Dependencies())...)
				if err != nil {
					return nil, err
				}
				return toDefinition(out), nil
			},
		},
	},
}

// Fn creates a callable node.
func Fn(body Func) *domain.Definition {
	return domain.Must(FnType, domain.Properties{"body": body})
}

// CallType invokes its target with resolved arguments when evaluated.
var CallType = &domain.NodeType{
	Name: "call",
	Shape: schema.Schema{
		"target": domain.TargetShape,
		"args":   domain.NodeListShape,
	},
	Codec: domain.GenericCodec(),
	Operations: handlers{
		domain.OpEvaluate: {
			Uncacheable: true,
			GetDependencies: func(def *domain.Definition, _ *domain.Operation) []domain.Dependency {
				deps := []domain.Dependency{{Target: def.Get("target"), Until: domain.UntilSupports(domain.OpCall)}}
				return append(deps, evaluateAll(def.Nodes("args"))...)
			},
			Run: func(inv domain.Invocation) (domain.Result, error) {
				deps := inv.Dependencies()
				return &domain.Action{Target: deps[0], Operation: domain.Call(definitions(deps[1:])...)}, nil
			},
		},
	},
}

// Call creates a node invoking target with args when evaluated.
func Call(target any, args ...any) *domain.Definition {
	return domain.Must(CallType, domain.Properties{"target": target, "args": keys(args)})
}

// CatchErrorType replaces an error of its target with a fallback.
var CatchErrorType = &domain.NodeType{
	Name: "catchError",
	Shape: schema.Schema{
		"fallback": domain.NodeShape,
		"target":   domain.NodeShape,
	},
	Codec: domain.GenericCodec(),
	Operations: handlers{
		domain.OpEvaluate: {
			GetDependencies: func(def *domain.Definition, _ *domain.Operation) []domain.Dependency {
				return []domain.Dependency{{Target: def.Node("target"), AllowErrors: true}}
			},
			Run: func(inv domain.Invocation) (domain.Result, error) {
				result := inv.Dependencies()[0]
				if domain.IsError(result.Definition) {
					return inv.Node().Definition.Node("fallback"), nil
				}
				return result, nil
			},
		},
	},
}

// CatchError resolves target, or fallback when target fails.
func CatchError(fallback any, target *domain.Definition) *domain.Definition {
	return domain.Must(CatchErrorType, domain.Properties{"fallback": toDefinition(fallback), "target": target})
}
