package nodes

import (
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/schema"
)

// RootType resolves to the root of the current scope.
var RootType = &domain.NodeType{
	Name:  "root",
	Shape: schema.Schema{},
	Codec: domain.GenericCodec(),
	Operations: handlers{
		domain.OpEvaluate: {
			GetContextDependencies: func(*domain.Definition, *domain.Operation) []domain.ContextDependency {
				return []domain.ContextDependency{{Name: "root", Until: domain.UntilAny}}
			},
			Run: func(inv domain.Invocation) (domain.Result, error) {
				return inv.ContextDependencies()[0], nil
			},
		},
	},
}

var rootDef = domain.Must(RootType, nil)

// Root returns the root reference.
func Root() *domain.Definition { return rootDef }

// RefType walks a path of keys from a root node, one getChild at a time.
// Without an explicit root, the scope root bound in the context is used.
var RefType = &domain.NodeType{
	Name: "ref",
	Shape: schema.Schema{
		"path": domain.NodeListShape,
		"root": schema.Optional(domain.NodeShape),
	},
	Codec: domain.GenericCodec(),
	Operations: handlers{
		domain.OpEvaluate: {
			GetDependencies: func(def *domain.Definition, _ *domain.Operation) []domain.Dependency {
				deps := evaluateAll(def.Nodes("path"))
				if root := def.Node("root"); root != nil {
					deps = append(deps, domain.Dependency{Target: root, Until: domain.UntilAny})
				}
				return deps
			},
			GetContextDependencies: func(def *domain.Definition, _ *domain.Operation) []domain.ContextDependency {
				if def.Node("root") != nil {
					return nil
				}
				return []domain.ContextDependency{{Name: "root", Until: domain.UntilAny}}
			},
			Run: runRef,
		},
	},
}

// Ref creates a reference to the node at path below the scope root. Path
// segments may be plain keys or definitions resolving to keys.
func Ref(path ...any) *domain.Definition {
	return domain.Must(RefType, domain.Properties{"path": keys(path)})
}

// RefFrom creates a reference to the node at path below root.
func RefFrom(root *domain.Definition, path ...any) *domain.Definition {
	return domain.Must(RefType, domain.Properties{"path": keys(path), "root": root})
}

func keys(path []any) []*domain.Definition {
	out := make([]*domain.Definition, len(path))
	for i, segment := range path {
		out[i] = toDefinition(segment)
	}
	return out
}

func runRef(inv domain.Invocation) (domain.Result, error) {
	deps := inv.Dependencies()
	n := len(inv.Node().Definition.Nodes("path"))

	var base *domain.GraphNode
	if len(deps) > n {
		base = deps[n]
	} else {
		base = inv.ContextDependencies()[0]
	}
	if n == 0 {
		return base, nil
	}

	target := domain.Result(base)
	for _, key := range deps[:n] {
		target = Get(target, domain.ValueOf(key.Definition))
	}
	return target, nil
}

// GetType reads the child of its target under key.
var GetType = &domain.NodeType{
	Name: "get",
	Shape: schema.Schema{
		"target": domain.TargetShape,
		"key":    domain.NodeShape,
	},
	Codec: domain.GenericCodec(),
	Operations: handlers{
		domain.OpEvaluate: {
			GetDependencies: func(def *domain.Definition, _ *domain.Operation) []domain.Dependency {
				return []domain.Dependency{{Target: def.Node("key")}}
			},
			Run: func(inv domain.Invocation) (domain.Result, error) {
				key := domain.ValueOf(inv.Dependencies()[0].Definition)
				return &domain.Action{
					Target:    inv.Node().Definition.Get("target"),
					Operation: domain.GetChild(key),
				}, nil
			},
		},
	},
}

// Get creates a node reading key from target. Target is a definition, a graph
// node or a result returned by another factory; key is a plain key or a
// definition resolving to one.
func Get(target any, key any) *domain.Definition {
	return domain.Must(GetType, domain.Properties{"target": target, "key": toDefinition(key)})
}

// ContextType reads a named context binding.
var ContextType = &domain.NodeType{
	Name:  "context",
	Shape: schema.Schema{"name": schema.String()},
	Codec: domain.GenericCodec(),
	Operations: handlers{
		domain.OpEvaluate: {
			GetContextDependencies: func(def *domain.Definition, _ *domain.Operation) []domain.ContextDependency {
				name, _ := def.Get("name").(string)
				return []domain.ContextDependency{{Name: name, Until: domain.UntilAny}}
			},
			Run: func(inv domain.Invocation) (domain.Result, error) {
				return inv.ContextDependencies()[0], nil
			},
		},
	},
}

// Context reads the binding called name. Resolving it where nothing binds name
// fails with a missing context dependency error.
func Context(name string) *domain.Definition {
	return domain.Must(ContextType, domain.Properties{"name": name})
}

// WithType evaluates its target in a context extended with bindings.
var WithType = &domain.NodeType{
	Name: "with",
	Shape: schema.Schema{
		"bindings": domain.NodeMapShape,
		"target":   domain.NodeShape,
	},
	Codec: domain.GenericCodec(),
	Operations: handlers{
		domain.OpEvaluate: {
			Run: func(inv domain.Invocation) (domain.Result, error) {
				node := inv.Node()
				bindings, _ := node.Definition.Get("bindings").(map[string]*domain.Definition)
				values := make(map[string]*domain.GraphNode, len(bindings))
				for name, def := range bindings {
					values[name] = node.Derive(def)
				}
				ctx := domain.NewContext(node.Context, values)
				return domain.NewGraphNode(node.Definition.Node("target"), node.Scope, ctx, node.Path), nil
			},
		},
	},
}

// With evaluates target with additional context bindings.
func With(bindings map[string]*domain.Definition, target *domain.Definition) *domain.Definition {
	if bindings == nil {
		bindings = map[string]*domain.Definition{}
	}
	return domain.Must(WithType, domain.Properties{"bindings": bindings, "target": target})
}
