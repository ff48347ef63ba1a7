package nodes

import (
	"fmt"

	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/registry"
)

// Types returns every node type of the catalogue, primitives included.
func Types() []*domain.NodeType {
	return []*domain.NodeType{
		domain.ValueType,
		domain.ErrorType,
		domain.PendingType,
		domain.NilType,
		TreeType,
		ArrayType,
		RootType,
		RefType,
		GetType,
		ContextType,
		WithType,
		VariableType,
		SetType,
		ResetType,
		ComputedType,
		FnType,
		CallType,
		IncrementType,
		DecrementType,
		CatchErrorType,
		ScopeType,
		DispatchType,
		AsyncType,
	}
}

// Register installs the catalogue into reg.
func Register(reg *registry.Registry) error {
	for _, t := range Types() {
		if err := reg.RegisterNodeType(t); err != nil {
			return fmt.Errorf("register %s: %w", t.Name, err)
		}
	}
	return nil
}

// Value, Error, Pending and Nil re-export the primitive factories.
var (
	Value   = domain.Value
	Error   = domain.ErrorNode
	Pending = domain.Pending
	Nil     = domain.Nil
)

// toDefinition lifts a Go value into a node: definitions pass through, nil
// becomes the nil node and anything else a value node.
func toDefinition(v any) *domain.Definition {
	switch val := v.(type) {
	case *domain.Definition:
		if val == nil {
			return domain.Nil()
		}
		return val
	case nil:
		return domain.Nil()
	}
	return domain.Value(v)
}

func values(nodes []*domain.GraphNode) []any {
	out := make([]any, len(nodes))
	for i, n := range nodes {
		out[i] = domain.ValueOf(n.Definition)
	}
	return out
}

func definitions(nodes []*domain.GraphNode) []*domain.Definition {
	out := make([]*domain.Definition, len(nodes))
	for i, n := range nodes {
		out[i] = n.Definition
	}
	return out
}

func evaluateAll(defs []*domain.Definition) []domain.Dependency {
	deps := make([]domain.Dependency, len(defs))
	for i, def := range defs {
		deps[i] = domain.Dependency{Target: def}
	}
	return deps
}

// handlers is shorthand for an operation table.
type handlers = map[string]*domain.OperationHandler
