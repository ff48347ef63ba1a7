package domain

import (
	"sort"

	"github.com/aretw0/muster/pkg/schema"
)

// NodeType is a registered node descriptor. Node types are data, not classes:
// the runtime dispatches by looking up the operation name in Operations.
type NodeType struct {
	Name string
	// Shape validates the properties of every definition of this type.
	// A nil Shape disables validation.
	Shape schema.Schema
	// Static nodes are fully resolved values; evaluating one yields itself.
	Static bool
	// State makes the node stateful: each graph node owns a state cell in its scope.
	State      *StateType
	Operations map[string]*OperationHandler
	// Codec makes the type transportable across the remote boundary.
	Codec *Codec
}

// Supports reports whether the type handles the named operation.
// Static nodes implicitly support evaluate.
func (t *NodeType) Supports(op string) bool {
	if t == nil {
		return false
	}
	if _, ok := t.Operations[op]; ok {
		return true
	}
	return op == OpEvaluate && t.Static
}

// OperationNames returns the sorted set of operations the type accepts.
func (t *NodeType) OperationNames() []string {
	names := make([]string, 0, len(t.Operations)+1)
	seen := make(map[string]bool)
	for name := range t.Operations {
		names = append(names, name)
		seen[name] = true
	}
	if t.Static && !seen[OpEvaluate] {
		names = append(names, OpEvaluate)
	}
	sort.Strings(names)
	return names
}

// StateType describes the private state held by a stateful node.
type StateType struct {
	// Initial returns the construction-time state. It is called again after the
	// owning scope is disposed.
	Initial func(def *Definition) any
	// OnEvent lets the node react to events dispatched into its scope.
	// Returning false leaves the state untouched.
	OnEvent func(node *GraphNode, ev Event, state any) (any, bool)
}

// OperationHandler implements one operation of a node type.
type OperationHandler struct {
	// Uncacheable handlers run once per request site and are never memoized
	// across callers. Side-effecting operations (set, call) are uncacheable.
	Uncacheable bool

	GetDependencies        func(def *Definition, op *Operation) []Dependency
	GetContextDependencies func(def *Definition, op *Operation) []ContextDependency

	// Run computes the result once all dependencies are satisfied. It returns a
	// *Definition, *GraphNode or *Action; the runtime keeps resolving whatever is
	// returned (tail resolution).
	Run func(inv Invocation) (Result, error)

	// OnSubscribe is called once the first consumer holds the cached entry.
	OnSubscribe func(inv Invocation)
	// OnUnsubscribe is called synchronously when the last consumer releases it.
	OnUnsubscribe func(inv Invocation)
}

// Result is anything an operation handler may return.
type Result interface {
	isResult()
}

func (*Definition) isResult() {}
func (*GraphNode) isResult()  {}
func (*Action) isResult()     {}

// Action asks the runtime to apply Operation to Target and use its result.
// Target is a *Definition (materialized in the caller's scope and context) or a *GraphNode.
type Action struct {
	Target    any
	Operation *Operation
}

// Dependency declares a sub-resolution an operation needs before it runs.
type Dependency struct {
	// Target is a *Definition or a *GraphNode.
	Target any
	// Operation applied to Target before traversal; nil means evaluate.
	Operation *Operation
	// Until stops traversal at a weaker state than a fully static value.
	Until *Until
	// Once stops tracking the dependency after its first settled result.
	Once bool
	// AllowErrors passes error results to the handler instead of short-circuiting.
	AllowErrors bool
	// AllowPending passes pending results to the handler instead of waiting.
	AllowPending bool
	// Default replaces a nil result, or a result that cannot satisfy Until.
	Default *Definition
}

// Until is an early-exit predicate for dependency traversal.
type Until struct {
	Predicate func(node *GraphNode) bool
	// Error builds the failure raised when traversal reaches a static node that
	// does not satisfy Predicate.
	Error func(node *GraphNode) error
}

// ContextDependency reads a named context binding.
type ContextDependency struct {
	Name     string
	Optional bool
	Default  *Definition
	Until    *Until
}

// UntilStatic is the default traversal target: a fully resolved node.
var UntilStatic = &Until{
	Predicate: func(node *GraphNode) bool { return node.Definition.Type.Static },
}

// UntilAny accepts the first node reached without evaluating it.
var UntilAny = &Until{
	Predicate: func(*GraphNode) bool { return true },
}

// UntilSupports stops traversal at the first node that handles op.
func UntilSupports(op string) *Until {
	return &Until{
		Predicate: func(node *GraphNode) bool {
			_, ok := node.Definition.Type.Operations[op]
			return ok
		},
		Error: func(node *GraphNode) error {
			return NewUnsupportedOperationError(node, op)
		},
	}
}
