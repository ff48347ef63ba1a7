package domain

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/aretw0/muster/pkg/schema"
)

// Properties holds the named inputs of a node definition.
type Properties map[string]any

// Definition is an immutable node description. Changing state means creating a new
// definition, never mutating an existing one.
type Definition struct {
	Type       *NodeType
	Properties Properties

	id string
}

var definitionSeq atomic.Uint64

// New validates props against the type's shape and returns a definition.
// A mismatch fails with an error of kind ErrInvalidShape.
func New(t *NodeType, props Properties) (*Definition, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: missing node type", ErrInvalidShape)
	}
	if props == nil {
		props = Properties{}
	}
	if err := schema.Validate(t.Shape, props); err != nil {
		return nil, NewInvalidShapeError(t.Name, t.Shape, props, err)
	}
	def := &Definition{Type: t, Properties: props}
	def.id = identify(def, definitionSeq.Add(1))
	return def, nil
}

// Must is like New but panics on invalid properties. It is meant for node factories
// whose arguments are checked by the Go type system.
func Must(t *NodeType, props Properties) *Definition {
	def, err := New(t, props)
	if err != nil {
		panic(err)
	}
	return def
}

// ID returns the structural identity of the definition.
func (d *Definition) ID() string {
	if d == nil {
		return ""
	}
	return d.id
}

// Is reports whether the definition is of the given type.
func (d *Definition) Is(t *NodeType) bool {
	return d != nil && d.Type == t
}

// Equal compares two definitions by structural identity.
func (d *Definition) Equal(other *Definition) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.id == other.id
}

// Get returns a property value.
func (d *Definition) Get(key string) any {
	return d.Properties[key]
}

// Node returns a property holding a nested definition, or nil.
func (d *Definition) Node(key string) *Definition {
	child, _ := d.Properties[key].(*Definition)
	return child
}

// Nodes returns a property holding a list of definitions.
func (d *Definition) Nodes(key string) []*Definition {
	children, _ := d.Properties[key].([]*Definition)
	return children
}

// String renders a short human-readable form, e.g. value(3) or ref(path=[value(foo)]).
func (d *Definition) String() string {
	if d == nil {
		return "<nil>"
	}
	if d.Type == ValueType {
		return fmt.Sprintf("value(%v)", d.Properties["value"])
	}
	if d.Type == ErrorType {
		return fmt.Sprintf("error(%v)", d.Properties["error"])
	}
	keys := make([]string, 0, len(d.Properties))
	for k := range d.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(d.Type.Name)
	b.WriteByte('(')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(describe(d.Properties[k]))
	}
	b.WriteByte(')')
	return b.String()
}

func describe(v any) string {
	switch val := v.(type) {
	case *Definition:
		return val.String()
	case []*Definition:
		parts := make([]string, len(val))
		for i, child := range val {
			parts[i] = child.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]*Definition:
		return fmt.Sprintf("{%d}", len(val))
	case *GraphNode:
		return val.String()
	case nil:
		return "nil"
	}
	if isFunc(v) {
		return "func"
	}
	return fmt.Sprintf("%v", v)
}
