package domain

import (
	"sort"
	"strconv"
	"strings"
)

// ScopeID identifies a scope within a runtime. The root scope is 1.
type ScopeID uint64

// GraphNode is a definition materialized within a scope and context. Two graph nodes
// share a cache entry iff their definition, scope and context IDs are all equal.
type GraphNode struct {
	Definition *Definition
	Scope      ScopeID
	Context    *Context
	// Path lists the child keys walked from the root. It is informational and
	// not part of the identity.
	Path []string

	id string
}

// NewGraphNode binds def to a scope and context.
func NewGraphNode(def *Definition, scope ScopeID, ctx *Context, path []string) *GraphNode {
	return &GraphNode{
		Definition: def,
		Scope:      scope,
		Context:    ctx,
		Path:       path,
		id:         def.ID() + "@" + strconv.FormatUint(uint64(scope), 10) + "/" + ctx.ID(),
	}
}

// ID returns the cache identity of the node.
func (n *GraphNode) ID() string { return n.id }

// Type returns the node type of the definition.
func (n *GraphNode) Type() *NodeType { return n.Definition.Type }

// Child materializes def as a child of n under key.
func (n *GraphNode) Child(def *Definition, key string) *GraphNode {
	return NewGraphNode(def, n.Scope, n.Context, appendPath(n.Path, key))
}

// Derive materializes def in the same scope, context and path as n.
func (n *GraphNode) Derive(def *Definition) *GraphNode {
	return NewGraphNode(def, n.Scope, n.Context, n.Path)
}

// Materialize returns target as a graph node, binding a *Definition in n's scope
// and context. It returns nil for any other value.
func (n *GraphNode) Materialize(target any) *GraphNode {
	switch t := target.(type) {
	case *GraphNode:
		return t
	case *Definition:
		if t == nil {
			return nil
		}
		return n.Derive(t)
	}
	return nil
}

func (n *GraphNode) String() string {
	if len(n.Path) == 0 {
		return n.Definition.String()
	}
	return strings.Join(n.Path, ".") + ": " + n.Definition.String()
}

func appendPath(path []string, key string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, key)
}

// Context is an immutable chain of named bindings used to resolve relative references.
type Context struct {
	parent *Context
	values map[string]*GraphNode
	id     string
}

// NewContext extends parent with bindings. The ID is derived from the parent ID
// and the bound node IDs, so equal bindings yield equal contexts.
func NewContext(parent *Context, values map[string]*GraphNode) *Context {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := []string{parent.ID()}
	for _, name := range names {
		parts = append(parts, name, values[name].ID())
	}
	return &Context{parent: parent, values: values, id: HashStrings(parts...)}
}

// NewRootContext creates the context of a scope root: "root" is bound to root
// materialized in the new context, alongside the forwarded bindings. The chain does
// not extend past this context.
func NewRootContext(root *Definition, scope ScopeID, forwarded map[string]*GraphNode) (*Context, *GraphNode) {
	names := make([]string, 0, len(forwarded))
	for name := range forwarded {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := []string{"root", root.ID(), strconv.FormatUint(uint64(scope), 10)}
	for _, name := range names {
		parts = append(parts, name, forwarded[name].ID())
	}

	values := make(map[string]*GraphNode, len(forwarded)+1)
	for name, node := range forwarded {
		values[name] = node
	}
	ctx := &Context{values: values, id: HashStrings(parts...)}
	rootNode := NewGraphNode(root, scope, ctx, nil)
	values["root"] = rootNode
	return ctx, rootNode
}

// ID returns the context identity; the empty context has ID "".
func (c *Context) ID() string {
	if c == nil {
		return ""
	}
	return c.id
}

// Lookup resolves a binding through the chain, nearest first.
func (c *Context) Lookup(name string) (*GraphNode, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if node, ok := cur.values[name]; ok {
			return node, true
		}
	}
	return nil, false
}
