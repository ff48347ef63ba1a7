/*
Package domain contains the core model of the muster engine.

It defines the immutable vocabulary the runtime works with: node definitions, node types
and their operation handlers, graph nodes materialized in a scope and context, and the
typed error taxonomy. This package is kept pure and free of I/O, following Hexagonal
Architecture principles; the runtime in internal/runtime drives it through the
Invocation port.

# Key Entities

  - Definition: an immutable node description (type + properties) with a structural ID.
  - NodeType: a data descriptor keyed by a unique name, mapping operation names to handlers.
  - Operation: a verb applied to a graph node (evaluate, getChild, set, call, getItems, reset).
  - GraphNode: a definition bound to a scope and a context; the unit of cache identity.
  - Dependency: a sub-resolution an operation needs before its handler runs.
  - Error: the serializable error result carried through the graph.
*/
package domain
