// Package nodes is the built-in node catalogue: static data (tree, array),
// references (root, ref, get, context, with), state (variable, set, reset,
// increment, decrement, async), computation (computed, fn, call, catchError)
// and scoping (scope, dispatch).
//
// Every factory returns an immutable *domain.Definition. Register installs the
// catalogue into a registry so definitions can be decoded from the wire.
package nodes
