package domain

import (
	"fmt"
	"sort"
)

// Built-in operation names.
const (
	OpEvaluate = "evaluate"
	OpGetChild = "getChild"
	OpSet      = "set"
	OpCall     = "call"
	OpGetItems = "getItems"
	OpReset    = "reset"
)

// OperationType names a verb that can be applied to graph nodes.
type OperationType struct {
	Name string
}

// Operation is a request against a graph node. The pair (GraphNode, Operation)
// is the unit of caching.
type Operation struct {
	Type       *OperationType
	Properties Properties

	id string
}

// Built-in operation types.
var (
	EvaluateType = &OperationType{Name: OpEvaluate}
	GetChildType = &OperationType{Name: OpGetChild}
	SetType      = &OperationType{Name: OpSet}
	CallType     = &OperationType{Name: OpCall}
	GetItemsType = &OperationType{Name: OpGetItems}
	ResetType    = &OperationType{Name: OpReset}
)

// BuiltinOperations lists the operation types every registry starts with.
func BuiltinOperations() []*OperationType {
	return []*OperationType{EvaluateType, GetChildType, SetType, CallType, GetItemsType, ResetType}
}

// NewOperation creates an operation with a structural ID.
func NewOperation(t *OperationType, props Properties) *Operation {
	if props == nil {
		props = Properties{}
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := []string{t.Name}
	for _, k := range keys {
		parts = append(parts, k, operand(props[k]))
	}
	return &Operation{Type: t, Properties: props, id: t.Name + ":" + HashStrings(parts...)}
}

func operand(v any) string {
	switch val := v.(type) {
	case *Definition:
		return val.ID()
	case []*Definition:
		ids := ""
		for _, d := range val {
			ids += d.ID() + ","
		}
		return ids
	}
	return fmt.Sprintf("%T:%v", v, v)
}

// ID returns the structural identity of the operation.
func (o *Operation) ID() string { return o.id }

// Name returns the operation type name.
func (o *Operation) Name() string { return o.Type.Name }

// Is reports whether the operation is of the named type.
func (o *Operation) Is(name string) bool { return o != nil && o.Type.Name == name }

func (o *Operation) String() string {
	switch o.Type.Name {
	case OpGetChild:
		return fmt.Sprintf("getChild(%v)", o.Properties["key"])
	case OpSet:
		return fmt.Sprintf("set(%v)", o.Properties["value"])
	}
	return o.Type.Name
}

var evaluate = NewOperation(EvaluateType, nil)

// Evaluate requests the value of a node.
func Evaluate() *Operation { return evaluate }

// GetChild requests the child of a node under key.
func GetChild(key any) *Operation {
	return NewOperation(GetChildType, Properties{"key": key})
}

// Key returns the getChild key.
func (o *Operation) Key() any { return o.Properties["key"] }

// Set requests that a settable node hold value.
func Set(value *Definition) *Operation {
	return NewOperation(SetType, Properties{"value": value})
}

// Value returns the set operand.
func (o *Operation) Value() *Definition {
	v, _ := o.Properties["value"].(*Definition)
	return v
}

// Call invokes a callable node with resolved argument values.
func Call(args ...*Definition) *Operation {
	if args == nil {
		args = []*Definition{}
	}
	return NewOperation(CallType, Properties{"args": args})
}

// Args returns the call operands.
func (o *Operation) Args() []*Definition {
	args, _ := o.Properties["args"].([]*Definition)
	return args
}

var getItems = NewOperation(GetItemsType, nil)

// GetItems requests the items of a collection node.
func GetItems() *Operation { return getItems }

var reset = NewOperation(ResetType, nil)

// Reset restores a stateful node to its construction-time state.
func Reset() *Operation { return reset }
