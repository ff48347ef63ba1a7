package domain

import (
	"reflect"
	"time"
)

// Event is an opaque signal dispatched into a scope's event bus.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// EventReset asks stateful nodes to return to their construction-time state.
const EventReset = "reset"

// EventRemap transforms an event crossing into a child scope. Returning false
// drops the event.
type EventRemap func(ev Event) (Event, bool)

// Hooks defines callbacks for runtime observability. Every field is optional.
// Hooks are invoked on the runtime loop and must not block.
type Hooks struct {
	OnEvaluate    func(node *GraphNode, op *Operation, elapsed time.Duration)
	OnCacheHit    func(node *GraphNode, op *Operation)
	OnSubscribe   func(node *GraphNode, op *Operation)
	OnUnsubscribe func(node *GraphNode, op *Operation)
	OnEmit        func(node *GraphNode, result *Definition)
	OnError       func(node *GraphNode, op *Operation, err *Error)
	OnDispatch    func(scope ScopeID, ev Event)
}

// Equal compares two state values. Definitions compare by structural ID;
// anything else by deep equality.
func Equal(a, b any) bool {
	da, okA := a.(*Definition)
	db, okB := b.(*Definition)
	if okA || okB {
		return okA && okB && da.Equal(db)
	}
	return reflect.DeepEqual(a, b)
}
