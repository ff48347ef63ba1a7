package runtime

import (
	"strconv"
	"sync/atomic"

	"github.com/aretw0/muster/pkg/domain"
)

type entryState uint8

const (
	stateDirty entryState = iota
	stateChecking
	stateComputing
	stateFresh
)

// edge records the version of a dependency observed by the last computation.
type edge struct {
	target  *entry
	version uint64
}

type cellEdge struct {
	cell    *cell
	version uint64
}

// entry is the cache entry of one (graph node, operation) pair.
type entry struct {
	key     string
	seq     uint64
	node    *domain.GraphNode
	op      *domain.Operation
	handler *domain.OperationHandler

	state   entryState
	result  *domain.GraphNode
	version uint64
	height  int
	// force skips the dependency check on the next refresh.
	force bool
	// rerun is set when the entry was invalidated while being computed.
	rerun bool
	// frozen marks an uncacheable entry that settled; it never recomputes.
	frozen bool

	deps      []*edge
	depIndex  map[*entry]*edge
	cells     []*cellEdge
	cellIndex map[*cell]*cellEdge
	// ordinals numbers uncacheable dependencies requested during a computation.
	ordinals map[string]int

	dependents  map[*entry]struct{}
	subscribers []*subscriber

	data     any
	scopes   []domain.ScopeID
	started  bool
	released atomic.Bool
}

// held reports whether anyone still consumes the entry.
func (e *entry) held() bool {
	return len(e.subscribers) > 0 || len(e.dependents) > 0
}

// entryFor returns the live entry for (node, op), creating it if needed.
// Uncacheable handlers get an entry private to the requesting owner, numbered by
// request order so a recomputing owner finds the same entries again.
func (r *Runtime) entryFor(owner *entry, node *domain.GraphNode, op *domain.Operation, h *domain.OperationHandler) *entry {
	key := node.ID() + "|" + op.ID()
	if h.Uncacheable && owner != nil {
		if owner.ordinals == nil {
			owner.ordinals = make(map[string]int)
		}
		n := owner.ordinals[key]
		owner.ordinals[key] = n + 1
		key = owner.key + ">" + key + "#" + strconv.Itoa(n)
	}
	if e, ok := r.entries[key]; ok {
		return e
	}
	r.seq++
	e := &entry{
		key:        key,
		seq:        r.seq,
		node:       node,
		op:         op,
		handler:    h,
		state:      stateDirty,
		depIndex:   make(map[*entry]*edge),
		cellIndex:  make(map[*cell]*cellEdge),
		dependents: make(map[*entry]struct{}),
	}
	r.entries[key] = e
	byNode := r.byNode[node.ID()]
	if byNode == nil {
		byNode = make(map[*entry]struct{})
		r.byNode[node.ID()] = byNode
	}
	byNode[e] = struct{}{}
	return e
}

// link makes owner depend on target.
func (r *Runtime) link(owner, target *entry) *edge {
	if ed, ok := owner.depIndex[target]; ok {
		return ed
	}
	ed := &edge{target: target}
	owner.depIndex[target] = ed
	owner.deps = append(owner.deps, ed)
	target.dependents[owner] = struct{}{}
	return ed
}

// unlink drops the dependency of owner on target, releasing target if nobody
// else holds it.
func (r *Runtime) unlink(owner, target *entry) {
	delete(target.dependents, owner)
	if !target.held() {
		r.release(target)
	}
}

// release removes an entry nobody consumes. Teardown runs synchronously and
// cascades to dependencies that become unheld.
func (r *Runtime) release(e *entry) {
	if e.released.Swap(true) {
		return
	}
	delete(r.entries, e.key)
	if byNode := r.byNode[e.node.ID()]; byNode != nil {
		delete(byNode, e)
		if len(byNode) == 0 {
			delete(r.byNode, e.node.ID())
		}
	}
	delete(r.observed, e)

	if e.started {
		if r.hooks.OnUnsubscribe != nil {
			r.hooks.OnUnsubscribe(e.node, e.op)
		}
		if e.handler.OnUnsubscribe != nil {
			r.safely(e, func() { e.handler.OnUnsubscribe(r.invocationFor(e, nil, nil)) })
		}
	}
	for _, id := range e.scopes {
		r.closeScope(id)
	}
	e.scopes = nil

	for _, ce := range e.cells {
		delete(ce.cell.dependents, e)
	}
	e.cells, e.cellIndex = nil, nil
	deps := e.deps
	e.deps, e.depIndex = nil, nil
	for _, ed := range deps {
		r.unlink(e, ed.target)
	}
	e.data = nil
}

// start runs subscription setup once the entry has a consumer and a result.
func (r *Runtime) start(e *entry) {
	e.started = true
	if r.hooks.OnSubscribe != nil {
		r.hooks.OnSubscribe(e.node, e.op)
	}
	if e.handler.OnSubscribe != nil {
		r.safely(e, func() { e.handler.OnSubscribe(r.invocationFor(e, nil, nil)) })
	}
}

// markDirty flags e and everything depending on it for recomputation, and
// records subscribed entries for the next flush.
func (r *Runtime) markDirty(e *entry) {
	stack := []*entry{e}
	for len(stack) > 0 {
		x := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if x.frozen || x.released.Load() {
			continue
		}
		switch x.state {
		case stateDirty:
			continue
		case stateChecking, stateComputing:
			if x.rerun {
				continue
			}
			x.rerun = true
		default:
			x.state = stateDirty
			if len(x.subscribers) > 0 {
				r.observed[x] = struct{}{}
			}
		}
		for d := range x.dependents {
			stack = append(stack, d)
		}
	}
}

func (r *Runtime) safely(e *entry, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("subscription hook panicked", "node", e.node.String(), "op", e.op.Name(), "panic", p)
		}
	}()
	fn()
}
