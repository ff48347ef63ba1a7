package runtime

import (
	"sync/atomic"

	"github.com/aretw0/muster/pkg/domain"
)

// scope owns the state cells of the stateful nodes materialized in it, its child
// scopes and its event listeners.
type scope struct {
	id        domain.ScopeID
	parent    *scope
	children  []*scope
	remap     domain.EventRemap
	cells     map[string]*cell
	order     []*cell
	listeners []*listener
	onDispose []func()
}

// cell holds the state of one stateful graph node.
type cell struct {
	node       *domain.GraphNode
	value      any
	version    uint64
	dependents map[*entry]struct{}
	// dead cells were discarded by a dispose; readers must recompute.
	dead bool
}

type listener struct {
	fn     func(domain.Event)
	active atomic.Bool
}

func (r *Runtime) newScope(parent *scope, remap domain.EventRemap) *scope {
	r.nextScope++
	s := &scope{
		id:     r.nextScope,
		parent: parent,
		remap:  remap,
		cells:  make(map[string]*cell),
	}
	if parent != nil {
		parent.children = append(parent.children, s)
	}
	r.scopes[s.id] = s
	return s
}

// CreateScope opens a child scope of parent. Events dispatched into parent reach
// the child through remap; a nil remap forwards them unchanged.
func (r *Runtime) CreateScope(parent domain.ScopeID, remap domain.EventRemap) domain.ScopeID {
	var id domain.ScopeID
	r.do(func() {
		id = r.createScope(parent, remap)
	})
	return id
}

func (r *Runtime) createScope(parent domain.ScopeID, remap domain.EventRemap) domain.ScopeID {
	p := r.scopes[parent]
	if p == nil {
		p = r.root
	}
	return r.newScope(p, remap).id
}

// Dispose resets every stateful node of the scope and its children to its
// construction-time state. Consumers of that state recompute.
func (r *Runtime) Dispose(id domain.ScopeID) {
	r.do(func() {
		if s := r.scopes[id]; s != nil {
			r.dispose(s)
		}
	})
}

// Close disposes the scope and detaches it from its parent. The root scope
// cannot be closed; closing it only disposes it.
func (r *Runtime) Close(id domain.ScopeID) {
	r.do(func() {
		r.closeScope(id)
	})
}

// OnDispose registers fn to run every time the scope is disposed.
func (r *Runtime) OnDispose(id domain.ScopeID, fn func()) {
	r.do(func() {
		if s := r.scopes[id]; s != nil {
			s.onDispose = append(s.onDispose, fn)
		}
	})
}

func (r *Runtime) dispose(s *scope) {
	for _, child := range append([]*scope(nil), s.children...) {
		r.dispose(child)
	}
	cells := s.order
	s.cells = make(map[string]*cell)
	s.order = nil
	for _, c := range cells {
		c.dead = true
		for d := range c.dependents {
			d.force = true
			r.markDirty(d)
		}
	}
	for _, fn := range s.onDispose {
		fn := fn
		r.out.enqueue(fn)
	}
}

func (r *Runtime) closeScope(id domain.ScopeID) {
	s := r.scopes[id]
	if s == nil {
		return
	}
	r.dispose(s)
	if s == r.root {
		return
	}
	r.detach(s)
	if p := s.parent; p != nil {
		for i, child := range p.children {
			if child == s {
				p.children = append(p.children[:i:i], p.children[i+1:]...)
				break
			}
		}
	}
}

func (r *Runtime) detach(s *scope) {
	for _, child := range s.children {
		r.detach(child)
	}
	for _, l := range s.listeners {
		l.active.Store(false)
	}
	delete(r.scopes, s.id)
}

// cellFor returns the state cell of node, creating it with the node's initial state.
// Nodes of a closed scope get a detached cell.
func (r *Runtime) cellFor(node *domain.GraphNode) *cell {
	s := r.scopes[node.Scope]
	if s != nil {
		if c, ok := s.cells[node.ID()]; ok {
			return c
		}
	}
	var initial any
	if st := node.Definition.Type.State; st != nil && st.Initial != nil {
		initial = st.Initial(node.Definition)
	}
	c := &cell{node: node, value: initial, dependents: make(map[*entry]struct{})}
	if s != nil {
		s.cells[node.ID()] = c
		s.order = append(s.order, c)
	}
	return c
}

// writeCell stores v unless it equals the current state, and invalidates readers.
func (r *Runtime) writeCell(c *cell, v any) {
	if domain.Equal(c.value, v) {
		return
	}
	c.value = v
	c.version++
	for d := range c.dependents {
		r.markDirty(d)
	}
}

// Dispatch posts ev into the scope: live stateful nodes handle it first, in
// creation order, then external listeners, then child scopes through their remap.
func (r *Runtime) Dispatch(id domain.ScopeID, ev domain.Event) {
	r.do(func() {
		if s := r.scopes[id]; s != nil {
			r.dispatch(s, ev)
		}
	})
}

func (r *Runtime) dispatch(s *scope, ev domain.Event) {
	if r.hooks.OnDispatch != nil {
		r.hooks.OnDispatch(s.id, ev)
	}
	for _, c := range append([]*cell(nil), s.order...) {
		st := c.node.Definition.Type.State
		if c.dead || st == nil || st.OnEvent == nil {
			continue
		}
		if next, ok := st.OnEvent(c.node, ev, c.value); ok {
			r.writeCell(c, next)
		}
	}
	for _, l := range s.listeners {
		l := l
		r.out.enqueue(func() {
			if l.active.Load() {
				l.fn(ev)
			}
		})
	}
	for _, child := range append([]*scope(nil), s.children...) {
		next := ev
		if child.remap != nil {
			var ok bool
			if next, ok = child.remap(ev); !ok {
				continue
			}
		}
		r.dispatch(child, next)
	}
}

// OnEvent registers an external listener on the scope's event bus.
func (r *Runtime) OnEvent(id domain.ScopeID, fn func(domain.Event)) (remove func()) {
	l := &listener{fn: fn}
	l.active.Store(true)
	r.do(func() {
		if s := r.scopes[id]; s != nil {
			s.listeners = append(s.listeners, l)
		}
	})
	return func() {
		r.do(func() {
			l.active.Store(false)
			if s := r.scopes[id]; s != nil {
				for i, other := range s.listeners {
					if other == l {
						s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
						break
					}
				}
			}
		})
	}
}
