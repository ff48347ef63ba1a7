package runtime

import (
	"fmt"
	rtdebug "runtime/debug"
	"time"

	"github.com/aretw0/muster/pkg/domain"
)

// request carries the resolution stack of one top-level evaluation. Cycle and
// depth detection never look past it.
type request struct {
	stack []*entry
}

func (q *request) push(e *entry) { q.stack = append(q.stack, e) }
func (q *request) pop()          { q.stack = q.stack[:len(q.stack)-1] }

type status uint8

const (
	statusOK status = iota
	statusPending
	statusFailed
)

// computation holds the bookkeeping of one run of an entry.
type computation struct {
	old map[*entry]*edge
}

// refresh brings e up to date. A dirty entry first checks whether any dependency
// it read actually changed, pulling each one up to date in turn; it only
// recomputes when one did.
func (r *Runtime) refresh(e *entry, req *request) {
	if e.state != stateDirty || e.released.Load() {
		return
	}
	if e.result != nil && !e.force {
		e.state = stateChecking
		req.push(e)
		changed := r.depsChanged(e, req)
		req.pop()
		if !changed && !e.rerun {
			e.state = stateFresh
			return
		}
	}
	r.compute(e, req)
}

func (r *Runtime) depsChanged(e *entry, req *request) bool {
	for _, ce := range e.cells {
		if ce.cell.dead || ce.cell.version != ce.version {
			return true
		}
	}
	for _, ed := range e.deps {
		t := ed.target
		if t.state == stateChecking || t.state == stateComputing {
			return true
		}
		r.refresh(t, req)
		if t.version != ed.version {
			return true
		}
	}
	return false
}

func (r *Runtime) compute(e *entry, req *request) {
	start := time.Now()
	req.push(e)
	defer req.pop()

	e.state = stateComputing
	e.rerun = false
	e.force = false

	oldDeps, oldCells, oldScopes := e.deps, e.cells, e.scopes
	c := &computation{old: e.depIndex}
	e.deps, e.depIndex = nil, make(map[*entry]*edge)
	e.cells, e.cellIndex = nil, make(map[*cell]*cellEdge)
	e.scopes = nil
	e.ordinals = nil

	result := r.evaluate(e, req, c)

	for _, ed := range oldDeps {
		if _, kept := e.depIndex[ed.target]; !kept {
			r.unlink(e, ed.target)
		}
	}
	for _, ce := range oldCells {
		if _, kept := e.cellIndex[ce.cell]; !kept {
			delete(ce.cell.dependents, e)
		}
	}
	for _, id := range oldScopes {
		r.closeScope(id)
	}

	e.height = 0
	for _, ed := range e.deps {
		if ed.target.height >= e.height {
			e.height = ed.target.height + 1
		}
	}
	if e.result == nil || e.result.ID() != result.ID() {
		e.result = result
		e.version++
	}
	e.state = stateFresh

	if e.handler.Uncacheable && !domain.IsPending(result.Definition) {
		r.freeze(e)
	}
	if r.hooks.OnEvaluate != nil {
		r.hooks.OnEvaluate(e.node, e.op, time.Since(start))
	}
	r.logger.Debug("evaluated", "node", e.node.String(), "op", e.op.Name(), "result", result.Definition.String())

	if !e.started && e.held() {
		r.start(e)
	}
	if e.rerun && !e.frozen {
		e.rerun = false
		e.state = stateDirty
		if len(e.subscribers) > 0 {
			r.observed[e] = struct{}{}
		}
	}
}

// freeze settles an uncacheable entry: it keeps its result and stops tracking
// dependencies, so the side effect it performed never runs again.
func (r *Runtime) freeze(e *entry) {
	e.frozen = true
	for _, ce := range e.cells {
		delete(ce.cell.dependents, e)
	}
	e.cells, e.cellIndex = nil, make(map[*cell]*cellEdge)
	deps := e.deps
	e.deps, e.depIndex = nil, make(map[*entry]*edge)
	for _, ed := range deps {
		r.unlink(e, ed.target)
	}
}

// evaluate resolves the dependencies of e and runs its handler. Handler errors and
// panics become error results; a failed dependency prevents the handler from running.
func (r *Runtime) evaluate(e *entry, req *request, c *computation) (result *domain.GraphNode) {
	defer func() {
		if p := recover(); p != nil {
			result = r.fail(e.node, e.op, r.panicError(p))
		}
	}()

	h := e.handler
	def := e.node.Definition

	var deps []domain.Dependency
	if h.GetDependencies != nil {
		deps = h.GetDependencies(def, e.op)
	}
	var ctxDeps []domain.ContextDependency
	if h.GetContextDependencies != nil {
		ctxDeps = h.GetContextDependencies(def, e.op)
	}

	pending := false
	resolved := make([]*domain.GraphNode, len(deps))
	for i, dep := range deps {
		node, st := r.resolveDependency(e, req, c, dep)
		switch st {
		case statusFailed:
			return e.node.Derive(node.Definition)
		case statusPending:
			pending = true
		}
		resolved[i] = node
	}

	ctxResolved := make([]*domain.GraphNode, len(ctxDeps))
	for i, dep := range ctxDeps {
		node, st := r.resolveContextDependency(e, req, dep)
		switch st {
		case statusFailed:
			return e.node.Derive(node.Definition)
		case statusPending:
			pending = true
		}
		ctxResolved[i] = node
	}

	if pending {
		return e.node.Derive(domain.Pending())
	}
	if h.Run == nil {
		return r.fail(e.node, e.op, domain.NewUnsupportedOperationError(e.node, e.op.Name()))
	}

	inv := r.invocationFor(e, resolved, ctxResolved)
	inv.tracking = true
	out, err := h.Run(inv)
	inv.tracking = false
	if err != nil {
		return r.fail(e.node, e.op, err)
	}
	return r.tail(e, req, out)
}

func (r *Runtime) resolveDependency(e *entry, req *request, c *computation, dep domain.Dependency) (*domain.GraphNode, status) {
	target := e.node.Materialize(dep.Target)
	if target == nil {
		if dep.Default != nil {
			return e.node.Derive(dep.Default), statusOK
		}
		return e.node.Derive(domain.Nil()), statusOK
	}

	mark := len(e.deps)
	node, st := r.traverse(e, req, target, dep.Operation, dep.Until, dep.AllowErrors, dep.AllowPending, dep.Default)
	if dep.Once && st != statusPending {
		r.untrack(e, c, mark)
	}
	return node, st
}

// untrack stops tracking the edges added since mark.
func (r *Runtime) untrack(e *entry, c *computation, mark int) {
	added := e.deps[mark:]
	e.deps = e.deps[:mark:mark]
	for _, ed := range added {
		delete(e.depIndex, ed.target)
		if _, wasOld := c.old[ed.target]; !wasOld {
			r.unlink(e, ed.target)
		}
	}
}

func (r *Runtime) resolveContextDependency(e *entry, req *request, dep domain.ContextDependency) (*domain.GraphNode, status) {
	bound, ok := e.node.Context.Lookup(dep.Name)
	if !ok {
		if dep.Default != nil {
			return e.node.Derive(dep.Default), statusOK
		}
		if dep.Optional {
			return e.node.Derive(domain.Nil()), statusOK
		}
		return r.fail(e.node, e.op, domain.NewMissingContextDependencyError(dep.Name)), statusFailed
	}
	return r.traverse(e, req, bound, nil, dep.Until, false, false, dep.Default)
}

// traverse resolves node step by step, one cached entry per step, until the
// predicate holds. Errors and pending results stop traversal unless allowed.
// Every step is linked to owner, so any change along the way invalidates it.
func (r *Runtime) traverse(owner *entry, req *request, node *domain.GraphNode, op *domain.Operation,
	until *domain.Until, allowErrors, allowPending bool, fallback *domain.Definition) (*domain.GraphNode, status) {
	if until == nil {
		until = domain.UntilStatic
	}
	current := node
	if op != nil && !op.Is(domain.OpEvaluate) {
		target, st := r.traverse(owner, req, node, nil, domain.UntilSupports(op.Name()), false, false, nil)
		if st != statusOK {
			return target, st
		}
		current = r.step(owner, req, target, op)
	}

	var visited []*domain.GraphNode
	for {
		def := current.Definition
		switch {
		case domain.IsError(def):
			if allowErrors {
				return current, statusOK
			}
			return current, statusFailed
		case domain.IsPending(def):
			if allowPending {
				return current, statusOK
			}
			return current, statusPending
		case domain.IsNil(def) && fallback != nil:
			return current.Derive(fallback), statusOK
		}
		if until.Predicate(current) {
			return current, statusOK
		}
		if !def.Type.Supports(domain.OpEvaluate) || def.Type.Static {
			if fallback != nil {
				return current.Derive(fallback), statusOK
			}
			var err error
			if until.Error != nil {
				err = until.Error(current)
			} else {
				err = domain.NewError("Unable to resolve %s", current.Definition.String())
			}
			return r.fail(current, domain.Evaluate(), err), statusFailed
		}

		for i, seen := range visited {
			if seen.ID() == current.ID() {
				return r.fail(current, domain.Evaluate(), r.cycleError(req, nil, visited[i:], visited)), statusFailed
			}
		}
		visited = append(visited, current)
		if len(req.stack)+len(visited) > r.maxDepth {
			return r.fail(current, domain.Evaluate(), r.depthError(req, visited)), statusFailed
		}
		current = r.step(owner, req, current, domain.Evaluate())
	}
}

// step applies op to node through its cache entry and links the entry to owner.
func (r *Runtime) step(owner *entry, req *request, node *domain.GraphNode, op *domain.Operation) *domain.GraphNode {
	h, ok := node.Definition.Type.Operations[op.Name()]
	if !ok {
		if op.Is(domain.OpEvaluate) && node.Definition.Type.Static {
			return node
		}
		return r.fail(node, op, domain.NewUnsupportedOperationError(node, op.Name()))
	}
	if len(req.stack) >= r.maxDepth {
		return r.fail(node, op, r.depthError(req, nil))
	}

	e := r.entryFor(owner, node, op, h)
	if e.state == stateChecking || e.state == stateComputing {
		return r.fail(node, op, r.cycleError(req, e, nil, nil))
	}
	cached := e.state == stateFresh
	ed := r.link(owner, e)
	r.refresh(e, req)
	ed.version = e.version
	if cached && r.hooks.OnCacheHit != nil {
		r.hooks.OnCacheHit(node, op)
	}
	return e.result
}

// tail turns a handler's return value into the entry result.
func (r *Runtime) tail(e *entry, req *request, out domain.Result) *domain.GraphNode {
	switch v := out.(type) {
	case nil:
		return e.node.Derive(domain.Nil())
	case *domain.Definition:
		if v == nil {
			return e.node.Derive(domain.Nil())
		}
		if e.op.Is(domain.OpGetChild) {
			return e.node.Child(v, fmt.Sprint(e.op.Key()))
		}
		return e.node.Derive(v)
	case *domain.GraphNode:
		if v == nil {
			return e.node.Derive(domain.Nil())
		}
		return v
	case *domain.Action:
		target := e.node.Materialize(v.Target)
		if target == nil {
			return r.fail(e.node, e.op, domain.NewError("%s action has no target", v.Operation.Name()))
		}
		node, _ := r.traverse(e, req, target, v.Operation, domain.UntilAny, true, true, nil)
		return node
	}
	return r.fail(e.node, e.op, domain.NewError("unexpected handler result %T", out))
}

// fail materializes err as an error node located at node.
func (r *Runtime) fail(node *domain.GraphNode, op *domain.Operation, err error) *domain.GraphNode {
	derr := domain.AsError(err).WithPath(node.Path)
	if r.hooks.OnError != nil {
		r.hooks.OnError(node, op, derr)
	}
	r.logger.Debug("operation failed", "node", node.String(), "op", op.Name(), "err", derr.Message)
	return node.Derive(domain.ErrorNode(derr))
}

func (r *Runtime) panicError(p any) *domain.Error {
	e := &domain.Error{Message: fmt.Sprint(p)}
	if err, ok := p.(error); ok {
		e.Cause = err
	}
	if r.debug {
		e.Stack = string(rtdebug.Stack())
	}
	return e
}

// cycleError reports a revisit of an unresolved node. In debug mode the report
// lists everything walked from the request root; otherwise only the cycle.
func (r *Runtime) cycleError(req *request, revisited *entry, segment, walked []*domain.GraphNode) *domain.Error {
	var chain []*domain.GraphNode
	if revisited != nil {
		from := 0
		for i, e := range req.stack {
			if e == revisited {
				from = i
				break
			}
		}
		if r.debug {
			from = 0
		}
		for _, e := range req.stack[from:] {
			chain = append(chain, e.node)
		}
	} else {
		if r.debug {
			for _, e := range req.stack {
				chain = append(chain, e.node)
			}
			segment = walked
		}
		chain = append(chain, segment...)
	}
	return domain.NewCircularReferenceError(labels(chain, !r.debug))
}

func (r *Runtime) depthError(req *request, walked []*domain.GraphNode) *domain.Error {
	chain := make([]*domain.GraphNode, 0, len(req.stack)+len(walked))
	for _, e := range req.stack {
		chain = append(chain, e.node)
	}
	chain = append(chain, walked...)
	if !r.debug {
		chain = lastSegment(chain)
	}
	return domain.NewMaxDepthExceededError(r.maxDepth, labels(chain, false))
}

// lastSegment returns the nodes since the last node was previously visited, or
// the final few nodes when nothing repeats.
func lastSegment(chain []*domain.GraphNode) []*domain.GraphNode {
	if len(chain) == 0 {
		return chain
	}
	last := chain[len(chain)-1].ID()
	for i := len(chain) - 2; i >= 0; i-- {
		if chain[i].ID() == last {
			return chain[i+1:]
		}
	}
	const tail = 10
	if len(chain) > tail {
		return chain[len(chain)-tail:]
	}
	return chain
}

// labels renders nodes for error reports, collapsing consecutive repeats of the
// same node and, when distinct is set, every repeat.
func labels(chain []*domain.GraphNode, distinct bool) []string {
	out := make([]string, 0, len(chain))
	seen := make(map[string]bool)
	prev := ""
	for _, n := range chain {
		id := n.ID()
		if id == prev || (distinct && seen[id]) {
			continue
		}
		prev = id
		seen[id] = true
		out = append(out, n.String())
	}
	return out
}
