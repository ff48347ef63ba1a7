package runtime

import (
	"log/slog"

	"github.com/aretw0/muster/pkg/domain"
)

// invocation implements domain.Invocation for one run of an entry.
type invocation struct {
	r       *Runtime
	e       *entry
	deps    []*domain.GraphNode
	ctxDeps []*domain.GraphNode
	// tracking is set while Run executes synchronously; state reads made then
	// become dependencies of the entry.
	tracking bool
}

var _ domain.Invocation = (*invocation)(nil)

func (r *Runtime) invocationFor(e *entry, deps, ctxDeps []*domain.GraphNode) *invocation {
	return &invocation{r: r, e: e, deps: deps, ctxDeps: ctxDeps}
}

func (inv *invocation) Node() *domain.GraphNode                  { return inv.e.node }
func (inv *invocation) Operation() *domain.Operation             { return inv.e.op }
func (inv *invocation) Dependencies() []*domain.GraphNode        { return inv.deps }
func (inv *invocation) ContextDependencies() []*domain.GraphNode { return inv.ctxDeps }

func (inv *invocation) State() any {
	c := inv.r.cellFor(inv.e.node)
	if inv.tracking && inv.e.state == stateComputing {
		if ce, ok := inv.e.cellIndex[c]; ok {
			ce.version = c.version
		} else {
			ce := &cellEdge{cell: c, version: c.version}
			inv.e.cellIndex[c] = ce
			inv.e.cells = append(inv.e.cells, ce)
			c.dependents[inv.e] = struct{}{}
		}
	}
	return c.value
}

func (inv *invocation) SetState(v any) {
	inv.r.writeCell(inv.r.cellFor(inv.e.node), v)
}

func (inv *invocation) UpdateState(fn func(any) any) {
	c := inv.r.cellFor(inv.e.node)
	inv.r.writeCell(c, fn(c.value))
}

func (inv *invocation) Data() any      { return inv.e.data }
func (inv *invocation) SetData(v any)  { inv.e.data = v }
func (inv *invocation) Released() bool { return inv.e.released.Load() }

func (inv *invocation) Invalidate() {
	e := inv.e
	inv.r.post(func() {
		if e.released.Load() {
			return
		}
		e.force = true
		inv.r.markDirty(e)
	})
}

func (inv *invocation) Defer(fn func()) {
	inv.r.post(fn)
}

func (inv *invocation) CreateScope(remap domain.EventRemap) domain.ScopeID {
	id := inv.r.createScope(inv.e.node.Scope, remap)
	inv.e.scopes = append(inv.e.scopes, id)
	return id
}

func (inv *invocation) Dispatch(ev domain.Event) {
	if s := inv.r.scopes[inv.e.node.Scope]; s != nil {
		inv.r.dispatch(s, ev)
	}
}

func (inv *invocation) Logger() *slog.Logger {
	return inv.r.logger.With("node", inv.e.node.String(), "op", inv.e.op.Name())
}
