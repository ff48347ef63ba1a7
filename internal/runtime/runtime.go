package runtime

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/aretw0/muster/internal/logging"
	"github.com/aretw0/muster/pkg/domain"
)

// maxFlushPasses bounds how many times a flush re-runs entries that kept
// changing state while being recomputed.
const maxFlushPasses = 1000

// Runtime resolves graph nodes and keeps the results of subscribed operations up
// to date. All state transitions run on a serial loop; public methods are safe for
// concurrent use, but must not be called from operation handlers.
type Runtime struct {
	logger   *slog.Logger
	hooks    domain.Hooks
	debug    bool
	maxDepth int

	loop serial
	out  serial

	entries   map[string]*entry
	byNode    map[string]map[*entry]struct{}
	scopes    map[domain.ScopeID]*scope
	root      *scope
	nextScope domain.ScopeID
	seq       uint64
	observed  map[*entry]struct{}
}

// New creates a runtime with an empty root scope.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		logger:   logging.NewNop(),
		maxDepth: DefaultMaxDepth,
		entries:  make(map[string]*entry),
		byNode:   make(map[string]map[*entry]struct{}),
		scopes:   make(map[domain.ScopeID]*scope),
		observed: make(map[*entry]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.loop = serial{logger: r.logger, name: "loop"}
	r.out = serial{logger: r.logger, name: "delivery"}
	r.root = r.newScope(nil, nil)
	return r
}

// do runs fn on the loop, waits for it and for the flush that follows, then
// delivers notifications.
func (r *Runtime) do(fn func()) {
	done := make(chan struct{})
	r.loop.submit(func() {
		defer close(done)
		fn()
		r.flush()
	})
	<-done
	r.out.drain()
}

// post runs fn on the loop without waiting. When called outside the loop, the
// caller may end up draining it.
func (r *Runtime) post(fn func()) {
	if r.loop.submit(func() {
		fn()
		r.flush()
	}) {
		r.out.drain()
	}
}

// RootScope returns the ID of the root scope.
func (r *Runtime) RootScope() domain.ScopeID {
	return r.root.id
}

// Subscribe resolves node to a static result and calls fn with it, then again
// every time the result changes. Subscribers of the same node share one cache
// entry; fn receives results in subscription order.
func (r *Runtime) Subscribe(node *domain.GraphNode, fn func(*domain.GraphNode)) (unsubscribe func()) {
	return r.subscribe(node, &subscriber{fn: fn})
}

// Resolve waits for the first settled result of node. The result is taken on
// the loop rather than through the delivery queue, so Resolve may be called
// from a subscriber callback.
func (r *Runtime) Resolve(ctx context.Context, node *domain.GraphNode) (*domain.GraphNode, error) {
	results := make(chan *domain.GraphNode, 1)
	unsubscribe := r.subscribe(node, &subscriber{
		direct: true,
		fn: func(result *domain.GraphNode) {
			if domain.IsPending(result.Definition) {
				return
			}
			select {
			case results <- result:
			default:
			}
		},
	})
	defer unsubscribe()

	select {
	case result := <-results:
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Runtime) subscribe(node *domain.GraphNode, sub *subscriber) (unsubscribe func()) {
	obs := node.Derive(observe(node))
	sub.active.Store(true)

	var e *entry
	r.do(func() {
		e = r.entryFor(nil, obs, domain.Evaluate(), observeHandler)
		e.subscribers = append(e.subscribers, sub)
		cached := e.state == stateFresh
		r.refresh(e, &request{})
		if cached && r.hooks.OnCacheHit != nil {
			r.hooks.OnCacheHit(node, domain.Evaluate())
		}
		r.emit(e)
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			r.do(func() { r.unsubscribe(e, sub) })
		})
	}
}

func (r *Runtime) unsubscribe(e *entry, sub *subscriber) {
	for i, s := range e.subscribers {
		if s == sub {
			e.subscribers = append(e.subscribers[:i:i], e.subscribers[i+1:]...)
			break
		}
	}
	if !e.held() {
		r.release(e)
	}
}

// Invalidate discards every cached result of node and its private entry data,
// forcing recomputation. Nodes with no cached entries are unaffected.
func (r *Runtime) Invalidate(node *domain.GraphNode) {
	r.do(func() {
		for e := range r.byNode[node.ID()] {
			if e.frozen {
				continue
			}
			e.force = true
			e.data = nil
			r.markDirty(e)
		}
	})
}

// Stats reports the number of live cache entries and scopes.
type Stats struct {
	Entries int
	Scopes  int
}

// Stats returns a snapshot of the cache size.
func (r *Runtime) Stats() Stats {
	var s Stats
	r.do(func() {
		s = Stats{Entries: len(r.entries), Scopes: len(r.scopes)}
	})
	return s
}

type subscriber struct {
	fn   func(*domain.GraphNode)
	last string
	// direct subscribers are called on the loop and must not block.
	direct bool
	active atomic.Bool
}

// emit queues delivery of the current result to every subscriber that has not
// seen it yet.
func (r *Runtime) emit(e *entry) {
	if e.result == nil || e.released.Load() {
		return
	}
	id := e.result.ID()
	emitted := false
	for _, sub := range e.subscribers {
		if sub.last == id {
			continue
		}
		sub.last = id
		emitted = true
		sub, result := sub, e.result
		if sub.direct {
			sub.fn(result)
			continue
		}
		r.out.enqueue(func() {
			if sub.active.Load() {
				sub.fn(result)
			}
		})
	}
	if emitted && r.hooks.OnEmit != nil {
		r.hooks.OnEmit(e.result, e.result.Definition)
	}
}

// flush recomputes observed entries, lowest first, and emits changed results.
func (r *Runtime) flush() {
	for pass := 0; len(r.observed) > 0; pass++ {
		if pass >= maxFlushPasses {
			r.logger.Warn("flush did not settle; entries keep changing while recomputing",
				"pending", len(r.observed))
			r.observed = make(map[*entry]struct{})
			return
		}
		batch := make([]*entry, 0, len(r.observed))
		for e := range r.observed {
			batch = append(batch, e)
		}
		r.observed = make(map[*entry]struct{})
		sort.Slice(batch, func(i, j int) bool {
			if batch[i].height != batch[j].height {
				return batch[i].height < batch[j].height
			}
			return batch[i].seq < batch[j].seq
		})
		for _, e := range batch {
			if e.released.Load() {
				continue
			}
			r.refresh(e, &request{})
			r.emit(e)
		}
	}
}
