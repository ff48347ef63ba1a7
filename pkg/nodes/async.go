package nodes

import (
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/schema"
)

// Loader fetches a value asynchronously and reports it through done exactly once.
type Loader func(done func(value any, err error))

// Writer stores a value asynchronously and reports completion through done.
type Writer func(value any, done func(err error))

// AsyncType is a value backed by an asynchronous source. It is pending until
// the first load settles. Sets are written through the Writer; while any set is
// in flight the node is pending, and once all have settled it holds the value
// of the successful set that settled last.
var AsyncType = &domain.NodeType{
	Name: "async",
	Shape: schema.Schema{
		"load":  schema.Func(),
		"write": schema.Optional(schema.Func()),
	},
	State: &domain.StateType{
		Initial: func(*domain.Definition) any { return asyncState{} },
	},
	Operations: handlers{
		domain.OpEvaluate: {Run: runAsyncLoad},
		domain.OpSet:      {Uncacheable: true, Run: runAsyncWrite},
	},
}

// Async creates a node loaded by load. A nil write makes the node read-only.
func Async(load Loader, write Writer) *domain.Definition {
	props := domain.Properties{"load": load}
	if write != nil {
		props["write"] = write
	}
	return domain.Must(AsyncType, props)
}

// asyncState is shared by every operation on the node. Sets are numbered in
// issue order; applied is the number of the last one to settle successfully.
type asyncState struct {
	issued      int
	outstanding int
	applied     int
	value       *domain.Definition
}

// asyncLoad is the entry data of an evaluate: one load per cached entry.
type asyncLoad struct {
	// after is the number of sets issued before the load started.
	after int
	done  bool
	value *domain.Definition
	err   error
}

type asyncWrite struct {
	seq     int
	settled bool
	err     error
}

func runAsyncLoad(inv domain.Invocation) (domain.Result, error) {
	st, _ := inv.State().(asyncState)
	if st.outstanding > 0 {
		return domain.Pending(), nil
	}
	load, _ := inv.Data().(*asyncLoad)
	if st.applied > 0 && (load == nil || st.applied > load.after) {
		return st.value, nil
	}
	if load == nil {
		load = &asyncLoad{after: st.issued}
		inv.SetData(load)
		fn, _ := inv.Node().Definition.Get("load").(Loader)
		fn(func(value any, err error) {
			inv.Defer(func() {
				if inv.Released() || inv.Data() != load || load.done {
					return
				}
				load.done, load.value, load.err = true, toDefinition(value), err
				inv.Invalidate()
			})
		})
	}
	if !load.done {
		return domain.Pending(), nil
	}
	if load.err != nil {
		return nil, load.err
	}
	return load.value, nil
}

func runAsyncWrite(inv domain.Invocation) (domain.Result, error) {
	w, _ := inv.Data().(*asyncWrite)
	if w == nil {
		write, ok := inv.Node().Definition.Get("write").(Writer)
		if !ok {
			return nil, domain.NewUnsupportedOperationError(inv.Node(), domain.OpSet)
		}
		w = &asyncWrite{}
		inv.SetData(w)
		value := inv.Operation().Value()
		inv.UpdateState(func(cur any) any {
			st, _ := cur.(asyncState)
			st.issued++
			st.outstanding++
			w.seq = st.issued
			return st
		})
		write(domain.ValueOf(value), func(err error) {
			inv.Defer(func() {
				if w.settled {
					return
				}
				w.settled, w.err = true, err
				inv.UpdateState(func(cur any) any {
					st, _ := cur.(asyncState)
					st.outstanding--
					if err == nil {
						st.applied = w.seq
						st.value = value
					}
					return st
				})
				inv.Invalidate()
			})
		})
	}

	st, _ := inv.State().(asyncState)
	if !w.settled || st.outstanding > 0 {
		return domain.Pending(), nil
	}
	if w.err != nil {
		return nil, w.err
	}
	return st.value, nil
}
