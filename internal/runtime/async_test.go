package runtime_test

import (
	"errors"
	"testing"

	"github.com/aretw0/muster/internal/testutils"
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/nodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deferredSource is an asynchronous node whose loads and writes complete only
// when the test says so.
type deferredSource struct {
	loads  []func(any, error)
	writes []func(error)
	def    *domain.Definition
}

func newDeferredSource() *deferredSource {
	s := &deferredSource{}
	s.def = nodes.Async(
		func(done func(any, error)) { s.loads = append(s.loads, done) },
		func(_ any, done func(error)) { s.writes = append(s.writes, done) },
	)
	return s
}

func TestAsync_RaceOrdering(t *testing.T) {
	t.Run("Earlier write settling first emits nothing", func(t *testing.T) {
		src := newDeferredSource()
		rt, root := setup(nodes.Tree(nil))

		first, second, value := &testutils.Recorder{}, &testutils.Recorder{}, &testutils.Recorder{}
		stopFirst := rt.Subscribe(root.Derive(nodes.Set(src.def, 123)), first.RecordNode)
		defer stopFirst()
		stopSecond := rt.Subscribe(root.Derive(nodes.Set(src.def, 234)), second.RecordNode)
		defer stopSecond()
		stopValue := rt.Subscribe(root.Derive(src.def), value.RecordNode)
		defer stopValue()

		require.Len(t, src.writes, 2)
		assert.True(t, domain.IsPending(value.Last()))

		src.writes[0](nil)
		assert.Empty(t, first.Values())
		assert.Empty(t, second.Values())
		assert.Empty(t, value.Values())

		src.writes[1](nil)
		assert.Equal(t, []any{234}, first.Values())
		assert.Equal(t, []any{234}, second.Values())
		assert.Equal(t, []any{234}, value.Values())
		assert.Empty(t, src.loads, "a settled write makes the load unnecessary")
	})

	t.Run("Write settling last wins", func(t *testing.T) {
		src := newDeferredSource()
		rt, root := setup(nodes.Tree(nil))

		value := &testutils.Recorder{}
		stopA := rt.Subscribe(root.Derive(nodes.Set(src.def, 123)), func(*domain.GraphNode) {})
		defer stopA()
		stopB := rt.Subscribe(root.Derive(nodes.Set(src.def, 234)), func(*domain.GraphNode) {})
		defer stopB()
		stopValue := rt.Subscribe(root.Derive(src.def), value.RecordNode)
		defer stopValue()

		src.writes[1](nil)
		assert.Empty(t, value.Values())
		src.writes[0](nil)
		assert.Equal(t, []any{123}, value.Values())
	})

	t.Run("Load in flight yields to the write settling last", func(t *testing.T) {
		src := newDeferredSource()
		rt, root := setup(nodes.Tree(nil))

		value := &testutils.Recorder{}
		stopValue := rt.Subscribe(root.Derive(src.def), value.RecordNode)
		defer stopValue()
		require.Len(t, src.loads, 1)
		assert.True(t, domain.IsPending(value.Last()))

		stopA := rt.Subscribe(root.Derive(nodes.Set(src.def, 123)), func(*domain.GraphNode) {})
		defer stopA()
		stopB := rt.Subscribe(root.Derive(nodes.Set(src.def, 234)), func(*domain.GraphNode) {})
		defer stopB()
		require.Len(t, src.writes, 2)

		src.writes[1](nil)
		src.writes[0](nil)
		src.loads[0]("stale", nil)
		assert.Equal(t, []any{123}, value.Values())
	})

	t.Run("Failed write settling last keeps the earlier value", func(t *testing.T) {
		src := newDeferredSource()
		rt, root := setup(nodes.Tree(nil))

		value := &testutils.Recorder{}
		stopA := rt.Subscribe(root.Derive(nodes.Set(src.def, 123)), func(*domain.GraphNode) {})
		defer stopA()
		stopB := rt.Subscribe(root.Derive(nodes.Set(src.def, 234)), func(*domain.GraphNode) {})
		defer stopB()
		stopValue := rt.Subscribe(root.Derive(src.def), value.RecordNode)
		defer stopValue()

		src.writes[0](nil)
		src.writes[1](errors.New("rejected"))
		assert.Equal(t, []any{123}, value.Values())
	})

	t.Run("Write issued after a load overrides it", func(t *testing.T) {
		src := newDeferredSource()
		rt, root := setup(nodes.Tree(nil))

		value := &testutils.Recorder{}
		stopValue := rt.Subscribe(root.Derive(src.def), value.RecordNode)
		defer stopValue()
		require.Len(t, src.loads, 1)
		src.loads[0]("loaded", nil)

		stopSet := rt.Subscribe(root.Derive(nodes.Set(src.def, "written")), func(*domain.GraphNode) {})
		defer stopSet()
		src.writes[0](nil)

		assert.Equal(t, []any{"loaded", "written"}, value.Values())
	})

	t.Run("Failed write reports to its caller", func(t *testing.T) {
		src := newDeferredSource()
		rt, root := setup(nodes.Tree(nil))

		caller := &testutils.Recorder{}
		stop := rt.Subscribe(root.Derive(nodes.Set(src.def, 1)), caller.RecordNode)
		defer stop()

		rejected := errors.New("rejected")
		src.writes[0](rejected)

		require.NotNil(t, domain.ErrorOf(caller.Last()))
		assert.ErrorIs(t, domain.ErrorOf(caller.Last()), rejected)
	})

	t.Run("Failed load is an error result", func(t *testing.T) {
		src := newDeferredSource()
		rt, root := setup(nodes.Tree(nil))

		value := &testutils.Recorder{}
		stop := rt.Subscribe(root.Derive(src.def), value.RecordNode)
		defer stop()
		src.loads[0](nil, errors.New("offline"))

		err := domain.ErrorOf(value.Last())
		require.NotNil(t, err)
		assert.Equal(t, "offline", err.Message)
	})

	t.Run("Read-only sources reject writes", func(t *testing.T) {
		source := nodes.Async(func(done func(any, error)) { done(1, nil) }, nil)
		rt, root := setup(nodes.Tree(nil))
		err := domain.ErrorOf(resolve(t, rt, root.Derive(nodes.Set(source, 2))))
		require.NotNil(t, err)
		assert.ErrorIs(t, err, domain.ErrUnsupportedOperation)
	})
}
