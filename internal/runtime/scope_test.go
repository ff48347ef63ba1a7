package runtime_test

import (
	"testing"

	"github.com/aretw0/muster/internal/testutils"
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/nodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_DisposeResetsState(t *testing.T) {
	t.Run("Root scope", func(t *testing.T) {
		rt, root := setup(counterGraph())
		resolve(t, rt, root.Derive(nodes.Set(nodes.Ref("foo"), 5)))
		require.Equal(t, 5, domain.ValueOf(resolve(t, rt, root.Derive(nodes.Ref("foo")))))

		rt.Dispose(rt.RootScope())
		assert.Equal(t, 3, domain.ValueOf(resolve(t, rt, root.Derive(nodes.Ref("foo")))))
	})

	t.Run("Live subscribers see the default again", func(t *testing.T) {
		rt, root := setup(counterGraph())
		rec := &testutils.Recorder{}
		stop := rt.Subscribe(root.Derive(nodes.Ref("foo")), rec.RecordNode)
		defer stop()

		resolve(t, rt, root.Derive(nodes.Set(nodes.Ref("foo"), 5)))
		rt.Dispose(rt.RootScope())

		assert.Equal(t, []any{3, 5, 3}, rec.Values())
	})

	t.Run("Disposing a parent resets child scopes", func(t *testing.T) {
		rt := newRuntime()
		child := rt.CreateScope(rt.RootScope(), nil)
		_, childRoot := domain.NewRootContext(counterGraph(), child, nil)

		resolve(t, rt, childRoot.Derive(nodes.Set(nodes.Ref("foo"), 9)))
		require.Equal(t, 9, domain.ValueOf(resolve(t, rt, childRoot.Derive(nodes.Ref("foo")))))

		rt.Dispose(rt.RootScope())
		assert.Equal(t, 3, domain.ValueOf(resolve(t, rt, childRoot.Derive(nodes.Ref("foo")))))
	})

	t.Run("Scopes hold separate state", func(t *testing.T) {
		rt := newRuntime()
		graph := counterGraph()
		_, first := domain.NewRootContext(graph, rt.CreateScope(rt.RootScope(), nil), nil)
		_, second := domain.NewRootContext(graph, rt.CreateScope(rt.RootScope(), nil), nil)

		resolve(t, rt, first.Derive(nodes.Set(nodes.Ref("foo"), 1)))
		assert.Equal(t, 1, domain.ValueOf(resolve(t, rt, first.Derive(nodes.Ref("foo")))))
		assert.Equal(t, 3, domain.ValueOf(resolve(t, rt, second.Derive(nodes.Ref("foo")))))
	})

	t.Run("OnDispose callbacks run after dispose", func(t *testing.T) {
		rt := newRuntime()
		calls := 0
		rt.OnDispose(rt.RootScope(), func() { calls++ })
		rt.Dispose(rt.RootScope())
		rt.Dispose(rt.RootScope())
		assert.Equal(t, 2, calls)
	})
}

func TestScope_Events(t *testing.T) {
	t.Run("Reset event restores variables", func(t *testing.T) {
		rt, root := setup(counterGraph())
		rec := &testutils.Recorder{}
		stop := rt.Subscribe(root.Derive(nodes.Ref("foo")), rec.RecordNode)
		defer stop()

		resolve(t, rt, root.Derive(nodes.Set(nodes.Ref("foo"), 5)))
		rt.Dispatch(rt.RootScope(), domain.Event{Type: domain.EventReset})

		assert.Equal(t, []any{3, 5, 3}, rec.Values())
	})

	t.Run("Reset event reaches variables nobody reads", func(t *testing.T) {
		rt, root := setup(counterGraph())
		resolve(t, rt, root.Derive(nodes.Set(nodes.Ref("foo"), 1)))
		require.Equal(t, 1, domain.ValueOf(resolve(t, rt, root.Derive(nodes.Ref("foo")))))

		rt.Dispatch(rt.RootScope(), domain.Event{Type: domain.EventReset})
		assert.Equal(t, 3, domain.ValueOf(resolve(t, rt, root.Derive(nodes.Ref("foo")))))
	})

	t.Run("Child scopes receive remapped events", func(t *testing.T) {
		rt := newRuntime()
		child := rt.CreateScope(rt.RootScope(), func(ev domain.Event) (domain.Event, bool) {
			if ev.Type == "private" {
				return ev, false
			}
			ev.Type = "outer:" + ev.Type
			return ev, true
		})

		var outer, inner []string
		stopOuter := rt.OnEvent(rt.RootScope(), func(ev domain.Event) { outer = append(outer, ev.Type) })
		defer stopOuter()
		stopInner := rt.OnEvent(child, func(ev domain.Event) { inner = append(inner, ev.Type) })
		defer stopInner()

		rt.Dispatch(rt.RootScope(), domain.Event{Type: "ping"})
		rt.Dispatch(rt.RootScope(), domain.Event{Type: "private"})
		rt.Dispatch(child, domain.Event{Type: "local"})

		assert.Equal(t, []string{"ping", "private"}, outer)
		assert.Equal(t, []string{"outer:ping", "local"}, inner)
	})

	t.Run("Dropped reset leaves child state alone", func(t *testing.T) {
		rt := newRuntime()
		child := rt.CreateScope(rt.RootScope(), func(ev domain.Event) (domain.Event, bool) { return ev, false })
		_, childRoot := domain.NewRootContext(counterGraph(), child, nil)

		rec := &testutils.Recorder{}
		stop := rt.Subscribe(childRoot.Derive(nodes.Ref("foo")), rec.RecordNode)
		defer stop()
		resolve(t, rt, childRoot.Derive(nodes.Set(nodes.Ref("foo"), 4)))

		rt.Dispatch(rt.RootScope(), domain.Event{Type: domain.EventReset})
		assert.Equal(t, []any{3, 4}, rec.Values())
	})

	t.Run("Removed listeners stop receiving", func(t *testing.T) {
		rt := newRuntime()
		count := 0
		stop := rt.OnEvent(rt.RootScope(), func(domain.Event) { count++ })
		rt.Dispatch(rt.RootScope(), domain.Event{Type: "a"})
		stop()
		rt.Dispatch(rt.RootScope(), domain.Event{Type: "b"})
		assert.Equal(t, 1, count)
	})

	t.Run("Dispatch node fires into its scope", func(t *testing.T) {
		rt, root := setup(nodes.Tree(nil))
		var got []domain.Event
		stop := rt.OnEvent(rt.RootScope(), func(ev domain.Event) { got = append(got, ev) })
		defer stop()

		result := resolve(t, rt, root.Derive(nodes.Dispatch("hello", "world")))
		assert.True(t, domain.IsNil(result))
		assert.Equal(t, []domain.Event{{Type: "hello", Payload: "world"}}, got)
	})
}

func TestScope_Node(t *testing.T) {
	t.Run("Context is not inherited", func(t *testing.T) {
		rt, root := setup(nodes.Tree(nil))
		def := nodes.With(
			map[string]*domain.Definition{"user": nodes.Value("ann")},
			nodes.Scope(nodes.Context("user")),
		)
		err := domain.ErrorOf(resolve(t, rt, root.Derive(def)))
		require.NotNil(t, err)
		assert.ErrorIs(t, err, domain.ErrMissingContextDependency)
	})

	t.Run("Declared bindings are forwarded", func(t *testing.T) {
		rt, root := setup(nodes.Tree(nil))
		def := nodes.With(
			map[string]*domain.Definition{"user": nodes.Value("ann")},
			nodes.Scope(nodes.Context("user"), nodes.WithScopeContext(map[string]*domain.Definition{
				"user": nodes.Context("user"),
			})),
		)
		assert.Equal(t, "ann", domain.ValueOf(resolve(t, rt, root.Derive(def))))
	})

	t.Run("Root refers to the scope root", func(t *testing.T) {
		inner := nodes.Tree(map[string]*domain.Definition{"name": nodes.Value("inner")})
		rt, root := setup(nodes.Tree(map[string]*domain.Definition{
			"name":  nodes.Value("outer"),
			"child": nodes.Scope(inner),
		}))
		assert.Equal(t, "inner", domain.ValueOf(resolve(t, rt, root.Derive(nodes.Ref("child", "name")))))
		assert.Equal(t, "outer", domain.ValueOf(resolve(t, rt, root.Derive(nodes.Ref("name")))))
	})
}
