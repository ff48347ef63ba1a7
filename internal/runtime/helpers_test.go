package runtime_test

import (
	"testing"

	"github.com/aretw0/muster/internal/runtime"
	"github.com/aretw0/muster/internal/testutils"
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/nodes"
	"github.com/stretchr/testify/require"
)

// setup creates a runtime and materializes root as the root of its root scope.
func setup(root *domain.Definition, opts ...runtime.Option) (*runtime.Runtime, *domain.GraphNode) {
	rt := runtime.New(opts...)
	_, node := domain.NewRootContext(root, rt.RootScope(), nil)
	return rt, node
}

// resolve subscribes to node, returns the latest result and unsubscribes.
func resolve(t *testing.T, rt *runtime.Runtime, node *domain.GraphNode) *domain.Definition {
	t.Helper()
	rec := &testutils.Recorder{}
	unsubscribe := rt.Subscribe(node, rec.RecordNode)
	defer unsubscribe()
	last := rec.Last()
	require.NotNil(t, last, "subscription delivered nothing")
	return last
}

// counting returns a pure node producing value and counting its evaluations.
func counting(calls *int, value any, deps ...*domain.Definition) *domain.Definition {
	return nodes.Computed(deps, func(...any) (any, error) {
		*calls++
		return value, nil
	})
}

func counterGraph() *domain.Definition {
	return nodes.Tree(map[string]*domain.Definition{
		"foo": nodes.Variable(3),
	})
}

func newRuntime() *runtime.Runtime {
	return runtime.New()
}
