package nodes_test

import (
	"testing"

	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/nodes"
	"github.com/aretw0/muster/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, nodes.Register(reg))

	for _, typ := range nodes.Types() {
		got, ok := reg.NodeType(typ.Name)
		require.True(t, ok, "missing %s", typ.Name)
		assert.Same(t, typ, got)
	}

	err := nodes.Register(reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateType)
}

func TestFactories(t *testing.T) {
	t.Run("Structural identity", func(t *testing.T) {
		assert.Equal(t, nodes.Ref("a", "b").ID(), nodes.Ref("a", "b").ID())
		assert.NotEqual(t, nodes.Ref("a", "b").ID(), nodes.Ref("b", "a").ID())
		assert.Equal(t, nodes.Root().ID(), nodes.Root().ID())
		assert.True(t, nodes.Tree(nil).Equal(nodes.Tree(map[string]*domain.Definition{})))
	})

	t.Run("Variables are distinct instances", func(t *testing.T) {
		assert.NotEqual(t, nodes.Variable(1).ID(), nodes.Variable(1).ID())
	})

	t.Run("Functions make definitions distinct", func(t *testing.T) {
		double := func(args ...any) (any, error) { return args[0], nil }
		assert.NotEqual(t, nodes.Computed(nil, double).ID(), nodes.Computed(nil, double).ID())
	})

	t.Run("Plain keys become value nodes", func(t *testing.T) {
		ref := nodes.Ref("items", 2)
		path := ref.Nodes("path")
		require.Len(t, path, 2)
		assert.Equal(t, "items", domain.ValueOf(path[0]))
		assert.Equal(t, 2, domain.ValueOf(path[1]))
		assert.True(t, domain.IsNil(nodes.Variable(nil).Node("value")))
	})

	t.Run("Invalid properties are rejected", func(t *testing.T) {
		_, err := domain.New(nodes.TreeType, domain.Properties{"branches": map[string]any{"x": 1}})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidShape)

		_, err = domain.New(nodes.ContextType, domain.Properties{})
		assert.ErrorIs(t, err, domain.ErrInvalidShape)

		assert.Panics(t, func() { nodes.Get(42, "key") })
	})

	t.Run("Capabilities", func(t *testing.T) {
		assert.True(t, nodes.VariableType.Supports(domain.OpSet))
		assert.True(t, nodes.TreeType.Supports(domain.OpEvaluate))
		assert.False(t, nodes.TreeType.Supports(domain.OpSet))
		assert.True(t, nodes.FnType.Supports(domain.OpCall))
		assert.Equal(t, []string{domain.OpEvaluate, domain.OpGetChild, domain.OpGetItems}, nodes.ArrayType.OperationNames())
	})
}
