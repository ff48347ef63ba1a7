package domain_test

import (
	"testing"

	"github.com/aretw0/muster/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphNode_Identity(t *testing.T) {
	def := domain.Value(1)
	ctx, _ := domain.NewRootContext(domain.Value("root"), 1, nil)

	a := domain.NewGraphNode(def, 1, ctx, []string{"a"})
	b := domain.NewGraphNode(def, 1, ctx, []string{"b"})
	c := domain.NewGraphNode(def, 2, ctx, nil)

	assert.Equal(t, a.ID(), b.ID(), "path is not part of identity")
	assert.NotEqual(t, a.ID(), c.ID(), "scope is part of identity")

	child := a.Child(domain.Value(2), "x")
	assert.Equal(t, []string{"a", "x"}, child.Path)
	assert.Equal(t, []string{"a"}, a.Path)
}

func TestContext_Lookup(t *testing.T) {
	ctx, root := domain.NewRootContext(domain.Value("root"), 1, nil)

	got, ok := ctx.Lookup("root")
	require.True(t, ok)
	assert.Same(t, root, got)
	assert.Same(t, ctx, root.Context)

	inner := domain.NewContext(ctx, map[string]*domain.GraphNode{
		"item": root.Derive(domain.Value(5)),
	})
	item, ok := inner.Lookup("item")
	require.True(t, ok)
	assert.Equal(t, 5, domain.ValueOf(item.Definition))

	_, ok = inner.Lookup("root")
	assert.True(t, ok, "lookup walks the chain")

	_, ok = ctx.Lookup("item")
	assert.False(t, ok)

	same := domain.NewContext(ctx, map[string]*domain.GraphNode{
		"item": root.Derive(domain.Value(5)),
	})
	assert.Equal(t, inner.ID(), same.ID(), "equal bindings yield equal contexts")
}

func TestNewRootContext_DoesNotForwardOuter(t *testing.T) {
	outer, outerRoot := domain.NewRootContext(domain.Value("outer"), 1, nil)
	withItem := domain.NewContext(outer, map[string]*domain.GraphNode{"item": outerRoot.Derive(domain.Value(1))})

	inner, _ := domain.NewRootContext(domain.Value("inner"), 2, map[string]*domain.GraphNode{
		"forwarded": outerRoot,
	})
	_ = withItem

	_, ok := inner.Lookup("item")
	assert.False(t, ok)
	_, ok = inner.Lookup("forwarded")
	assert.True(t, ok)
}
