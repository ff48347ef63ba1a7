package nodes

import (
	"fmt"
	"math"
	"strconv"

	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/schema"
)

// TreeType is a static keyed container.
var TreeType = &domain.NodeType{
	Name:   "tree",
	Shape:  schema.Schema{"branches": domain.NodeMapShape},
	Static: true,
	Codec:  domain.GenericCodec(),
	Operations: handlers{
		domain.OpGetChild: {Run: treeChild},
	},
}

// Tree creates a static tree with the given branches.
func Tree(branches map[string]*domain.Definition) *domain.Definition {
	if branches == nil {
		branches = map[string]*domain.Definition{}
	}
	return domain.Must(TreeType, domain.Properties{"branches": branches})
}

func treeChild(inv domain.Invocation) (domain.Result, error) {
	node := inv.Node()
	key := fmt.Sprint(inv.Operation().Key())
	branches, _ := node.Definition.Get("branches").(map[string]*domain.Definition)
	child, ok := branches[key]
	if !ok {
		return nil, domain.NewNotFoundError(key).WithPath(append(append([]string{}, node.Path...), key))
	}
	return child, nil
}

// ArrayType is a static ordered container. Children are addressed by index.
var ArrayType = &domain.NodeType{
	Name:   "array",
	Shape:  schema.Schema{"items": domain.NodeListShape},
	Static: true,
	Codec:  domain.GenericCodec(),
	Operations: handlers{
		domain.OpGetChild: {Run: arrayChild},
		domain.OpGetItems: {
			GetDependencies: func(def *domain.Definition, _ *domain.Operation) []domain.Dependency {
				return evaluateAll(def.Nodes("items"))
			},
			Run: func(inv domain.Invocation) (domain.Result, error) {
				return domain.Value(values(inv.Dependencies())), nil
			},
		},
	},
}

// Array creates a static array of items.
func Array(items ...*domain.Definition) *domain.Definition {
	if items == nil {
		items = []*domain.Definition{}
	}
	return domain.Must(ArrayType, domain.Properties{"items": items})
}

func arrayChild(inv domain.Invocation) (domain.Result, error) {
	node := inv.Node()
	key := inv.Operation().Key()
	items := node.Definition.Nodes("items")
	index, ok := toIndex(key)
	if !ok || index < 0 || index >= len(items) {
		label := fmt.Sprint(key)
		return nil, domain.NewNotFoundError(label).WithPath(append(append([]string{}, node.Path...), label))
	}
	return items[index], nil
}

func toIndex(key any) (int, bool) {
	switch k := key.(type) {
	case int:
		return k, true
	case int64:
		return int(k), true
	case float64:
		if k != math.Trunc(k) {
			return 0, false
		}
		return int(k), true
	case string:
		n, err := strconv.Atoi(k)
		return n, err == nil
	}
	return 0, false
}
