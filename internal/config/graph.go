package config

import (
	"fmt"
	"os"

	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/registry"
	"github.com/aretw0/muster/pkg/wire"
	"gopkg.in/yaml.v3"
)

// LoadGraph reads a graph definition from a YAML or JSON file.
func LoadGraph(path string, reg *registry.Registry) (*domain.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph: %w", err)
	}
	def, err := ParseGraph(data, reg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// ParseGraph decodes a graph document. Mappings carrying a "$type" key are
// serialized nodes. Outside of them, plain mappings become trees, sequences
// become arrays and scalars become values, so
//
//	users:
//	  alice: {name: Alice}
//	count: {$type: variable, value: {$type: value, value: 0}}
//
// is a tree with a nested users tree and a count variable.
func ParseGraph(data []byte, reg *registry.Registry) (*domain.Definition, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse graph: %w", err)
	}
	tree, err := expand(doc)
	if err != nil {
		return nil, err
	}
	return wire.Decode(reg, tree)
}

func expand(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return map[string]any{wire.TypeKey: "nil"}, nil
	case map[string]any:
		if _, ok := val[wire.TypeKey]; ok {
			return normalize(val)
		}
		branches := make(map[string]any, len(val))
		for k, child := range val {
			node, err := expand(child)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			branches[k] = node
		}
		return map[string]any{wire.TypeKey: "tree", "branches": branches}, nil
	case []any:
		items := make([]any, len(val))
		for i, child := range val {
			node, err := expand(child)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = node
		}
		return map[string]any{wire.TypeKey: "array", "items": items}, nil
	default:
		value, err := normalize(val)
		if err != nil {
			return nil, err
		}
		return map[string]any{wire.TypeKey: "value", "value": value}, nil
	}
}

// normalize converts YAML scalars and mappings into the JSON shapes the wire
// codecs expect.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			n, err := normalize(child)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("mapping key %v is not a string", k)
			}
			n, err := normalize(child)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			n, err := normalize(child)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	default:
		return val, nil
	}
}
