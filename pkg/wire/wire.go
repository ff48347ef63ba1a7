// Package wire implements the "$type"-tagged JSON form of node definitions and
// the messages exchanged with a remote graph.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/registry"
)

// TypeKey is the discriminator field of a serialized node.
const TypeKey = "$type"

// Encode converts def into a JSON-compatible tree. Types without a codec fail
// with domain.ErrNotSerializable.
func Encode(def *domain.Definition) (map[string]any, error) {
	if def == nil {
		def = domain.Nil()
	}
	codec := def.Type.Codec
	if codec == nil {
		return nil, fmt.Errorf("%w: %s node", domain.ErrNotSerializable, def.Type.Name)
	}
	fields, err := codec.Encode(def, func(child *domain.Definition) (any, error) {
		return Encode(child)
	})
	if err != nil {
		return nil, fmt.Errorf("%s node: %w", def.Type.Name, err)
	}
	if fields == nil {
		fields = make(map[string]any, 1)
	}
	fields[TypeKey] = def.Type.Name
	return fields, nil
}

// Serialize encodes def as JSON.
func Serialize(def *domain.Definition) ([]byte, error) {
	tree, err := Encode(def)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

// Decode rebuilds a definition from its JSON-compatible tree, looking node
// types up in reg. Unknown types fail with domain.ErrUnrecognisedType.
func Decode(reg *registry.Registry, data any) (*domain.Definition, error) {
	fields, ok := data.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected serialized node, got %T", data)
	}
	name, ok := fields[TypeKey].(string)
	if !ok {
		return nil, fmt.Errorf("serialized node has no %s field", TypeKey)
	}
	t, ok := reg.NodeType(name)
	if !ok {
		return nil, domain.NewUnrecognisedTypeError(name)
	}
	if t.Codec == nil {
		return nil, fmt.Errorf("%w: %s node", domain.ErrNotSerializable, name)
	}

	rest := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != TypeKey {
			rest[k] = v
		}
	}
	props, err := t.Codec.Decode(t, rest, func(child any) (*domain.Definition, error) {
		return Decode(reg, child)
	})
	if err != nil {
		return nil, fmt.Errorf("%s node: %w", name, err)
	}
	return domain.New(t, props)
}

// Deserialize decodes a JSON document produced by Serialize.
func Deserialize(reg *registry.Registry, data []byte) (*domain.Definition, error) {
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("invalid node JSON: %w", err)
	}
	return Decode(reg, tree)
}
