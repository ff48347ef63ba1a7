package domain

import (
	"fmt"
	"strings"

	"github.com/aretw0/muster/pkg/schema"
)

// Encoder serializes a nested definition.
type Encoder func(def *Definition) (any, error)

// Decoder deserializes a nested definition.
type Decoder func(data any) (*Definition, error)

// Codec converts a node type's properties to and from JSON-compatible fields.
// The "$type" tag is handled by the caller.
type Codec struct {
	Encode func(def *Definition, enc Encoder) (map[string]any, error)
	Decode func(t *NodeType, fields map[string]any, dec Decoder) (Properties, error)
}

// Shape types for properties holding definitions.
var (
	NodeShape     = schema.Custom("node", checkNode)
	NodeListShape = schema.Slice(NodeShape)
	NodeMapShape  = schema.Map(NodeShape)
	// TargetShape also accepts an already materialized graph node. It decodes
	// like NodeShape.
	TargetShape = schema.Custom("node", checkTarget)
)

func checkNode(v any) error {
	if def, ok := v.(*Definition); !ok || def == nil {
		return fmt.Errorf("expected node definition, got %T", v)
	}
	return nil
}

func checkTarget(v any) error {
	if node, ok := v.(*GraphNode); ok && node != nil {
		return nil
	}
	return checkNode(v)
}

// GenericCodec encodes properties as-is and recurses into nested definitions.
// Decoding uses the type's shape to recognise node, list and map properties.
func GenericCodec() *Codec {
	return &Codec{Encode: encodeGeneric, Decode: decodeGeneric}
}

func encodeGeneric(def *Definition, enc Encoder) (map[string]any, error) {
	out := make(map[string]any, len(def.Properties))
	for key, v := range def.Properties {
		encoded, err := encodeProperty(v, enc)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", key, err)
		}
		out[key] = encoded
	}
	return out, nil
}

func encodeProperty(v any, enc Encoder) (any, error) {
	switch val := v.(type) {
	case *Definition:
		return enc(val)
	case []*Definition:
		list := make([]any, len(val))
		for i, item := range val {
			encoded, err := enc(item)
			if err != nil {
				return nil, err
			}
			list[i] = encoded
		}
		return list, nil
	case map[string]*Definition:
		m := make(map[string]any, len(val))
		for k, item := range val {
			encoded, err := enc(item)
			if err != nil {
				return nil, err
			}
			m[k] = encoded
		}
		return m, nil
	case *GraphNode:
		return nil, fmt.Errorf("%w: graph node reference", ErrNotSerializable)
	}
	if isFunc(v) {
		return nil, fmt.Errorf("%w: function property", ErrNotSerializable)
	}
	return v, nil
}

func decodeGeneric(t *NodeType, fields map[string]any, dec Decoder) (Properties, error) {
	props := make(Properties, len(fields))
	for key, raw := range fields {
		kind := ""
		if st, ok := t.Shape[key]; ok {
			kind = strings.TrimSuffix(st.Name(), "?")
		}
		v, err := decodeProperty(kind, raw, dec)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", key, err)
		}
		props[key] = v
	}
	return props, nil
}

func decodeProperty(kind string, raw any, dec Decoder) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch kind {
	case "node":
		return dec(raw)
	case "[node]":
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("expected list, got %T", raw)
		}
		out := make([]*Definition, len(list))
		for i, item := range list {
			d, err := dec(item)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	case "{node}":
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object, got %T", raw)
		}
		out := make(map[string]*Definition, len(m))
		for k, item := range m {
			d, err := dec(item)
			if err != nil {
				return nil, err
			}
			out[k] = d
		}
		return out, nil
	case "[string]":
		list, ok := raw.([]any)
		if !ok {
			return raw, nil
		}
		out := make([]string, len(list))
		for i, item := range list {
			out[i] = fmt.Sprint(item)
		}
		return out, nil
	}
	return raw, nil
}
