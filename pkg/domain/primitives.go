package domain

import (
	"fmt"

	"github.com/aretw0/muster/pkg/schema"
)

// Primitive node types. They are static and form the results the runtime emits.
var (
	ValueType = &NodeType{
		Name:   "value",
		Shape:  schema.Schema{"value": schema.Any()},
		Static: true,
		Codec:  &Codec{Encode: encodeValue, Decode: decodeValue},
	}
	ErrorType = &NodeType{
		Name:   "error",
		Shape:  schema.Schema{"error": schema.Custom("error", checkError)},
		Static: true,
		Codec:  &Codec{Encode: encodeError, Decode: decodeError},
	}
	PendingType = &NodeType{
		Name:   "pending",
		Shape:  schema.Schema{},
		Static: true,
		Codec:  GenericCodec(),
	}
	NilType = &NodeType{
		Name:   "nil",
		Shape:  schema.Schema{},
		Static: true,
		Codec:  GenericCodec(),
	}
)

var (
	pendingDef = Must(PendingType, nil)
	nilDef     = Must(NilType, nil)
)

// Value creates a static value node.
func Value(v any) *Definition {
	return Must(ValueType, Properties{"value": v})
}

// ErrorNode wraps err in a static error node.
func ErrorNode(err error) *Definition {
	return Must(ErrorType, Properties{"error": AsError(err)})
}

// Pending is the result of an operation still waiting on an asynchronous source.
func Pending() *Definition { return pendingDef }

// Nil is the empty result.
func Nil() *Definition { return nilDef }

// IsValue reports whether def is a value node.
func IsValue(def *Definition) bool { return def.Is(ValueType) }

// IsError reports whether def is an error node.
func IsError(def *Definition) bool { return def.Is(ErrorType) }

// IsPending reports whether def is the pending node.
func IsPending(def *Definition) bool { return def.Is(PendingType) }

// IsNil reports whether def is the nil node.
func IsNil(def *Definition) bool { return def.Is(NilType) }

// ValueOf returns the payload of a value node, nil for the nil node, and the
// definition itself for any other node.
func ValueOf(def *Definition) any {
	switch {
	case def == nil, IsNil(def):
		return nil
	case IsValue(def):
		return def.Properties["value"]
	}
	return def
}

// ErrorOf returns the error carried by an error node, or nil.
func ErrorOf(def *Definition) *Error {
	if !IsError(def) {
		return nil
	}
	e, _ := def.Properties["error"].(*Error)
	return e
}

func checkError(v any) error {
	if _, ok := v.(*Error); !ok {
		return fmt.Errorf("expected *Error, got %T", v)
	}
	return nil
}

func encodeValue(def *Definition, _ Encoder) (map[string]any, error) {
	v := def.Properties["value"]
	if isFunc(v) {
		return nil, fmt.Errorf("%w: function value", ErrNotSerializable)
	}
	return map[string]any{"value": v}, nil
}

func decodeValue(_ *NodeType, fields map[string]any, _ Decoder) (Properties, error) {
	return Properties{"value": fields["value"]}, nil
}

// encodeError writes the error object plus the code/data summary used by HTTP
// consumers that only look at the top level.
func encodeError(def *Definition, _ Encoder) (map[string]any, error) {
	e, ok := def.Properties["error"].(*Error)
	if !ok {
		return nil, fmt.Errorf("error node: missing error")
	}
	detail := map[string]any{"message": e.Message}
	if e.Code != "" {
		detail["code"] = e.Code
	}
	if len(e.Data) > 0 {
		detail["data"] = e.Data
	}
	if len(e.Path) > 0 {
		detail["path"] = e.Path
	}
	if len(e.RemotePath) > 0 {
		detail["remotePath"] = e.RemotePath
	}

	out := map[string]any{"error": detail}
	if e.Code != "" {
		out["code"] = e.Code
	}
	path := e.Path
	if path == nil {
		path = []string{}
	}
	out["data"] = map[string]any{"error": e.Message, "path": path}
	return out, nil
}

func decodeError(_ *NodeType, fields map[string]any, _ Decoder) (Properties, error) {
	detail, ok := fields["error"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("error node: missing error object")
	}
	e := &Error{}
	e.Message, _ = detail["message"].(string)
	e.Code, _ = detail["code"].(string)
	e.Kind = KindForCode(e.Code)
	if data, ok := detail["data"].(map[string]any); ok {
		e.Data = data
	}
	e.Path = toStrings(detail["path"])
	e.RemotePath = toStrings(detail["remotePath"])
	return Properties{"error": e}, nil
}

func toStrings(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		if s, ok := raw.([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, len(list))
	for i, item := range list {
		out[i] = fmt.Sprint(item)
	}
	return out
}
