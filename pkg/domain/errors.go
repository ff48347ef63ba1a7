package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/muster/pkg/schema"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrInvalidShape is returned when definition properties fail the type's shape.
	ErrInvalidShape = errors.New("invalid shape")
	// ErrUnsupportedOperation is returned when a node does not handle an operation.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrNotFound is returned when a child key does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCircularReference is returned when resolution revisits an unresolved node.
	ErrCircularReference = errors.New("circular reference")
	// ErrMaxDepthExceeded is returned when resolution recurses past the depth limit.
	ErrMaxDepthExceeded = errors.New("max depth exceeded")
	// ErrMissingContextDependency is returned when a context binding is not in scope.
	ErrMissingContextDependency = errors.New("missing context dependency")
	// ErrDuplicateType is returned when a node type name is registered twice.
	ErrDuplicateType = errors.New("duplicate type")
	// ErrNotSerializable is returned when a node type declares no codec.
	ErrNotSerializable = errors.New("not serializable")
	// ErrUnrecognisedType is returned when a serialized node names an unknown type.
	ErrUnrecognisedType = errors.New("unrecognised node type")
)

// Error codes carried over the wire.
const (
	CodeInvalidShape             = "INVALID_SHAPE"
	CodeUnsupportedOperation     = "UNSUPPORTED_OPERATION"
	CodeNotFound                 = "NOT_FOUND"
	CodeCircularReference        = "CIRCULAR_REFERENCE"
	CodeMaxDepthExceeded         = "MAX_DEPTH_EXCEEDED"
	CodeMissingContextDependency = "MISSING_CONTEXT_DEPENDENCY"
	CodeDuplicateType            = "DUPLICATE_TYPE"
)

var kindByCode = map[string]error{
	CodeInvalidShape:             ErrInvalidShape,
	CodeUnsupportedOperation:     ErrUnsupportedOperation,
	CodeNotFound:                 ErrNotFound,
	CodeCircularReference:        ErrCircularReference,
	CodeMaxDepthExceeded:         ErrMaxDepthExceeded,
	CodeMissingContextDependency: ErrMissingContextDependency,
	CodeDuplicateType:            ErrDuplicateType,
}

// Error is the error result carried through the graph. It is a value: subscribers
// receive it like any other result.
type Error struct {
	Kind    error          `json:"-"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	// Path is the local graph path where the error surfaced.
	Path []string `json:"path,omitempty"`
	// RemotePath is the path inside a remote graph where the error originated.
	RemotePath []string `json:"remotePath,omitempty"`
	Cause      error    `json:"-"`
	// Stack holds the handler stack of a recovered panic, in debug mode only.
	Stack string `json:"-"`
}

func (e *Error) Error() string { return e.Message }

// Unwrap exposes both the kind and the underlying cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// WithPath returns a copy of e located at path, unless e already carries one.
func (e *Error) WithPath(path []string) *Error {
	if len(e.Path) > 0 || len(path) == 0 {
		return e
	}
	c := *e
	c.Path = append([]string(nil), path...)
	return &c
}

// AsError converts any error into an *Error. Errors already carrying the taxonomy
// keep their kind and code; anything else becomes a generic error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	for code, kind := range kindByCode {
		if errors.Is(err, kind) {
			return &Error{Kind: kind, Code: code, Message: err.Error(), Cause: err}
		}
	}
	return &Error{Message: err.Error(), Cause: err}
}

// KindForCode returns the sentinel matching a wire error code.
func KindForCode(code string) error {
	return kindByCode[code]
}

// NewError creates a generic error result.
func NewError(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// NewInvalidShapeError reports properties that do not match a node type's shape.
func NewInvalidShapeError(typeName string, shape schema.Schema, props Properties, cause error) *Error {
	received := make(map[string]string, len(props))
	for k, v := range props {
		received[k] = fmt.Sprintf("%T", v)
	}
	return &Error{
		Kind:    ErrInvalidShape,
		Code:    CodeInvalidShape,
		Message: fmt.Sprintf("Invalid %s node properties: %v", typeName, cause),
		Data: map[string]any{
			"type":     typeName,
			"expected": shape.Describe(),
			"received": received,
		},
		Cause: cause,
	}
}

// NewUnsupportedOperationError reports an operation a node does not accept.
func NewUnsupportedOperationError(node *GraphNode, op string) *Error {
	accepted := node.Definition.Type.OperationNames()
	return &Error{
		Kind: ErrUnsupportedOperation,
		Code: CodeUnsupportedOperation,
		Message: fmt.Sprintf("%s node does not support %s operation (accepted: %s)",
			node.Definition.Type.Name, op, strings.Join(accepted, ", ")),
		Data: map[string]any{
			"type":      node.Definition.Type.Name,
			"operation": op,
			"accepted":  accepted,
		},
		Path: node.Path,
	}
}

// NewNotFoundError reports a missing child key.
func NewNotFoundError(key any) *Error {
	return &Error{
		Kind:    ErrNotFound,
		Code:    CodeNotFound,
		Message: "Invalid child key: " + quote(fmt.Sprint(key)),
		Data:    map[string]any{"key": fmt.Sprint(key)},
	}
}

// NewCircularReferenceError reports a resolution cycle through the listed nodes.
func NewCircularReferenceError(nodes []string) *Error {
	return &Error{
		Kind:    ErrCircularReference,
		Code:    CodeCircularReference,
		Message: "Circular reference detected: " + strings.Join(nodes, " -> "),
		Data:    map[string]any{"nodes": nodes},
	}
}

// NewMaxDepthExceededError reports resolution that recursed past limit.
func NewMaxDepthExceededError(limit int, nodes []string) *Error {
	return &Error{
		Kind:    ErrMaxDepthExceeded,
		Code:    CodeMaxDepthExceeded,
		Message: fmt.Sprintf("Max depth of %d exceeded: %s", limit, strings.Join(nodes, " -> ")),
		Data:    map[string]any{"limit": limit, "nodes": nodes},
	}
}

// NewMissingContextDependencyError reports an unbound context name.
func NewMissingContextDependencyError(name string) *Error {
	return &Error{
		Kind:    ErrMissingContextDependency,
		Code:    CodeMissingContextDependency,
		Message: "Missing context dependency: " + quote(name),
		Data:    map[string]any{"name": name},
	}
}

// NewDuplicateTypeError reports a node type registered twice.
func NewDuplicateTypeError(name string) *Error {
	return &Error{
		Kind:    ErrDuplicateType,
		Code:    CodeDuplicateType,
		Message: "Duplicate node type: " + quote(name),
		Data:    map[string]any{"type": name},
	}
}

// NewUnrecognisedTypeError reports a serialized node naming an unknown type.
func NewUnrecognisedTypeError(name string) *Error {
	return &Error{
		Kind:    ErrUnrecognisedType,
		Message: "Unrecognised node type: " + quote(name),
		Data:    map[string]any{"type": name},
	}
}

// quote wraps s in double quotes without escaping, matching the wire messages.
func quote(s string) string { return "\"" + s + "\"" }
