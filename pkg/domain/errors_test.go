package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/muster/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestError_Taxonomy(t *testing.T) {
	tests := []struct {
		name string
		err  *domain.Error
		kind error
		code string
	}{
		{"NotFound", domain.NewNotFoundError("x"), domain.ErrNotFound, domain.CodeNotFound},
		{"Circular", domain.NewCircularReferenceError([]string{"a", "b", "a"}), domain.ErrCircularReference, domain.CodeCircularReference},
		{"MaxDepth", domain.NewMaxDepthExceededError(3, []string{"a"}), domain.ErrMaxDepthExceeded, domain.CodeMaxDepthExceeded},
		{"MissingContext", domain.NewMissingContextDependencyError("root"), domain.ErrMissingContextDependency, domain.CodeMissingContextDependency},
		{"Duplicate", domain.NewDuplicateTypeError("value"), domain.ErrDuplicateType, domain.CodeDuplicateType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.kind))
			assert.Equal(t, tt.code, tt.err.Code)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestNotFoundMessage(t *testing.T) {
	assert.Equal(t, `Invalid child key: "x"`, domain.NewNotFoundError("x").Message)
}

func TestAsError(t *testing.T) {
	t.Run("Generic", func(t *testing.T) {
		cause := errors.New("boom")
		e := domain.AsError(cause)
		assert.Equal(t, "boom", e.Message)
		assert.Empty(t, e.Code)
		assert.True(t, errors.Is(e, cause))
	})

	t.Run("Wrapped Sentinel Keeps Kind", func(t *testing.T) {
		e := domain.AsError(fmt.Errorf("lookup: %w", domain.ErrNotFound))
		assert.Equal(t, domain.CodeNotFound, e.Code)
		assert.True(t, errors.Is(e, domain.ErrNotFound))
	})

	t.Run("Nil", func(t *testing.T) {
		assert.Nil(t, domain.AsError(nil))
	})
}

func TestError_WithPath(t *testing.T) {
	e := domain.NewNotFoundError("x")
	located := e.WithPath([]string{"a", "b"})

	assert.Equal(t, []string{"a", "b"}, located.Path)
	assert.Empty(t, e.Path, "original must not be mutated")
	assert.Same(t, located, located.WithPath([]string{"c"}), "existing path wins")
}

func TestErrorMessages_QuoteVerbatim(t *testing.T) {
	assert.Equal(t, `Unrecognised node type: "a\b"`, domain.NewUnrecognisedTypeError(`a\b`).Message)
	assert.Equal(t, `Unrecognised node type: "héllo"`, domain.NewUnrecognisedTypeError("héllo").Message)
	assert.Equal(t, `Duplicate node type: "tab	x"`, domain.NewDuplicateTypeError("tab\tx").Message)
}

func TestErrorType_Encode(t *testing.T) {
	def := domain.ErrorNode(domain.NewNotFoundError("x").WithPath([]string{"a"}))
	fields, err := domain.ErrorType.Codec.Encode(def, nil)
	assert.NoError(t, err)
	assert.Equal(t, domain.CodeNotFound, fields["code"])
	detail := fields["error"].(map[string]any)
	assert.Equal(t, `Invalid child key: "x"`, detail["message"])
	assert.Equal(t, []string{"a"}, detail["path"])
}
