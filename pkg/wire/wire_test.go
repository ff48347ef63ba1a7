package wire_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/nodes"
	"github.com/aretw0/muster/pkg/registry"
	"github.com/aretw0/muster/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.NewRegistry()
	require.NoError(t, nodes.Register(reg))
	return reg
}

func TestRoundTrip(t *testing.T) {
	reg := newRegistry(t)
	cases := []struct {
		name string
		def  *domain.Definition
	}{
		{"value", nodes.Value("baz")},
		{"number", nodes.Value(7)},
		{"nil", nodes.Nil()},
		{"pending", nodes.Pending()},
		{"tree", nodes.Tree(map[string]*domain.Definition{
			"bar": nodes.Tree(map[string]*domain.Definition{"articles": nodes.Value("baz")}),
		})},
		{"array", nodes.Array(nodes.Value(1), nodes.Value("two"))},
		{"ref", nodes.Ref("bar", "articles")},
		{"ref with root", nodes.RefFrom(nodes.Tree(nil), "x")},
		{"get", nodes.Get(nodes.Root(), "x")},
		{"context", nodes.Context("user")},
		{"with", nodes.With(map[string]*domain.Definition{"user": nodes.Value("ann")}, nodes.Context("user"))},
		{"set", nodes.Set(nodes.Ref("foo"), 3)},
		{"reset", nodes.Reset(nodes.Ref("foo"))},
		{"decrement", nodes.Decrement(nodes.Ref("foo"))},
		{"call", nodes.Call(nodes.Ref("fn"), 1, "a")},
		{"catchError", nodes.CatchError("fallback", nodes.Ref("x"))},
		{"dispatch", nodes.Dispatch("reset", nil)},
		{"scope", nodes.Scope(nodes.Ref("x"))},
		{"error", nodes.Error(domain.NewNotFoundError("x").WithPath([]string{"a", "x"}))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := wire.Serialize(tc.def)
			require.NoError(t, err)

			decoded, err := wire.Deserialize(reg, data)
			require.NoError(t, err)
			assert.Equal(t, tc.def.ID(), decoded.ID(), "decoded %s from %s", decoded, data)
		})
	}
}

func TestSerialize_Format(t *testing.T) {
	t.Run("Ref", func(t *testing.T) {
		data, err := wire.Serialize(nodes.Ref("articles"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"$type":"ref","path":[{"$type":"value","value":"articles"}]}`, string(data))
	})

	t.Run("Error", func(t *testing.T) {
		data, err := wire.Serialize(nodes.Error(domain.NewNotFoundError("x").WithPath([]string{"a", "x"})))
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "error", got["$type"])
		assert.Equal(t, domain.CodeNotFound, got["code"])
		assert.Equal(t, map[string]any{"error": `Invalid child key: "x"`, "path": []any{"a", "x"}}, got["data"])
		detail := got["error"].(map[string]any)
		assert.Equal(t, `Invalid child key: "x"`, detail["message"])
	})

	t.Run("Variables carry their initial value", func(t *testing.T) {
		tree, err := wire.Encode(nodes.Variable(3))
		require.NoError(t, err)
		assert.Equal(t, "variable", tree[wire.TypeKey])
		assert.Equal(t, map[string]any{"$type": "value", "value": 3}, tree["value"])
	})
}

func TestSerialize_NotSerializable(t *testing.T) {
	computed := nodes.Computed(nil, func(...any) (any, error) { return nil, nil })

	_, err := wire.Serialize(computed)
	assert.ErrorIs(t, err, domain.ErrNotSerializable)

	_, err = wire.Serialize(nodes.Tree(map[string]*domain.Definition{"nested": computed}))
	assert.ErrorIs(t, err, domain.ErrNotSerializable)

	_, err = wire.Serialize(nodes.Value(func() {}))
	assert.ErrorIs(t, err, domain.ErrNotSerializable)
}

func TestDeserialize_Errors(t *testing.T) {
	reg := newRegistry(t)

	t.Run("Unknown type", func(t *testing.T) {
		_, err := wire.Deserialize(reg, []byte(`{"$type":"query","root":null}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnrecognisedType)
		assert.Equal(t, `Unrecognised node type: "query"`, err.Error())
	})

	t.Run("Unknown nested type", func(t *testing.T) {
		_, err := wire.Deserialize(reg, []byte(`{"$type":"ref","path":[{"$type":"mystery"}]}`))
		assert.ErrorIs(t, err, domain.ErrUnrecognisedType)
	})

	t.Run("Invalid shape", func(t *testing.T) {
		_, err := wire.Deserialize(reg, []byte(`{"$type":"context","name":7}`))
		assert.ErrorIs(t, err, domain.ErrInvalidShape)
	})

	t.Run("Missing tag", func(t *testing.T) {
		_, err := wire.Deserialize(reg, []byte(`{"value":1}`))
		assert.Error(t, err)
	})

	t.Run("Malformed JSON", func(t *testing.T) {
		_, err := wire.Deserialize(reg, []byte(`{`))
		assert.Error(t, err)
	})
}

func TestMessages(t *testing.T) {
	msg := wire.Subscribe("req-1", []byte(`{"$type":"value","value":1}`))
	require.NoError(t, msg.Validate())

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"subscribe","requestId":"req-1","query":{"$type":"value","value":1}}`, string(data))

	var decoded wire.Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, msg.RequestID, decoded.RequestID)

	assert.NoError(t, wire.Unsubscribe("req-1").Validate())
	assert.Error(t, wire.Result("req-1", nil).Validate())
	assert.Error(t, wire.Message{Name: "hello", RequestID: "x"}.Validate())
	assert.Error(t, wire.Unsubscribe("").Validate())
}
