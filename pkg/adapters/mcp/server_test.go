package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/muster"
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/nodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*Server, *muster.Engine) {
	t.Helper()
	eng, err := muster.New(nodes.Tree(map[string]*domain.Definition{
		"users": nodes.Tree(map[string]*domain.Definition{
			"alice": nodes.Value("Alice"),
		}),
		"count": nodes.Variable(3),
	}))
	require.NoError(t, err)
	return NewServer(eng), eng
}

// call sends one JSON-RPC request through the MCP server and returns the
// decoded result object.
func call(t *testing.T, s *Server, method string, params any) map[string]any {
	t.Helper()
	req, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	resp := s.mcpServer.HandleMessage(context.Background(), req)
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var out struct {
		Result map[string]any `json:"result"`
		Error  map[string]any `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Nil(t, out.Error, "unexpected JSON-RPC error: %s", raw)
	return out.Result
}

func tool(t *testing.T, s *Server, name string, args map[string]any) (string, bool) {
	t.Helper()
	result := call(t, s, "tools/call", map[string]any{"name": name, "arguments": args})
	content := result["content"].([]any)
	require.NotEmpty(t, content)
	text, _ := content[0].(map[string]any)["text"].(string)
	isError, _ := result["isError"].(bool)
	return text, isError
}

func TestTools(t *testing.T) {
	t.Run("Resolve", func(t *testing.T) {
		s, _ := newServer(t)

		text, isError := tool(t, s, "resolve", map[string]any{
			"query": `{"$type":"ref","path":[{"$type":"value","value":"users"},{"$type":"value","value":"alice"}]}`,
		})

		assert.False(t, isError)
		assert.JSONEq(t, `{"$type":"value","value":"Alice"}`, text)
	})

	t.Run("Resolve Error Result", func(t *testing.T) {
		s, _ := newServer(t)

		text, isError := tool(t, s, "resolve", map[string]any{
			"query": `{"$type":"ref","path":[{"$type":"value","value":"nobody"}]}`,
		})

		assert.True(t, isError)
		assert.Contains(t, text, domain.CodeNotFound)
	})

	t.Run("Resolve Invalid Query", func(t *testing.T) {
		s, _ := newServer(t)

		text, isError := tool(t, s, "resolve", map[string]any{"query": `{"$type":"bogus"}`})

		assert.True(t, isError)
		assert.Contains(t, text, `Unrecognised node type: "bogus"`)
	})

	t.Run("Get", func(t *testing.T) {
		s, _ := newServer(t)

		text, isError := tool(t, s, "get", map[string]any{"path": "/users/alice"})

		assert.False(t, isError)
		assert.JSONEq(t, `{"$type":"value","value":"Alice"}`, text)
	})

	t.Run("Set", func(t *testing.T) {
		s, eng := newServer(t)

		text, isError := tool(t, s, "set", map[string]any{"path": "count", "value": "10"})
		require.False(t, isError, text)

		result, err := eng.Resolve(context.Background(), nodes.Ref("count"))
		require.NoError(t, err)
		assert.Equal(t, float64(10), domain.ValueOf(result))
	})

	t.Run("Set Invalid Value", func(t *testing.T) {
		s, _ := newServer(t)

		text, isError := tool(t, s, "set", map[string]any{"path": "count", "value": "{"})

		assert.True(t, isError)
		assert.Contains(t, text, "invalid value")
	})

	t.Run("Dispatch", func(t *testing.T) {
		s, eng := newServer(t)
		ctx := context.Background()
		_, err := eng.Resolve(ctx, nodes.Set(nodes.Ref("count"), 0))
		require.NoError(t, err)

		_, isError := tool(t, s, "dispatch", map[string]any{"type": domain.EventReset})
		require.False(t, isError)

		assert.Eventually(t, func() bool {
			result, err := eng.Resolve(ctx, nodes.Ref("count"))
			return err == nil && domain.ValueOf(result) == 3
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("List Types", func(t *testing.T) {
		s, _ := newServer(t)

		text, isError := tool(t, s, "list_types", map[string]any{})

		assert.False(t, isError)
		assert.Contains(t, text, "ref\n")
		assert.Contains(t, text, "variable")
	})
}

func TestGraphResource(t *testing.T) {
	t.Run("Serializable Graph", func(t *testing.T) {
		eng, err := muster.New(nodes.Tree(map[string]*domain.Definition{
			"greeting": nodes.Value("hello"),
		}))
		require.NoError(t, err)
		s := NewServer(eng)

		result := call(t, s, "resources/read", map[string]any{"uri": GraphURI})

		contents := result["contents"].([]any)
		require.Len(t, contents, 1)
		entry := contents[0].(map[string]any)
		assert.Equal(t, GraphURI, entry["uri"])
		assert.JSONEq(t, `{"$type":"tree","branches":{"greeting":{"$type":"value","value":"hello"}}}`, entry["text"].(string))
	})
}

func TestSplitPath(t *testing.T) {
	assert.Equal(t, []any{"a", "b"}, splitPath("/a//b/"))
	assert.Nil(t, splitPath(""))
}
