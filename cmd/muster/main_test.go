package main

import (
	"bytes"
	"testing"

	"github.com/aretw0/muster/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:8080":      "ws://localhost:8080/ws",
		"https://example.com/graph/": "wss://example.com/graph/ws",
		"ws://localhost:8080/ws":     "ws://localhost:8080/ws",
	}
	for in, want := range tests {
		got, err := socketURL(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestSplitPath(t *testing.T) {
	assert.Equal(t, []any{"users", "alice", "name"}, splitPath([]string{"/users/alice", "name/"}))
	assert.Nil(t, splitPath(nil))
}

func TestCommands(t *testing.T) {
	graphFile := testutils.WriteFile(t, "graph.yaml", "users:\n  alice: Alice\n")

	run := func(t *testing.T, args ...string) string {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(args)
		t.Cleanup(func() { rootCmd.SetArgs(nil) })
		require.NoError(t, rootCmd.Execute())
		return out.String()
	}

	t.Run("Version", func(t *testing.T) {
		assert.Contains(t, run(t, "version"), "muster version ")
	})

	t.Run("Graph", func(t *testing.T) {
		out := run(t, "graph", "--graph", graphFile, "--highlight", "users/alice")
		assert.Contains(t, out, "graph TD\n")
		assert.Contains(t, out, "root --> n_users")
		assert.Contains(t, out, "class n_users_alice highlighted;")
	})
}
