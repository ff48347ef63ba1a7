package tui_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/muster/internal/presentation/tui"
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/nodes"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinter(t *testing.T) {
	notFound := domain.NewNotFoundError("bob").WithPath([]string{"users", "bob"})

	tests := []struct {
		name   string
		result *domain.Definition
		want   string
	}{
		{"Value", domain.Value("Alice"), "\"Alice\"\n"},
		{"Object Value", domain.Value(map[string]any{"n": 1}), "{\"n\":1}\n"},
		{"Nil", domain.Nil(), "null\n"},
		{"Pending", domain.Pending(), "… pending\n"},
		{"Error", domain.ErrorNode(notFound), "✗ error [NOT_FOUND] " + notFound.Message + " at /users/bob\n"},
		{"Tree", nodes.Tree(map[string]*domain.Definition{"a": domain.Value(1)}),
			`{"$type":"tree","branches":{"a":{"$type":"value","value":1}}}` + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := tui.NewPrinter(&buf)

			require.NoError(t, p.Print(tt.result))
			assert.Equal(t, tt.want, buf.String())
		})
	}

	t.Run("Raw", func(t *testing.T) {
		var buf bytes.Buffer
		p := tui.NewPrinter(&buf, tui.WithRaw(true))

		require.NoError(t, p.Print(domain.Value(3)))
		require.NoError(t, p.Print(domain.ErrorNode(notFound)))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.JSONEq(t, `{"$type":"value","value":3}`, lines[0])
		assert.Contains(t, lines[1], `"$type":"error"`)
	})

	t.Run("Remote Path", func(t *testing.T) {
		p := tui.NewPrinter(&bytes.Buffer{})
		err := &domain.Error{Message: "boom", RemotePath: []string{"bar"}}
		assert.Equal(t, "✗ error boom (remote /bar)", p.FormatError(err))
	})

	t.Run("Colored Output Is Indented", func(t *testing.T) {
		var buf bytes.Buffer
		p := tui.NewPrinter(&buf, tui.WithProfile(termenv.TrueColor))

		require.NoError(t, p.Print(domain.Value(map[string]any{"n": 1})))
		assert.Contains(t, buf.String(), "\x1b[")
		assert.Contains(t, buf.String(), "\n  \"n\": 1\n")
	})
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|_|  |_|")
	assert.False(t, tui.IsTerminal(&buf))
}
