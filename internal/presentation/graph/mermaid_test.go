package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/muster/internal/presentation/graph"
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/nodes"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		root     *domain.Definition
		overlay  *graph.GraphOverlay
		contains []string
	}{
		{
			name: "Root Shape",
			root: nodes.Tree(nil),
			contains: []string{
				"graph TD\n",
				`root(("root<br/>tree"))`,
			},
		},
		{
			name: "Tree Branches",
			root: nodes.Tree(map[string]*domain.Definition{
				"users": nodes.Tree(map[string]*domain.Definition{
					"alice": nodes.Value("Alice"),
				}),
			}),
			contains: []string{
				`n_users["users<br/>tree"]`,
				`n_users_alice(["alice<br/>Alice"])`,
				"root --> n_users",
				"n_users --> n_users_alice",
			},
		},
		{
			name: "Stateful And Ref Shapes",
			root: nodes.Tree(map[string]*domain.Definition{
				"count": nodes.Variable(0),
				"alias": nodes.Ref("count"),
			}),
			contains: []string{
				`n_count[("count<br/>variable")]`,
				`n_alias[["alias<br/>ref"]]`,
				"n_count -.-> n_count_value",
			},
		},
		{
			name: "Array Items",
			root: nodes.Tree(map[string]*domain.Definition{
				"tags": nodes.Array(nodes.Value("a"), nodes.Value("b")),
			}),
			contains: []string{
				`n_tags["tags<br/>array"]`,
				"n_tags --> n_tags_0",
				`n_tags_1(["1<br/>b"])`,
			},
		},
		{
			name: "ID Sanitization",
			root: nodes.Tree(map[string]*domain.Definition{
				"file.md":     nodes.Value(1),
				"hyphen-ated": nodes.Value(2),
			}),
			contains: []string{
				`n_file_md(["file.md<br/>1"])`,
				`n_hyphen_ated(["hyphen-ated<br/>2"])`,
			},
		},
		{
			name: "Label Escaping",
			root: nodes.Tree(map[string]*domain.Definition{
				"quote": nodes.Value(`say "hi"`),
			}),
			contains: []string{
				`"quote<br/>say 'hi'"`,
			},
		},
		{
			name: "Overlay",
			root: nodes.Tree(map[string]*domain.Definition{
				"a": nodes.Value(1),
				"b": nodes.Value(2),
			}),
			overlay: &graph.GraphOverlay{Highlighted: []string{"/a", "a"}, Failed: []string{"b"}},
			contains: []string{
				"classDef highlighted",
				"class n_a highlighted;\n",
				"class n_b failed;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.root, tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
			if tt.overlay != nil && strings.Count(got, "class n_a highlighted;") != 1 {
				t.Errorf("Expected highlighted paths to be deduplicated, got:\n%v", got)
			}
		})
	}
}
