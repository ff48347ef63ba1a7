package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/muster/pkg/domain"
)

// GraphOverlay contains state data to visualize on the graph. Paths are
// slash-separated, relative to the root.
type GraphOverlay struct {
	Highlighted []string
	Failed      []string
}

// GenerateMermaid produces a Mermaid flowchart of the definition tree rooted at
// root. It applies semantic styling:
// - Root: ((Circle))
// - Stateful: [(Cylinder)]
// - Ref: [[Subroutine]]
// - Static leaf: ([Stadium])
// - Tree, array and everything else: [Rectangle]
// Tree and array children are linked by key; other child definitions by the
// property holding them, with a dotted arrow.
func GenerateMermaid(root *domain.Definition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	writeNode(&sb, "root", nil, root)

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef highlighted fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#b71c1c,stroke-width:2px,color:#000;\n")
		writeClass(&sb, overlay.Highlighted, "highlighted")
		writeClass(&sb, overlay.Failed, "failed")
	}
	return sb.String()
}

func writeClass(sb *strings.Builder, paths []string, class string) {
	seen := make(map[string]bool)
	for _, p := range paths {
		id := nodeID(splitPath(p))
		if !seen[id] {
			seen[id] = true
			fmt.Fprintf(sb, "    class %s %s;\n", id, class)
		}
	}
}

func writeNode(sb *strings.Builder, label string, path []string, def *domain.Definition) {
	id := nodeID(path)
	opener, closer := shape(path, def)
	fmt.Fprintf(sb, "    %s%s\"%s<br/>%s\"%s\n", id, opener, escape(label), escape(summary(def)), closer)
	if def == nil {
		return
	}

	keys := make([]string, 0, len(def.Properties))
	for k := range def.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := def.Properties[k].(type) {
		case *domain.Definition:
			writeEdge(sb, id, path, k, k, v, structural(def, k))
		case []*domain.Definition:
			for i, child := range v {
				key := strconv.Itoa(i)
				label := key
				if !structural(def, k) {
					label = k + "[" + key + "]"
					key = k + "." + key
				}
				writeEdge(sb, id, path, key, label, child, structural(def, k))
			}
		case map[string]*domain.Definition:
			names := make([]string, 0, len(v))
			for name := range v {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				key, label := name, name
				if !structural(def, k) {
					key = k + "." + name
					label = k + "." + name
				}
				writeEdge(sb, id, path, key, label, v[name], structural(def, k))
			}
		}
	}
}

func writeEdge(sb *strings.Builder, from string, path []string, key, label string, child *domain.Definition, solid bool) {
	childPath := append(append([]string{}, path...), key)
	writeNode(sb, label, childPath, child)
	arrow := "-->"
	if !solid {
		arrow = "-.->"
	}
	fmt.Fprintf(sb, "    %s %s %s\n", from, arrow, nodeID(childPath))
}

// structural reports whether property k of def holds children addressable by
// path, rather than operands.
func structural(def *domain.Definition, k string) bool {
	switch def.Type.Name {
	case "tree":
		return k == "branches"
	case "array":
		return k == "items"
	}
	return false
}

func shape(path []string, def *domain.Definition) (string, string) {
	switch {
	case len(path) == 0:
		return "((", "))"
	case def == nil:
		return "[", "]"
	case def.Type.State != nil:
		return "[(", ")]"
	case def.Type.Name == "ref":
		return "[[", "]]"
	case def.Type.Name == "tree", def.Type.Name == "array":
		return "[", "]"
	case def.Type.Static:
		return "([", "])"
	}
	return "[", "]"
}

func summary(def *domain.Definition) string {
	if def == nil {
		return "nil"
	}
	if def.Type == domain.ValueType {
		return fmt.Sprintf("%v", def.Get("value"))
	}
	return def.Type.Name
}

func nodeID(path []string) string {
	if len(path) == 0 {
		return "root"
	}
	return "n_" + sanitizeMermaidID(strings.Join(path, "/"))
}

func splitPath(p string) []string {
	var out []string
	for _, key := range strings.Split(p, "/") {
		if key != "" {
			out = append(out, key)
		}
	}
	return out
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "[", "_")
	s = strings.ReplaceAll(s, "]", "_")
	return s
}
