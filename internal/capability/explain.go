package capability

import (
	"fmt"
	"strings"
)

// Explain renders a human-readable field tree for one resource descriptor:
// field name, type, required flag, enum constraints and description, with
// truncated references marked explicitly.
func Explain(d *ResourceDescriptor) string {
	if d == nil {
		return ""
	}
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s (%s)\n", d.Identity.String(), d.Origin)
	if d.Controller != "" {
		fmt.Fprintf(&buf, "managed by: %s\n", d.Controller)
	}
	if len(d.Verbs) > 0 {
		fmt.Fprintf(&buf, "verbs: %s\n", strings.Join(d.Verbs, ", "))
	}
	if d.Schema == nil {
		buf.WriteString("schema: unavailable\n")
		return buf.String()
	}
	explainNode(&buf, d.Schema, d.Schema.Root, 0)
	return buf.String()
}

func explainNode(buf *strings.Builder, s *Schema, id NodeID, depth int) {
	n := s.Lookup(id)
	if n == nil {
		return
	}
	if n.Name != "" {
		indent := strings.Repeat("  ", depth)
		line := fmt.Sprintf("%s%s: %s", indent, n.Name, n.Type)
		if n.Required {
			line += " (required)"
		}
		if n.Truncated {
			line += " (truncated)"
		}
		if len(n.Enum) > 0 {
			line += " [" + strings.Join(n.Enum, "|") + "]"
		}
		if n.Description != "" && n.Description != n.Name {
			line += "  # " + firstSentence(n.Description)
		}
		buf.WriteString(line + "\n")
		depth++
	}
	for _, cid := range n.Children {
		explainNode(buf, s, cid, depth)
	}
	if n.Items != "" {
		item := s.Lookup(n.Items)
		if item != nil {
			for _, cid := range item.Children {
				explainNode(buf, s, cid, depth)
			}
			if item.Truncated {
				buf.WriteString(strings.Repeat("  ", depth) + "(truncated)\n")
			}
		}
	}
}

func firstSentence(s string) string {
	if i := strings.IndexAny(s, ".\n"); i > 0 {
		return s[:i]
	}
	if len(s) > 120 {
		return s[:117] + "..."
	}
	return s
}
