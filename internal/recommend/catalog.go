package recommend

import (
	"kubeintent/internal/capability"
)

// catalogEntry is the per-kind summary handed to the oracle. Schemas are not
// shipped whole; top-level spec fields are enough to judge relevance.
type catalogEntry struct {
	Group      string   `json:"group"`
	Version    string   `json:"version"`
	Kind       string   `json:"kind"`
	Origin     string   `json:"origin"`
	Controller string   `json:"controller,omitempty"`
	Verbs      []string `json:"verbs,omitempty"`
	SpecFields []string `json:"spec_fields,omitempty"`
}

func catalogSummary(idx *capability.Index) []catalogEntry {
	resources := idx.Resources()
	out := make([]catalogEntry, 0, len(resources))
	for _, d := range resources {
		out = append(out, catalogEntry{
			Group:      d.Identity.Group,
			Version:    d.Identity.Version,
			Kind:       d.Identity.Kind,
			Origin:     string(d.Origin),
			Controller: d.Controller,
			Verbs:      d.Verbs,
			SpecFields: topLevelSpecFields(d.Schema),
		})
	}
	return out
}

// topLevelSpecFields lists the immediate children of spec (or of the root
// when the schema has no spec object).
func topLevelSpecFields(s *capability.Schema) []string {
	if s == nil {
		return nil
	}
	node, ok := s.Resolve("spec")
	if !ok {
		node = s.Lookup(s.Root)
		if node == nil {
			return nil
		}
	}
	var out []string
	for _, cid := range node.Children {
		if child := s.Lookup(cid); child != nil {
			out = append(out, child.Name)
		}
	}
	return out
}
