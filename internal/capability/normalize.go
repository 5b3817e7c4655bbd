package capability

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DefaultMaxDepth bounds reference resolution during normalization. Ten
// levels covers realistic nesting in built-in and CRD schemas; anything
// deeper is truncated with an explicit marker.
const DefaultMaxDepth = 10

// NormalizeOptions tune Normalize. The zero value uses defaults.
type NormalizeOptions struct {
	MaxDepth int
}

// Normalize converts a raw schema document (an OpenAPI v3 component schema or
// a CRD openAPIV3Schema) into a Schema arena. It is a pure function: the same
// raw bytes always produce the same arena. Self- and mutually-referential
// schemas terminate via the depth bound; missing documentation falls back to
// the field name and never fails the run. The only error is undecodable input.
func Normalize(raw json.RawMessage, opts NormalizeOptions) (*Schema, error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("capability: decode raw schema: %w", err)
	}

	n := &normalizer{
		defs:     collectDefinitions(doc),
		maxDepth: maxDepth,
		out:      &Schema{Root: NodeID(""), Nodes: map[NodeID]*Node{}},
	}
	n.walk(doc, NodeID(""), "", false, 0)
	return n.out, nil
}

type normalizer struct {
	defs     map[string]map[string]any
	maxDepth int
	out      *Schema
}

// collectDefinitions gathers shared schema tables from either the Swagger
// "definitions" or OpenAPI "components.schemas" location.
func collectDefinitions(doc map[string]any) map[string]map[string]any {
	defs := map[string]map[string]any{}
	add := func(tbl any) {
		m, _ := tbl.(map[string]any)
		for name, v := range m {
			if s, ok := v.(map[string]any); ok {
				defs[name] = s
			}
		}
	}
	add(doc["definitions"])
	if comps, ok := doc["components"].(map[string]any); ok {
		add(comps["schemas"])
	}
	return defs
}

// walk normalizes one raw schema node into the arena at id. depth counts
// reference resolutions, not plain nesting.
func (n *normalizer) walk(s map[string]any, id NodeID, name string, required bool, depth int) {
	s, truncated := n.deref(s, depth)
	node := &Node{
		Name:        name,
		Required:    required,
		Description: stringField(s, "description"),
	}
	if node.Description == "" {
		node.Description = name
	}
	if truncated {
		node.Type = TypeReference
		node.Truncated = true
		n.out.Nodes[id] = node
		return
	}
	node.Enum = enumValues(s)
	node.Type = semanticType(s)
	n.out.Nodes[id] = node

	switch node.Type {
	case TypeObject:
		props, _ := s["properties"].(map[string]any)
		req := requiredSet(s)
		names := make([]string, 0, len(props))
		for k := range props {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, childName := range names {
			child, ok := props[childName].(map[string]any)
			if !ok {
				continue
			}
			childID := joinNodeID(id, childName)
			node.Children = append(node.Children, childID)
			n.walk(child, childID, childName, req[childName], childDepth(child, depth))
		}
	case TypeArray:
		if items, ok := s["items"].(map[string]any); ok {
			itemID := NodeID(string(id) + "[]")
			node.Items = itemID
			n.walk(items, itemID, name, required, childDepth(items, depth))
		}
	}
}

// deref resolves $ref and allOf-wrapped $ref against the definitions table.
// Returns the resolved schema, or truncated=true when the depth budget is
// spent or the target is unknown.
func (n *normalizer) deref(s map[string]any, depth int) (map[string]any, bool) {
	for i := 0; i < n.maxDepth+1; i++ {
		ref := refTarget(s)
		if ref == "" {
			return s, false
		}
		if depth >= n.maxDepth {
			return s, true
		}
		target, ok := n.defs[ref]
		if !ok {
			return s, true
		}
		s = target
		depth++
	}
	return s, true
}

func childDepth(child map[string]any, depth int) int {
	// Only reference hops consume depth; plain nesting is already bounded by
	// the document itself.
	if refTarget(child) != "" {
		return depth + 1
	}
	return depth
}

func refTarget(s map[string]any) string {
	if r, ok := s["$ref"].(string); ok && r != "" {
		return refName(r)
	}
	if all, ok := s["allOf"].([]any); ok && len(all) == 1 {
		if inner, ok := all[0].(map[string]any); ok {
			if r, ok := inner["$ref"].(string); ok && r != "" {
				return refName(r)
			}
		}
	}
	return ""
}

func refName(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

func semanticType(s map[string]any) FieldType {
	switch stringField(s, "type") {
	case "string":
		return TypeString
	case "integer", "number":
		return TypeNumber
	case "boolean":
		return TypeBool
	case "array":
		return TypeArray
	case "object":
		return TypeObject
	}
	if _, ok := s["properties"]; ok {
		return TypeObject
	}
	if _, ok := s["items"]; ok {
		return TypeArray
	}
	// No type, no structure: an opaque reference-shaped value.
	return TypeReference
}

func requiredSet(s map[string]any) map[string]bool {
	out := map[string]bool{}
	if req, ok := s["required"].([]any); ok {
		for _, v := range req {
			if name, ok := v.(string); ok {
				out[name] = true
			}
		}
	}
	return out
}

func enumValues(s map[string]any) []string {
	raw, ok := s["enum"].([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				continue
			}
			out = append(out, string(b))
		}
	}
	return out
}

func stringField(s map[string]any, key string) string {
	v, _ := s[key].(string)
	return strings.TrimSpace(v)
}

func joinNodeID(parent NodeID, name string) NodeID {
	if parent == "" {
		return NodeID(name)
	}
	return NodeID(string(parent) + "." + name)
}
