package capability

import (
	"sort"
	"strings"
)

// FieldType is the semantic type of one schema field.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeNumber    FieldType = "number"
	TypeBool      FieldType = "bool"
	TypeObject    FieldType = "object"
	TypeArray     FieldType = "array"
	TypeReference FieldType = "reference"
)

// NodeID addresses one node in a Schema arena. IDs are the dotted field path
// from the root ("spec.template.spec.containers"), with array items addressed
// as "<parent>[]". The root is "".
type NodeID string

// Node is a single field in a normalized schema tree. Child relationships are
// arena lookups by NodeID, never embedded structures, so depth-bounded
// traversal is a map access rather than guarded recursion.
type Node struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Description string    `json:"description,omitempty"`
	Children    []NodeID  `json:"children,omitempty"`
	Items       NodeID    `json:"items,omitempty"`
	// Truncated marks a reference that exceeded the resolution depth bound.
	// Truncated nodes are leaves.
	Truncated bool `json:"truncated,omitempty"`
}

// Schema is the Capability Descriptor for one resource kind: an arena of
// nodes addressed by stable path IDs.
type Schema struct {
	Root  NodeID           `json:"root"`
	Nodes map[NodeID]*Node `json:"nodes"`
}

// Lookup returns the node for id, or nil.
func (s *Schema) Lookup(id NodeID) *Node {
	if s == nil {
		return nil
	}
	return s.Nodes[id]
}

// HasPath reports whether the dotted field path resolves to a node in the
// schema. Array hops are written as the bare segment; "containers.image" and
// "containers[].image" both resolve through an array field.
func (s *Schema) HasPath(path string) bool {
	_, ok := s.Resolve(path)
	return ok
}

// Resolve walks the dotted field path from the root and returns the node it
// lands on. Paths into truncated subtrees do not resolve.
func (s *Schema) Resolve(path string) (*Node, bool) {
	if s == nil {
		return nil, false
	}
	cur := s.Lookup(s.Root)
	if cur == nil {
		return nil, false
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return cur, true
	}
	for _, seg := range strings.Split(path, ".") {
		seg = strings.TrimSuffix(seg, "[]")
		if seg == "" {
			return nil, false
		}
		// Step through array item nodes transparently.
		for cur.Type == TypeArray && cur.Items != "" {
			cur = s.Lookup(cur.Items)
			if cur == nil {
				return nil, false
			}
		}
		if cur.Truncated {
			return nil, false
		}
		var next *Node
		for _, cid := range cur.Children {
			child := s.Lookup(cid)
			if child != nil && child.Name == seg {
				next = child
				break
			}
		}
		if next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// RequiredLeafPaths returns the dotted paths of every required leaf field,
// sorted. Truncated subtrees contribute nothing: what cannot be seen cannot
// be asked about.
func (s *Schema) RequiredLeafPaths() []string {
	if s == nil {
		return nil
	}
	var out []string
	var walk func(id NodeID, prefix string, onRequiredPath bool)
	walk = func(id NodeID, prefix string, onRequiredPath bool) {
		n := s.Lookup(id)
		if n == nil || n.Truncated {
			return
		}
		switch n.Type {
		case TypeObject:
			for _, cid := range n.Children {
				child := s.Lookup(cid)
				if child == nil {
					continue
				}
				p := child.Name
				if prefix != "" {
					p = prefix + "." + child.Name
				}
				walk(cid, p, onRequiredPath && child.Required)
			}
		case TypeArray:
			if n.Items != "" {
				walk(n.Items, prefix, onRequiredPath)
			}
		default:
			if onRequiredPath && prefix != "" {
				out = append(out, prefix)
			}
		}
	}
	walk(s.Root, "", true)
	sort.Strings(out)
	return out
}
