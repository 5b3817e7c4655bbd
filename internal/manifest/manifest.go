// Package manifest renders a finalized solution into Kubernetes manifests
// and archives the result. Rendering is deterministic: the same solution
// always produces the same bytes.
package manifest

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"kubeintent/internal/recommend"
)

// Set is one rendered manifest per solution resource, in solution order.
type Set struct {
	Documents []map[string]any
}

// Build converts the solution's resource selections into manifest documents.
// Dotted assignment paths expand into nested maps; a path segment written as
// "name[]" produces a single-element list.
func Build(sol recommend.Solution, name string) (Set, error) {
	if len(sol.Resources) == 0 {
		return Set{}, fmt.Errorf("manifest: solution %s has no resources", sol.ID)
	}
	if name == "" {
		name = sol.ID
	}
	var docs []map[string]any
	for _, res := range sol.Resources {
		doc := map[string]any{
			"apiVersion": res.Ref.APIVersion(),
			"kind":       res.Ref.Kind,
			"metadata":   map[string]any{"name": name},
		}
		paths := make([]string, 0, len(res.Assignments))
		for p := range res.Assignments {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			setPath(doc, p, res.Assignments[p])
		}
		docs = append(docs, doc)
	}
	return Set{Documents: docs}, nil
}

// Render emits the multi-document YAML stream. yaml.v3 writes map keys in
// sorted order, which keeps the output byte-stable.
func (s Set) Render() ([]byte, error) {
	var buf bytes.Buffer
	for i, doc := range s.Documents {
		if i > 0 {
			buf.WriteString("---\n")
		}
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("manifest: render document %d: %w", i, err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("manifest: render document %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// setPath writes value at the dotted path, creating intermediate maps. A
// trailing "[]" on a segment wraps the remainder in a one-element list, and a
// trailing "[N]" is treated the same way: manifests start from a single
// instance of each list item.
func setPath(doc map[string]any, path string, value any) {
	segs := strings.Split(path, ".")
	cur := doc
	for i, seg := range segs {
		isList := strings.HasSuffix(seg, "[]")
		key := strings.TrimSuffix(seg, "[]")
		if n := strings.IndexByte(key, '['); n >= 0 {
			if _, err := strconv.Atoi(strings.TrimSuffix(key[n+1:], "]")); err == nil {
				isList = true
				key = key[:n]
			}
		}
		last := i == len(segs)-1
		if last {
			if isList {
				cur[key] = []any{value}
			} else {
				cur[key] = value
			}
			return
		}
		next := childMap(cur, key, isList)
		cur = next
	}
}

// childMap returns the map under key, descending into a single-element list
// wrapper when the segment is list-shaped.
func childMap(cur map[string]any, key string, isList bool) map[string]any {
	if isList {
		if lst, ok := cur[key].([]any); ok && len(lst) > 0 {
			if m, ok := lst[0].(map[string]any); ok {
				return m
			}
		}
		m := map[string]any{}
		cur[key] = []any{m}
		return m
	}
	if m, ok := cur[key].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	cur[key] = m
	return m
}
