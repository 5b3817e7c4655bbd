package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"kubeintent/internal/capability"
)

var crdGVR = schema.GroupVersionResource{
	Group:    "apiextensions.k8s.io",
	Version:  "v1",
	Resource: "customresourcedefinitions",
}

const managedByLabel = "app.kubernetes.io/managed-by"

// KubernetesConnection implements Connection against a real cluster using the
// discovery client for built-ins and the dynamic client for CRDs.
type KubernetesConnection struct {
	disc discovery.DiscoveryInterface
	dyn  dynamic.Interface
	log  *slog.Logger

	mu sync.Mutex
	// crdSchemas caches each CRD's served openAPIV3Schema, captured while
	// listing so FetchSchema does not re-fetch the CRD object per kind.
	crdSchemas map[capability.Identity]json.RawMessage
	// openapi caches the parsed OpenAPI v3 schema table per group/version.
	openapi map[string]map[string]any
}

// NewKubernetesConnection connects using the given kubeconfig path, falling
// back to in-cluster config when the path is empty.
func NewKubernetesConnection(kubeconfig string, logger *slog.Logger) (*KubernetesConnection, error) {
	var cfg *rest.Config
	var err error
	if kubeconfig == "" {
		cfg, err = rest.InClusterConfig()
	} else {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("cluster: load config: %w", err)
	}
	disc, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("cluster: discovery client: %w", err)
	}
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("cluster: dynamic client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KubernetesConnection{
		disc:       disc,
		dyn:        dyn,
		log:        logger.With("component", "cluster"),
		crdSchemas: map[capability.Identity]json.RawMessage{},
		openapi:    map[string]map[string]any{},
	}, nil
}

// ListResourceKinds enumerates the preferred version of every built-in kind.
// Partial group discovery failures are tolerated; a dead API server is not.
func (c *KubernetesConnection) ListResourceKinds(ctx context.Context) ([]KindInfo, error) {
	if _, err := c.disc.ServerVersion(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	lists, err := c.disc.ServerPreferredResources()
	if err != nil {
		if !discovery.IsGroupDiscoveryFailedError(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		c.log.Warn("partial group discovery failure", "err", err)
	}
	var out []KindInfo
	for _, list := range lists {
		gv, err := schema.ParseGroupVersion(list.GroupVersion)
		if err != nil {
			c.log.Warn("skipping malformed group version", "groupVersion", list.GroupVersion)
			continue
		}
		if gv.Group == crdGVR.Group {
			// CRD kinds themselves come from ListCustomResourceDefinitions.
			continue
		}
		for _, res := range list.APIResources {
			if strings.Contains(res.Name, "/") {
				continue // subresource
			}
			out = append(out, KindInfo{
				Identity: capability.Identity{Group: gv.Group, Version: gv.Version, Kind: res.Kind},
				Origin:   capability.OriginBuiltin,
				Verbs:    normalizeVerbs(res.Verbs),
			})
		}
	}
	sortKinds(out)
	return dedupe(out), nil
}

// ListCustomResourceDefinitions lists installed CRDs and captures the served
// storage-version schema of each for later FetchSchema calls.
func (c *KubernetesConnection) ListCustomResourceDefinitions(ctx context.Context) ([]KindInfo, error) {
	list, err := c.dyn.Resource(crdGVR).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: list crds: %v", ErrUnreachable, err)
	}
	var out []KindInfo
	for _, item := range list.Items {
		info, raw, ok := crdKindInfo(&item)
		if !ok {
			c.log.Warn("skipping malformed crd", "name", item.GetName())
			continue
		}
		if len(raw) > 0 {
			c.mu.Lock()
			c.crdSchemas[info.Identity] = raw
			c.mu.Unlock()
		}
		out = append(out, info)
	}
	sortKinds(out)
	return out, nil
}

// FetchSchema serves CRD schemas from the listing capture and built-in
// schemas from the OpenAPI v3 endpoint.
func (c *KubernetesConnection) FetchSchema(ctx context.Context, id capability.Identity) (json.RawMessage, error) {
	c.mu.Lock()
	raw, ok := c.crdSchemas[id]
	c.mu.Unlock()
	if ok {
		return raw, nil
	}
	return c.openAPISchema(ctx, id)
}

func (c *KubernetesConnection) openAPISchema(_ context.Context, id capability.Identity) (json.RawMessage, error) {
	schemas, err := c.openAPISchemas(id)
	if err != nil {
		return nil, err
	}
	for _, s := range schemas {
		m, ok := s.(map[string]any)
		if !ok {
			continue
		}
		if !matchesGVK(m, id) {
			continue
		}
		// Re-root the document on the matched schema and carry the full
		// component table for $ref resolution.
		doc := make(map[string]any, len(m)+1)
		for k, v := range m {
			doc[k] = v
		}
		doc["components"] = map[string]any{"schemas": schemas}
		return json.Marshal(doc)
	}
	return nil, fmt.Errorf("cluster: no openapi schema for %s", id)
}

func (c *KubernetesConnection) openAPISchemas(id capability.Identity) (map[string]any, error) {
	key := "apis/" + id.Group + "/" + id.Version
	if id.Group == "" {
		key = "api/" + id.Version
	}
	c.mu.Lock()
	cached, ok := c.openapi[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	paths, err := c.disc.OpenAPIV3().Paths()
	if err != nil {
		return nil, fmt.Errorf("%w: openapi paths: %v", ErrUnreachable, err)
	}
	gv, ok := paths[key]
	if !ok {
		return nil, fmt.Errorf("cluster: no openapi document for %s", key)
	}
	data, err := gv.Schema("application/json")
	if err != nil {
		return nil, fmt.Errorf("cluster: fetch openapi %s: %w", key, err)
	}
	var doc struct {
		Components struct {
			Schemas map[string]any `json:"schemas"`
		} `json:"components"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cluster: decode openapi %s: %w", key, err)
	}
	c.mu.Lock()
	c.openapi[key] = doc.Components.Schemas
	c.mu.Unlock()
	return doc.Components.Schemas, nil
}

// matchesGVK checks the x-kubernetes-group-version-kind annotation on an
// OpenAPI schema against the wanted identity.
func matchesGVK(s map[string]any, id capability.Identity) bool {
	gvks, ok := s["x-kubernetes-group-version-kind"].([]any)
	if !ok {
		return false
	}
	for _, g := range gvks {
		m, ok := g.(map[string]any)
		if !ok {
			continue
		}
		group, _ := m["group"].(string)
		version, _ := m["version"].(string)
		kind, _ := m["kind"].(string)
		if group == id.Group && version == id.Version && kind == id.Kind {
			return true
		}
	}
	return false
}

// crdKindInfo extracts identity, verbs and the storage-version schema from a
// CRD object.
func crdKindInfo(obj *unstructured.Unstructured) (KindInfo, json.RawMessage, bool) {
	group, _, _ := unstructured.NestedString(obj.Object, "spec", "group")
	kind, _, _ := unstructured.NestedString(obj.Object, "spec", "names", "kind")
	versions, _, _ := unstructured.NestedSlice(obj.Object, "spec", "versions")
	if group == "" || kind == "" || len(versions) == 0 {
		return KindInfo{}, nil, false
	}
	var version string
	var rawSchema map[string]any
	for _, v := range versions {
		vm, ok := v.(map[string]any)
		if !ok {
			continue
		}
		served, _, _ := unstructured.NestedBool(vm, "served")
		storage, _, _ := unstructured.NestedBool(vm, "storage")
		if !served && !storage {
			continue
		}
		name, _, _ := unstructured.NestedString(vm, "name")
		s, _, _ := unstructured.NestedMap(vm, "schema", "openAPIV3Schema")
		if version == "" || storage {
			version, rawSchema = name, s
		}
		if storage {
			break
		}
	}
	if version == "" {
		return KindInfo{}, nil, false
	}
	var raw json.RawMessage
	if rawSchema != nil {
		b, err := json.Marshal(rawSchema)
		if err == nil {
			raw = b
		}
	}
	info := KindInfo{
		Identity:   capability.Identity{Group: group, Version: version, Kind: kind},
		Origin:     capability.OriginCustomResource,
		Verbs:      []string{"create", "delete", "get", "list", "update"},
		Controller: obj.GetLabels()[managedByLabel],
	}
	return info, raw, true
}

func normalizeVerbs(verbs []string) []string {
	allowed := map[string]bool{"get": true, "list": true, "create": true, "update": true, "delete": true}
	var out []string
	for _, v := range verbs {
		if allowed[v] {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func sortKinds(kinds []KindInfo) {
	sort.Slice(kinds, func(i, j int) bool { return kinds[i].Identity.Less(kinds[j].Identity) })
}

func dedupe(kinds []KindInfo) []KindInfo {
	out := kinds[:0]
	var prev capability.Identity
	for i, k := range kinds {
		if i > 0 && k.Identity == prev {
			continue
		}
		out = append(out, k)
		prev = k.Identity
	}
	return out
}
