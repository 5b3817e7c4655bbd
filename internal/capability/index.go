package capability

import (
	"sort"
	"strings"
	"time"
)

// ResourceDescriptor is everything the index knows about one resource kind.
// Descriptors are immutable once captured in an index snapshot.
type ResourceDescriptor struct {
	Identity   Identity `json:"identity"`
	Origin     Origin   `json:"origin"`
	Verbs      []string `json:"verbs,omitempty"`
	Controller string   `json:"controller,omitempty"`
	Schema     *Schema  `json:"schema,omitempty"`
}

// FetchFailure records one kind whose schema or verb fetch failed during
// discovery. Recorded, not fatal.
type FetchFailure struct {
	Identity Identity `json:"identity"`
	Reason   string   `json:"reason"`
}

// Index is a point-in-time snapshot of everything the cluster can express.
// It is read-only after construction; a refresh builds a new Index and
// in-flight consumers keep the one they started with.
type Index struct {
	builtAt   time.Time
	resources map[Identity]*ResourceDescriptor
	failures  []FetchFailure
}

// NewIndex builds an index snapshot from discovered descriptors and the
// partial-failure set. The slices are copied so later appends by the caller
// cannot reshape the snapshot; the descriptors themselves are shared and
// must not be mutated after handoff.
func NewIndex(builtAt time.Time, descriptors []*ResourceDescriptor, failures []FetchFailure) *Index {
	res := make(map[Identity]*ResourceDescriptor, len(descriptors))
	for _, d := range descriptors {
		if d == nil {
			continue
		}
		res[d.Identity] = d
	}
	fs := make([]FetchFailure, len(failures))
	copy(fs, failures)
	sort.Slice(fs, func(i, j int) bool { return fs[i].Identity.Less(fs[j].Identity) })
	return &Index{builtAt: builtAt, resources: res, failures: fs}
}

// BuiltAt is the snapshot timestamp.
func (x *Index) BuiltAt() time.Time { return x.builtAt }

// Len is the number of indexed kinds.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.resources)
}

// Lookup resolves an identity in the snapshot.
func (x *Index) Lookup(id Identity) (*ResourceDescriptor, bool) {
	if x == nil {
		return nil, false
	}
	d, ok := x.resources[id]
	return d, ok
}

// LookupKind resolves by kind name alone, case-insensitive on the kind.
// When several groups define the same kind the group-sorted first one wins;
// callers that care about the group should use Lookup.
func (x *Index) LookupKind(kind string) (*ResourceDescriptor, bool) {
	if x == nil {
		return nil, false
	}
	var best *ResourceDescriptor
	for id, d := range x.resources {
		if !strings.EqualFold(id.Kind, kind) {
			continue
		}
		if best == nil || d.Identity.Less(best.Identity) {
			best = d
		}
	}
	return best, best != nil
}

// Resources lists every descriptor in stable identity order.
func (x *Index) Resources() []*ResourceDescriptor {
	if x == nil {
		return nil
	}
	out := make([]*ResourceDescriptor, 0, len(x.resources))
	for _, d := range x.resources {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity.Less(out[j].Identity) })
	return out
}

// Failures returns the partial-failure set in stable order.
func (x *Index) Failures() []FetchFailure {
	if x == nil {
		return nil
	}
	out := make([]FetchFailure, len(x.failures))
	copy(out, x.failures)
	return out
}
