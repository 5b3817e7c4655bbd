// Package cluster abstracts the live cluster a discovery run introspects.
// The Connection interface is the seam between the pipeline and client-go;
// tests and offline runs plug in the in-memory Fake.
package cluster

import (
	"context"
	"encoding/json"
	"errors"

	"kubeintent/internal/capability"
)

// ErrUnreachable means the cluster API itself cannot be reached. It is the
// only fatal discovery condition; per-kind fetch errors are recorded and
// skipped instead.
var ErrUnreachable = errors.New("cluster: api unreachable")

// KindInfo is one resource kind as reported by the cluster, before schema
// normalization.
type KindInfo struct {
	Identity   capability.Identity
	Origin     capability.Origin
	Verbs      []string
	Controller string
}

// Connection is the cluster introspection surface the pipeline consumes.
type Connection interface {
	// ListResourceKinds enumerates built-in kinds with their supported verbs.
	ListResourceKinds(ctx context.Context) ([]KindInfo, error)
	// ListCustomResourceDefinitions enumerates installed CRDs.
	ListCustomResourceDefinitions(ctx context.Context) ([]KindInfo, error)
	// FetchSchema returns the raw schema document for one kind. Errors are
	// per-kind and recoverable unless they wrap ErrUnreachable.
	FetchSchema(ctx context.Context, id capability.Identity) (json.RawMessage, error)
}
