// Package capability holds the point-in-time model of what a cluster can
// express: resource identities, normalized schema trees, and the immutable
// index snapshot produced by a discovery run.
package capability

import (
	"fmt"
	"strings"
)

// Identity names one resource kind by group, version and kind.
// The core (legacy) API group is the empty string.
type Identity struct {
	Group   string `json:"group"`
	Version string `json:"version"`
	Kind    string `json:"kind"`
}

// String renders "group/version/Kind", or "version/Kind" for the core group.
func (id Identity) String() string {
	if id.Group == "" {
		return id.Version + "/" + id.Kind
	}
	return id.Group + "/" + id.Version + "/" + id.Kind
}

// APIVersion renders the apiVersion field value used in manifests.
func (id Identity) APIVersion() string {
	if id.Group == "" {
		return id.Version
	}
	return id.Group + "/" + id.Version
}

// ParseIdentity parses the String form back into an Identity.
func ParseIdentity(s string) (Identity, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	switch len(parts) {
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return Identity{}, fmt.Errorf("capability: malformed identity %q", s)
		}
		return Identity{Version: parts[0], Kind: parts[1]}, nil
	case 3:
		if parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return Identity{}, fmt.Errorf("capability: malformed identity %q", s)
		}
		return Identity{Group: parts[0], Version: parts[1], Kind: parts[2]}, nil
	default:
		return Identity{}, fmt.Errorf("capability: malformed identity %q", s)
	}
}

// Less orders identities by group, then version, then kind. Used wherever a
// stable listing or tie-break is required.
func (id Identity) Less(other Identity) bool {
	if id.Group != other.Group {
		return id.Group < other.Group
	}
	if id.Version != other.Version {
		return id.Version < other.Version
	}
	return id.Kind < other.Kind
}

// Origin distinguishes built-in kinds from installed custom resources.
type Origin string

const (
	OriginBuiltin        Origin = "builtin"
	OriginCustomResource Origin = "custom-resource-definition"
)
