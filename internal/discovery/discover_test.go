package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kubeintent/internal/capability"
	"kubeintent/internal/cluster"
)

var (
	deploymentID = capability.Identity{Group: "apps", Version: "v1", Kind: "Deployment"}
	serviceID    = capability.Identity{Version: "v1", Kind: "Service"}
	widgetID     = capability.Identity{Group: "example.io", Version: "v1", Kind: "Widget"}
)

func fakeCluster() *cluster.Fake {
	schema := json.RawMessage(`{"type": "object", "properties": {"spec": {"type": "object"}}}`)
	return &cluster.Fake{
		Kinds: []cluster.KindInfo{
			{Identity: deploymentID, Origin: capability.OriginBuiltin, Verbs: []string{"get", "list", "create"}},
			{Identity: serviceID, Origin: capability.OriginBuiltin, Verbs: []string{"get", "list"}},
			{Identity: widgetID, Origin: capability.OriginCustomResource, Controller: "widget-operator"},
		},
		Schemas: map[capability.Identity]json.RawMessage{
			deploymentID: schema,
			serviceID:    schema,
			widgetID:     schema,
		},
	}
}

func TestDiscoverIndexesAllKinds(t *testing.T) {
	idx, err := Discover(context.Background(), fakeCluster(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
	assert.Empty(t, idx.Failures())

	d, ok := idx.Lookup(widgetID)
	require.True(t, ok)
	assert.Equal(t, capability.OriginCustomResource, d.Origin)
	assert.Equal(t, "widget-operator", d.Controller)
	require.NotNil(t, d.Schema)
}

func TestDiscoverRecordsPartialFailures(t *testing.T) {
	conn := fakeCluster()
	conn.SchemaErrs = map[capability.Identity]error{
		widgetID: errors.New("conversion webhook unavailable"),
	}
	idx, err := Discover(context.Background(), conn, Options{})
	require.NoError(t, err, "a single failing kind must not fail the run")
	assert.Equal(t, 2, idx.Len())

	failures := idx.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, widgetID, failures[0].Identity)
	assert.Contains(t, failures[0].Reason, "conversion webhook")
}

func TestDiscoverUnreachableIsFatal(t *testing.T) {
	conn := fakeCluster()
	conn.Unreachable = true
	_, err := Discover(context.Background(), conn, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, cluster.ErrUnreachable)
}

func TestDiscoverUndecodableSchemaRecorded(t *testing.T) {
	conn := fakeCluster()
	conn.Schemas[serviceID] = json.RawMessage(`{{broken`)
	idx, err := Discover(context.Background(), conn, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
	require.Len(t, idx.Failures(), 1)
	assert.Equal(t, serviceID, idx.Failures()[0].Identity)
}

func TestDiscoverRepeatRunsIdentical(t *testing.T) {
	conn := fakeCluster()
	at := time.Unix(1700000000, 0)
	opts := Options{now: func() time.Time { return at }}

	a, err := Discover(context.Background(), conn, opts)
	require.NoError(t, err)
	b, err := Discover(context.Background(), conn, opts)
	require.NoError(t, err)

	aj, err := json.Marshal(a.Resources())
	require.NoError(t, err)
	bj, err := json.Marshal(b.Resources())
	require.NoError(t, err)
	assert.Equal(t, string(aj), string(bj), "unchanged cluster must produce an identical index")
	assert.Equal(t, a.BuiltAt(), b.BuiltAt())
}

func TestDiscoverUsesSchemaCache(t *testing.T) {
	conn := fakeCluster()
	cache := capability.NewSchemaCache(16, time.Minute)
	opts := Options{Cache: cache}

	_, err := Discover(context.Background(), conn, opts)
	require.NoError(t, err)
	first := conn.FetchCalls()

	idx, err := Discover(context.Background(), conn, opts)
	require.NoError(t, err)
	assert.Equal(t, 2*first, conn.FetchCalls(), "fetches still happen; normalization is what the cache saves")
	assert.Equal(t, 3, idx.Len())
}
