package capability

import (
	"encoding/json"
	"testing"
	"time"

	"kubeintent/internal/tester"
)

func TestSchemaCacheHit(t *testing.T) {
	c := NewSchemaCache(8, time.Minute)
	raw := json.RawMessage(`{"type": "object", "properties": {"a": {"type": "string"}}}`)

	first, err := c.Normalize(raw, NormalizeOptions{})
	tester.NoErr(t, err)
	second, err := c.Normalize(raw, NormalizeOptions{})
	tester.NoErr(t, err)
	tester.True(t, first == second, "same bytes must return the cached arena")

	other, err := c.Normalize(json.RawMessage(`{"type": "string"}`), NormalizeOptions{})
	tester.NoErr(t, err)
	tester.True(t, first != other)
}

func TestSchemaCacheNilSafe(t *testing.T) {
	var c *SchemaCache
	s, err := c.Normalize(json.RawMessage(`{"type": "string"}`), NormalizeOptions{})
	tester.NoErr(t, err)
	tester.True(t, s != nil)
}

func TestSchemaCacheErrorNotCached(t *testing.T) {
	c := NewSchemaCache(8, time.Minute)
	_, err := c.Normalize(json.RawMessage(`nope`), NormalizeOptions{})
	tester.True(t, err != nil)
}
