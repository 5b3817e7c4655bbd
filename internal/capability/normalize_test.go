package capability

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deploymentish = `{
  "type": "object",
  "required": ["spec"],
  "properties": {
    "spec": {
      "type": "object",
      "required": ["image", "replicas"],
      "properties": {
        "replicas": {"type": "integer", "description": "Desired pod count."},
        "image": {"type": "string"},
        "strategy": {"type": "string", "enum": ["RollingUpdate", "Recreate"]},
        "ports": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "containerPort": {"type": "integer"}
            }
          }
        }
      }
    }
  }
}`

func TestNormalizeBasicShape(t *testing.T) {
	s, err := Normalize(json.RawMessage(deploymentish), NormalizeOptions{})
	require.NoError(t, err)

	root := s.Lookup(s.Root)
	require.NotNil(t, root)
	assert.Equal(t, TypeObject, root.Type)

	spec, ok := s.Resolve("spec")
	require.True(t, ok)
	assert.True(t, spec.Required)

	replicas, ok := s.Resolve("spec.replicas")
	require.True(t, ok)
	assert.Equal(t, TypeNumber, replicas.Type)
	assert.True(t, replicas.Required)
	assert.Equal(t, "Desired pod count.", replicas.Description)

	strategy, ok := s.Resolve("spec.strategy")
	require.True(t, ok)
	assert.Equal(t, []string{"RollingUpdate", "Recreate"}, strategy.Enum)

	// Documentation falls back to the field name when the schema has none.
	image, ok := s.Resolve("spec.image")
	require.True(t, ok)
	assert.Equal(t, "image", image.Description)

	// Array hops are transparent in path resolution.
	_, ok = s.Resolve("spec.ports.containerPort")
	assert.True(t, ok)
	_, ok = s.Resolve("spec.ports[].containerPort")
	assert.True(t, ok)

	_, ok = s.Resolve("spec.nope")
	assert.False(t, ok)
}

func TestNormalizeDeterministic(t *testing.T) {
	a, err := Normalize(json.RawMessage(deploymentish), NormalizeOptions{})
	require.NoError(t, err)
	b, err := Normalize(json.RawMessage(deploymentish), NormalizeOptions{})
	require.NoError(t, err)

	ab, err := json.Marshal(a)
	require.NoError(t, err)
	bb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, string(ab), string(bb))
}

func TestNormalizeSelfReferenceTerminates(t *testing.T) {
	// JSONSchemaProps-style self reference: properties of type JSONSchemaProps.
	raw := `{
	  "definitions": {
	    "Props": {
	      "type": "object",
	      "properties": {
	        "not": {"$ref": "#/definitions/Props"},
	        "title": {"type": "string"}
	      }
	    }
	  },
	  "$ref": "#/definitions/Props"
	}`
	s, err := Normalize(json.RawMessage(raw), NormalizeOptions{MaxDepth: 3})
	require.NoError(t, err)

	// Walking deeper than the budget lands on a truncated node and stops.
	_, ok := s.Resolve("not.not.title")
	assert.True(t, ok)
	_, ok = s.Resolve("not.not.not.not.not.not.title")
	assert.False(t, ok)

	truncated := false
	for _, n := range s.Nodes {
		if n.Truncated {
			truncated = true
		}
	}
	assert.True(t, truncated, "depth bound should leave an explicit marker")
}

func TestNormalizeUnknownRefTruncates(t *testing.T) {
	raw := `{
	  "type": "object",
	  "properties": {
	    "mystery": {"$ref": "#/definitions/Missing"}
	  }
	}`
	s, err := Normalize(json.RawMessage(raw), NormalizeOptions{})
	require.NoError(t, err)
	n, ok := s.Resolve("mystery")
	require.True(t, ok)
	assert.True(t, n.Truncated)
	assert.Equal(t, TypeReference, n.Type)
}

func TestNormalizeAllOfRef(t *testing.T) {
	raw := `{
	  "definitions": {
	    "Meta": {"type": "object", "properties": {"name": {"type": "string"}}}
	  },
	  "type": "object",
	  "properties": {
	    "metadata": {"allOf": [{"$ref": "#/definitions/Meta"}]}
	  }
	}`
	s, err := Normalize(json.RawMessage(raw), NormalizeOptions{})
	require.NoError(t, err)
	_, ok := s.Resolve("metadata.name")
	assert.True(t, ok)
}

func TestNormalizeNonStringEnum(t *testing.T) {
	raw := `{"type": "object", "properties": {"mode": {"type": "integer", "enum": [1, 2]}}}`
	s, err := Normalize(json.RawMessage(raw), NormalizeOptions{})
	require.NoError(t, err)
	n, ok := s.Resolve("mode")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "2"}, n.Enum)
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	_, err := Normalize(json.RawMessage(`not json`), NormalizeOptions{})
	require.Error(t, err)
}

func TestRequiredLeafPaths(t *testing.T) {
	s, err := Normalize(json.RawMessage(deploymentish), NormalizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"spec.image", "spec.replicas"}, s.RequiredLeafPaths())
}
