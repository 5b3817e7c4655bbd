package enhance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kubeintent/internal/capability"
	"kubeintent/internal/oracle"
	"kubeintent/internal/question"
	"kubeintent/internal/recommend"
)

func enhanceIndex(t *testing.T) *capability.Index {
	t.Helper()
	schema, err := capability.Normalize(json.RawMessage(`{
	  "type": "object",
	  "properties": {
	    "spec": {
	      "type": "object",
	      "properties": {
	        "image": {"type": "string"},
	        "replicas": {"type": "integer"},
	        "resources": {
	          "type": "object",
	          "properties": {
	            "limits": {"type": "object", "properties": {"memory": {"type": "string"}}}
	          }
	        }
	      }
	    }
	  }
	}`), capability.NormalizeOptions{})
	require.NoError(t, err)
	return capability.NewIndex(time.Unix(1700000000, 0), []*capability.ResourceDescriptor{
		{Identity: capability.Identity{Group: "apps", Version: "v1", Kind: "Deployment"}, Origin: capability.OriginBuiltin, Schema: schema},
	}, nil)
}

func baseSolution() recommend.Solution {
	return recommend.Solution{
		ID:      "sol-deployment-abc",
		Version: 1,
		Resources: []recommend.ResourceSelection{{
			Ref:         capability.Identity{Group: "apps", Version: "v1", Kind: "Deployment"},
			Assignments: map[string]any{"spec.image": "nginx"},
		}},
	}
}

func answeredSet(t *testing.T) *question.Set {
	t.Helper()
	var set question.Set
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id": "q0-spec-replicas", "resource": 0, "path": "spec.replicas", "prompt": "How many?", "answer_type": "number"}
	]`), &set))
	require.NoError(t, set.SetAnswer("q0-spec-replicas", 3))
	return &set
}

func TestEnhanceAppliesAnswers(t *testing.T) {
	e := &Enhancer{}
	next, warnings, err := e.Enhance(context.Background(), baseSolution(), answeredSet(t), "", enhanceIndex(t))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 2, next.Version)
	assert.Equal(t, 3, next.Resources[0].Assignments["spec.replicas"])
	assert.Empty(t, next.OpenQuestions)
}

func TestEnhanceNoChangeKeepsVersion(t *testing.T) {
	e := &Enhancer{}
	sol := baseSolution()
	next, warnings, err := e.Enhance(context.Background(), sol, nil, "", enhanceIndex(t))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, sol.Version, next.Version, "a no-op enhancement mints no new version")
	assert.True(t, next.Equal(sol))
}

func TestEnhanceIdempotent(t *testing.T) {
	e := &Enhancer{}
	idx := enhanceIndex(t)
	answers := answeredSet(t)

	first, _, err := e.Enhance(context.Background(), baseSolution(), answers, "", idx)
	require.NoError(t, err)
	second, _, err := e.Enhance(context.Background(), first, answers, "", idx)
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version, "re-applying the same answers changes nothing")
	assert.True(t, first.Equal(second))
}

func TestEnhanceInvalidPathWarnsAndDrops(t *testing.T) {
	var set question.Set
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id": "bad", "resource": 0, "path": "spec.flavor", "prompt": "?", "answer_type": "string"},
		{"id": "worse", "resource": 4, "path": "spec.image", "prompt": "?", "answer_type": "string"}
	]`), &set))
	require.NoError(t, set.SetAnswer("bad", "vanilla"))
	require.NoError(t, set.SetAnswer("worse", "nginx"))

	e := &Enhancer{}
	sol := baseSolution()
	next, warnings, err := e.Enhance(context.Background(), sol, &set, "", enhanceIndex(t))
	require.NoError(t, err, "invalid assignments degrade to warnings, never failure")
	require.Len(t, warnings, 2)
	assert.Equal(t, "spec.flavor", warnings[0].Path)
	assert.Equal(t, sol.Version, next.Version)
	_, assigned := next.Resources[0].Assignments["spec.flavor"]
	assert.False(t, assigned)
}

func TestEnhanceTranslatesRequirements(t *testing.T) {
	fake := &oracle.Fake{Responses: map[oracle.TemplateID]json.RawMessage{
		oracle.TemplateEnhance: json.RawMessage(`{"assignments": [
			{"resource": 0, "path": "spec.resources.limits.memory", "value": "512Mi"},
			{"resource": 0, "path": "spec.made.up", "value": true}
		]}`),
	}}
	e := &Enhancer{Oracle: fake}
	next, warnings, err := e.Enhance(context.Background(), baseSolution(), nil, "cap memory at 512Mi", enhanceIndex(t))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "spec.made.up", warnings[0].Path)
	assert.Equal(t, "512Mi", next.Resources[0].Assignments["spec.resources.limits.memory"])
	assert.Equal(t, 2, next.Version)
}

func TestEnhanceOracleFailureLeavesNothingApplied(t *testing.T) {
	fake := &oracle.Fake{Err: oracle.ErrBudget}
	e := &Enhancer{Oracle: fake}
	sol := baseSolution()
	_, _, err := e.Enhance(context.Background(), sol, nil, "more of everything", enhanceIndex(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, oracle.ErrBudget)
	// The input is untouched; the caller's session state stays as it was.
	assert.Equal(t, map[string]any{"spec.image": "nginx"}, sol.Resources[0].Assignments)
}

func TestEnhanceRewritesOpenQuestions(t *testing.T) {
	var set question.Set
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id": "a", "resource": 0, "path": "spec.replicas", "prompt": "How many replicas?", "answer_type": "number"},
		{"id": "b", "resource": 0, "path": "spec.resources.limits.memory", "prompt": "Memory limit?", "answer_type": "string"}
	]`), &set))
	require.NoError(t, set.SetAnswer("a", 2))

	e := &Enhancer{}
	next, _, err := e.Enhance(context.Background(), baseSolution(), &set, "", enhanceIndex(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"Memory limit?"}, next.OpenQuestions)
}
