package session

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kubeintent/internal/capability"
	"kubeintent/internal/cluster"
	"kubeintent/internal/manifest"
	"kubeintent/internal/oracle"
	"kubeintent/internal/recommend"
)

var deploymentID = capability.Identity{Group: "apps", Version: "v1", Kind: "Deployment"}

func pipelineCluster() *cluster.Fake {
	return &cluster.Fake{
		Kinds: []cluster.KindInfo{
			{Identity: deploymentID, Origin: capability.OriginBuiltin, Verbs: []string{"get", "list", "create"}},
		},
		Schemas: map[capability.Identity]json.RawMessage{
			deploymentID: json.RawMessage(`{
			  "type": "object",
			  "required": ["spec"],
			  "properties": {
			    "spec": {
			      "type": "object",
			      "required": ["image", "replicas"],
			      "properties": {
			        "image": {"type": "string"},
			        "replicas": {"type": "integer"}
			      }
			    }
			  }
			}`),
		},
	}
}

func pipelineOracle() *oracle.Fake {
	return &oracle.Fake{Responses: map[oracle.TemplateID]json.RawMessage{
		oracle.TemplateCandidates: json.RawMessage(`{"candidates": [
			{"group": "apps", "version": "v1", "kind": "Deployment", "reason": "runs stateless workloads"}
		]}`),
		oracle.TemplateRank: json.RawMessage(`{"solutions": [
			{"resources": [{"group": "apps", "version": "v1", "kind": "Deployment",
				"assignments": {"spec.image": "nginx"}}], "confidence": 0.9}
		]}`),
	}}
}

func newTestOrchestrator(t *testing.T, oc oracle.Client) *Orchestrator {
	t.Helper()
	orch, err := NewOrchestrator(Config{
		Connection: pipelineCluster(),
		Oracle:     oc,
		Manifests:  &manifest.DirStore{Root: t.TempDir()},
	})
	require.NoError(t, err)
	return orch
}

func TestRecommendDrivesToAwaitingAnswers(t *testing.T) {
	ctx := context.Background()
	orch := newTestOrchestrator(t, pipelineOracle())

	s, err := orch.Recommend(ctx, "run a web app")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingAnswers, s.State)
	assert.Equal(t, []capability.Identity{deploymentID}, s.Candidates)
	require.Len(t, s.Solutions, 1)
	assert.Equal(t, 1, s.Solutions[0].Version)

	// spec.image is assigned by the solution; only replicas is asked about.
	require.NotNil(t, s.Questions)
	require.Equal(t, 1, s.Questions.Len())
	assert.Equal(t, "spec.replicas", s.Questions.All()[0].Path)
}

func TestRecommendVagueIntentPersistsCreatedSession(t *testing.T) {
	ctx := context.Background()
	fake := pipelineOracle()
	orch := newTestOrchestrator(t, fake)

	s, err := orch.Recommend(ctx, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, recommend.ErrIntentTooVague)
	require.NotNil(t, s)
	assert.Equal(t, StateCreated, s.State)
	assert.Equal(t, 0, fake.TotalCalls(), "no oracle call before the gate passes")

	stored, err := orch.Store().Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCreated, stored.State)
}

func TestAnswerEnhanceFinalize(t *testing.T) {
	ctx := context.Background()
	orch := newTestOrchestrator(t, pipelineOracle())

	s, err := orch.Recommend(ctx, "run a web app")
	require.NoError(t, err)
	qid := s.Questions.All()[0].ID

	s, err = orch.Answer(ctx, s.ID, qid, 3)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingAnswers, s.State)
	assert.True(t, s.Questions.Complete())

	s, err = orch.Enhance(ctx, s.ID, "")
	require.NoError(t, err)
	assert.Equal(t, StateEnhanced, s.State)
	require.Len(t, s.Solutions, 2, "enhancement appends a new version")
	cur, _ := s.Latest()
	assert.Equal(t, 2, cur.Version)
	assert.Equal(t, 3, cur.Resources[0].Assignments["spec.replicas"])

	s, data, err := orch.Finalize(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFinalized, s.State)
	assert.NotEmpty(t, s.ManifestRef)
	assert.Contains(t, string(data), "kind: Deployment")
	assert.Contains(t, string(data), "replicas: 3")

	// Terminal: nothing moves a finalized session.
	_, err = orch.Enhance(ctx, s.ID, "more replicas")
	require.Error(t, err)
	var bad *ErrBadTransition
	assert.ErrorAs(t, err, &bad)
}

func TestAnswerUnknownQuestion(t *testing.T) {
	ctx := context.Background()
	orch := newTestOrchestrator(t, pipelineOracle())
	s, err := orch.Recommend(ctx, "run a web app")
	require.NoError(t, err)

	_, err = orch.Answer(ctx, s.ID, "q-nonsense", 1)
	require.Error(t, err)
}

func TestFinalizeRequiresEnhancedState(t *testing.T) {
	ctx := context.Background()
	orch := newTestOrchestrator(t, pipelineOracle())
	s, err := orch.Recommend(ctx, "run a web app")
	require.NoError(t, err)

	_, _, err = orch.Finalize(ctx, s.ID)
	require.Error(t, err)
	var bad *ErrBadTransition
	assert.ErrorAs(t, err, &bad)

	stored, err := orch.Store().Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingAnswers, stored.State)
}

func TestConsecutiveOracleFailuresFailSession(t *testing.T) {
	ctx := context.Background()
	fake := pipelineOracle()
	orch := newTestOrchestrator(t, fake)

	s, err := orch.Recommend(ctx, "run a web app")
	require.NoError(t, err)
	_, err = orch.Answer(ctx, s.ID, s.Questions.All()[0].ID, 2)
	require.NoError(t, err)

	// From here every enhancement ask exhausts its budget.
	fake.Err = fmt.Errorf("%w after 3 attempts: model overloaded", oracle.ErrBudget)

	for i := 1; i <= 2; i++ {
		_, err = orch.Enhance(ctx, s.ID, "add persistence")
		require.Error(t, err)
		stored, gerr := orch.Store().Get(ctx, s.ID)
		require.NoError(t, gerr)
		assert.Equal(t, StateAwaitingAnswers, stored.State, "attempt %d leaves state untouched", i)
		assert.Equal(t, i, stored.OracleFailures)
	}

	_, err = orch.Enhance(ctx, s.ID, "add persistence")
	require.Error(t, err)
	stored, err := orch.Store().Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, stored.State)
	assert.Contains(t, stored.FailureReason, "oracle failed 3 times")
}

func TestSuccessResetsOracleFailureCount(t *testing.T) {
	ctx := context.Background()
	fake := pipelineOracle()
	orch := newTestOrchestrator(t, fake)

	s, err := orch.Recommend(ctx, "run a web app")
	require.NoError(t, err)
	_, err = orch.Answer(ctx, s.ID, s.Questions.All()[0].ID, 2)
	require.NoError(t, err)

	fake.Err = fmt.Errorf("%w: transient", oracle.ErrBudget)
	_, err = orch.Enhance(ctx, s.ID, "add persistence")
	require.Error(t, err)

	fake.Err = nil
	s, err = orch.Enhance(ctx, s.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 0, s.OracleFailures)
}

func TestAbort(t *testing.T) {
	ctx := context.Background()
	orch := newTestOrchestrator(t, pipelineOracle())
	s, err := orch.Recommend(ctx, "run a web app")
	require.NoError(t, err)

	s, err = orch.Abort(ctx, s.ID, "user cancelled")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, s.State)
	assert.Equal(t, "user cancelled", s.FailureReason)
}

func TestHubPublishesTransitions(t *testing.T) {
	ctx := context.Background()
	orch := newTestOrchestrator(t, pipelineOracle())
	s, err := orch.Recommend(ctx, "run a web app")
	require.NoError(t, err)

	events, cancel := orch.Hub().Subscribe(s.ID)
	defer cancel()

	_, err = orch.Answer(ctx, s.ID, s.Questions.All()[0].ID, 1)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, s.ID, ev.SessionID)
		assert.Equal(t, StateAwaitingAnswers, ev.To)
	case <-time.After(time.Second):
		t.Fatal("expected a transition event")
	}
}

func TestDiscoverRefreshKeepsSessionSnapshot(t *testing.T) {
	ctx := context.Background()
	orch := newTestOrchestrator(t, pipelineOracle())

	s, err := orch.Recommend(ctx, "run a web app")
	require.NoError(t, err)
	pinned := s.Index

	_, err = orch.Discover(ctx)
	require.NoError(t, err)

	stored, err := orch.Store().Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Same(t, pinned, stored.Index, "a refresh never swaps a running session's snapshot")
}
