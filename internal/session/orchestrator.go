package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"kubeintent/internal/capability"
	"kubeintent/internal/cluster"
	"kubeintent/internal/discovery"
	"kubeintent/internal/enhance"
	"kubeintent/internal/manifest"
	"kubeintent/internal/oracle"
	"kubeintent/internal/question"
	"kubeintent/internal/recommend"
)

// maxOracleFailures is how many consecutive terminal oracle failures a
// session tolerates before it fails for good.
const maxOracleFailures = 3

// Orchestrator drives the discovery-to-recommendation workflow. It owns the
// current capability index; sessions pin the snapshot they started with and a
// refresh never swaps an index out from under an in-flight session.
type Orchestrator struct {
	conn      cluster.Connection
	oracle    oracle.Client
	store     Store
	manifests manifest.Store
	hub       *Hub
	log       *slog.Logger

	discoveryOpts discovery.Options
	scoring       recommend.ScoringConfig

	mu    sync.RWMutex
	index *capability.Index
}

// Config assembles an Orchestrator.
type Config struct {
	Connection cluster.Connection
	Oracle     oracle.Client
	Store      Store
	Manifests  manifest.Store
	Logger     *slog.Logger
	Discovery  discovery.Options
	Scoring    recommend.ScoringConfig
}

func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Connection == nil {
		return nil, errors.New("session: orchestrator needs a cluster connection")
	}
	if cfg.Oracle == nil {
		return nil, errors.New("session: orchestrator needs an oracle client")
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore(0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		conn:          cfg.Connection,
		oracle:        cfg.Oracle,
		store:         store,
		manifests:     cfg.Manifests,
		hub:           NewHub(),
		log:           logger.With("component", "orchestrator"),
		discoveryOpts: cfg.Discovery,
		scoring:       cfg.Scoring,
	}, nil
}

// Hub exposes the transition event hub for watch adapters.
func (o *Orchestrator) Hub() *Hub { return o.hub }

// Store exposes the session store for read-only adapters.
func (o *Orchestrator) Store() Store { return o.store }

// Discover refreshes the capability index. The new snapshot serves future
// sessions; running sessions keep the one they hold.
func (o *Orchestrator) Discover(ctx context.Context) (*capability.Index, error) {
	idx, err := discovery.Discover(ctx, o.conn, o.discoveryOpts)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.index = idx
	o.mu.Unlock()
	return idx, nil
}

// CurrentIndex returns the latest snapshot, discovering on first use.
func (o *Orchestrator) CurrentIndex(ctx context.Context) (*capability.Index, error) {
	o.mu.RLock()
	idx := o.index
	o.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}
	return o.Discover(ctx)
}

// Recommend creates a session for the intent and drives it through candidate
// selection, ranking and question derivation. Recoverable conditions
// (IntentTooVague, NoCandidatesFound) leave the session in its current state
// and are returned for the caller to act on; the session id travels with the
// partial session so the caller can retry or abandon it.
func (o *Orchestrator) Recommend(ctx context.Context, intentText string) (*Session, error) {
	idx, err := o.CurrentIndex(ctx)
	if err != nil {
		return nil, err
	}
	s := New(intentText, idx)
	if err := o.store.Put(ctx, s); err != nil {
		return nil, err
	}

	intent, err := recommend.ValidateIntent(intentText)
	if err != nil {
		return s, err
	}
	s, err = o.apply(ctx, s.ID, StateIntentValidated, func(st *Session) { st.Intent = intent })
	if err != nil {
		return s, err
	}

	selector := &recommend.Selector{Oracle: o.oracle, Logger: o.log}
	candidates, err := selector.Select(ctx, intent, idx)
	if err != nil {
		return o.observeOracleErr(ctx, s, err)
	}
	ids := make([]capability.Identity, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Identity
	}
	s, err = o.apply(ctx, s.ID, StateCandidatesSelected, func(st *Session) { st.Candidates = ids })
	if err != nil {
		return s, err
	}

	ranker := &recommend.Ranker{Oracle: o.oracle, Scoring: o.scoring, Logger: o.log}
	solutions, err := ranker.Rank(ctx, intent, candidates, idx)
	if err != nil {
		return o.observeOracleErr(ctx, s, err)
	}
	s, err = o.apply(ctx, s.ID, StateRanked, func(st *Session) {
		st.Ranked = solutions
		st.Solutions = []recommend.Solution{solutions[0].Clone()}
	})
	if err != nil {
		return s, err
	}

	engine := &question.Engine{Oracle: o.oracle, Logger: o.log}
	questions, err := engine.Derive(ctx, solutions[0], idx)
	if err != nil {
		return o.observeOracleErr(ctx, s, err)
	}
	return o.apply(ctx, s.ID, StateAwaitingAnswers, func(st *Session) {
		st.Questions = questions
		st.OracleFailures = 0
	})
}

// Answer records one answer and re-persists the session. AwaitingAnswers
// re-enters itself; answering from Enhanced drops the session back to
// AwaitingAnswers since applicability may have changed.
func (o *Orchestrator) Answer(ctx context.Context, sessionID, questionID string, value any) (*Session, error) {
	var from State
	s, err := o.store.Update(ctx, sessionID, func(st *Session) error {
		from = st.State
		if st.State != StateAwaitingAnswers && st.State != StateEnhanced {
			return &ErrBadTransition{From: st.State, To: StateAwaitingAnswers}
		}
		if st.Questions == nil {
			return fmt.Errorf("%w: session %s has no questions", question.ErrUnknownQuestion, sessionID)
		}
		if err := st.Questions.SetAnswer(questionID, value); err != nil {
			return err
		}
		return st.Transition(StateAwaitingAnswers)
	})
	if err != nil {
		return s, err
	}
	o.publish(s, from, s.State)
	return s, nil
}

// Enhance merges the session's answers and the free-form requirements into a
// new solution version. Oracle work happens before any session mutation; a
// failed enhancement leaves the session exactly as it was.
func (o *Orchestrator) Enhance(ctx context.Context, sessionID, requirements string) (*Session, error) {
	s, err := o.get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.State != StateAwaitingAnswers && s.State != StateEnhanced {
		return s, &ErrBadTransition{From: s.State, To: StateEnhanced}
	}
	cur, ok := s.Latest()
	if !ok {
		return s, fmt.Errorf("session: %s has no solution to enhance", sessionID)
	}
	idx := o.sessionIndex(ctx, s)
	enhancer := &enhance.Enhancer{Oracle: o.oracle, Logger: o.log}
	next, warnings, err := enhancer.Enhance(ctx, cur, s.Questions, requirements, idx)
	if err != nil {
		return o.observeOracleErr(ctx, s, err)
	}
	var from State
	s, err = o.store.Update(ctx, sessionID, func(st *Session) error {
		from = st.State
		st.PushSolution(next)
		st.Warnings = append(st.Warnings, warnings...)
		st.OracleFailures = 0
		return st.Transition(StateEnhanced)
	})
	if err != nil {
		return s, err
	}
	o.publish(s, from, s.State)
	return s, nil
}

// Explain renders the field tree of one kind from the current index.
func (o *Orchestrator) Explain(ctx context.Context, kind string) (string, error) {
	idx, err := o.CurrentIndex(ctx)
	if err != nil {
		return "", err
	}
	d, ok := idx.LookupKind(kind)
	if !ok {
		if id, perr := capability.ParseIdentity(kind); perr == nil {
			d, ok = idx.Lookup(id)
		}
	}
	if !ok {
		return "", fmt.Errorf("session: kind %q not found in index of %d kinds", kind, idx.Len())
	}
	return capability.Explain(d), nil
}

// Finalize renders and archives the manifest set for the session's current
// solution and moves the session to its terminal state.
func (o *Orchestrator) Finalize(ctx context.Context, sessionID string) (*Session, []byte, error) {
	s, err := o.get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if !s.State.CanTransition(StateFinalized) {
		return s, nil, &ErrBadTransition{From: s.State, To: StateFinalized}
	}
	sol, ok := s.Latest()
	if !ok {
		return s, nil, fmt.Errorf("session: %s has no solution to finalize", sessionID)
	}
	set, err := manifest.Build(sol, "")
	if err != nil {
		return s, nil, err
	}
	data, err := set.Render()
	if err != nil {
		return s, nil, err
	}
	ref := ""
	if o.manifests != nil {
		ref, err = o.manifests.Save(ctx, sessionID, data)
		if err != nil {
			return s, nil, err
		}
	}
	s, err = o.apply(ctx, sessionID, StateFinalized, func(st *Session) { st.ManifestRef = ref })
	if err != nil {
		return s, nil, err
	}
	return s, data, nil
}

// Abort moves a session to Failed on user cancellation. Safe at any stage
// boundary; whatever an in-flight oracle call returns afterwards is discarded
// because the terminal state accepts no further transitions.
func (o *Orchestrator) Abort(ctx context.Context, sessionID, reason string) (*Session, error) {
	return o.update(ctx, sessionID, func(st *Session) error {
		st.Fail(reason)
		return nil
	})
}

func (o *Orchestrator) get(ctx context.Context, id string) (*Session, error) {
	return o.store.Get(ctx, id)
}

// sessionIndex returns the snapshot the session pinned, reattaching the
// current one for sessions revived from persistent stores.
func (o *Orchestrator) sessionIndex(ctx context.Context, s *Session) *capability.Index {
	if s.Index != nil {
		return s.Index
	}
	idx, err := o.CurrentIndex(ctx)
	if err != nil {
		o.log.Warn("no index available for revived session", "session", s.ID, "err", err)
		return nil
	}
	s.Index = idx
	return idx
}

// apply transitions the session and applies mutate atomically, publishing
// the transition on success.
func (o *Orchestrator) apply(ctx context.Context, id string, to State, mutate func(*Session)) (*Session, error) {
	var from State
	s, err := o.store.Update(ctx, id, func(st *Session) error {
		from = st.State
		if mutate != nil {
			mutate(st)
		}
		return st.Transition(to)
	})
	if err != nil {
		return s, err
	}
	o.publish(s, from, to)
	return s, nil
}

func (o *Orchestrator) update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	var from State
	s, err := o.store.Update(ctx, id, func(st *Session) error {
		from = st.State
		return fn(st)
	})
	if err != nil {
		return s, err
	}
	if s.State != from {
		o.publish(s, from, s.State)
	}
	return s, nil
}

func (o *Orchestrator) publish(s *Session, from, to State) {
	o.log.Info("session transition", "session", s.ID, "from", string(from), "to", string(to))
	o.hub.Publish(Event{SessionID: s.ID, From: from, To: to, At: s.UpdatedAt})
}

// observeOracleErr books a terminal oracle failure against the session and
// fails it once the tolerance is spent. Recoverable conditions pass through
// with the session untouched.
func (o *Orchestrator) observeOracleErr(ctx context.Context, s *Session, err error) (*Session, error) {
	if !oracle.BudgetExhausted(err) {
		return s, err
	}
	updated, uerr := o.update(ctx, s.ID, func(st *Session) error {
		st.OracleFailures++
		if st.OracleFailures >= maxOracleFailures {
			st.Fail(fmt.Sprintf("oracle failed %d times: %v", st.OracleFailures, err))
		}
		return nil
	})
	if uerr != nil {
		return s, err
	}
	return updated, err
}
