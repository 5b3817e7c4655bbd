package main

import (
	"errors"
	"net/http"

	"kubeintent/internal/capability"
	"kubeintent/internal/cluster"
	"kubeintent/internal/oracle"
	"kubeintent/internal/question"
	"kubeintent/internal/recommend"
	"kubeintent/internal/session"
)

func (s *apiServer) handleDiscover(w http.ResponseWriter, r *http.Request) {
	idx, err := s.orch.Discover(r.Context())
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, capabilitiesView(idx))
}

func (s *apiServer) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	idx, err := s.orch.CurrentIndex(r.Context())
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, capabilitiesView(idx))
}

func capabilitiesView(idx *capability.Index) map[string]any {
	return map[string]any{
		"built_at":  idx.BuiltAt(),
		"resources": idx.Resources(),
		"failures":  idx.Failures(),
	}
}

func (s *apiServer) handleExplain(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		http.Error(w, "kind is required", http.StatusBadRequest)
		return
	}
	text, err := s.orch.Explain(r.Context(), kind)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "explanation": text})
}

func (s *apiServer) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Intent string `json:"intent"`
	}
	if err := decodeBody(r, &in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess, err := s.orch.Recommend(r.Context(), in.Intent)
	if err != nil {
		s.writeError(w, err, sess)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *apiServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.orch.Store().List(r.Context())
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *apiServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.Store().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *apiServer) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var in struct {
		QuestionID string `json:"question_id"`
		Value      any    `json:"value"`
	}
	if err := decodeBody(r, &in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess, err := s.orch.Answer(r.Context(), r.PathValue("id"), in.QuestionID, in.Value)
	if err != nil {
		s.writeError(w, err, sess)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *apiServer) handleEnhance(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Requirements string `json:"requirements"`
	}
	if err := decodeBody(r, &in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess, err := s.orch.Enhance(r.Context(), r.PathValue("id"), in.Requirements)
	if err != nil {
		s.writeError(w, err, sess)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *apiServer) handleFinalize(w http.ResponseWriter, r *http.Request) {
	sess, data, err := s.orch.Finalize(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, sess)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":   sess,
		"manifests": string(data),
	})
}

func (s *apiServer) handleAbort(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Reason string `json:"reason"`
	}
	_ = decodeBody(r, &in)
	sess, err := s.orch.Abort(r.Context(), r.PathValue("id"), in.Reason)
	if err != nil {
		s.writeError(w, err, sess)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// writeError maps the pipeline error taxonomy onto HTTP statuses. Recoverable
// conditions carry the partial session so the client can retry against it.
func (s *apiServer) writeError(w http.ResponseWriter, err error, sess *session.Session) {
	status := http.StatusInternalServerError
	var bad *session.ErrBadTransition
	switch {
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &bad):
		status = http.StatusConflict
	case errors.Is(err, question.ErrUnknownQuestion):
		status = http.StatusBadRequest
	case errors.Is(err, recommend.ErrIntentTooVague),
		errors.Is(err, recommend.ErrNoCandidates),
		errors.Is(err, recommend.ErrNoSolutions):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, oracle.ErrBudget):
		status = http.StatusBadGateway
	case errors.Is(err, cluster.ErrUnreachable):
		status = http.StatusServiceUnavailable
	}
	body := map[string]any{"error": err.Error()}
	if sess != nil {
		body["session"] = sess
	}
	s.log.Warn("request failed", "status", status, "err", err)
	writeJSON(w, status, body)
}
