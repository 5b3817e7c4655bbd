package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"kubeintent/internal/oracle"
	"kubeintent/internal/session"
)

// apiServer wires the orchestrator behind plain JSON endpoints.
type apiServer struct {
	orch *session.Orchestrator
	log  *slog.Logger
}

func newAPIServer(orch *session.Orchestrator, logger *slog.Logger) *apiServer {
	return &apiServer{orch: orch, log: logger.With("component", "api")}
}

func buildMux(s *apiServer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/discover", s.handleDiscover)
	mux.HandleFunc("GET /api/capabilities", s.handleCapabilities)
	mux.HandleFunc("GET /api/explain", s.handleExplain)
	mux.HandleFunc("POST /api/recommend", s.handleRecommend)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/answer", s.handleAnswer)
	mux.HandleFunc("POST /api/sessions/{id}/enhance", s.handleEnhance)
	mux.HandleFunc("POST /api/sessions/{id}/finalize", s.handleFinalize)
	mux.HandleFunc("POST /api/sessions/{id}/abort", s.handleAbort)

	// WebSocket endpoint for watching session transitions
	mux.HandleFunc("/api/watch/", s.handleWatch)

	return mux
}

func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// oracleLogHook traces oracle round trips at debug level.
type oracleLogHook struct{ log *slog.Logger }

func (h oracleLogHook) Before(ctx context.Context, template oracle.TemplateID, prompt string, input any) {
	h.log.Debug("oracle call", "template", template, "prompt_bytes", len(prompt))
}

func (h oracleLogHook) After(ctx context.Context, template oracle.TemplateID, raw json.RawMessage, err error) {
	if err != nil {
		h.log.Debug("oracle call failed", "template", template, "err", err)
		return
	}
	h.log.Debug("oracle call done", "template", template, "response_bytes", len(raw))
}

// withOracleHook attaches the trace hook to every request context.
func withOracleHook(logger *slog.Logger, next http.Handler) http.Handler {
	hook := oracleLogHook{log: logger.With("component", "oracle")}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(oracle.WithHook(r.Context(), hook)))
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
