// Package server exposes the diagnostic API over HTTP. Identity arrives as
// an X-User-ID header resolved against the profile store; an optional
// X-Session-ID header binds the request to a per-session step machine so
// duplicate submissions are refused instead of double-billed.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/certi-mate/compliance-api/internal/access"
	"github.com/certi-mate/compliance-api/internal/config"
	"github.com/certi-mate/compliance-api/internal/diagnostic"
	"github.com/certi-mate/compliance-api/internal/flow"
	"github.com/certi-mate/compliance-api/internal/model"
	"github.com/certi-mate/compliance-api/internal/store"
)

// Server wires the HTTP routes to the orchestrator, store, and access gate.
type Server struct {
	orch     *diagnostic.Orchestrator
	store    store.Store
	gate     *access.Gate
	sessions *flow.Sessions
	router   chi.Router
}

func New(orch *diagnostic.Orchestrator, st store.Store, gate *access.Gate, cfg config.ServerConfig) *Server {
	s := &Server{
		orch:     orch,
		store:    st,
		gate:     gate,
		sessions: flow.NewSessions(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-User-ID", "X-Session-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/diagnostic/{type}", s.handleDiagnostic)
	r.Post("/generate-document", s.handleGenerateDocument)
	r.Get("/history", s.handleHistory)
	r.Get("/documents", s.handleDocuments)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/users/{id}", s.handleGetUser)
		r.Patch("/users/{id}/role", s.handleSetRole)
		r.Patch("/users/{id}/tier", s.handleSetTier)
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) caller(r *http.Request) model.Caller {
	return s.gate.Resolve(r.Context(), r.Header.Get("X-User-ID"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDiagnostic(w http.ResponseWriter, r *http.Request) {
	typ, ok := model.ParseDiagnosticType(chi.URLParam(r, "type"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown diagnostic type "+chi.URLParam(r, "type"))
		return
	}

	var input model.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	sessionID := r.Header.Get("X-Session-ID")
	var fl *flow.Flow
	if sessionID != "" {
		fl = s.sessions.Get(sessionID)
		if err := fl.Advance(flow.StepAnalyzing); err != nil {
			writeError(w, http.StatusConflict, "analysis already in progress for this session")
			return
		}
	}

	result, err := s.orch.Run(r.Context(), typ, input, s.caller(r))
	if err != nil {
		if fl != nil {
			fl.Fail(err.Error())
		}
		s.writeDomainError(w, err)
		return
	}
	if fl != nil {
		// Result step failure here would mean the machine was reset
		// mid-flight; the response is still valid, so just log it.
		if aerr := fl.Advance(flow.StepResult); aerr != nil {
			zap.L().Debug("flow advance after analysis", zap.Error(aerr))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"type":   result.Type,
		"result": result.Payload,
	})
}

func (s *Server) handleGenerateDocument(w http.ResponseWriter, r *http.Request) {
	var input model.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	sessionID := r.Header.Get("X-Session-ID")
	var fl *flow.Flow
	if sessionID != "" {
		fl = s.sessions.Get(sessionID)
		if err := fl.Advance(flow.StepGeneratingDoc); err != nil {
			writeError(w, http.StatusConflict, "document generation not available from current step")
			return
		}
	}

	doc, err := s.orch.GenerateDocument(r.Context(), input, s.caller(r))
	if err != nil {
		if fl != nil {
			fl.Fail(err.Error())
		}
		s.writeDomainError(w, err)
		return
	}
	if fl != nil {
		if aerr := fl.Advance(flow.StepDocResult); aerr != nil {
			zap.L().Debug("flow advance after document", zap.Error(aerr))
		}
	}
	writeJSON(w, http.StatusOK, doc)
}

// listLimit parses the optional limit query parameter. Values are capped at
// DefaultHistoryLimit; garbage falls back to the cap.
func listLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return store.DefaultHistoryLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > store.DefaultHistoryLimit {
		return store.DefaultHistoryLimit
	}
	return n
}

// handleHistory lists the caller's past diagnostics. A broken store degrades
// to an empty list; history is a convenience surface, not a dependency.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	caller := s.caller(r)
	filter := store.HistoryFilter{UserID: caller.UserID, Limit: listLimit(r)}
	if t := r.URL.Query().Get("type"); t != "" {
		typ, ok := model.ParseDiagnosticType(t)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown diagnostic type "+t)
			return
		}
		filter.Type = typ
	}

	records, err := s.store.ListDiagnostics(r.Context(), filter)
	if err != nil {
		if !store.IsMissingTable(err) {
			zap.L().Warn("history list failed, serving empty", zap.Error(err))
		}
		records = nil
	}
	if records == nil {
		records = []model.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": records})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	caller := s.caller(r)
	docs, err := s.store.ListDocuments(r.Context(), caller.UserID, listLimit(r))
	if err != nil {
		if !store.IsMissingTable(err) {
			zap.L().Warn("document list failed, serving empty", zap.Error(err))
		}
		docs = nil
	}
	if docs == nil {
		docs = []model.GeneratedDocument{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	caller := s.caller(r)
	if err := s.gate.RequireAdmin(r.Context(), caller); err != nil {
		s.writeDomainError(w, err)
		return
	}
	profile, err := s.store.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role model.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := s.gate.SetRole(r.Context(), s.caller(r), chi.URLParam(r, "id"), body.Role); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleSetTier(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tier model.Tier `json:"tier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := s.gate.SetTier(r.Context(), s.caller(r), chi.URLParam(r, "id"), body.Tier); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// writeDomainError maps the error taxonomy to HTTP. Gateway internals never
// leak to clients; validation detail always does.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var invalid *model.InvalidInputError
	var gateway *model.GatewayError
	var authz *model.AuthorizationError
	switch {
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, invalid.Error())
	case errors.As(err, &authz):
		writeError(w, http.StatusForbidden, authz.Error())
	case errors.As(err, &gateway):
		zap.L().Error("gateway error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analysis service unavailable, try again shortly")
	default:
		zap.L().Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
