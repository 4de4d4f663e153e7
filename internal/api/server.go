// Package api exposes the HTTP interface for the run service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/wowhead-parser/internal/app"
	"github.com/JakeFAU/wowhead-parser/internal/config"
	"github.com/JakeFAU/wowhead-parser/internal/crawler"
	"github.com/JakeFAU/wowhead-parser/internal/metrics"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	requestTimeout   = 30 * time.Second
)

// RunService is the subset of app.Service the handlers use.
type RunService interface {
	Parsers() []string
	EntryLists() ([]string, error)
	Launch(ctx context.Context, req app.Request) (crawler.RunRecord, error)
	Get(ctx context.Context, id string) (crawler.RunRecord, error)
	List(ctx context.Context, limit int) ([]crawler.RunRecord, error)
	Stop(ctx context.Context, id string) error
	OpenDump(ctx context.Context, id string) (io.ReadCloser, crawler.RunRecord, error)
}

// Server wires HTTP handlers to the run service.
type Server struct {
	router chi.Router
	runs   RunService
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runs RunService, auth config.AuthConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{runs: runs, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if auth.Enabled {
			r.Use(apiKeyMiddleware(auth.APIKey))
		}
		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(requestTimeout))
			r.Get("/parsers", s.listParsers)
			r.Get("/entry-lists", s.listEntryLists)
			r.Post("/runs", s.launchRun)
			r.Get("/runs", s.listRuns)
			r.Get("/runs/{run_id}", s.getRun)
			r.Post("/runs/{run_id}/stop", s.stopRun)
		})
		// Dumps are streamed, so they skip the buffering timeout handler.
		r.Get("/runs/{run_id}/dump", s.downloadDump)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listParsers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"parsers": s.runs.Parsers()})
}

func (s *Server) listEntryLists(w http.ResponseWriter, _ *http.Request) {
	files, err := s.runs.EntryLists()
	if err != nil {
		s.logger.Error("list entry lists failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list entry lists")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entry_lists": files})
}

func (s *Server) launchRun(w http.ResponseWriter, r *http.Request) {
	var req app.Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	rec, err := s.runs.Launch(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"run_id": rec.ID, "total": rec.Total})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}
	runs, err := s.runs.List(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if runs == nil {
		runs = []crawler.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.runs.Get(r.Context(), chi.URLParam(r, "run_id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) stopRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	if err := s.runs.Stop(r.Context(), runID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "stopping"})
}

func (s *Server) downloadDump(w http.ResponseWriter, r *http.Request) {
	rc, rec, err := s.runs.OpenDump(r.Context(), chi.URLParam(r, "run_id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(rec.OutputPath)))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("stream dump failed", zap.String("run_id", rec.ID), zap.Error(err))
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case app.IsRequestError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, crawler.ErrRunNotFound), errors.Is(err, app.ErrNoDump):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrRunNotFinished):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusRequestTimeout, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
