// Package server exposes the pipeline over a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rahul/herodotus/internal/agent"
	"github.com/rahul/herodotus/internal/app"
	"github.com/rahul/herodotus/internal/observability"
	"github.com/rahul/herodotus/internal/store"
	"github.com/rahul/herodotus/pkg/config"
)

const maxBodyBytes = 1 << 20

// Backend is what the API needs from the service.
type Backend interface {
	Process(ctx context.Context, task string, settings config.Settings) (*agent.Outcome, error)
	ProcessSteps(ctx context.Context, task string, settings config.Settings, steps []agent.Step) (*agent.Outcome, error)
	ExecuteWorkflow(ctx context.Context, id, task string) (*app.WorkflowResult, error)
	Workflows() *store.WorkflowStore
	Status() observability.Snapshot
}

type Server struct {
	backend Backend
	logger  *zap.Logger
	http    *http.Server
}

func New(backend Backend, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{backend: backend, logger: logger}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/process", s.handleProcess)
	mux.HandleFunc("GET /api/workflow", s.handleListWorkflows)
	mux.HandleFunc("POST /api/workflow", s.handleSaveWorkflow)
	mux.HandleFunc("DELETE /api/workflow/{id}", s.handleDeleteWorkflow)
	mux.HandleFunc("POST /api/workflow/{id}/execute", s.handleExecuteWorkflow)
	mux.HandleFunc("GET /api/status", s.handleStatus)

	return s.logRequests(mux)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", zap.String("addr", addr))
		errc <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

type processRequest struct {
	Task     string          `json:"task"`
	Settings config.Settings `json:"settings"`
	// Steps, when given, replace planning.
	Steps []agent.Step `json:"steps,omitempty"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Task) == "" {
		writeError(w, http.StatusBadRequest, "task is required")
		return
	}

	var (
		out *agent.Outcome
		err error
	)
	if len(req.Steps) > 0 {
		out, err = s.backend.ProcessSteps(r.Context(), req.Task, req.Settings, req.Steps)
	} else {
		out, err = s.backend.Process(r.Context(), req.Task, req.Settings)
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"result": out.Output,
		"steps":  out.Steps,
	})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	wfs, err := s.backend.Workflows().List()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": wfs})
}

type workflowRequest struct {
	Name  string            `json:"name"`
	Steps []config.Settings `json:"steps"`
}

func (s *Server) handleSaveWorkflow(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if !s.decode(w, r, &req) {
		return
	}
	for i, step := range req.Steps {
		if err := step.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("step %d: %v", i+1, err))
			return
		}
	}

	wf, err := s.backend.Workflows().Save(store.Workflow{Name: req.Name, Steps: req.Steps})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "workflow": wf})
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Workflows().Delete(r.PathValue("id")); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

type executeRequest struct {
	Task string `json:"task"`
}

func (s *Server) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Task) == "" {
		writeError(w, http.StatusBadRequest, "task is required")
		return
	}

	res, err := s.backend.ExecuteWorkflow(r.Context(), r.PathValue("id"), req.Task)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"result": res.Output,
		"steps":  res.Steps,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Status())
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", code), zap.Error(err))
	}
	writeError(w, code, err.Error())
}

// StatusFor maps an error onto an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, config.ErrInvalidSettings), errors.Is(err, store.ErrInvalidWorkflow):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrWorkflowNotFound):
		return http.StatusNotFound
	case errors.Is(err, agent.ErrUnknownUnit), errors.Is(err, agent.ErrEmptyRegistry):
		return http.StatusUnprocessableEntity
	case errors.Is(err, agent.ErrUnitFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"status": "error", "message": message})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("handler panic", zap.Any("panic", p), zap.String("path", r.URL.Path))
				writeError(rec, http.StatusInternalServerError, "internal error")
			}
			s.logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.code),
				zap.Duration("elapsed", time.Since(start)),
			)
		}()
		next.ServeHTTP(rec, r)
	})
}
