// Package server exposes the pipeline over a small JSON HTTP API: submit a
// run, poll its progress, export its artifacts, and browse the generated
// output files. Runs execute asynchronously; submission returns the run id
// immediately.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/khushiGit123/jira-gen/internal/artifact"
	"github.com/khushiGit123/jira-gen/internal/config"
	"github.com/khushiGit123/jira-gen/internal/errors"
	"github.com/khushiGit123/jira-gen/internal/logging"
	"github.com/khushiGit123/jira-gen/internal/orchestrator"
	"github.com/khushiGit123/jira-gen/internal/run"
)

// maxRequestBody bounds the submission payload size.
const maxRequestBody = 1 << 20

// Server handles HTTP traffic for the pipeline.
type Server struct {
	cfg    *config.Config
	orch   *orchestrator.Orchestrator
	store  *run.Store
	logger *logging.Logger
	slots  chan struct{}
}

// New creates a Server. MaxConcurrentRuns from config bounds how many
// pipelines execute at once; submissions beyond the bound are rejected with
// 429 rather than queued.
func New(cfg *config.Config, orch *orchestrator.Orchestrator, store *run.Store, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	maxRuns := cfg.Server.MaxConcurrentRuns
	if maxRuns < 1 {
		maxRuns = 1
	}
	return &Server{
		cfg:    cfg,
		orch:   orch,
		store:  store,
		logger: logger,
		slots:  make(chan struct{}, maxRuns),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /runs", s.handleSubmit)
	mux.HandleFunc("GET /runs", s.handleList)
	mux.HandleFunc("GET /runs/latest", s.handleLatest)
	mux.HandleFunc("GET /runs/{id}", s.handleGet)
	mux.HandleFunc("POST /runs/{id}/cancel", s.handleCancel)
	mux.HandleFunc("GET /runs/{id}/artifacts/{kind}", s.handleArtifact)
	mux.HandleFunc("GET /outputs", s.handleOutputs)
	mux.HandleFunc("GET /outputs/{name}", s.handleOutputFile)
	return mux
}

// ListenAndServe blocks serving the API until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("server listening", "addr", s.cfg.Server.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var input run.UserInput
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&input); err != nil {
		writeErr(w, errors.NewValidationError("malformed request body").WithCause(err))
		return
	}

	select {
	case s.slots <- struct{}{}:
	default:
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error": "too many concurrent runs, try again later",
		})
		return
	}

	state, err := s.orch.Start(input)
	if err != nil {
		<-s.slots
		writeErr(w, err)
		return
	}

	go func() {
		defer func() { <-s.slots }()
		if _, err := s.orch.Execute(context.Background(), state.ID); err != nil {
			s.logger.WithRun(state.ID).Error("pipeline execution error", "error", err.Error())
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     state.ID,
		"status": string(state.Status),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"runs": s.store.List()})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	state, err := s.store.Latest()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	state, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.orch.Cancel(id); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "cancel": "requested"})
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	state, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}

	kind := artifact.Kind(r.PathValue("kind"))
	doc, ok := state.Documents()[kind]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "artifact not available for this run",
		})
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		data, err := doc.ToJSON()
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	case "yaml":
		data, err := doc.ToYAML()
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(data)
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(doc.ToMarkdown()))
	default:
		writeErr(w, errors.NewValidationError("unsupported format").WithField("format"))
	}
}

func (s *Server) handleOutputs(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.cfg.Output.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusOK, map[string]any{"files": []string{}})
			return
		}
		writeErr(w, err)
		return
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleOutputFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	// Reject anything that could escape the output directory.
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		writeErr(w, errors.NewValidationError("invalid output file name").WithField("name"))
		return
	}
	http.ServeFile(w, r, filepath.Join(s.cfg.Output.Dir, name))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeErr maps the error taxonomy onto HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errors.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.IsValidation(err):
		status = http.StatusBadRequest
	case errors.IsConfiguration(err):
		status = http.StatusServiceUnavailable
	case errors.Is(err, errors.ErrRateLimited):
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
