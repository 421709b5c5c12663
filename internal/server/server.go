package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"shellpipe/internal/core"
	"shellpipe/internal/ledger"
	"shellpipe/internal/monitoring"
)

// maxRuns bounds the run reports kept for GET /pipelines/{id}.
const maxRuns = 1000

// Server exposes the pipeline runner over HTTP.
type Server struct {
	runner  *core.Runner
	ledger  *ledger.Ledger
	metrics *monitoring.Metrics
	logger  *zap.Logger
	maxBody int64

	mu      sync.RWMutex
	runs    map[string]RunResponse
	order   []string // oldest first
	maxRuns int
}

// New creates a server. ledger and metrics may be nil.
func New(runner *core.Runner, l *ledger.Ledger, m *monitoring.Metrics, logger *zap.Logger, maxBody int64) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Server{
		runner:  runner,
		ledger:  l,
		metrics: m,
		logger:  logger,
		maxBody: maxBody,
		runs:    make(map[string]RunResponse),
		maxRuns: maxRuns,
	}
}

// StageResponse is one stage's outcome in a run report. Output is carried as
// raw bytes, base64 in JSON.
type StageResponse struct {
	Command  string `json:"command"`
	ExitCode int    `json:"exitCode"`
	Stdout   []byte `json:"stdout"`
	Stderr   []byte `json:"stderr"`
}

// RunResponse is the JSON report of a run. Stdout and Stderr are base64 in
// JSON so that output which is not UTF-8 survives the round trip.
type RunResponse struct {
	ID         string          `json:"id"`
	Pipeline   string          `json:"pipeline"`
	Command    string          `json:"command"`
	ExitCode   int             `json:"exitCode"`
	Stdout     []byte          `json:"stdout"`
	Stderr     []byte          `json:"stderr"`
	Stages     []StageResponse `json:"stages,omitempty"`
	LogPath    string          `json:"logPath,omitempty"`
	Block      int             `json:"block"`
	StartedAt  time.Time       `json:"startedAt"`
	DurationMs int64           `json:"durationMs"`
}

func newRunResponse(run *core.Run) RunResponse {
	resp := RunResponse{
		ID:         run.ID,
		Pipeline:   run.Pipeline,
		Command:    run.Command,
		ExitCode:   run.ExitCode,
		Stdout:     run.Result.Stdout,
		Stderr:     run.Result.Stderr,
		LogPath:    run.LogPath,
		Block:      run.Block,
		StartedAt:  run.Started.UTC(),
		DurationMs: run.Duration.Milliseconds(),
	}
	for _, st := range run.Stages {
		resp.Stages = append(resp.Stages, StageResponse{
			Command:  st.Command,
			ExitCode: st.ExitCode,
			Stdout:   st.Stdout,
			Stderr:   st.Stderr,
		})
	}
	return resp
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/pipelines", s.handleSubmitPipeline)
	r.Get("/pipelines/{id}", s.handleGetRun)
	r.Get("/ledger/verify", s.handleVerifyLedger)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// POST /pipelines: run a YAML pipeline definition synchronously.
func (s *Server) handleSubmitPipeline(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "cannot read body: "+err.Error())
		return
	}

	def, err := core.ParseDefinition(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := s.runner.Run(r.Context(), def)
	if err != nil {
		s.logger.Warn("pipeline request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}

	resp := newRunResponse(run)
	s.remember(resp)
	writeJSON(w, http.StatusOK, resp)
}

// remember stores a run report, evicting the oldest beyond maxRuns.
func (s *Server) remember(resp RunResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[resp.ID] = resp
	s.order = append(s.order, resp.ID)
	for len(s.order) > s.maxRuns {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
}

// GET /pipelines/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.RLock()
	resp, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "pipeline run not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /ledger/verify
func (s *Server) handleVerifyLedger(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		writeError(w, http.StatusNotFound, "ledger disabled")
		return
	}
	if err := s.ledger.VerifyChain(s.runner.PubKey); err != nil {
		writeError(w, http.StatusInternalServerError, "ledger verification failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "blocks": s.ledger.NextIndex()})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if s.metrics != nil {
			s.metrics.RecordRequest(r.Method, path, strconv.Itoa(status), time.Since(start))
		}
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)))
	})
}

func statusFor(err error) int {
	var spawnErr *core.SpawnError
	switch {
	case errors.Is(err, core.ErrInvalidDefinition):
		return http.StatusBadRequest
	case errors.As(err, &spawnErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
