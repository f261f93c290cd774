// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/f3peakcity/f3-bot/internal/domain/model"
	"github.com/f3peakcity/f3-bot/internal/domain/types"
	"github.com/f3peakcity/f3-bot/pkg/logger"
)

// Ingest accepts submissions for asynchronous storage.
type Ingest interface {
	Submit(ctx context.Context, s model.Submission) (duplicate bool, err error)
}

// Runner runs the reshaping pipeline.
type Runner interface {
	Run(ctx context.Context) (types.RunResult, error)
	LastResult() (types.RunResult, bool)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	backblastHandler *BackblastHandler
	pipelineHandler  *PipelineHandler
}

// Option configures a Server.
type Option func(*options)

type options struct {
	log        logger.Logger
	runTimeout time.Duration
	now        func() time.Time
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithRunTimeout bounds a pipeline run triggered over HTTP.
func WithRunTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.runTimeout = d
		}
	}
}

// NewServer creates a new API server with all handlers. runner may be nil
// when the process does not host the pipeline.
func NewServer(ingest Ingest, runner Runner, statsProvider StatsProvider, opts ...Option) *Server {
	o := options{
		log:        logger.NewNop(),
		runTimeout: 10 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider, runner),
		backblastHandler: NewBackblastHandler(ingest, o.now, o.log),
		pipelineHandler:  NewPipelineHandler(runner, o.runTimeout, o.log),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/backblasts", MetricsMiddleware(s.backblastHandler.HandlePostBackblast, "backblasts"))
	mux.HandleFunc("/pipeline/run", MetricsMiddleware(s.pipelineHandler.HandleRun, "pipeline_run"))
	mux.HandleFunc("/pipeline/last", MetricsMiddleware(s.pipelineHandler.HandleLast, "pipeline_last"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
