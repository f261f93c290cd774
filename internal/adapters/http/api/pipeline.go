package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	service "github.com/f3peakcity/f3-bot/internal/app"
	"github.com/f3peakcity/f3-bot/pkg/logger"
)

// PipelineHandler triggers and reports pipeline runs.
type PipelineHandler struct {
	runner  Runner
	timeout time.Duration
	log     logger.Logger
}

// NewPipelineHandler creates a new pipeline handler. A nil runner answers
// every request with 404.
func NewPipelineHandler(runner Runner, timeout time.Duration, log logger.Logger) *PipelineHandler {
	return &PipelineHandler{runner: runner, timeout: timeout, log: log}
}

// HandleRun handles POST /pipeline/run. The run outlives a dropped client
// connection; it is bounded by the handler timeout instead.
func (h *PipelineHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.pipeline_run"
	if r.Method != http.MethodPost || h.runner == nil {
		http.NotFound(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()

	res, err := h.runner.Run(ctx)
	switch {
	case errors.Is(err, service.ErrRunInProgress):
		writeError(w, http.StatusConflict, "conflict", WrapKind(op, ErrConflict, err))
	case err != nil:
		h.log.Error(r.Context(), "pipeline run failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "pipeline_failed", WrapKind(op, ErrInternal, err))
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// HandleLast handles GET /pipeline/last.
func (h *PipelineHandler) HandleLast(w http.ResponseWriter, r *http.Request) {
	const op = "api.pipeline_last"
	if r.Method != http.MethodGet || h.runner == nil {
		http.NotFound(w, r)
		return
	}
	res, ok := h.runner.LastResult()
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
