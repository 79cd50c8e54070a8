package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/formbot-io/formbot/execution"
	"github.com/formbot-io/formbot/executor"
	"github.com/formbot-io/formbot/logger"
)

// ExecuteHandler starts and tracks task executions.
type ExecuteHandler struct {
	engine     *executor.Engine
	registry   *executor.Registry
	executions execution.Store
	logger     logger.Logger
}

func NewExecuteHandler(engine *executor.Engine, registry *executor.Registry, executions execution.Store, log logger.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		engine:     engine,
		registry:   registry,
		executions: executions,
		logger:     log,
	}
}

// ExecuteRequest starts a task run.
type ExecuteRequest struct {
	TaskID uuid.UUID `json:"task_id"`
	DryRun bool      `json:"dry_run"`
}

// ExecuteResponse acknowledges a started run.
type ExecuteResponse struct {
	ExecutionID uuid.UUID        `json:"execution_id"`
	Status      execution.Status `json:"status"`
}

// Execute starts a task run in the background and returns its execution
// id immediately; progress is observed via broadcast events and the
// execution record.
func (h *ExecuteHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TaskID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "task_id is required")
		return
	}

	exec := &execution.ExecutionLog{TaskID: req.TaskID, IsDryRun: req.DryRun}
	if err := h.executions.Create(r.Context(), exec); err != nil {
		h.logger.Error(r.Context(), "failed to create execution", map[string]interface{}{
			"task_id": req.TaskID.String(),
			"error":   err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to create execution")
		return
	}

	// The run outlives this request, so it gets its own context.
	runCtx, err := h.registry.Register(context.Background(), exec.ID)
	if err != nil {
		respondError(w, http.StatusTooManyRequests, "too many concurrent executions")
		return
	}

	go func() {
		defer h.registry.Release(exec.ID)
		if _, err := h.engine.Execute(runCtx, req.TaskID, &exec.ID, req.DryRun); err != nil {
			h.logger.Warn(runCtx, "execution finished with error", map[string]interface{}{
				"execution_id": exec.ID.String(),
				"error":        err.Error(),
			})
		}
	}()

	respondJSON(w, http.StatusAccepted, ExecuteResponse{
		ExecutionID: exec.ID,
		Status:      execution.StatusPending,
	})
}

// GetExecution returns one execution record.
func (h *ExecuteHandler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "execution")
	if !ok {
		return
	}

	exec, err := h.executions.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "execution not found")
		return
	}
	respondJSON(w, http.StatusOK, exec)
}

// ListByTask returns all executions of a task, newest first.
func (h *ExecuteHandler) ListByTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := parseUUIDOrRespond(w, r, "id", "task")
	if !ok {
		return
	}

	execs, err := h.executions.ListByTask(r.Context(), taskID)
	if err != nil {
		h.logger.Error(r.Context(), "failed to list executions", map[string]interface{}{
			"task_id": taskID.String(),
			"error":   err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}
	respondJSON(w, http.StatusOK, execs)
}

// Cancel requests cancellation of a running execution.
func (h *ExecuteHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "execution")
	if !ok {
		return
	}

	if !h.registry.Cancel(id) {
		respondError(w, http.StatusNotFound, "execution is not running")
		return
	}
	respondSuccess(w, "cancellation requested")
}
