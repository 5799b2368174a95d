package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/taskvault/taskvault-api/internal/api/shared"
	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/service"
	"github.com/taskvault/taskvault-api/internal/store"
)

// TaskHandler handles task CRUD and listing requests. Every handler reads
// the caller's resolved user ID from the request context (set by the auth
// middleware) and passes it explicitly into the service layer.
type TaskHandler struct {
	tasks     service.TaskService
	validator *validator.Validate
	logger    *slog.Logger
}

// NewTaskHandler creates a new TaskHandler with the given dependencies.
func NewTaskHandler(tasks service.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:     tasks,
		validator: validator.New(),
		logger:    logger.With("component", "task_handler"),
	}
}

// CreateTask handles POST /api/v1/tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	callerID, ok := shared.UserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	task, err := h.tasks.CreateTask(r.Context(), callerID, req.Title, req.Description)
	if err != nil {
		if errors.Is(err, store.ErrTitleExists) {
			shared.RespondWithError(w, r, http.StatusConflict, "Task title already exists")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to create task", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, newTaskResponse(task))
}

// GetTask handles GET /api/v1/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	callerID, ok := shared.UserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	taskID, err := parseTaskID(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	task, err := h.tasks.GetTask(r.Context(), callerID, taskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to get task", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newTaskResponse(task))
}

// ListTasks handles GET /api/v1/tasks.
// Query parameters: limit (1-100, default 10), offset (>= 0, default 0),
// sortBy, sortOrder (asc|desc, default desc), filter.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	callerID, ok := shared.UserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	params, err := parseListParams(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	total, tasks, err := h.tasks.ListTasks(r.Context(), callerID, params)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to list tasks", err)
		return
	}

	data := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		data = append(data, newTaskResponse(task))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, PaginatedTasksResponse{
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
		Data:   data,
	})
}

// UpdateTask handles PUT /api/v1/tasks/{id}.
// Only fields present in the body are applied (partial update semantics).
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	callerID, ok := shared.UserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	taskID, err := parseTaskID(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	var req UpdateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	patch := domain.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
	}

	task, err := h.tasks.UpdateTask(r.Context(), callerID, taskID, patch)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTaskNotFound):
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		case errors.Is(err, store.ErrTitleExists):
			shared.RespondWithError(w, r, http.StatusConflict, "Task title already exists")
		default:
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
				"Failed to update task", err)
		}
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newTaskResponse(task))
}

// DeleteTask handles DELETE /api/v1/tasks/{id}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	callerID, ok := shared.UserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	taskID, err := parseTaskID(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	deleted, err := h.tasks.DeleteTask(r.Context(), callerID, taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to delete task", err)
		return
	}

	if !deleted {
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseTaskID extracts the numeric task ID from the URL.
func parseTaskID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// parseListParams validates and defaults the listing query parameters.
func parseListParams(r *http.Request) (store.ListTasksParams, error) {
	q := r.URL.Query()

	params := store.ListTasksParams{
		Limit:     store.DefaultListLimit,
		Offset:    0,
		SortBy:    "created_at",
		SortOrder: store.SortOrderDesc,
		Filter:    q.Get("filter"),
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < store.MinListLimit || limit > store.MaxListLimit {
			return params, errors.New("limit must be an integer between 1 and 100")
		}
		params.Limit = limit
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return params, errors.New("offset must be a non-negative integer")
		}
		params.Offset = offset
	}

	if raw := q.Get("sortBy"); raw != "" {
		params.SortBy = raw
	}

	if raw := q.Get("sortOrder"); raw != "" {
		if raw != store.SortOrderAsc && raw != store.SortOrderDesc {
			return params, errors.New("sortOrder must be asc or desc")
		}
		params.SortOrder = raw
	}

	return params, nil
}
