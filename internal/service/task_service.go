package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/store"
)

// TaskService provides owner-scoped task operations. Every method takes the
// caller's resolved user ID and threads it into the store, so a task owned
// by anyone else behaves exactly as if it did not exist. Mutations run
// inside a transaction and roll back completely on any failure.
type TaskService interface {
	// CreateTask persists a new task owned by the caller.
	// Returns store.ErrTitleExists if the title is already taken.
	CreateTask(ctx context.Context, callerID int64, title, description string) (*domain.Task, error)

	// GetTask retrieves one of the caller's tasks.
	// Returns store.ErrTaskNotFound when the task is absent or foreign.
	GetTask(ctx context.Context, callerID, taskID int64) (*domain.Task, error)

	// ListTasks returns the filtered total and the requested page of the
	// caller's tasks.
	ListTasks(ctx context.Context, callerID int64, params store.ListTasksParams) (int, []*domain.Task, error)

	// UpdateTask applies a partial update to one of the caller's tasks.
	// Returns store.ErrTaskNotFound under the same dual condition as GetTask.
	UpdateTask(ctx context.Context, callerID, taskID int64, patch domain.TaskPatch) (*domain.Task, error)

	// DeleteTask removes one of the caller's tasks, reporting whether a task
	// was actually deleted. A second delete of the same ID returns false.
	DeleteTask(ctx context.Context, callerID, taskID int64) (bool, error)
}

// TaskServiceImpl implements the TaskService interface.
type TaskServiceImpl struct {
	taskStore store.TaskStore
	db        *sql.DB
	logger    *slog.Logger
}

// NewTaskService creates a new TaskService.
func NewTaskService(taskStore store.TaskStore, db *sql.DB, logger *slog.Logger) *TaskServiceImpl {
	return &TaskServiceImpl{
		taskStore: taskStore,
		db:        db,
		logger:    logger.With("component", "task_service"),
	}
}

// Ensure TaskServiceImpl implements TaskService
var _ TaskService = (*TaskServiceImpl)(nil)

// CreateTask persists a new task for the caller inside a transaction.
func (s *TaskServiceImpl) CreateTask(
	ctx context.Context,
	callerID int64,
	title, description string,
) (*domain.Task, error) {
	task, err := domain.NewTask(callerID, title, description)
	if err != nil {
		s.logger.Debug("rejected invalid task", "error", err, "owner_id", callerID)
		return nil, err
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.taskStore.WithTx(tx).Create(ctx, task)
	})

	if err != nil {
		if errors.Is(err, store.ErrTitleExists) {
			return nil, err
		}
		s.logger.Error("failed to create task", "error", err, "owner_id", callerID)
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return task, nil
}

// GetTask retrieves one of the caller's tasks.
func (s *TaskServiceImpl) GetTask(ctx context.Context, callerID, taskID int64) (*domain.Task, error) {
	task, err := s.taskStore.GetByID(ctx, callerID, taskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil, err
		}
		s.logger.Error("failed to get task", "error", err, "task_id", taskID)
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListTasks returns the filtered total and requested page of the caller's
// tasks. Defaults are applied here for callers that leave params zero-valued;
// the API boundary has already validated explicit values.
func (s *TaskServiceImpl) ListTasks(
	ctx context.Context,
	callerID int64,
	params store.ListTasksParams,
) (int, []*domain.Task, error) {
	if params.Limit == 0 {
		params.Limit = store.DefaultListLimit
	}
	if params.SortOrder == "" {
		params.SortOrder = store.SortOrderDesc
	}

	total, tasks, err := s.taskStore.List(ctx, callerID, params)
	if err != nil {
		s.logger.Error("failed to list tasks", "error", err, "owner_id", callerID)
		return 0, nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return total, tasks, nil
}

// UpdateTask applies a partial update inside a transaction.
func (s *TaskServiceImpl) UpdateTask(
	ctx context.Context,
	callerID, taskID int64,
	patch domain.TaskPatch,
) (*domain.Task, error) {
	if err := patch.Validate(); err != nil {
		s.logger.Debug("rejected invalid task patch", "error", err, "task_id", taskID)
		return nil, err
	}

	var task *domain.Task
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		task, err = s.taskStore.WithTx(tx).Update(ctx, callerID, taskID, patch)
		return err
	})

	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) || errors.Is(err, store.ErrTitleExists) {
			return nil, err
		}
		s.logger.Error("failed to update task", "error", err, "task_id", taskID)
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return task, nil
}

// DeleteTask removes a task inside a transaction, reporting whether a task
// was actually deleted.
func (s *TaskServiceImpl) DeleteTask(ctx context.Context, callerID, taskID int64) (bool, error) {
	var deleted bool
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		deleted, err = s.taskStore.WithTx(tx).Delete(ctx, callerID, taskID)
		return err
	})

	if err != nil {
		s.logger.Error("failed to delete task", "error", err, "task_id", taskID)
		return false, fmt.Errorf("failed to delete task: %w", err)
	}

	return deleted, nil
}
