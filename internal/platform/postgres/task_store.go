package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/platform/logger"
	"github.com/taskvault/taskvault-api/internal/store"
)

// taskSortColumns whitelists the task attributes a caller may sort by and
// maps them to their column names. Anything else falls back to created_at so
// the ordering stays deterministic and pagination remains consistent.
var taskSortColumns = map[string]string{
	"id":         "id",
	"title":      "title",
	"created_at": "created_at",
}

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
//
// Every query carries the owner predicate in its WHERE clause. Ownership is
// never verified with a separate unscoped fetch, so there is no window in
// which a check-then-act race could expose another owner's task.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. It accepts a database connection or transaction that
// should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx implements store.TaskStore.WithTx
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.TaskStore.Create
// The ID and creation timestamp are assigned by the database and written
// back into the task. Returns store.ErrTitleExists on a duplicate title.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (title, description, owner_id, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(
		ctx,
		query,
		task.Title,
		nullableText(task.Description),
		task.OwnerID,
	).Scan(&task.ID, &task.CreatedAt)

	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("attempted to create task with existing title",
				slog.Int64("owner_id", task.OwnerID))
			return fmt.Errorf("%w: %v", store.ErrTitleExists, err)
		}
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.Int64("owner_id", task.OwnerID))
		return MapError(err)
	}

	log.Info("task created successfully",
		slog.Int64("task_id", task.ID),
		slog.Int64("owner_id", task.OwnerID))
	return nil
}

// GetByID implements store.TaskStore.GetByID
// Returns store.ErrTaskNotFound when the task is absent or owned by a
// different user; the two cases are indistinguishable.
func (s *PostgresTaskStore) GetByID(ctx context.Context, ownerID, taskID int64) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, title, description, created_at, owner_id
		FROM tasks
		WHERE id = $1 AND owner_id = $2
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, taskID, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found",
				slog.Int64("task_id", taskID),
				slog.Int64("owner_id", ownerID))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return nil, MapError(err)
	}

	return task, nil
}

// List implements store.TaskStore.List
// The total is counted over the filtered set before pagination so an offset
// beyond the end still reports the correct total with an empty page.
func (s *PostgresTaskStore) List(
	ctx context.Context,
	ownerID int64,
	params store.ListTasksParams,
) (int, []*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	where, args := taskFilterClause(ownerID, params.Filter)

	var total int
	countQuery := "SELECT count(*) FROM tasks " + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		log.Error("failed to count tasks",
			slog.String("error", err.Error()),
			slog.Int64("owner_id", ownerID))
		return 0, nil, MapError(err)
	}

	pageQuery := fmt.Sprintf(
		"SELECT id, title, description, created_at, owner_id FROM tasks %s %s LIMIT $%d OFFSET $%d",
		where,
		taskOrderClause(params.SortBy, params.SortOrder),
		len(args)+1,
		len(args)+2,
	)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.db.QueryContext(ctx, pageQuery, args...)
	if err != nil {
		log.Error("failed to query tasks",
			slog.String("error", err.Error()),
			slog.Int64("owner_id", ownerID))
		return 0, nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row",
				slog.String("error", err.Error()))
			return 0, nil, MapError(err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows",
			slog.String("error", err.Error()))
		return 0, nil, MapError(err)
	}

	log.Debug("listed tasks",
		slog.Int64("owner_id", ownerID),
		slog.Int("total", total),
		slog.Int("page_size", len(tasks)))
	return total, tasks, nil
}

// Update implements store.TaskStore.Update
// Only fields present in the patch are written; an empty patch degenerates
// to the owner-scoped read. Returns store.ErrTaskNotFound under the same
// dual condition as GetByID and store.ErrTitleExists on title collisions.
func (s *PostgresTaskStore) Update(
	ctx context.Context,
	ownerID, taskID int64,
	patch domain.TaskPatch,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := patch.Validate(); err != nil {
		log.Warn("task patch validation failed",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	if patch.IsEmpty() {
		return s.GetByID(ctx, ownerID, taskID)
	}

	sets := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if patch.Title != nil {
		args = append(args, *patch.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if patch.Description != nil {
		args = append(args, nullableText(*patch.Description))
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)))
	}

	args = append(args, taskID, ownerID)
	query := fmt.Sprintf(
		"UPDATE tasks SET %s WHERE id = $%d AND owner_id = $%d RETURNING id, title, description, created_at, owner_id",
		strings.Join(sets, ", "),
		len(args)-1,
		len(args),
	)

	task, err := scanTask(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found for update",
				slog.Int64("task_id", taskID),
				slog.Int64("owner_id", ownerID))
			return nil, store.ErrTaskNotFound
		}
		if IsUniqueViolation(err) {
			log.Debug("attempted to update task to existing title",
				slog.Int64("task_id", taskID))
			return nil, fmt.Errorf("%w: %v", store.ErrTitleExists, err)
		}
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return nil, MapError(err)
	}

	log.Info("task updated successfully",
		slog.Int64("task_id", taskID),
		slog.Int64("owner_id", ownerID))
	return task, nil
}

// Delete implements store.TaskStore.Delete
// It reports whether a row was removed; deleting an absent or foreign task
// yields false rather than an error, making deletion idempotent in effect.
func (s *PostgresTaskStore) Delete(ctx context.Context, ownerID, taskID int64) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		DELETE FROM tasks
		WHERE id = $1 AND owner_id = $2
	`

	result, err := s.db.ExecContext(ctx, query, taskID, ownerID)
	if err != nil {
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return false, MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.Int64("task_id", taskID))
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		log.Debug("task not found for deletion",
			slog.Int64("task_id", taskID),
			slog.Int64("owner_id", ownerID))
		return false, nil
	}

	log.Info("task deleted successfully",
		slog.Int64("task_id", taskID),
		slog.Int64("owner_id", ownerID))
	return true, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row, converting the nullable description column.
func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var description sql.NullString

	err := row.Scan(
		&task.ID,
		&task.Title,
		&description,
		&task.CreatedAt,
		&task.OwnerID,
	)
	if err != nil {
		return nil, err
	}

	task.Description = description.String
	return &task, nil
}

// taskFilterClause builds the WHERE clause shared by the count and page
// queries. The owner predicate always comes first; the text filter matches
// title or description case-insensitively.
func taskFilterClause(ownerID int64, filter string) (string, []any) {
	args := []any{ownerID}
	where := "WHERE owner_id = $1"

	if filter != "" {
		args = append(args, "%"+filter+"%")
		where += " AND (title ILIKE $2 OR description ILIKE $2)"
	}

	return where, args
}

// taskOrderClause builds the ORDER BY clause for a listing. Unrecognized
// sort keys fall back to created_at; the id tie-break keeps pagination
// stable across calls when sort keys are equal.
func taskOrderClause(sortBy, sortOrder string) string {
	column, ok := taskSortColumns[strings.ToLower(sortBy)]
	if !ok {
		column = "created_at"
	}

	direction := "DESC"
	if strings.EqualFold(sortOrder, store.SortOrderAsc) {
		direction = "ASC"
	}

	return fmt.Sprintf("ORDER BY %s %s, id ASC", column, direction)
}

// nullableText maps an empty string to SQL NULL.
func nullableText(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
