package store

import (
	"context"
	"database/sql"

	"github.com/taskvault/taskvault-api/internal/domain"
)

// Sort orders accepted by ListTasksParams.
const (
	SortOrderAsc  = "asc"
	SortOrderDesc = "desc"
)

// Pagination bounds. Limits outside [MinListLimit, MaxListLimit] are
// rejected at the API boundary; the store applies whatever it is given
// literally.
const (
	DefaultListLimit = 10
	MinListLimit     = 1
	MaxListLimit     = 100
)

// ListTasksParams controls filtering, ordering, and pagination of task
// listings. The owner predicate is not part of the params; it is a separate
// required argument on every TaskStore operation.
type ListTasksParams struct {
	// Limit and Offset window the filtered, sorted result set.
	Limit  int
	Offset int

	// SortBy names a task attribute (id, title, created_at). Unrecognized
	// values fall back to created_at so pagination stays deterministic.
	SortBy string

	// SortOrder is "asc" or "desc"; anything else is treated as "desc".
	SortOrder string

	// Filter, when non-empty, restricts results to tasks whose title or
	// description contains the text (case-insensitive).
	Filter string
}

// TaskStore defines the interface for task data persistence.
// Every operation is scoped to the given owner: a task belonging to a
// different owner behaves exactly as if it did not exist. Implementations
// must bake the owner predicate into the query itself rather than checking
// ownership after an unscoped fetch.
type TaskStore interface {
	// Create saves a new task and assigns its ID and creation timestamp.
	// Returns ErrTitleExists if the title is already taken (titles are
	// unique system-wide).
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by ID within the owner's scope.
	// Returns ErrTaskNotFound if no such task exists for this owner.
	GetByID(ctx context.Context, ownerID, taskID int64) (*domain.Task, error)

	// List returns the total number of tasks matching the owner and filter
	// (counted before pagination) along with the requested page.
	// An offset beyond the total yields an empty page with the correct total.
	List(ctx context.Context, ownerID int64, params ListTasksParams) (int, []*domain.Task, error)

	// Update applies the fields present in the patch to the task within the
	// owner's scope and returns the updated row.
	// Returns ErrTaskNotFound if no such task exists for this owner, and
	// ErrTitleExists if the new title collides with another task's.
	Update(ctx context.Context, ownerID, taskID int64, patch domain.TaskPatch) (*domain.Task, error)

	// Delete removes a task within the owner's scope. It reports whether a
	// task was actually deleted; deleting an absent or foreign task returns
	// false, not an error.
	Delete(ctx context.Context, ownerID, taskID int64) (bool, error)

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) TaskStore
}
