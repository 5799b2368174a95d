package domain

import (
	"time"
	"unicode/utf8"
)

// Task is a unit of work owned by exactly one user. Ownership is fixed at
// creation; no operation may expose a task to a caller other than its owner.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	OwnerID     int64     `json:"owner_id"`
}

// NewTask creates a new Task for the given owner.
// The ID and creation timestamp are assigned by the store.
func NewTask(ownerID int64, title, description string) (*Task, error) {
	task := &Task{
		Title:       title,
		Description: description,
		OwnerID:     ownerID,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.Title == "" {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(t.Title) > 100 {
		return ErrTitleTooLong
	}
	if t.OwnerID <= 0 {
		return ErrInvalidOwner
	}
	return nil
}

// TaskPatch describes a partial update to a task. Only fields that are
// non-nil are applied; a nil field leaves the stored value untouched.
type TaskPatch struct {
	Title       *string
	Description *string
}

// IsEmpty reports whether the patch carries no changes.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil
}

// Validate checks the fields present in the patch.
func (p TaskPatch) Validate() error {
	if p.Title != nil {
		if *p.Title == "" {
			return ErrEmptyTitle
		}
		if utf8.RuneCountInString(*p.Title) > 100 {
			return ErrTitleTooLong
		}
	}
	return nil
}
