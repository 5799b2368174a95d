package service_test

import (
	"context"
	"database/sql"

	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/store"
)

// fakeUserStore is an in-memory store.UserStore keyed by email.
type fakeUserStore struct {
	users   map[string]*domain.User
	nextID  int64
	lookups int
	err     error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*domain.User), nextID: 1}
}

func (f *fakeUserStore) Create(ctx context.Context, user *domain.User) error {
	if f.err != nil {
		return f.err
	}
	if _, exists := f.users[user.Email]; exists {
		return store.ErrEmailExists
	}
	user.ID = f.nextID
	f.nextID++
	copied := *user
	f.users[user.Email] = &copied
	return nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[email]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserStore) WithTx(tx *sql.Tx) store.UserStore { return f }

// fakeTaskStore is an in-memory store.TaskStore that records the parameters
// of its last List call.
type fakeTaskStore struct {
	tasks      map[int64]*domain.Task
	nextID     int64
	lastParams store.ListTasksParams
	err        error
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[int64]*domain.Task), nextID: 1}
}

func (f *fakeTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if f.err != nil {
		return f.err
	}
	for _, t := range f.tasks {
		if t.Title == task.Title {
			return store.ErrTitleExists
		}
	}
	task.ID = f.nextID
	f.nextID++
	copied := *task
	f.tasks[task.ID] = &copied
	return nil
}

func (f *fakeTaskStore) GetByID(ctx context.Context, ownerID, taskID int64) (*domain.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tasks[taskID]
	if !ok || t.OwnerID != ownerID {
		return nil, store.ErrTaskNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTaskStore) List(
	ctx context.Context,
	ownerID int64,
	params store.ListTasksParams,
) (int, []*domain.Task, error) {
	f.lastParams = params
	if f.err != nil {
		return 0, nil, f.err
	}
	var owned []*domain.Task
	for _, t := range f.tasks {
		if t.OwnerID == ownerID {
			copied := *t
			owned = append(owned, &copied)
		}
	}
	return len(owned), owned, nil
}

func (f *fakeTaskStore) Update(
	ctx context.Context,
	ownerID, taskID int64,
	patch domain.TaskPatch,
) (*domain.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tasks[taskID]
	if !ok || t.OwnerID != ownerID {
		return nil, store.ErrTaskNotFound
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTaskStore) Delete(ctx context.Context, ownerID, taskID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	t, ok := f.tasks[taskID]
	if !ok || t.OwnerID != ownerID {
		return false, nil
	}
	delete(f.tasks, taskID)
	return true, nil
}

func (f *fakeTaskStore) WithTx(tx *sql.Tx) store.TaskStore { return f }
