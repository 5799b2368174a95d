package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault-api/internal/api"
	apiMiddleware "github.com/taskvault/taskvault-api/internal/api/middleware"
	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/service"
	"github.com/taskvault/taskvault-api/internal/service/auth"
	"github.com/taskvault/taskvault-api/internal/store"
)

const testJWTSecret = "handler-test-secret-at-least-32-chars-long"

// memoryBackend implements the account service, task service, and user store
// over in-memory maps so the full HTTP surface can be exercised without a
// database.
type memoryBackend struct {
	mu         sync.Mutex
	users      map[string]*domain.User
	tasks      map[int64]*domain.Task
	nextUserID int64
	nextTaskID int64
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		users:      make(map[string]*domain.User),
		tasks:      make(map[int64]*domain.Task),
		nextUserID: 1,
		nextTaskID: 1,
	}
}

// AccountService

func (b *memoryBackend) Register(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := domain.NewUser(email, password)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.users[email]; exists {
		return nil, store.ErrEmailExists
	}

	user.ID = b.nextUserID
	b.nextUserID++
	user.HashedPassword = "fake-hash:" + password
	user.Password = ""
	copied := *user
	b.users[email] = &copied
	return user, nil
}

func (b *memoryBackend) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	user, ok := b.users[email]
	if !ok || user.HashedPassword != "fake-hash:"+password {
		return nil, service.ErrInvalidCredentials
	}
	copied := *user
	return &copied, nil
}

// store.UserStore (used by the auth middleware to resolve token subjects)

func (b *memoryBackend) Create(ctx context.Context, user *domain.User) error {
	panic("not used in handler tests")
}

func (b *memoryBackend) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, u := range b.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (b *memoryBackend) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	user, ok := b.users[email]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (b *memoryBackend) WithTx(tx *sql.Tx) store.UserStore { return b }

// TaskService

func (b *memoryBackend) CreateTask(
	ctx context.Context,
	callerID int64,
	title, description string,
) (*domain.Task, error) {
	task, err := domain.NewTask(callerID, title, description)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.tasks {
		if existing.Title == title {
			return nil, store.ErrTitleExists
		}
	}

	task.ID = b.nextTaskID
	b.nextTaskID++
	task.CreatedAt = time.Now().UTC()
	copied := *task
	b.tasks[task.ID] = &copied
	return task, nil
}

func (b *memoryBackend) GetTask(ctx context.Context, callerID, taskID int64) (*domain.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	task, ok := b.tasks[taskID]
	if !ok || task.OwnerID != callerID {
		return nil, store.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (b *memoryBackend) ListTasks(
	ctx context.Context,
	callerID int64,
	params store.ListTasksParams,
) (int, []*domain.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matched []*domain.Task
	for _, task := range b.tasks {
		if task.OwnerID != callerID {
			continue
		}
		if params.Filter != "" {
			needle := strings.ToLower(params.Filter)
			if !strings.Contains(strings.ToLower(task.Title), needle) &&
				!strings.Contains(strings.ToLower(task.Description), needle) {
				continue
			}
		}
		copied := *task
		matched = append(matched, &copied)
	}

	total := len(matched)
	if params.Offset >= total {
		return total, nil, nil
	}
	end := params.Offset + params.Limit
	if end > total {
		end = total
	}
	return total, matched[params.Offset:end], nil
}

func (b *memoryBackend) UpdateTask(
	ctx context.Context,
	callerID, taskID int64,
	patch domain.TaskPatch,
) (*domain.Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	task, ok := b.tasks[taskID]
	if !ok || task.OwnerID != callerID {
		return nil, store.ErrTaskNotFound
	}
	if patch.Title != nil {
		for id, existing := range b.tasks {
			if id != taskID && existing.Title == *patch.Title {
				return nil, store.ErrTitleExists
			}
		}
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	copied := *task
	return &copied, nil
}

func (b *memoryBackend) DeleteTask(ctx context.Context, callerID, taskID int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	task, ok := b.tasks[taskID]
	if !ok || task.OwnerID != callerID {
		return false, nil
	}
	delete(b.tasks, taskID)
	return true, nil
}

var (
	_ service.AccountService = (*memoryBackend)(nil)
	_ service.TaskService    = (*memoryBackend)(nil)
	_ store.UserStore        = (*memoryBackend)(nil)
)

// newTestServer builds the production route layout over the in-memory
// backend and a deterministic JWT service.
func newTestServer(t *testing.T) (*httptest.Server, auth.JWTService) {
	t.Helper()

	backend := newMemoryBackend()
	jwtService := auth.NewTestJWTService(testJWTSecret, 30*time.Minute, nil)
	logger := slog.Default()

	authHandler := api.NewAuthHandler(backend, jwtService, logger)
	taskHandler := api.NewTaskHandler(backend, logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(jwtService, backend)

	r := chi.NewRouter()
	r.Use(apiMiddleware.TraceMiddleware)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/tasks", taskHandler.CreateTask)
			r.Get("/tasks", taskHandler.ListTasks)
			r.Get("/tasks/{id}", taskHandler.GetTask)
			r.Put("/tasks/{id}", taskHandler.UpdateTask)
			r.Delete("/tasks/{id}", taskHandler.DeleteTask)
		})
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, jwtService
}

// doJSON issues a request with an optional JSON body and bearer token.
func doJSON(
	t *testing.T,
	server *httptest.Server,
	method, path, token string,
	body interface{},
) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// registerAndLogin creates an account and returns a valid bearer token.
func registerAndLogin(t *testing.T, server *httptest.Server, email string) string {
	t.Helper()

	resp := doJSON(t, server, http.MethodPost, "/api/v1/users", "", map[string]string{
		"email":    email,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, server, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var token api.TokenResponse
	decodeBody(t, resp, &token)
	require.NotEmpty(t, token.AccessToken)
	require.Equal(t, "bearer", token.TokenType)
	return token.AccessToken
}

func TestRegisterEndpoint(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)

	t.Run("creates user", func(t *testing.T) {
		resp := doJSON(t, server, http.MethodPost, "/api/v1/users", "", map[string]string{
			"email":    "new@example.com",
			"password": "password123",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var user api.UserResponse
		decodeBody(t, resp, &user)
		assert.NotZero(t, user.ID)
		assert.Equal(t, "new@example.com", user.Email)
	})

	t.Run("response never contains password material", func(t *testing.T) {
		resp := doJSON(t, server, http.MethodPost, "/api/v1/users", "", map[string]string{
			"email":    "leaky@example.com",
			"password": "password123",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var raw map[string]interface{}
		decodeBody(t, resp, &raw)
		assert.NotContains(t, raw, "password")
		assert.NotContains(t, raw, "hashed_password")
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		payload := map[string]string{"email": "dup@example.com", "password": "password123"}

		resp := doJSON(t, server, http.MethodPost, "/api/v1/users", "", payload)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp = doJSON(t, server, http.MethodPost, "/api/v1/users", "", payload)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		var body map[string]string
		decodeBody(t, resp, &body)
		assert.Equal(t, "Email already registered", body["error"])
	})

	t.Run("invalid payloads rejected", func(t *testing.T) {
		cases := []map[string]string{
			{"email": "not-an-email", "password": "password123"},
			{"email": "ok@example.com", "password": "short"},
			{"password": "password123"},
			{"email": "ok@example.com"},
		}
		for _, payload := range cases {
			resp := doJSON(t, server, http.MethodPost, "/api/v1/users", "", payload)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "payload: %v", payload)
		}
	})

	t.Run("malformed JSON rejected", func(t *testing.T) {
		req, err := http.NewRequest(
			http.MethodPost,
			server.URL+"/api/v1/users",
			strings.NewReader("{not json"),
		)
		require.NoError(t, err)

		resp, err := server.Client().Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLoginEndpoint(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)

	resp := doJSON(t, server, http.MethodPost, "/api/v1/users", "", map[string]string{
		"email":    "login@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("valid credentials return bearer token", func(t *testing.T) {
		resp := doJSON(t, server, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"email":    "login@example.com",
			"password": "password123",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var token api.TokenResponse
		decodeBody(t, resp, &token)
		assert.NotEmpty(t, token.AccessToken)
		assert.Equal(t, "bearer", token.TokenType)
	})

	t.Run("wrong password and unknown email fail identically", func(t *testing.T) {
		wrongPw := doJSON(t, server, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"email":    "login@example.com",
			"password": "wrong-password",
		})
		unknown := doJSON(t, server, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"email":    "ghost@example.com",
			"password": "password123",
		})

		assert.Equal(t, http.StatusUnauthorized, wrongPw.StatusCode)
		assert.Equal(t, http.StatusUnauthorized, unknown.StatusCode)

		var wrongBody, unknownBody map[string]string
		decodeBody(t, wrongPw, &wrongBody)
		decodeBody(t, unknown, &unknownBody)
		assert.Equal(t, "Incorrect email or password", wrongBody["error"])
		assert.Equal(t, wrongBody["error"], unknownBody["error"])
	})
}

func TestTaskEndpointsRequireAuth(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)

	expired := auth.NewTestJWTService(testJWTSecret, -time.Hour, nil)
	expiredToken, err := expired.GenerateToken(context.Background(), "anyone@example.com")
	require.NoError(t, err)

	wrongKey := auth.NewTestJWTService(
		"a-completely-different-32-char-secret!!",
		30*time.Minute,
		nil,
	)
	forgedToken, err := wrongKey.GenerateToken(context.Background(), "anyone@example.com")
	require.NoError(t, err)

	tokens := map[string]string{
		"missing token": "",
		"garbage token": "garbage",
		"expired token": expiredToken,
		"forged token":  forgedToken,
	}

	for name, token := range tokens {
		t.Run(name, func(t *testing.T) {
			resp := doJSON(t, server, http.MethodGet, "/api/v1/tasks", token, nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			var body map[string]string
			decodeBody(t, resp, &body)
			assert.Equal(t, "Could not validate credentials", body["error"])
		})
	}

	t.Run("valid token for unknown account fails identically", func(t *testing.T) {
		jwtService := auth.NewTestJWTService(testJWTSecret, 30*time.Minute, nil)
		orphanToken, err := jwtService.GenerateToken(context.Background(), "never-registered@example.com")
		require.NoError(t, err)

		resp := doJSON(t, server, http.MethodGet, "/api/v1/tasks", orphanToken, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var body map[string]string
		decodeBody(t, resp, &body)
		assert.Equal(t, "Could not validate credentials", body["error"])
	})
}

func TestTaskWorkflow(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)
	token := registerAndLogin(t, server, "workflow@example.com")

	// Create
	resp := doJSON(t, server, http.MethodPost, "/api/v1/tasks", token, map[string]string{
		"title":       "Test Task",
		"description": "Test Description",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created api.TaskResponse
	decodeBody(t, resp, &created)
	require.NotZero(t, created.ID)
	assert.Equal(t, "Test Task", created.Title)
	assert.Equal(t, "Test Description", created.Description)

	taskPath := fmt.Sprintf("/api/v1/tasks/%d", created.ID)

	// Read
	resp = doJSON(t, server, http.MethodGet, taskPath, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched api.TaskResponse
	decodeBody(t, resp, &fetched)
	assert.Equal(t, created.ID, fetched.ID)

	// List
	resp = doJSON(t, server, http.MethodGet, "/api/v1/tasks", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page api.PaginatedTasksResponse
	decodeBody(t, resp, &page)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 10, page.Limit)
	assert.Equal(t, 0, page.Offset)
	require.Len(t, page.Data, 1)

	// Partial update: title only, description must survive
	resp = doJSON(t, server, http.MethodPut, taskPath, token, map[string]string{
		"title": "Updated Test Task",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated api.TaskResponse
	decodeBody(t, resp, &updated)
	assert.Equal(t, "Updated Test Task", updated.Title)
	assert.Equal(t, "Test Description", updated.Description)

	// Delete
	resp = doJSON(t, server, http.MethodDelete, taskPath, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Gone now
	resp = doJSON(t, server, http.MethodGet, taskPath, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Second delete is a 404, not an error
	resp = doJSON(t, server, http.MethodDelete, taskPath, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTaskOwnershipIsolation(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)

	aliceToken := registerAndLogin(t, server, "alice@example.com")
	bobToken := registerAndLogin(t, server, "bob@example.com")

	resp := doJSON(t, server, http.MethodPost, "/api/v1/tasks", aliceToken, map[string]string{
		"title": "Alice's private task",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created api.TaskResponse
	decodeBody(t, resp, &created)
	taskPath := fmt.Sprintf("/api/v1/tasks/%d", created.ID)

	// Bob sees a 404 for every operation, identical to a nonexistent task.
	resp = doJSON(t, server, http.MethodGet, taskPath, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, server, http.MethodPut, taskPath, bobToken, map[string]string{
		"title": "Bob was here",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, server, http.MethodDelete, taskPath, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, server, http.MethodGet, "/api/v1/tasks", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var bobPage api.PaginatedTasksResponse
	decodeBody(t, resp, &bobPage)
	assert.Zero(t, bobPage.Total)
	assert.Empty(t, bobPage.Data)

	// Alice's task is untouched.
	resp = doJSON(t, server, http.MethodGet, taskPath, aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var survived api.TaskResponse
	decodeBody(t, resp, &survived)
	assert.Equal(t, "Alice's private task", survived.Title)
}

func TestTaskTitleConflicts(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)

	aliceToken := registerAndLogin(t, server, "conflict-alice@example.com")
	bobToken := registerAndLogin(t, server, "conflict-bob@example.com")

	resp := doJSON(t, server, http.MethodPost, "/api/v1/tasks", aliceToken, map[string]string{
		"title": "Shared ambition",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Titles are unique across all owners.
	resp = doJSON(t, server, http.MethodPost, "/api/v1/tasks", bobToken, map[string]string{
		"title": "Shared ambition",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "Task title already exists", body["error"])
}

func TestListTasksQueryValidation(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)
	token := registerAndLogin(t, server, "listparams@example.com")

	bad := []string{
		"?limit=0",
		"?limit=101",
		"?limit=abc",
		"?offset=-1",
		"?offset=abc",
		"?sortOrder=sideways",
	}
	for _, query := range bad {
		resp := doJSON(t, server, http.MethodGet, "/api/v1/tasks"+query, token, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "query: %s", query)
	}

	// Unrecognized sortBy is accepted and falls back to created_at.
	resp := doJSON(t, server, http.MethodGet, "/api/v1/tasks?sortBy=nonsense", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListTasksPaginationAndFilter(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)
	token := registerAndLogin(t, server, "pagination@example.com")

	for i := 0; i < 12; i++ {
		title := fmt.Sprintf("Errand number %02d", i)
		if i%2 == 0 {
			title = fmt.Sprintf("Chore number %02d", i)
		}
		resp := doJSON(t, server, http.MethodPost, "/api/v1/tasks", token, map[string]string{
			"title": title,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	t.Run("default page size is ten", func(t *testing.T) {
		resp := doJSON(t, server, http.MethodGet, "/api/v1/tasks", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var page api.PaginatedTasksResponse
		decodeBody(t, resp, &page)
		assert.Equal(t, 12, page.Total)
		assert.Len(t, page.Data, 10)
	})

	t.Run("offset windows the result set", func(t *testing.T) {
		resp := doJSON(t, server, http.MethodGet, "/api/v1/tasks?limit=10&offset=10", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var page api.PaginatedTasksResponse
		decodeBody(t, resp, &page)
		assert.Equal(t, 12, page.Total)
		assert.Equal(t, 10, page.Offset)
		assert.Len(t, page.Data, 2)
	})

	t.Run("filter restricts total and page", func(t *testing.T) {
		resp := doJSON(t, server, http.MethodGet, "/api/v1/tasks?filter=errand", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var page api.PaginatedTasksResponse
		decodeBody(t, resp, &page)
		assert.Equal(t, 6, page.Total)
		assert.Len(t, page.Data, 6)
	})
}

func TestTaskIDParsing(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)
	token := registerAndLogin(t, server, "badid@example.com")

	resp := doJSON(t, server, http.MethodGet, "/api/v1/tasks/not-a-number", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, server, http.MethodDelete, "/api/v1/tasks/12.5", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
