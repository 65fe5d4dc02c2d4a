package router_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/aanand-mishra/users-api/internal/config"
	"github.com/aanand-mishra/users-api/internal/http/middleware"
	"github.com/aanand-mishra/users-api/internal/http/router"
	"github.com/aanand-mishra/users-api/internal/storage"
	"github.com/aanand-mishra/users-api/internal/storage/sqlite"
	"github.com/aanand-mishra/users-api/internal/types"
	"github.com/aanand-mishra/users-api/internal/utils/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupRouter(t *testing.T, seed bool) http.Handler {
	t.Helper()

	cfg := &config.Config{StoragePath: filepath.Join(t.TempDir(), "users.db")}
	store, err := sqlite.New(cfg, sqlite.WithLogger(discardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	if seed {
		_, err := store.Seed(context.Background())
		require.NoError(t, err)
	}

	return router.New(store, discardLogger())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCreateThenGetUser(t *testing.T) {
	h := setupRouter(t, false)

	rec := do(t, h, http.MethodPost, "/users", `{"name":"alice","fullname":"Alice A"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[types.UserRecord](t, rec)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "alice", created.Name)

	rec = do(t, h, http.MethodGet, "/users/"+strconv.FormatInt(created.ID, 10), "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[types.UserView](t, rec)
	assert.Equal(t, "alice", got.Name)
	require.NotNil(t, got.Fullname)
	assert.Equal(t, "Alice A", *got.Fullname)
	assert.Equal(t, []string{}, got.Addresses)
}

func TestGetUserNotFound(t *testing.T) {
	h := setupRouter(t, false)

	rec := do(t, h, http.MethodGet, "/users/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := decode[response.Response](t, rec)
	assert.Equal(t, response.StatusError, body.Status)
	assert.Equal(t, "User not found", body.Error)
}

func TestGetUserInvalidID(t *testing.T) {
	h := setupRouter(t, false)

	rec := do(t, h, http.MethodGet, "/users/abc", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateUserValidation(t *testing.T) {
	h := setupRouter(t, false)

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "empty body", body: "", wantErr: "request body is empty"},
		{name: "malformed json", body: `{"name":`, wantErr: "invalid JSON body"},
		{name: "trailing data", body: `{"name":"alice"} not-json`, wantErr: "invalid JSON body"},
		{name: "two values", body: `{"name":"alice"}{"name":"bob"}`, wantErr: "invalid JSON body"},
		{name: "missing name", body: `{"fullname":"x"}`, wantErr: "field name is required"},
		{name: "name too long", body: `{"name":"` + strings.Repeat("a", 31) + `"}`, wantErr: "field name must not exceed 30 characters"},
		{name: "fullname too long", body: `{"name":"a","fullname":"` + strings.Repeat("b", 101) + `"}`, wantErr: "field fullname must not exceed 100 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/users", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, decode[response.Response](t, rec).Error, tt.wantErr)
		})
	}
}

func TestCreateUserTrailingDataWritesNothing(t *testing.T) {
	h := setupRouter(t, false)

	rec := do(t, h, http.MethodPost, "/users", `{"name":"alice"} not-json`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	assert.JSONEq(t, `[]`, do(t, h, http.MethodGet, "/users", "").Body.String())
}

func TestUpdateUserOnlyName(t *testing.T) {
	h := setupRouter(t, false)

	created := decode[types.UserRecord](t, do(t, h, http.MethodPost, "/users", `{"name":"alice","fullname":"Alice A"}`))
	path := "/users/" + strconv.FormatInt(created.ID, 10)

	rec := do(t, h, http.MethodPut, path, `{"name":"alicia"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[types.UserRecord](t, rec)
	assert.Equal(t, "alicia", updated.Name)
	require.NotNil(t, updated.Fullname)
	assert.Equal(t, "Alice A", *updated.Fullname)

	got := decode[types.UserView](t, do(t, h, http.MethodGet, path, ""))
	assert.Equal(t, "alicia", got.Name)
	assert.Equal(t, "Alice A", *got.Fullname)
}

func TestUpdateUserNotFound(t *testing.T) {
	h := setupRouter(t, false)

	rec := do(t, h, http.MethodPut, "/users/999", `{"name":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateUserRejectsEmptyName(t *testing.T) {
	h := setupRouter(t, false)

	created := decode[types.UserRecord](t, do(t, h, http.MethodPost, "/users", `{"name":"alice"}`))

	rec := do(t, h, http.MethodPut, "/users/"+strconv.FormatInt(created.ID, 10), `{"name":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDeleteUser(t *testing.T) {
	h := setupRouter(t, true)

	users := decode[[]types.UserView](t, do(t, h, http.MethodGet, "/users", ""))
	require.Len(t, users, 3)
	victim := users[1]
	path := "/users/" + strconv.FormatInt(victim.ID, 10)

	rec := do(t, h, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User deleted successfully", decode[response.Message](t, rec).Message)

	users = decode[[]types.UserView](t, do(t, h, http.MethodGet, "/users", ""))
	require.Len(t, users, 2)
	for _, u := range users {
		assert.NotEqual(t, victim.ID, u.ID)
	}

	// The address survives but no longer lists the deleted user.
	addresses := decode[[]types.AddressView](t, do(t, h, http.MethodGet, "/addresses", ""))
	require.Len(t, addresses, 3)
	for _, a := range addresses {
		assert.NotContains(t, a.Users, victim.Name)
	}

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, path, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, path, "").Code)
}

func TestListUsersSeeded(t *testing.T) {
	h := setupRouter(t, true)

	rec := do(t, h, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)

	users := decode[[]types.UserView](t, rec)
	require.Len(t, users, 3)
	assert.Equal(t, "spongebob", users[0].Name)
	assert.Equal(t, []string{"spongebob@sqlalchemy.org"}, users[0].Addresses)
}

func TestListUsersEmptyIsArray(t *testing.T) {
	h := setupRouter(t, false)

	rec := do(t, h, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListAddresses(t *testing.T) {
	h := setupRouter(t, true)

	rec := do(t, h, http.MethodGet, "/addresses", "")
	require.Equal(t, http.StatusOK, rec.Code)

	addresses := decode[[]types.AddressView](t, rec)
	require.Len(t, addresses, 3)
	assert.Equal(t, "sandy@sqlalchemy.org", addresses[1].EmailAddress)
	assert.Equal(t, []string{"sandy"}, addresses[1].Users)
}

func TestRequestIDHeader(t *testing.T) {
	h := setupRouter(t, false)

	rec := do(t, h, http.MethodGet, "/users", "")
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(middleware.RequestIDHeader))
}

func TestHealth(t *testing.T) {
	h := setupRouter(t, false)

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

// brokenStore fails every Acquire, standing in for an unreachable
// database.
type brokenStore struct{}

func (brokenStore) Acquire(context.Context) (storage.Session, error) {
	return nil, errors.New("database is closed")
}
func (brokenStore) Ping(context.Context) error { return errors.New("database is closed") }
func (brokenStore) Close() error               { return nil }

func TestStorageFailureIs500(t *testing.T) {
	h := router.New(brokenStore{}, discardLogger())

	for _, path := range []string{"/users", "/users/1", "/addresses"} {
		rec := do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.Equal(t, response.StatusError, decode[response.Response](t, rec).Status)
	}

	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/health", "").Code)
}
