// Package user contains all HTTP handlers for the User resource.
//
// HANDLER PATTERN USED HERE — THE CLOSURE / FACTORY PATTERN:
// ────────────────────────────────────────────────────────────
// Go's router expects handler functions with the signature:
//
//	func(http.ResponseWriter, *http.Request)
//
// To inject the store we use a factory that accepts it and returns a
// function with exactly that signature:
//
//	router.HandleFunc("POST /users", user.New(store))
//
// New(store) runs ONCE at startup; the returned closure runs on EVERY
// request. Each request acquires its own storage.Session through
// storage.WithSession, which releases it on every exit path.
package user

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aanand-mishra/users-api/internal/service"
	"github.com/aanand-mishra/users-api/internal/storage"
	"github.com/aanand-mishra/users-api/internal/types"
	"github.com/aanand-mishra/users-api/internal/utils/request"
	"github.com/aanand-mishra/users-api/internal/utils/response"
	"github.com/go-playground/validator/v10"
)

// notFoundMessage is returned with every 404 from this package.
const notFoundMessage = "User not found"

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /users
//
// Request body (JSON):
//
//	{ "name": "alice", "fullname": "Alice A" }
//
// Success response (200 OK) — the stored row:
//
//	{ "id": 4, "name": "alice", "fullname": "Alice A" }
//
// Error responses:
//
//	422 Unprocessable Entity — empty body, malformed JSON, or failed validation
//	500 Internal             — database error
//
// ─────────────────────────────────────────────────────────────────────────────
func New(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.InfoContext(r.Context(), "creating a user")

		var in types.UserCreate
		if err := request.DecodeJSON(r, &in); err != nil {
			writeBadInput(w, err)
			return
		}

		var created types.UserRecord
		err := storage.WithSession(r.Context(), store, func(sess storage.Session) (err error) {
			created, err = service.CreateUser(r.Context(), sess, in)
			return err
		})
		if err != nil {
			writeStorageError(w, r, err)
			return
		}

		slog.InfoContext(r.Context(), "user created", slog.Int64("id", created.ID))
		response.WriteJSON(w, http.StatusOK, created)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID handles GET /users/{id}
//
// Success response (200 OK):
//
//	{ "id": 1, "name": "spongebob", "fullname": "Spongebob Squarepants",
//	  "addresses": ["spongebob@sqlalchemy.org"] }
//
// Error responses:
//
//	404 Not Found            — no user with that id
//	422 Unprocessable Entity — id is not a valid integer
//	500 Internal             — database error
//
// ─────────────────────────────────────────────────────────────────────────────
func GetByID(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := request.PathID(r, "id")
		if err != nil {
			writeBadInput(w, err)
			return
		}
		slog.InfoContext(r.Context(), "getting a user", slog.Int64("id", id))

		var view types.UserView
		err = storage.WithSession(r.Context(), store, func(sess storage.Session) (err error) {
			view, err = service.GetUser(r.Context(), sess, id)
			return err
		})
		if err != nil {
			writeStorageError(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, view)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetList handles GET /users
// Returns a JSON array of every user with their addresses; [] (not null)
// when there are none.
// ─────────────────────────────────────────────────────────────────────────────
func GetList(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.InfoContext(r.Context(), "getting all users")

		var views []types.UserView
		err := storage.WithSession(r.Context(), store, func(sess storage.Session) (err error) {
			views, err = service.GetUsers(r.Context(), sess)
			return err
		})
		if err != nil {
			writeStorageError(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, views)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update handles PUT /users/{id}
// Partial update: only the fields present (and non-null) change.
//
// Request body (JSON) — any subset:
//
//	{ "name": "bob" }
//
// Success response (200 OK) — the stored row after the update.
//
// Error responses:
//
//	404 Not Found            — no user with that id
//	422 Unprocessable Entity — invalid id, empty body, or validation failure
//	500 Internal             — database error
//
// ─────────────────────────────────────────────────────────────────────────────
func Update(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := request.PathID(r, "id")
		if err != nil {
			writeBadInput(w, err)
			return
		}
		slog.InfoContext(r.Context(), "updating a user", slog.Int64("id", id))

		var in types.UserUpdate
		if err := request.DecodeJSON(r, &in); err != nil {
			writeBadInput(w, err)
			return
		}

		var updated types.UserRecord
		err = storage.WithSession(r.Context(), store, func(sess storage.Session) (err error) {
			updated, err = service.UpdateUser(r.Context(), sess, id, in)
			return err
		})
		if err != nil {
			writeStorageError(w, r, err)
			return
		}

		slog.InfoContext(r.Context(), "user updated", slog.Int64("id", id))
		response.WriteJSON(w, http.StatusOK, updated)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete handles DELETE /users/{id}
// Removes the user and every association row that references it.
//
// Success response (200 OK):
//
//	{ "message": "User deleted successfully" }
//
// ─────────────────────────────────────────────────────────────────────────────
func Delete(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := request.PathID(r, "id")
		if err != nil {
			writeBadInput(w, err)
			return
		}
		slog.InfoContext(r.Context(), "deleting a user", slog.Int64("id", id))

		var deleted bool
		err = storage.WithSession(r.Context(), store, func(sess storage.Session) (err error) {
			deleted, err = service.DeleteUser(r.Context(), sess, id)
			return err
		})
		if err != nil {
			writeStorageError(w, r, err)
			return
		}
		if !deleted {
			response.WriteJSON(w, http.StatusNotFound, response.NotFound(notFoundMessage))
			return
		}

		slog.InfoContext(r.Context(), "user deleted", slog.Int64("id", id))
		response.WriteJSON(w, http.StatusOK, response.Message{Message: "User deleted successfully"})
	}
}

// writeBadInput answers 422 for anything wrong with the request itself:
// path id, empty or malformed body, failed validation.
func writeBadInput(w http.ResponseWriter, err error) {
	var validateErrs validator.ValidationErrors
	if errors.As(err, &validateErrs) {
		response.WriteJSON(w, http.StatusUnprocessableEntity, response.ValidationError(validateErrs))
		return
	}
	response.WriteJSON(w, http.StatusUnprocessableEntity, response.GeneralError(err))
}

// writeStorageError maps storage.ErrNotFound to 404; everything else is
// a 500.
func writeStorageError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		response.WriteJSON(w, http.StatusNotFound, response.NotFound(notFoundMessage))
		return
	}

	slog.ErrorContext(r.Context(), "user request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
}
