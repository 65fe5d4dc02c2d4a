// Package storage defines the data-access contract for users and
// addresses — the interfaces any database backend must satisfy to work
// with this application.
//
// Access is split in two:
//
//   - Store is long-lived. It is built once in main and owns the
//     connection pool.
//   - Session is request-scoped. Handlers Acquire one per request and
//     must Close it on every exit path; WithSession does that for them.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aanand-mishra/users-api/internal/types"
)

// ErrNotFound is returned when the requested entity does not exist.
// Absence is never reported through any other error.
var ErrNotFound = errors.New("not found")

// Store hands out request-scoped sessions.
type Store interface {
	// Acquire borrows one connection from the pool. The caller owns the
	// returned Session and must Close it.
	Acquire(ctx context.Context) (Session, error)

	// Ping reports whether the database is reachable.
	Ping(ctx context.Context) error

	// Close releases the pool. Sessions must not be used afterwards.
	Close() error
}

// Session runs queries and mutations on a single connection.
// Every mutation commits before it returns.
type Session interface {
	// GetAllUsers returns every user ordered by id, with Addresses
	// populated. Returns an empty slice (not nil) when there are none.
	GetAllUsers(ctx context.Context) ([]types.User, error)

	// GetUserByID returns the user with Addresses populated, or
	// ErrNotFound.
	GetUserByID(ctx context.Context, id int64) (types.User, error)

	// CreateUser inserts a user and returns it with the generated id.
	CreateUser(ctx context.Context, name string, fullname *string) (types.User, error)

	// UpdateUser sets only the non-nil fields and returns the stored
	// user, or ErrNotFound if id is absent.
	UpdateUser(ctx context.Context, id int64, name, fullname *string) (types.User, error)

	// DeleteUser removes the user and its association rows.
	// It reports false when no user had that id.
	DeleteUser(ctx context.Context, id int64) (bool, error)

	// GetAllAddresses returns every address ordered by id, with Users
	// populated.
	GetAllAddresses(ctx context.Context) ([]types.Address, error)

	// Close returns the connection to the pool. It is safe to call
	// more than once.
	Close() error
}

// WithSession acquires a session, runs fn, and releases the session
// whether fn returns normally, returns an error, or panics.
func WithSession(ctx context.Context, store Store, fn func(Session) error) (err error) {
	sess, err := store.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("WithSession: acquire: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("WithSession: release: %w", cerr)
		}
	}()

	return fn(sess)
}
