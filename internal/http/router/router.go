// Package router is the single place where routes are mapped to
// handlers.
//
// Route table:
//
//	GET    /users        → list users with their addresses
//	GET    /users/{id}   → one user
//	POST   /users        → create a user
//	PUT    /users/{id}   → partially update a user
//	DELETE /users/{id}   → delete a user and its associations
//	GET    /addresses    → list addresses with their users
//	GET    /health       → database ping
package router

import (
	"log/slog"
	"net/http"

	"github.com/aanand-mishra/users-api/internal/http/handlers/address"
	"github.com/aanand-mishra/users-api/internal/http/handlers/health"
	"github.com/aanand-mishra/users-api/internal/http/handlers/user"
	"github.com/aanand-mishra/users-api/internal/http/middleware"
	"github.com/aanand-mishra/users-api/internal/storage"
)

// New builds the ServeMux for store and wraps it in the global
// middleware: request id first, then access log, then panic recovery.
func New(store storage.Store, log *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /users", user.GetList(store))
	mux.HandleFunc("GET /users/{id}", user.GetByID(store))
	mux.HandleFunc("POST /users", user.New(store))
	mux.HandleFunc("PUT /users/{id}", user.Update(store))
	mux.HandleFunc("DELETE /users/{id}", user.Delete(store))

	mux.HandleFunc("GET /addresses", address.GetList(store))

	mux.HandleFunc("GET /health", health.Check(store))

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logger(log),
		middleware.Recoverer(log),
	)
}
