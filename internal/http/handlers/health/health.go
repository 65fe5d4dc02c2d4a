// Package health exposes a liveness probe backed by a database ping.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aanand-mishra/users-api/internal/utils/response"
)

// Pinger is the part of storage.Store the probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check handles GET /health: 200 {"status":"ok"} when the database
// answers within two seconds, 503 otherwise.
func Check(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			slog.WarnContext(r.Context(), "health check failed", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusServiceUnavailable, response.GeneralError(err))
			return
		}

		response.WriteJSON(w, http.StatusOK, map[string]string{"status": response.StatusOK})
	}
}
