// Package address contains the HTTP handlers for the Address resource.
package address

import (
	"log/slog"
	"net/http"

	"github.com/aanand-mishra/users-api/internal/service"
	"github.com/aanand-mishra/users-api/internal/storage"
	"github.com/aanand-mishra/users-api/internal/types"
	"github.com/aanand-mishra/users-api/internal/utils/response"
)

// GetList handles GET /addresses
//
// Success response (200 OK):
//
//	[
//	  { "id": 1, "email_address": "spongebob@sqlalchemy.org", "users": ["spongebob"] }
//	]
func GetList(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.InfoContext(r.Context(), "getting all addresses")

		var views []types.AddressView
		err := storage.WithSession(r.Context(), store, func(sess storage.Session) (err error) {
			views, err = service.GetAddresses(r.Context(), sess)
			return err
		})
		if err != nil {
			slog.ErrorContext(r.Context(), "error getting addresses", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		response.WriteJSON(w, http.StatusOK, views)
	}
}
