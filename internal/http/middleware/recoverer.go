package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/aanand-mishra/users-api/internal/utils/response"
)

// Recoverer turns a panicking handler into a 500 with the standard
// error envelope. If the handler already started its response the
// panic is only logged. http.ErrAbortHandler is re-panicked so net/http
// can abort the connection as intended.
func Recoverer(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}

				log.ErrorContext(r.Context(), "panic recovered",
					slog.String("panic", fmt.Sprint(p)),
					slog.String("stack", string(debug.Stack())),
				)
				if rec.wroteHeader {
					return
				}
				response.WriteJSON(w, http.StatusInternalServerError,
					response.GeneralError(fmt.Errorf("internal server error")))
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
