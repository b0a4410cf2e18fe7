// Package requesttime stamps each request with a single wall-clock reading.
// Every deadline and expiry check during the request then sees the same now.
package requesttime

import (
	"net/http"
	"time"

	"brickshare/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and stores
// it in the context via requestcontext.WithTime.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
