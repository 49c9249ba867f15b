package mid

import (
	"context"
	"net/http"

	"github.com/weavechain/weaved/foundation/web"
)

// Cors sets the response headers a browser needs to call the public API
// from the configured origin. The public surface only serves reads and
// transaction submissions, so the allowed methods stay narrow.
func Cors(origin string) web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			headers := w.Header()
			headers.Set("Access-Control-Allow-Origin", origin)
			headers.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			headers.Set("Access-Control-Allow-Headers", "Origin, Accept, Content-Type, Content-Length, Accept-Encoding")
			headers.Set("Access-Control-Max-Age", "86400")
			headers.Add("Vary", "Origin")

			return handler(ctx, w, r)
		}

		return h
	}

	return m
}
