package mid

import (
	"context"
	"expvar"
	"net/http"
	"runtime"

	"github.com/weavechain/weaved/foundation/web"
)

// counters maintains the expvar counters the service exposes on the
// debug endpoint.
type counters struct {
	goroutines *expvar.Int
	requests   *expvar.Int
	errors     *expvar.Int
	panics     *expvar.Int
}

// metrics is the single instance of the counter set.
var metrics = counters{
	goroutines: expvar.NewInt("goroutines"),
	requests:   expvar.NewInt("requests"),
	errors:     expvar.NewInt("errors"),
	panics:     expvar.NewInt("panics"),
}

// addPanic increments the panics counter.
func (c *counters) addPanic() {
	c.panics.Add(1)
}

// Metrics updates program counters per request.
func Metrics() web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			err := handler(ctx, w, r)

			metrics.requests.Add(1)
			if err != nil {
				metrics.errors.Add(1)
			}

			// Sample the number of goroutines every hundred requests.
			if metrics.requests.Value()%100 == 0 {
				metrics.goroutines.Set(int64(runtime.NumGoroutine()))
			}

			// Return the error so it can be handled further up the chain.
			return err
		}

		return h
	}

	return m
}
