// Package handlers binds the node's three HTTP surfaces: the public
// wallet API, the private node to node API, and the debug mux.
package handlers

import (
	"context"
	"expvar"
	"net/http"
	"net/http/pprof"
	"os"

	"github.com/weavechain/weaved/app/services/node/handlers/debug/checkgrp"
	v1 "github.com/weavechain/weaved/app/services/node/handlers/v1"
	"github.com/weavechain/weaved/business/web/v1/mid"
	"github.com/weavechain/weaved/foundation/blockweave/node"
	"github.com/weavechain/weaved/foundation/events"
	"github.com/weavechain/weaved/foundation/nameservice"
	"github.com/weavechain/weaved/foundation/web"
	"go.uber.org/zap"
)

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Shutdown   chan os.Signal
	Log        *zap.SugaredLogger
	Node       *node.Node
	NS         *nameservice.NameService
	Evts       *events.Events
	CorsOrigin string
}

// PublicMux constructs a http.Handler for the wallet facing API. This
// surface is browser reachable, so every route carries CORS for the
// configured origin, with a catch all for preflight requests.
func PublicMux(cfg MuxConfig) http.Handler {
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(),
		mid.Cors(cfg.CorsOrigin),
		mid.Panics(),
	)

	preflight := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return nil
	}
	app.Handle(http.MethodOptions, "", "/*", preflight, mid.Cors(cfg.CorsOrigin))

	v1.PublicRoutes(app, v1.Config{
		Log:  cfg.Log,
		Node: cfg.Node,
		NS:   cfg.NS,
		Evts: cfg.Evts,
	})

	return app
}

// PrivateMux constructs a http.Handler for the node to node API. Only
// peers talk to this surface, so it carries no CORS.
func PrivateMux(cfg MuxConfig) http.Handler {
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(),
		mid.Panics(),
	)

	v1.PrivateRoutes(app, v1.Config{
		Log:  cfg.Log,
		Node: cfg.Node,
	})

	return app
}

// DebugMux constructs a http.Handler for the operational endpoints:
// the standard library profiling routes, expvar, and the check group.
// A fresh mux bypasses the DefaultServerMux so a dependency cannot
// inject a handler into the service unnoticed.
func DebugMux(build string, log *zap.SugaredLogger, nde *node.Node) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	cgh := checkgrp.Handlers{
		Build: build,
		Log:   log,
		Node:  nde,
	}
	mux.HandleFunc("/debug/readiness", cgh.Readiness)
	mux.HandleFunc("/debug/liveness", cgh.Liveness)

	return mux
}
