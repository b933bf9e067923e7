package router

import "go.uber.org/fx"

// Module provides the gin engine serving the REST API, the relay socket and /health.
var Module = fx.Provide(Setup)
