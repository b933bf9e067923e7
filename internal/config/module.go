package config

import "go.uber.org/fx"

// Module provides the service configuration loaded from the environment and flags.
var Module = fx.Provide(Load)
