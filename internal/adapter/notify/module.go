package notify

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/fooddelivery/internal/config"
)

// Module exposes the notifier to the fx graph.
var Module = fx.Provide(newNotifier)

type notifierParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newNotifier(p notifierParams) (Notifier, error) {
	if p.Config.NotificationServiceAddress == "" {
		return NewLogNotifier(p.Logger), nil
	}
	return NewHTTPNotifier(p.Config.NotificationServiceAddress, p.Logger)
}
