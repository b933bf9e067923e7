package relay

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/fooddelivery/internal/config"
)

// Module provides the location relay hub to the fx graph.
var Module = fx.Options(
	fx.Provide(newHub),
	fx.Invoke(registerLifecycle),
)

type hubParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newHub(p hubParams) *Hub {
	var broker Broker
	if p.Config.RedisAddress != "" {
		broker = NewRedisBroker(p.Config.RedisAddress, p.Logger)
	}
	return NewHub(Options{
		SubscriberBuffer: p.Config.RelaySubscriberBuffer,
		SinglePublisher:  p.Config.RelaySinglePublisher,
	}, broker, p.Logger)
}

func registerLifecycle(lc fx.Lifecycle, hub *Hub, logger *slog.Logger) {
	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if pinger, ok := hub.broker.(interface{ Ping(context.Context) error }); ok {
				if err := pinger.Ping(ctx); err != nil {
					logger.Warn("relay broker unreachable, updates stay local until it recovers", slog.Any("error", err))
				}
			}
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())
			hub.Start(runCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			hub.Close()
			if hub.broker != nil {
				return hub.broker.Close()
			}
			return nil
		},
	})
}
