package di

import (
	"go.uber.org/fx"

	"github.com/polkiloo/fooddelivery/internal/adapter/catalog"
	"github.com/polkiloo/fooddelivery/internal/adapter/notify"
	"github.com/polkiloo/fooddelivery/internal/app"
	"github.com/polkiloo/fooddelivery/internal/config"
	"github.com/polkiloo/fooddelivery/internal/logger"
	"github.com/polkiloo/fooddelivery/internal/pkg/auth"
	"github.com/polkiloo/fooddelivery/internal/relay"
	"github.com/polkiloo/fooddelivery/internal/server/http/handlers"
	"github.com/polkiloo/fooddelivery/internal/server/http/middleware"
	"github.com/polkiloo/fooddelivery/internal/server/http/router"
	"github.com/polkiloo/fooddelivery/internal/storage/postgres"
	"github.com/polkiloo/fooddelivery/internal/usecase"
)

func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		auth.Module,
		postgres.Module,
		catalog.Module,
		notify.Module,
		relay.Module,
		usecase.Module,
		fx.Provide(
			func(client catalog.Client) usecase.CatalogProvider { return client },
			func(n notify.Notifier) app.Notifier { return n },
			func(f *app.PlatformFacade) handlers.PlatformFacade { return f },
			func(s auth.Strategy) middleware.TokenParser { return s },
			func(h *relay.Hub) handlers.RelayHub { return h },
			func(t *auth.RoomTokens) handlers.RoomTokenVerifier { return t },
			func(s *postgres.Storage) handlers.HealthChecker { return s },
		),
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
