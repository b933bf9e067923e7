package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/fooddelivery/internal/pkg/auth"
	"github.com/polkiloo/fooddelivery/internal/server/http/handlers"
	"github.com/polkiloo/fooddelivery/internal/server/http/middleware"
)

// Params are the dependencies of the HTTP router.
type Params struct {
	fx.In

	Facade handlers.PlatformFacade
	Tokens middleware.TokenParser
	Relay  handlers.RelayHub
	Rooms  handlers.RoomTokenVerifier
	Health handlers.HealthChecker
	Logger *slog.Logger
}

// Setup configures gin router with handlers and middleware.
func Setup(p Params) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(p.Logger))

	healthHandler := handlers.NewHealthHandler(p.Health)
	relayHandler := handlers.NewRelayHandler(p.Relay, p.Rooms, p.Facade, p.Logger)
	cartHandler := handlers.NewCartHandler(p.Facade)
	orderHandler := handlers.NewOrderHandler(p.Facade)
	deliveryHandler := handlers.NewDeliveryHandler(p.Facade)

	engine.GET("/health", healthHandler.Check)
	// compression would break the upgrade handshake
	engine.GET("/ws/deliveries/:id/location", relayHandler.Stream)

	api := engine.Group("/api")
	api.Use(middleware.DecompressRequest())
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	api.Use(middleware.AuthRequired(p.Tokens))

	staff := middleware.RequireRole(auth.RoleRestaurant, auth.RoleAdmin, auth.RoleDriver)
	kitchen := middleware.RequireRole(auth.RoleRestaurant, auth.RoleAdmin)
	driver := middleware.RequireRole(auth.RoleDriver)

	cart := api.Group("/cart", middleware.RequireRole(auth.RoleCustomer))
	cart.GET("", cartHandler.List)
	cart.DELETE("", cartHandler.Clear)
	cart.GET("/restaurants", cartHandler.Restaurants)
	cart.GET("/restaurants/:restaurantId", cartHandler.ListForRestaurant)
	cart.POST("/lines", cartHandler.AddLine)
	cart.PATCH("/lines/:id", cartHandler.UpdateLine)
	cart.DELETE("/lines/:id", cartHandler.RemoveLine)

	orders := api.Group("/orders")
	orders.POST("", middleware.RequireRole(auth.RoleCustomer), orderHandler.Place)
	orders.GET("", staff, orderHandler.List)
	orders.GET("/active", staff, orderHandler.Active)
	orders.GET("/delivered", staff, orderHandler.Delivered)
	orders.GET("/:id", orderHandler.Get)
	orders.PATCH("/:id/status", kitchen, orderHandler.UpdateStatus)
	orders.DELETE("/:id", middleware.RequireRole(auth.RoleAdmin), orderHandler.Delete)

	deliveries := api.Group("/deliveries")
	deliveries.POST("", driver, deliveryHandler.Accept)
	deliveries.GET("/mine", driver, deliveryHandler.Mine)
	deliveries.GET("/mine/active", driver, deliveryHandler.MineActive)
	deliveries.GET("/by-order/:orderId", deliveryHandler.ByOrder)
	deliveries.GET("/:id", deliveryHandler.Get)
	deliveries.PATCH("/:id/status", driver, deliveryHandler.UpdateStatus)
	deliveries.POST("/:id/complete", driver, deliveryHandler.Complete)
	deliveries.POST("/:id/cancel", middleware.RequireRole(auth.RoleDriver, auth.RoleAdmin), deliveryHandler.Cancel)
	deliveries.POST("/:id/relay-token", deliveryHandler.RelayToken)

	api.GET("/drivers/me", driver, deliveryHandler.DriverProfile)

	return engine
}
