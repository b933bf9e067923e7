package handlers

import (
	"context"

	"github.com/polkiloo/fooddelivery/internal/app"
	"github.com/polkiloo/fooddelivery/internal/domain/model"
	"github.com/polkiloo/fooddelivery/internal/pkg/auth"
	"github.com/polkiloo/fooddelivery/internal/relay"
	"github.com/polkiloo/fooddelivery/internal/usecase"
)

// CartFacade describes cart capabilities required by handlers.
type CartFacade interface {
	AddCartLine(ctx context.Context, owner, restaurantID, itemID string, quantity int) (*model.CartLine, error)
	SetCartQuantity(ctx context.Context, owner, lineID string, quantity int) (*model.CartLine, error)
	RemoveCartLine(ctx context.Context, owner, lineID string) error
	Cart(ctx context.Context, owner string) ([]model.CartLineView, error)
	CartForRestaurant(ctx context.Context, owner, restaurantID string) ([]model.CartLineView, error)
	CartRestaurants(ctx context.Context, owner string) ([]string, error)
	ClearCart(ctx context.Context, owner, restaurantID string) (int64, error)
}

// OrderFacade encapsulates order operations exposed via HTTP.
type OrderFacade interface {
	PlaceOrder(ctx context.Context, cmd usecase.PlaceOrderCommand) (*model.Order, error)
	Order(ctx context.Context, principal auth.Principal, id string) (*model.OrderDetails, error)
	Orders(ctx context.Context, status string) ([]model.OrderView, error)
	ActiveOrders(ctx context.Context) ([]model.OrderView, error)
	DeliveredOrders(ctx context.Context) ([]model.OrderView, error)
	UpdateOrderStatus(ctx context.Context, id, status string) (*model.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

// DeliveryFacade provides delivery and driver operations.
type DeliveryFacade interface {
	AcceptDelivery(ctx context.Context, principal auth.Principal, req app.AcceptDeliveryRequest) (*model.DeliveryOrder, error)
	AdvanceDelivery(ctx context.Context, principal auth.Principal, id string, status model.DeliveryStatus) (*model.DeliveryOrder, error)
	CompleteDelivery(ctx context.Context, principal auth.Principal, id string, cmd usecase.CompleteDeliveryCommand) (*model.DeliveryOrder, error)
	CancelDelivery(ctx context.Context, principal auth.Principal, id string) (*model.DeliveryOrder, error)
	Delivery(ctx context.Context, principal auth.Principal, id string) (*model.DeliveryOrder, error)
	DeliveryByOrder(ctx context.Context, principal auth.Principal, orderID string) (*model.DeliveryOrder, error)
	MyDeliveries(ctx context.Context, principal auth.Principal) ([]model.DeliveryOrder, error)
	MyActiveDeliveries(ctx context.Context, principal auth.Principal) ([]model.DeliveryOrder, error)
	DriverProfile(ctx context.Context, principal auth.Principal) (*model.DriverProfile, error)
	RelayToken(ctx context.Context, principal auth.Principal, deliveryID string) (*app.RelayGrant, error)
}

// PlatformFacade aggregates the full set of operations used across handlers.
type PlatformFacade interface {
	CartFacade
	OrderFacade
	DeliveryFacade
	RelayAuthorizer
}

// RelayHub is the live location fan-out.
type RelayHub interface {
	Join(deliveryID string, m relay.Member) (*relay.Subscription, error)
}

// RelayAuthorizer re-checks a room token against the current delivery state.
type RelayAuthorizer interface {
	AuthorizeRelay(ctx context.Context, claims auth.RoomClaims) error
}

// RoomTokenVerifier checks relay room tokens.
type RoomTokenVerifier interface {
	Verify(token string) (auth.RoomClaims, error)
}

// HealthChecker reports whether the store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

var _ PlatformFacade = (*app.PlatformFacade)(nil)
