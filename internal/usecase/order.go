package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/polkiloo/fooddelivery/internal/config"
	domainErrors "github.com/polkiloo/fooddelivery/internal/domain/errors"
	"github.com/polkiloo/fooddelivery/internal/domain/model"
	"github.com/polkiloo/fooddelivery/internal/domain/repository"
)

// syncAttempts bounds retries of a guarded status write that lost a race.
const syncAttempts = 3

// PlaceOrderCommand carries checkout input.
type PlaceOrderCommand struct {
	OwnerID             string
	RestaurantID        string
	PaymentMethod       model.PaymentMethod
	DeliveryAddress     model.Address
	DeliveryCoordinates model.Coordinates
	DeliveryCharge      float64
}

func (c PlaceOrderCommand) validate() error {
	switch {
	case c.OwnerID == "":
		return fmt.Errorf("%w: owner is required", domainErrors.ErrValidation)
	case c.RestaurantID == "":
		return fmt.Errorf("%w: restaurant is required", domainErrors.ErrValidation)
	case !c.PaymentMethod.Valid():
		return fmt.Errorf("%w: unsupported payment method %q", domainErrors.ErrValidation, c.PaymentMethod)
	case c.DeliveryAddress.No == "" || c.DeliveryAddress.Street == "":
		return fmt.Errorf("%w: delivery address needs number and street", domainErrors.ErrValidation)
	case !c.DeliveryCoordinates.Valid():
		return fmt.Errorf("%w: delivery coordinates out of range", domainErrors.ErrValidation)
	case math.IsNaN(c.DeliveryCharge) || math.IsInf(c.DeliveryCharge, 0) || c.DeliveryCharge < 0:
		return fmt.Errorf("%w: delivery charge must be a non-negative amount", domainErrors.ErrValidation)
	}
	return nil
}

// OrderUseCase encapsulates order lifecycle logic.
type OrderUseCase struct {
	orders  repository.OrderRepository
	carts   repository.CartRepository
	catalog CatalogProvider
	strict  bool
	logger  *slog.Logger
}

// NewOrderUseCase constructs OrderUseCase.
func NewOrderUseCase(orders repository.OrderRepository, carts repository.CartRepository, catalog CatalogProvider, cfg *config.Config, logger *slog.Logger) *OrderUseCase {
	return &OrderUseCase{
		orders:  orders,
		carts:   carts,
		catalog: catalog,
		strict:  cfg.StrictOrderTransitions,
		logger:  logger,
	}
}

// Place snapshots the owner's cart for one restaurant into a Pending order and
// takes exactly the snapshotted quantities out of the cart.
func (u *OrderUseCase) Place(ctx context.Context, cmd PlaceOrderCommand) (*model.Order, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	lines, err := u.carts.ListByOwnerAndRestaurant(ctx, cmd.OwnerID, cmd.RestaurantID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: cart is empty for restaurant %s", domainErrors.ErrValidation, cmd.RestaurantID)
	}

	items := make([]model.OrderItem, 0, len(lines))
	var subtotal float64
	for _, line := range lines {
		items = append(items, model.OrderItem{
			CatalogItemID: line.CatalogItemID,
			Name:          line.DisplayName,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			LineTotal:     line.LineTotal,
		})
		subtotal += line.LineTotal
	}

	order := &model.Order{
		OwnerID:             cmd.OwnerID,
		RestaurantID:        cmd.RestaurantID,
		Items:               items,
		Subtotal:            subtotal,
		DeliveryCharge:      cmd.DeliveryCharge,
		TotalAmount:         subtotal + cmd.DeliveryCharge,
		PaymentMethod:       cmd.PaymentMethod,
		DeliveryAddress:     cmd.DeliveryAddress,
		DeliveryCoordinates: cmd.DeliveryCoordinates,
		Status:              model.OrderStatusPending,
	}
	if err := u.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	if _, err := u.carts.Consume(ctx, cmd.OwnerID, lines); err != nil {
		u.logger.Error("cart not cleared after checkout",
			slog.String("order_id", order.ID),
			slog.String("owner_id", cmd.OwnerID),
			slog.String("restaurant_id", cmd.RestaurantID),
			slog.Any("error", err),
		)
	}

	return order, nil
}

// Get returns the order with its items and restaurant enriched from the catalog.
func (u *OrderUseCase) Get(ctx context.Context, id string) (*model.OrderDetails, error) {
	order, err := u.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	details := &model.OrderDetails{
		Order:      *order,
		Items:      make([]model.OrderItemDetails, 0, len(order.Items)),
		Restaurant: u.restaurant(ctx, order.RestaurantID),
	}
	for _, item := range order.Items {
		entry := model.OrderItemDetails{OrderItem: item}
		if live, err := u.catalog.GetItem(ctx, item.CatalogItemID); err == nil {
			entry.Item = live
		}
		details.Items = append(details.Items, entry)
	}
	return details, nil
}

// Find returns the stored order without enrichment.
func (u *OrderUseCase) Find(ctx context.Context, id string) (*model.Order, error) {
	return u.orders.GetByID(ctx, id)
}

// ListAll returns every order, newest first.
func (u *OrderUseCase) ListAll(ctx context.Context) ([]model.OrderView, error) {
	orders, err := u.orders.List(ctx)
	if err != nil {
		return nil, err
	}
	return u.views(ctx, orders), nil
}

// ListByStatus returns orders currently in the given status.
func (u *OrderUseCase) ListByStatus(ctx context.Context, raw string) ([]model.OrderView, error) {
	status, ok := model.ParseOrderStatus(raw)
	if !ok {
		return nil, fmt.Errorf("%w: unknown order status %q", domainErrors.ErrValidation, raw)
	}
	orders, err := u.orders.ListByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	return u.views(ctx, orders), nil
}

// ListActive returns orders that have not been delivered.
func (u *OrderUseCase) ListActive(ctx context.Context) ([]model.OrderView, error) {
	orders, err := u.orders.ListExcludingStatus(ctx, model.OrderStatusDelivered)
	if err != nil {
		return nil, err
	}
	return u.views(ctx, orders), nil
}

// ListDelivered returns delivered orders.
func (u *OrderUseCase) ListDelivered(ctx context.Context) ([]model.OrderView, error) {
	orders, err := u.orders.ListByStatus(ctx, model.OrderStatusDelivered)
	if err != nil {
		return nil, err
	}
	return u.views(ctx, orders), nil
}

// UpdateStatus applies an operator status change. It reports whether the
// stored status changed; repeating the current status is a no-op.
func (u *OrderUseCase) UpdateStatus(ctx context.Context, id, raw string) (*model.Order, bool, error) {
	status, ok := model.ParseOrderStatus(raw)
	if !ok {
		return nil, false, fmt.Errorf("%w: unknown order status %q", domainErrors.ErrValidation, raw)
	}

	order, err := u.orders.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if order.Status == status {
		return order, false, nil
	}

	if !order.Status.CanTransitionTo(status) {
		if u.strict {
			return nil, false, fmt.Errorf("%w: order %s cannot move from %s to %s", domainErrors.ErrConflict, id, order.Status, status)
		}
		u.logger.Warn("order status change outside transition table",
			slog.String("order_id", id),
			slog.String("from", string(order.Status)),
			slog.String("to", string(status)),
		)
	}

	if err := u.orders.UpdateStatus(ctx, id, order.Status, status); err != nil {
		if errors.Is(err, domainErrors.ErrConflict) {
			if current, getErr := u.orders.GetByID(ctx, id); getErr == nil && current.Status == status {
				return current, false, nil
			}
		}
		return nil, false, err
	}

	order.Status = status
	order.UpdatedAt = time.Now()
	return order, true, nil
}

// SyncWithDelivery mirrors a delivery status into the order. Mirrors only move
// the order forward, a cancelled delivery releases an order in the delivery
// phase back to Prepared, and terminal orders are never touched. It reports
// whether the order changed.
func (u *OrderUseCase) SyncWithDelivery(ctx context.Context, orderID string, deliveryStatus model.DeliveryStatus) (bool, error) {
	target := deliveryStatus.OrderStatus()

	for attempt := 0; attempt < syncAttempts; attempt++ {
		order, err := u.orders.GetByID(ctx, orderID)
		if err != nil {
			return false, err
		}
		if !mirrorApplies(order.Status, deliveryStatus) {
			return false, nil
		}

		err = u.orders.UpdateStatus(ctx, orderID, order.Status, target)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, domainErrors.ErrConflict) {
			return false, err
		}
	}
	return false, fmt.Errorf("%w: order %s kept changing during sync", domainErrors.ErrConflict, orderID)
}

func mirrorApplies(current model.OrderStatus, deliveryStatus model.DeliveryStatus) bool {
	if current.Terminal() {
		return false
	}
	if deliveryStatus == model.DeliveryStatusCancelled {
		return current == model.OrderStatusDeliveryAccepted || current == model.OrderStatusOutForDelivery
	}
	return current.Precedes(deliveryStatus.OrderStatus())
}

// Delete removes an order.
func (u *OrderUseCase) Delete(ctx context.Context, id string) error {
	return u.orders.Delete(ctx, id)
}

func (u *OrderUseCase) views(ctx context.Context, orders []model.Order) []model.OrderView {
	restaurants := make(map[string]*model.Restaurant)
	views := make([]model.OrderView, 0, len(orders))
	for _, order := range orders {
		r, seen := restaurants[order.RestaurantID]
		if !seen {
			r = u.restaurant(ctx, order.RestaurantID)
			restaurants[order.RestaurantID] = r
		}
		views = append(views, model.OrderView{Order: order, Restaurant: r})
	}
	return views
}

func (u *OrderUseCase) restaurant(ctx context.Context, id string) *model.Restaurant {
	r, err := u.catalog.GetRestaurant(ctx, id)
	if err != nil {
		u.logger.Debug("restaurant enrichment skipped", slog.String("restaurant_id", id), slog.Any("error", err))
		return nil
	}
	return r
}
