package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/fooddelivery/internal/domain/errors"
	"github.com/polkiloo/fooddelivery/internal/domain/model"
	"github.com/polkiloo/fooddelivery/internal/pkg/auth"
	"github.com/polkiloo/fooddelivery/internal/usecase"
)

const notifyTimeout = 5 * time.Second

type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

type RelayTokenIssuer interface {
	Issue(deliveryID, subject string, role auth.RelayRole) (string, time.Time, error)
}

// RoomRevoker withdraws a delivery's location room from its current driver.
type RoomRevoker interface {
	Revoke(deliveryID string)
}

// AcceptDeliveryRequest is a driver's claim on a prepared order.
type AcceptDeliveryRequest struct {
	OrderID        string
	PickupAddress  string
	PickupLocation model.Coordinates
}

// RelayGrant is a signed ticket into a delivery's location room.
type RelayGrant struct {
	Token     string
	Role      auth.RelayRole
	ExpiresAt time.Time
}

// PlatformFacade coordinates carts, orders and deliveries. Delivery changes
// are mirrored into the owning order; a failed mirror is left to the
// reconciler.
type PlatformFacade struct {
	carts      *usecase.CartUseCase
	orders     *usecase.OrderUseCase
	deliveries *usecase.DeliveryUseCase
	notifier   Notifier
	tokens     RelayTokenIssuer
	rooms      RoomRevoker
	logger     *slog.Logger

	pending sync.WaitGroup
}

func NewPlatformFacade(
	carts *usecase.CartUseCase,
	orders *usecase.OrderUseCase,
	deliveries *usecase.DeliveryUseCase,
	notifier Notifier,
	tokens RelayTokenIssuer,
	rooms RoomRevoker,
	logger *slog.Logger,
) *PlatformFacade {
	return &PlatformFacade{
		carts:      carts,
		orders:     orders,
		deliveries: deliveries,
		notifier:   notifier,
		tokens:     tokens,
		rooms:      rooms,
		logger:     logger,
	}
}

func (f *PlatformFacade) AddCartLine(ctx context.Context, owner, restaurantID, itemID string, quantity int) (*model.CartLine, error) {
	return f.carts.AddLine(ctx, owner, restaurantID, itemID, quantity)
}

func (f *PlatformFacade) SetCartQuantity(ctx context.Context, owner, lineID string, quantity int) (*model.CartLine, error) {
	return f.carts.SetQuantity(ctx, owner, lineID, quantity)
}

func (f *PlatformFacade) RemoveCartLine(ctx context.Context, owner, lineID string) error {
	return f.carts.RemoveLine(ctx, owner, lineID)
}

func (f *PlatformFacade) Cart(ctx context.Context, owner string) ([]model.CartLineView, error) {
	return f.carts.ListForOwner(ctx, owner)
}

func (f *PlatformFacade) CartForRestaurant(ctx context.Context, owner, restaurantID string) ([]model.CartLineView, error) {
	return f.carts.ListForOwnerAndRestaurant(ctx, owner, restaurantID)
}

func (f *PlatformFacade) CartRestaurants(ctx context.Context, owner string) ([]string, error) {
	return f.carts.DistinctRestaurants(ctx, owner)
}

func (f *PlatformFacade) ClearCart(ctx context.Context, owner, restaurantID string) (int64, error) {
	return f.carts.Clear(ctx, owner, restaurantID)
}

func (f *PlatformFacade) PlaceOrder(ctx context.Context, cmd usecase.PlaceOrderCommand) (*model.Order, error) {
	order, err := f.orders.Place(ctx, cmd)
	if err != nil {
		return nil, err
	}
	f.notify(model.Notification{
		RecipientID: order.OwnerID,
		Event:       model.NotificationOrderPlaced,
		OrderID:     order.ID,
		Status:      string(order.Status),
	})
	return order, nil
}

// Order returns order details to its owner and to staff roles.
func (f *PlatformFacade) Order(ctx context.Context, principal auth.Principal, id string) (*model.OrderDetails, error) {
	details, err := f.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if principal.Role == auth.RoleCustomer && details.OwnerID != principal.ID {
		return nil, fmt.Errorf("%w: order %s belongs to another customer", domainErrors.ErrForbidden, id)
	}
	return details, nil
}

// Orders lists every order, or those in status when it is not empty.
func (f *PlatformFacade) Orders(ctx context.Context, status string) ([]model.OrderView, error) {
	if status == "" {
		return f.orders.ListAll(ctx)
	}
	return f.orders.ListByStatus(ctx, status)
}

func (f *PlatformFacade) ActiveOrders(ctx context.Context) ([]model.OrderView, error) {
	return f.orders.ListActive(ctx)
}

func (f *PlatformFacade) DeliveredOrders(ctx context.Context) ([]model.OrderView, error) {
	return f.orders.ListDelivered(ctx)
}

func (f *PlatformFacade) UpdateOrderStatus(ctx context.Context, id, status string) (*model.Order, error) {
	order, changed, err := f.orders.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if changed {
		f.notify(model.Notification{
			RecipientID: order.OwnerID,
			Event:       model.NotificationOrderStatus,
			OrderID:     order.ID,
			Status:      string(order.Status),
		})
	}
	return order, nil
}

func (f *PlatformFacade) DeleteOrder(ctx context.Context, id string) error {
	return f.orders.Delete(ctx, id)
}

// AcceptDelivery assigns a prepared order to the calling driver.
func (f *PlatformFacade) AcceptDelivery(ctx context.Context, principal auth.Principal, req AcceptDeliveryRequest) (*model.DeliveryOrder, error) {
	driver, err := f.driverFor(ctx, principal)
	if err != nil {
		return nil, err
	}
	order, err := f.orders.Find(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusPrepared {
		return nil, fmt.Errorf("%w: order %s is %s, not ready for pickup", domainErrors.ErrConflict, order.ID, order.Status)
	}

	delivery, err := f.deliveries.Accept(ctx, usecase.AcceptDeliveryCommand{
		OrderID:         order.ID,
		DriverID:        driver.ID,
		PickupAddress:   req.PickupAddress,
		DropoffAddress:  fmt.Sprintf("%s, %s", order.DeliveryAddress.No, order.DeliveryAddress.Street),
		PickupLocation:  req.PickupLocation,
		DropoffLocation: order.DeliveryCoordinates,
		DeliveryCharge:  order.DeliveryCharge,
		PaymentMethod:   order.PaymentMethod,
	})
	if err != nil {
		return nil, err
	}

	f.mirror(ctx, delivery)
	f.notify(model.Notification{
		RecipientID: order.OwnerID,
		Event:       model.NotificationDeliveryAccepted,
		OrderID:     order.ID,
		DeliveryID:  delivery.ID,
		Status:      string(delivery.Status),
	})
	return delivery, nil
}

func (f *PlatformFacade) AdvanceDelivery(ctx context.Context, principal auth.Principal, id string, status model.DeliveryStatus) (*model.DeliveryOrder, error) {
	if _, err := f.assignedDelivery(ctx, principal, id); err != nil {
		return nil, err
	}
	delivery, changed, err := f.deliveries.Advance(ctx, id, status)
	if err != nil {
		return nil, err
	}
	f.mirror(ctx, delivery)
	if changed {
		f.notifyOwner(ctx, delivery, model.NotificationDeliveryStatus)
	}
	return delivery, nil
}

func (f *PlatformFacade) CompleteDelivery(ctx context.Context, principal auth.Principal, id string, cmd usecase.CompleteDeliveryCommand) (*model.DeliveryOrder, error) {
	if _, err := f.assignedDelivery(ctx, principal, id); err != nil {
		return nil, err
	}
	delivery, changed, err := f.deliveries.Complete(ctx, id, cmd)
	if err != nil {
		return nil, err
	}
	f.mirror(ctx, delivery)
	if changed {
		f.notifyOwner(ctx, delivery, model.NotificationDeliveryCompleted)
	}
	return delivery, nil
}

// CancelDelivery releases a delivery. Admins may cancel any delivery.
func (f *PlatformFacade) CancelDelivery(ctx context.Context, principal auth.Principal, id string) (*model.DeliveryOrder, error) {
	if principal.Role != auth.RoleAdmin {
		if _, err := f.assignedDelivery(ctx, principal, id); err != nil {
			return nil, err
		}
	}
	delivery, err := f.deliveries.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.rooms != nil {
		f.rooms.Revoke(delivery.ID)
	}
	f.mirror(ctx, delivery)
	f.notifyOwner(ctx, delivery, model.NotificationDeliveryCancelled)
	return delivery, nil
}

// Delivery returns a delivery to its driver, the order owner and staff roles.
func (f *PlatformFacade) Delivery(ctx context.Context, principal auth.Principal, id string) (*model.DeliveryOrder, error) {
	delivery, err := f.deliveries.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := f.canView(ctx, principal, delivery); err != nil {
		return nil, err
	}
	return delivery, nil
}

func (f *PlatformFacade) DeliveryByOrder(ctx context.Context, principal auth.Principal, orderID string) (*model.DeliveryOrder, error) {
	delivery, err := f.deliveries.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := f.canView(ctx, principal, delivery); err != nil {
		return nil, err
	}
	return delivery, nil
}

func (f *PlatformFacade) MyDeliveries(ctx context.Context, principal auth.Principal) ([]model.DeliveryOrder, error) {
	driver, err := f.driverFor(ctx, principal)
	if err != nil {
		return nil, err
	}
	return f.deliveries.ListForDriver(ctx, driver.ID)
}

func (f *PlatformFacade) MyActiveDeliveries(ctx context.Context, principal auth.Principal) ([]model.DeliveryOrder, error) {
	driver, err := f.driverFor(ctx, principal)
	if err != nil {
		return nil, err
	}
	return f.deliveries.ListActiveForDriver(ctx, driver.ID)
}

func (f *PlatformFacade) DriverProfile(ctx context.Context, principal auth.Principal) (*model.DriverProfile, error) {
	return f.driverFor(ctx, principal)
}

// RelayToken grants the assigned driver a publishing ticket and the order
// owner a listening ticket for a live delivery.
func (f *PlatformFacade) RelayToken(ctx context.Context, principal auth.Principal, deliveryID string) (*RelayGrant, error) {
	delivery, err := f.deliveries.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if delivery.Status.Terminal() {
		return nil, fmt.Errorf("%w: delivery %s is %s", domainErrors.ErrConflict, deliveryID, delivery.Status)
	}

	role, err := f.relayRole(ctx, principal, delivery)
	if err != nil {
		return nil, err
	}
	token, expires, err := f.tokens.Issue(delivery.ID, principal.ID, role)
	if err != nil {
		return nil, fmt.Errorf("issue relay token: %w", err)
	}
	return &RelayGrant{Token: token, Role: role, ExpiresAt: expires}, nil
}

// AuthorizeRelay checks a verified room token against the delivery's current
// state. Publisher tokens are honoured only while their holder is still the
// assigned driver of a live delivery.
func (f *PlatformFacade) AuthorizeRelay(ctx context.Context, claims auth.RoomClaims) error {
	delivery, err := f.deliveries.Get(ctx, claims.DeliveryID)
	if err != nil {
		return err
	}
	if delivery.Status.Terminal() {
		return fmt.Errorf("%w: delivery %s is %s", domainErrors.ErrConflict, delivery.ID, delivery.Status)
	}
	if claims.Role != auth.RelayRoleDriver {
		return nil
	}
	driver, err := f.driverFor(ctx, auth.Principal{ID: claims.Subject, Role: auth.RoleDriver})
	if err != nil {
		return err
	}
	if driver.ID != delivery.DriverID {
		return fmt.Errorf("%w: delivery %s is assigned to another driver", domainErrors.ErrForbidden, delivery.ID)
	}
	return nil
}

func (f *PlatformFacade) UnsyncedDeliveries(ctx context.Context, limit int) ([]model.DeliverySync, error) {
	return f.deliveries.ListUnsynced(ctx, limit)
}

// SyncOrder replays a delivery status into its order.
func (f *PlatformFacade) SyncOrder(ctx context.Context, s model.DeliverySync) error {
	changed, err := f.orders.SyncWithDelivery(ctx, s.OrderID, s.DeliveryStatus)
	if err != nil {
		return err
	}
	if changed {
		f.logger.Info("order repaired from delivery",
			slog.String("order_id", s.OrderID),
			slog.String("delivery_id", s.DeliveryID),
			slog.String("delivery_status", string(s.DeliveryStatus)),
		)
	}
	return nil
}

// Wait blocks until in-flight notifications are done.
func (f *PlatformFacade) Wait() {
	f.pending.Wait()
}

func (f *PlatformFacade) relayRole(ctx context.Context, principal auth.Principal, delivery *model.DeliveryOrder) (auth.RelayRole, error) {
	if principal.Role == auth.RoleDriver {
		driver, err := f.driverFor(ctx, principal)
		if err == nil && driver.ID == delivery.DriverID {
			return auth.RelayRoleDriver, nil
		}
	}
	if principal.Role == auth.RoleAdmin {
		return auth.RelayRoleCustomer, nil
	}
	order, err := f.orders.Find(ctx, delivery.OrderID)
	if err != nil {
		return "", err
	}
	if order.OwnerID == principal.ID {
		return auth.RelayRoleCustomer, nil
	}
	return "", fmt.Errorf("%w: no access to delivery %s", domainErrors.ErrForbidden, delivery.ID)
}

func (f *PlatformFacade) canView(ctx context.Context, principal auth.Principal, delivery *model.DeliveryOrder) error {
	switch principal.Role {
	case auth.RoleAdmin, auth.RoleRestaurant:
		return nil
	case auth.RoleDriver:
		driver, err := f.driverFor(ctx, principal)
		if err != nil {
			return err
		}
		if driver.ID == delivery.DriverID {
			return nil
		}
	default:
		order, err := f.orders.Find(ctx, delivery.OrderID)
		if err != nil {
			return err
		}
		if order.OwnerID == principal.ID {
			return nil
		}
	}
	return fmt.Errorf("%w: no access to delivery %s", domainErrors.ErrForbidden, delivery.ID)
}

func (f *PlatformFacade) assignedDelivery(ctx context.Context, principal auth.Principal, id string) (*model.DeliveryOrder, error) {
	driver, err := f.driverFor(ctx, principal)
	if err != nil {
		return nil, err
	}
	delivery, err := f.deliveries.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if delivery.DriverID != driver.ID {
		return nil, fmt.Errorf("%w: delivery %s is assigned to another driver", domainErrors.ErrForbidden, id)
	}
	return delivery, nil
}

func (f *PlatformFacade) driverFor(ctx context.Context, principal auth.Principal) (*model.DriverProfile, error) {
	if principal.Role != auth.RoleDriver {
		return nil, fmt.Errorf("%w: driver role required", domainErrors.ErrForbidden)
	}
	driver, err := f.deliveries.DriverProfile(ctx, principal.ID)
	if errors.Is(err, domainErrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: no driver profile for user %s", domainErrors.ErrForbidden, principal.ID)
	}
	return driver, err
}

func (f *PlatformFacade) mirror(ctx context.Context, delivery *model.DeliveryOrder) {
	if _, err := f.orders.SyncWithDelivery(ctx, delivery.OrderID, delivery.Status); err != nil {
		f.logger.Warn("order status mirror failed, left for reconciliation",
			slog.String("order_id", delivery.OrderID),
			slog.String("delivery_id", delivery.ID),
			slog.String("delivery_status", string(delivery.Status)),
			slog.Any("error", err),
		)
	}
}

func (f *PlatformFacade) notifyOwner(ctx context.Context, delivery *model.DeliveryOrder, event model.NotificationEvent) {
	order, err := f.orders.Find(ctx, delivery.OrderID)
	if err != nil {
		f.logger.Warn("notification recipient lookup failed",
			slog.String("order_id", delivery.OrderID),
			slog.Any("error", err),
		)
		return
	}
	f.notify(model.Notification{
		RecipientID: order.OwnerID,
		Event:       event,
		OrderID:     order.ID,
		DeliveryID:  delivery.ID,
		Status:      string(delivery.Status),
	})
}

// notify is fire-and-forget: failures are logged and never reach the caller.
func (f *PlatformFacade) notify(n model.Notification) {
	if f.notifier == nil || n.RecipientID == "" {
		return
	}
	f.pending.Add(1)
	go func() {
		defer f.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := f.notifier.Notify(ctx, n); err != nil {
			f.logger.Warn("notification failed",
				slog.String("recipient_id", n.RecipientID),
				slog.String("event", string(n.Event)),
				slog.Any("error", err),
			)
		}
	}()
}
