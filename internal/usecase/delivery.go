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
	"github.com/polkiloo/fooddelivery/internal/pkg/geo"
)

// AcceptDeliveryCommand carries the data needed to open a delivery.
type AcceptDeliveryCommand struct {
	OrderID         string
	DriverID        string
	PickupAddress   string
	DropoffAddress  string
	PickupLocation  model.Coordinates
	DropoffLocation model.Coordinates
	DeliveryCharge  float64
	PaymentMethod   model.PaymentMethod
}

func (c AcceptDeliveryCommand) validate() error {
	switch {
	case c.OrderID == "":
		return fmt.Errorf("%w: order is required", domainErrors.ErrValidation)
	case c.DriverID == "":
		return fmt.Errorf("%w: driver is required", domainErrors.ErrValidation)
	case !c.PickupLocation.Valid() || !c.DropoffLocation.Valid():
		return fmt.Errorf("%w: pickup and dropoff must be valid coordinates", domainErrors.ErrValidation)
	case math.IsNaN(c.DeliveryCharge) || math.IsInf(c.DeliveryCharge, 0) || c.DeliveryCharge < 0:
		return fmt.Errorf("%w: delivery charge must be a non-negative amount", domainErrors.ErrValidation)
	case !c.PaymentMethod.Valid():
		return fmt.Errorf("%w: unsupported payment method %q", domainErrors.ErrValidation, c.PaymentMethod)
	}
	return nil
}

// CompleteDeliveryCommand carries proof of delivery.
type CompleteDeliveryCommand struct {
	CustomerSignature string
	ProofPhotos       []string
}

// DeliveryUseCase drives the delivery lifecycle and the driver ledger.
type DeliveryUseCase struct {
	deliveries repository.DeliveryRepository
	drivers    repository.DriverRepository
	speedKmh   float64
	logger     *slog.Logger
	now        func() time.Time
}

// NewDeliveryUseCase constructs DeliveryUseCase.
func NewDeliveryUseCase(deliveries repository.DeliveryRepository, drivers repository.DriverRepository, cfg *config.Config, logger *slog.Logger) *DeliveryUseCase {
	return &DeliveryUseCase{
		deliveries: deliveries,
		drivers:    drivers,
		speedKmh:   cfg.CourierSpeedKmh,
		logger:     logger,
		now:        time.Now,
	}
}

// Accept assigns the order to a driver. An order holds at most one delivery;
// a cancelled one is handed to the new driver instead of creating another.
func (u *DeliveryUseCase) Accept(ctx context.Context, cmd AcceptDeliveryCommand) (*model.DeliveryOrder, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	reassign := false
	existing, err := u.deliveries.GetByOrderID(ctx, cmd.OrderID)
	switch {
	case err == nil && existing.Status != model.DeliveryStatusCancelled:
		return nil, fmt.Errorf("%w: order %s already has delivery %s", domainErrors.ErrConflict, cmd.OrderID, existing.ID)
	case err == nil:
		reassign = true
	case !errors.Is(err, domainErrors.ErrNotFound):
		return nil, err
	}

	acceptedAt := u.now()
	distance := geo.DistanceKm(cmd.PickupLocation.Lat, cmd.PickupLocation.Lng, cmd.DropoffLocation.Lat, cmd.DropoffLocation.Lng)
	delivery := &model.DeliveryOrder{
		OrderID:         cmd.OrderID,
		DriverID:        cmd.DriverID,
		Status:          model.DeliveryStatusAccepted,
		PickupAddress:   cmd.PickupAddress,
		DropoffAddress:  cmd.DropoffAddress,
		PickupLocation:  cmd.PickupLocation,
		DropoffLocation: cmd.DropoffLocation,
		AcceptedAt:      &acceptedAt,
		ProofPhotos:     []string{},
		EstimatedTime:   geo.TravelMinutes(distance, u.speedKmh),
		DeliveryCharge:  cmd.DeliveryCharge,
		PaymentMethod:   cmd.PaymentMethod,
	}

	if reassign {
		err = u.deliveries.Reassign(ctx, delivery)
	} else {
		err = u.deliveries.Create(ctx, delivery)
	}
	if err != nil {
		return nil, err
	}

	u.logger.Info("delivery accepted",
		slog.String("delivery_id", delivery.ID),
		slog.String("order_id", delivery.OrderID),
		slog.String("driver_id", delivery.DriverID),
		slog.Int("estimated_minutes", delivery.EstimatedTime),
		slog.Bool("reassigned", reassign),
	)
	return delivery, nil
}

// Advance moves an active delivery into transit. OutForDelivery and PickedUp
// are interchangeable; PickedUp stamps the pickup time once. It reports
// whether the stored status changed.
func (u *DeliveryUseCase) Advance(ctx context.Context, id string, status model.DeliveryStatus) (*model.DeliveryOrder, bool, error) {
	if !status.InTransit() {
		return nil, false, fmt.Errorf("%w: status %q is not a transit status", domainErrors.ErrValidation, status)
	}

	delivery, err := u.deliveries.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if delivery.Status == status {
		return delivery, false, nil
	}
	if delivery.Status.Terminal() {
		return nil, false, fmt.Errorf("%w: delivery %s is %s", domainErrors.ErrValidation, id, delivery.Status)
	}

	var pickedUpAt *time.Time
	if status == model.DeliveryStatusPickedUp && delivery.PickedUpAt == nil {
		now := u.now()
		pickedUpAt = &now
	}

	if err := u.deliveries.Advance(ctx, id, delivery.Status, status, pickedUpAt); err != nil {
		return nil, false, err
	}

	delivery.Status = status
	if pickedUpAt != nil {
		delivery.PickedUpAt = pickedUpAt
	}
	return delivery, true, nil
}

// Complete finishes the delivery and credits the driver ledger. Completing a
// delivered record again returns it unchanged. It reports whether this call
// performed the completion.
func (u *DeliveryUseCase) Complete(ctx context.Context, id string, cmd CompleteDeliveryCommand) (*model.DeliveryOrder, bool, error) {
	delivery, err := u.deliveries.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	switch {
	case delivery.Status == model.DeliveryStatusDelivered:
		return delivery, false, nil
	case delivery.Status == model.DeliveryStatusCancelled:
		return nil, false, fmt.Errorf("%w: delivery %s was cancelled", domainErrors.ErrValidation, id)
	case delivery.AcceptedAt == nil:
		return nil, false, fmt.Errorf("%w: delivery %s has no acceptance time", domainErrors.ErrValidation, id)
	}

	deliveredAt := u.now()
	actual := ElapsedMinutes(*delivery.AcceptedAt, deliveredAt)
	photos := cmd.ProofPhotos
	if photos == nil {
		photos = []string{}
	}

	credited, err := u.deliveries.Complete(ctx, model.DeliveryCompletion{
		DeliveryID:        id,
		DriverID:          delivery.DriverID,
		AcceptedAt:        *delivery.AcceptedAt,
		DeliveryCharge:    delivery.DeliveryCharge,
		DeliveredAt:       deliveredAt,
		ActualTime:        actual,
		CustomerSignature: cmd.CustomerSignature,
		ProofPhotos:       photos,
	})
	if err != nil {
		if !errors.Is(err, domainErrors.ErrConflict) {
			return nil, false, err
		}
		current, getErr := u.deliveries.GetByID(ctx, id)
		if getErr != nil {
			return nil, false, getErr
		}
		if current.Status == model.DeliveryStatusDelivered {
			return current, false, nil
		}
		if !sameAssignment(delivery, current) {
			return nil, false, fmt.Errorf("%w: delivery %s was reassigned", domainErrors.ErrConflict, id)
		}
		return nil, false, fmt.Errorf("%w: delivery %s is %s", domainErrors.ErrValidation, id, current.Status)
	}
	if !credited {
		u.logger.Warn("delivery completed without ledger credit",
			slog.String("delivery_id", id),
			slog.String("driver_id", delivery.DriverID),
		)
	}

	delivery.Status = model.DeliveryStatusDelivered
	delivery.DeliveredAt = &deliveredAt
	delivery.ActualTime = &actual
	delivery.CustomerSignature = cmd.CustomerSignature
	delivery.ProofPhotos = photos
	return delivery, true, nil
}

// Cancel releases an active delivery. The driver is detached from the record.
func (u *DeliveryUseCase) Cancel(ctx context.Context, id string) (*model.DeliveryOrder, error) {
	delivery, err := u.deliveries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if delivery.Status.Terminal() {
		return nil, fmt.Errorf("%w: delivery %s is already %s", domainErrors.ErrValidation, id, delivery.Status)
	}

	canceledAt := u.now()
	if err := u.deliveries.Cancel(ctx, id, delivery.Status, canceledAt); err != nil {
		return nil, err
	}

	delivery.Status = model.DeliveryStatusCancelled
	delivery.CanceledAt = &canceledAt
	delivery.DriverID = ""
	return delivery, nil
}

// Get returns a delivery by id.
func (u *DeliveryUseCase) Get(ctx context.Context, id string) (*model.DeliveryOrder, error) {
	return u.deliveries.GetByID(ctx, id)
}

// GetByOrderID returns the delivery attached to an order.
func (u *DeliveryUseCase) GetByOrderID(ctx context.Context, orderID string) (*model.DeliveryOrder, error) {
	return u.deliveries.GetByOrderID(ctx, orderID)
}

// ListForDriver returns the driver's deliveries, most recently delivered first.
func (u *DeliveryUseCase) ListForDriver(ctx context.Context, driverID string) ([]model.DeliveryOrder, error) {
	return u.deliveries.ListByDriver(ctx, driverID)
}

// ListActiveForDriver returns the driver's deliveries still in progress.
func (u *DeliveryUseCase) ListActiveForDriver(ctx context.Context, driverID string) ([]model.DeliveryOrder, error) {
	return u.deliveries.ListActiveByDriver(ctx, driverID)
}

// ListUnsynced returns deliveries whose orders still need a status mirror.
func (u *DeliveryUseCase) ListUnsynced(ctx context.Context, limit int) ([]model.DeliverySync, error) {
	return u.deliveries.ListUnsynced(ctx, limit)
}

// DriverProfile resolves the driver profile of a user.
func (u *DeliveryUseCase) DriverProfile(ctx context.Context, userID string) (*model.DriverProfile, error) {
	return u.drivers.GetByUserID(ctx, userID)
}

// ElapsedMinutes returns whole minutes between from and to, rounded up.
func ElapsedMinutes(from, to time.Time) int {
	elapsed := to.Sub(from)
	if elapsed <= 0 {
		return 0
	}
	return int(math.Ceil(elapsed.Minutes()))
}

func sameAssignment(a, b *model.DeliveryOrder) bool {
	if a.DriverID != b.DriverID {
		return false
	}
	if a.AcceptedAt == nil || b.AcceptedAt == nil {
		return a.AcceptedAt == b.AcceptedAt
	}
	return a.AcceptedAt.Equal(*b.AcceptedAt)
}
