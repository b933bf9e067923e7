package repository

import (
	"context"
	"time"

	"github.com/polkiloo/fooddelivery/internal/domain/model"
)

// DeliveryRepository describes persistence of delivery orders and the driver ledger.
type DeliveryRepository interface {
	// Create stores a new delivery. A second delivery for the same order fails with ErrConflict.
	Create(ctx context.Context, delivery *model.DeliveryOrder) error
	// Reassign hands a cancelled delivery to another driver and resets its progress.
	Reassign(ctx context.Context, delivery *model.DeliveryOrder) error
	GetByID(ctx context.Context, id string) (*model.DeliveryOrder, error)
	GetByOrderID(ctx context.Context, orderID string) (*model.DeliveryOrder, error)
	ListByDriver(ctx context.Context, driverID string) ([]model.DeliveryOrder, error)
	ListActiveByDriver(ctx context.Context, driverID string) ([]model.DeliveryOrder, error)
	// Advance changes status guarded by the expected current status. pickedUpAt is stored when not nil.
	Advance(ctx context.Context, id string, from, to model.DeliveryStatus, pickedUpAt *time.Time) error
	Cancel(ctx context.Context, id string, from model.DeliveryStatus, canceledAt time.Time) error
	// Complete marks the delivery delivered and credits the driver ledger in one
	// transaction. It reports whether a driver profile was credited.
	Complete(ctx context.Context, completion model.DeliveryCompletion) (bool, error)
	ListUnsynced(ctx context.Context, limit int) ([]model.DeliverySync, error)
}

// DriverRepository gives read access to driver profiles.
type DriverRepository interface {
	GetByID(ctx context.Context, id string) (*model.DriverProfile, error)
	GetByUserID(ctx context.Context, userID string) (*model.DriverProfile, error)
}
