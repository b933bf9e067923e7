package model

import "time"

// DeliveryStatus describes the driver-facing fulfillment lifecycle.
type DeliveryStatus string

const (
	DeliveryStatusAccepted       DeliveryStatus = "DeliveryAccepted"
	DeliveryStatusOutForDelivery DeliveryStatus = "OutForDelivery"
	DeliveryStatusPickedUp       DeliveryStatus = "PickedUp"
	DeliveryStatusDelivered      DeliveryStatus = "Delivered"
	DeliveryStatusCancelled      DeliveryStatus = "Cancelled"
)

// Terminal reports whether the delivery can no longer change.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusCancelled
}

// InTransit reports whether the driver has left with the order. OutForDelivery
// and PickedUp are interchangeable labels for this phase.
func (s DeliveryStatus) InTransit() bool {
	return s == DeliveryStatusOutForDelivery || s == DeliveryStatusPickedUp
}

// OrderStatus returns the order status mirrored for this delivery status.
// A cancelled delivery releases the order back to Prepared.
func (s DeliveryStatus) OrderStatus() OrderStatus {
	switch s {
	case DeliveryStatusAccepted:
		return OrderStatusDeliveryAccepted
	case DeliveryStatusOutForDelivery, DeliveryStatusPickedUp:
		return OrderStatusOutForDelivery
	case DeliveryStatusDelivered:
		return OrderStatusDelivered
	default:
		return OrderStatusPrepared
	}
}

// ActiveDeliveryStatuses lists statuses of deliveries still in progress.
var ActiveDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusAccepted,
	DeliveryStatusOutForDelivery,
	DeliveryStatusPickedUp,
}

// DeliveryOrder is the fulfillment record for a single order.
type DeliveryOrder struct {
	ID                string
	OrderID           string
	DriverID          string
	Status            DeliveryStatus
	PickupAddress     string
	DropoffAddress    string
	PickupLocation    Coordinates
	DropoffLocation   Coordinates
	AcceptedAt        *time.Time
	PickedUpAt        *time.Time
	DeliveredAt       *time.Time
	CanceledAt        *time.Time
	ProofPhotos       []string
	EstimatedTime     int
	ActualTime        *int
	DeliveryCharge    float64
	PaymentMethod     PaymentMethod
	CustomerSignature string
}

// DeliveryCompletion carries the fields persisted when a delivery is finished.
type DeliveryCompletion struct {
	DeliveryID        string
	DriverID          string
	AcceptedAt        time.Time
	DeliveryCharge    float64
	DeliveredAt       time.Time
	ActualTime        int
	CustomerSignature string
	ProofPhotos       []string
}

// DeliverySync is a delivery whose order status has not caught up yet.
type DeliverySync struct {
	DeliveryID     string
	OrderID        string
	DeliveryStatus DeliveryStatus
	OrderStatus    OrderStatus
}

// DriverProfile holds driver details and the earnings ledger.
type DriverProfile struct {
	ID              string
	UserID          string
	Name            string
	VehicleType     string
	IsOnline        bool
	Address         string
	CurrentLocation *Coordinates
	TotalDeliveries int
	TotalEarnings   float64
	AverageRating   float64
}
