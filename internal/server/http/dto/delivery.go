package dto

import "time"

// AcceptDeliveryRequest is a driver's claim on a prepared order.
type AcceptDeliveryRequest struct {
	OrderID        string      `json:"order_id"`
	PickupAddress  string      `json:"pickup_address"`
	PickupLocation Coordinates `json:"pickup_location"`
}

// CompleteDeliveryRequest carries proof of delivery.
type CompleteDeliveryRequest struct {
	CustomerSignature string   `json:"customer_signature"`
	ProofPhotos       []string `json:"proof_photos"`
}

type DeliveryResponse struct {
	ID                string      `json:"id"`
	OrderID           string      `json:"order_id"`
	DriverID          string      `json:"driver_id,omitempty"`
	Status            string      `json:"status"`
	PickupAddress     string      `json:"pickup_address"`
	DropoffAddress    string      `json:"dropoff_address"`
	PickupLocation    Coordinates `json:"pickup_location"`
	DropoffLocation   Coordinates `json:"dropoff_location"`
	AcceptedAt        *time.Time  `json:"accepted_at,omitempty"`
	PickedUpAt        *time.Time  `json:"picked_up_at,omitempty"`
	DeliveredAt       *time.Time  `json:"delivered_at,omitempty"`
	CanceledAt        *time.Time  `json:"canceled_at,omitempty"`
	ProofPhotos       []string    `json:"proof_photos"`
	EstimatedTime     int         `json:"estimated_time"`
	ActualTime        *int        `json:"actual_time,omitempty"`
	DeliveryCharge    float64     `json:"delivery_charge"`
	PaymentMethod     string      `json:"payment_method"`
	CustomerSignature string      `json:"customer_signature,omitempty"`
}

// RelayTokenResponse grants access to a delivery's location stream.
type RelayTokenResponse struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
	Path      string    `json:"path"`
}

type DriverProfileResponse struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	Name            string       `json:"name"`
	VehicleType     string       `json:"vehicle_type,omitempty"`
	IsOnline        bool         `json:"is_online"`
	Address         string       `json:"address,omitempty"`
	CurrentLocation *Coordinates `json:"current_location,omitempty"`
	TotalDeliveries int          `json:"total_deliveries"`
	TotalEarnings   float64      `json:"total_earnings"`
	AverageRating   float64      `json:"average_rating"`
}
