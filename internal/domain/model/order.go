package model

import (
	"math"
	"time"
)

// OrderStatus describes order fulfillment lifecycle.
type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "Pending"
	OrderStatusConfirmed        OrderStatus = "Confirmed"
	OrderStatusPreparing        OrderStatus = "Preparing"
	OrderStatusPrepared         OrderStatus = "Prepared"
	OrderStatusDeliveryAccepted OrderStatus = "DeliveryAccepted"
	OrderStatusOutForDelivery   OrderStatus = "OutForDelivery"
	OrderStatusDelivered        OrderStatus = "Delivered"
	OrderStatusCancelled        OrderStatus = "Cancelled"
)

// orderTransitions lists the edges of the order state machine. Prepared is
// reachable back from the delivery phase when a driver releases the order.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:          {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:        {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:        {OrderStatusPrepared, OrderStatusCancelled},
	OrderStatusPrepared:         {OrderStatusDeliveryAccepted, OrderStatusCancelled},
	OrderStatusDeliveryAccepted: {OrderStatusOutForDelivery, OrderStatusPrepared, OrderStatusCancelled},
	OrderStatusOutForDelivery:   {OrderStatusDelivered, OrderStatusPrepared, OrderStatusCancelled},
}

var orderRank = map[OrderStatus]int{
	OrderStatusPending:          0,
	OrderStatusConfirmed:        1,
	OrderStatusPreparing:        2,
	OrderStatusPrepared:         3,
	OrderStatusDeliveryAccepted: 4,
	OrderStatusOutForDelivery:   5,
	OrderStatusDelivered:        6,
}

// Valid reports whether the status is one of the enumerated values.
func (s OrderStatus) Valid() bool {
	if s == OrderStatusCancelled {
		return true
	}
	_, ok := orderRank[s]
	return ok
}

// Terminal reports whether no further transitions are allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether next is an edge of the state machine.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Precedes reports whether s comes strictly before other in the forward chain.
// Cancelled has no position and never precedes anything.
func (s OrderStatus) Precedes(other OrderStatus) bool {
	a, okA := orderRank[s]
	b, okB := orderRank[other]
	return okA && okB && a < b
}

// ParseOrderStatus converts raw input into a known status.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	status := OrderStatus(raw)
	return status, status.Valid()
}

// PaymentMethod is how the customer settles the order.
type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "CashOnDelivery"
	PaymentMethodCard           PaymentMethod = "Card"
)

// Valid reports whether the payment method is supported.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCashOnDelivery || m == PaymentMethodCard
}

// Address is a street-level delivery address.
type Address struct {
	No     string
	Street string
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64
	Lng float64
}

// Valid reports whether the point is finite and within range.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// OrderItem is a priced line captured at checkout.
type OrderItem struct {
	CatalogItemID string  `json:"catalog_item_id"`
	Name          string  `json:"name"`
	Quantity      int     `json:"quantity"`
	UnitPrice     float64 `json:"unit_price"`
	LineTotal     float64 `json:"line_total"`
}

// Order is an immutable snapshot of a checked-out cart tracked through fulfillment.
type Order struct {
	ID                  string
	OwnerID             string
	RestaurantID        string
	Items               []OrderItem
	Subtotal            float64
	DeliveryCharge      float64
	TotalAmount         float64
	PaymentMethod       PaymentMethod
	DeliveryAddress     Address
	DeliveryCoordinates Coordinates
	Status              OrderStatus
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// OrderItemDetails pairs a snapshot line with its live catalog entry, if any.
type OrderItemDetails struct {
	OrderItem
	Item *CatalogItem
}

// OrderDetails is an order enriched with catalog and restaurant data.
type OrderDetails struct {
	Order
	Items      []OrderItemDetails
	Restaurant *Restaurant
}

// OrderView is a listing entry joined with restaurant info.
type OrderView struct {
	Order
	Restaurant *Restaurant
}
