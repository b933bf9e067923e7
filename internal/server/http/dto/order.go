package dto

import "time"

type Address struct {
	No     string `json:"no"`
	Street string `json:"street"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PlaceOrderRequest checks out the caller's cart for one restaurant.
type PlaceOrderRequest struct {
	RestaurantID        string      `json:"restaurant_id"`
	PaymentMethod       string      `json:"payment_method"`
	DeliveryAddress     Address     `json:"delivery_address"`
	DeliveryCoordinates Coordinates `json:"delivery_coordinates"`
	DeliveryCharge      float64     `json:"delivery_charge"`
}

// StatusRequest carries a requested status change.
type StatusRequest struct {
	Status string `json:"status"`
}

type OrderItemResponse struct {
	CatalogItemID string               `json:"catalog_item_id"`
	Name          string               `json:"name"`
	Quantity      int                  `json:"quantity"`
	UnitPrice     float64              `json:"unit_price"`
	LineTotal     float64              `json:"line_total"`
	Item          *CatalogItemResponse `json:"item,omitempty"`
}

type RestaurantResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// OrderResponse is an order with its optional restaurant join.
type OrderResponse struct {
	ID                  string              `json:"id"`
	OwnerID             string              `json:"owner_id"`
	RestaurantID        string              `json:"restaurant_id"`
	Items               []OrderItemResponse `json:"items"`
	Subtotal            float64             `json:"subtotal"`
	DeliveryCharge      float64             `json:"delivery_charge"`
	TotalAmount         float64             `json:"total_amount"`
	PaymentMethod       string              `json:"payment_method"`
	DeliveryAddress     Address             `json:"delivery_address"`
	DeliveryCoordinates Coordinates         `json:"delivery_coordinates"`
	Status              string              `json:"status"`
	Restaurant          *RestaurantResponse `json:"restaurant,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}
